package storage

import (
	"bytes"
	"encoding/json"
)

// JSONStore keeps each collection in <dir>/<collection>.json as an object
// mapping keys to records.
type JSONStore struct {
	*fileStore
}

// NewJSONStore creates the directory if needed.
func NewJSONStore(dir string) (*JSONStore, error) {
	fs, err := newFileStore("json", dir, jsonCodec{})
	if err != nil {
		return nil, err
	}
	return &JSONStore{fs}, nil
}

var _ Store = (*JSONStore)(nil)

type jsonCodec struct{}

func (jsonCodec) ext() string { return "json" }

func (jsonCodec) decode(data []byte) (map[string]Record, error) {
	records := map[string]Record{}
	if len(bytes.TrimSpace(data)) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	for k, r := range records {
		records[k] = r.Clone()
	}
	return records, nil
}

func (jsonCodec) encode(records map[string]Record) ([]byte, error) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
