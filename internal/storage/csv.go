package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"slices"
)

// CSVStore keeps each collection in <dir>/<collection>.csv. The header is
// _key followed by the sorted union of all field names.
type CSVStore struct {
	*fileStore
}

// NewCSVStore creates the directory if needed.
func NewCSVStore(dir string) (*CSVStore, error) {
	fs, err := newFileStore("csv", dir, csvCodec{})
	if err != nil {
		return nil, err
	}
	return &CSVStore{fs}, nil
}

var _ Store = (*CSVStore)(nil)

type csvCodec struct{}

func (csvCodec) ext() string { return "csv" }

func (csvCodec) decode(data []byte) (map[string]Record, error) {
	records := map[string]Record{}
	if len(bytes.TrimSpace(data)) == 0 {
		return records, nil
	}

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, err
	}
	header := rows[0]
	if len(header) == 0 || header[0] != KeyField {
		return nil, fmt.Errorf("first column must be %s", KeyField)
	}

	for i, row := range rows[1:] {
		if row[0] == "" {
			return nil, fmt.Errorf("row %d has no key", i+2)
		}
		r := Record{}
		for j := 1; j < len(header); j++ {
			if row[j] != "" {
				r[header[j]] = row[j]
			}
		}
		records[row[0]] = r
	}
	return records, nil
}

func (csvCodec) encode(records map[string]Record) ([]byte, error) {
	var fields []string
	seen := map[string]bool{}
	keys := make([]string, 0, len(records))
	for k, r := range records {
		keys = append(keys, k)
		for f := range r {
			if !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
	}
	slices.Sort(fields)
	slices.Sort(keys)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append([]string{KeyField}, fields...)); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for _, k := range keys {
		row := make([]string, 0, len(fields)+1)
		row = append(row, k)
		for _, f := range fields {
			row = append(row, records[k][f])
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write record %s: %w", k, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
