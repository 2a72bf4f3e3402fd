package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// codec converts a whole collection file to and from records.
type codec interface {
	ext() string
	decode(data []byte) (map[string]Record, error)
	encode(records map[string]Record) ([]byte, error)
}

// fileStore keeps one file per collection. Writes replace the file through a
// temporary file and a rename so readers never see a partial file.
type fileStore struct {
	name  string
	dir   string
	codec codec

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newFileStore(name, dir string, c codec) (*fileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &Error{Op: name + ".mkdir", Path: dir, Err: err}
	}
	return &fileStore{name: name, dir: dir, codec: c, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *fileStore) path(collection string) string {
	return filepath.Join(s.dir, collection+"."+s.codec.ext())
}

func (s *fileStore) lock(collection string) func() {
	s.mu.Lock()
	l, ok := s.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		s.locks[collection] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *fileStore) load(op, collection string) (map[string]Record, error) {
	path := s.path(collection)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, &Error{Op: op, Collection: collection, Path: path, Err: err}
	}
	records, err := s.codec.decode(data)
	if err != nil {
		return nil, &Error{Op: op, Collection: collection, Path: path, Err: fmt.Errorf("%w: %v", ErrCorrupt, err)}
	}
	return records, nil
}

func (s *fileStore) save(op, collection string, records map[string]Record) error {
	path := s.path(collection)
	data, err := s.codec.encode(records)
	if err != nil {
		return &Error{Op: op, Collection: collection, Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, "."+collection+"-*.tmp")
	if err != nil {
		return &Error{Op: op, Collection: collection, Path: s.dir, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return &Error{Op: op, Collection: collection, Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &Error{Op: op, Collection: collection, Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return &Error{Op: op, Collection: collection, Path: path, Err: err}
	}
	return nil
}

func (s *fileStore) Get(ctx context.Context, collection, key string) (Record, error) {
	op := s.name + ".get"
	if err := checkKey(op, collection, key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: op, Collection: collection, Key: key, Err: err}
	}
	records, err := s.load(op, collection)
	if err != nil {
		return nil, err
	}
	r, ok := records[key]
	if !ok {
		return nil, &Error{Op: op, Collection: collection, Key: key, Err: ErrNotFound}
	}
	return r.Clone(), nil
}

func (s *fileStore) List(ctx context.Context, collection string, filter Filter) iter.Seq2[Entry, error] {
	op := s.name + ".list"
	if err := validateCollection(collection); err != nil {
		return failSeq(&Error{Op: op, Collection: collection, Err: err})
	}
	return func(yield func(Entry, error) bool) {
		records, err := s.load(op, collection)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		keys := make([]string, 0, len(records))
		for k := range records {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				yield(Entry{}, &Error{Op: op, Collection: collection, Err: err})
				return
			}
			e := Entry{Key: k, Record: records[k].Clone()}
			if filter != nil && !filter(e) {
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (s *fileStore) Put(ctx context.Context, collection, key string, r Record) error {
	op := s.name + ".put"
	if err := checkPut(op, collection, key, r); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &Error{Op: op, Collection: collection, Key: key, Err: err}
	}

	unlock := s.lock(collection)
	defer unlock()

	records, err := s.load(op, collection)
	if err != nil {
		return err
	}
	records[key] = r.Clone()
	return s.save(op, collection, records)
}

func (s *fileStore) Delete(ctx context.Context, collection, key string) error {
	op := s.name + ".delete"
	if err := checkKey(op, collection, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &Error{Op: op, Collection: collection, Key: key, Err: err}
	}

	unlock := s.lock(collection)
	defer unlock()

	records, err := s.load(op, collection)
	if err != nil {
		return err
	}
	if _, ok := records[key]; !ok {
		return nil
	}
	delete(records, key)
	return s.save(op, collection, records)
}

func (s *fileStore) Close() error {
	return nil
}
