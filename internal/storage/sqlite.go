package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	collection TEXT NOT NULL,
	key        TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, key)
)`

// SQLiteStore keeps all collections in one database file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates <dir>/sahachari.db.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &Error{Op: "sqlite.mkdir", Path: dir, Err: err}
	}
	path := filepath.Join(dir, "sahachari.db")

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, &Error{Op: "sqlite.open", Path: path, Err: err}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, &Error{Op: "sqlite.schema", Path: path, Err: err}
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, collection, key string) (Record, error) {
	const op = "sqlite.get"
	if err := checkKey(op, collection, key); err != nil {
		return nil, err
	}

	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM records WHERE collection = ? AND key = ?`, collection, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Op: op, Collection: collection, Key: key, Err: ErrNotFound}
	}
	if err != nil {
		return nil, &Error{Op: op, Collection: collection, Key: key, Path: s.path, Err: err}
	}
	return decodeRow(op, collection, key, data)
}

func (s *SQLiteStore) List(ctx context.Context, collection string, filter Filter) iter.Seq2[Entry, error] {
	const op = "sqlite.list"
	if err := validateCollection(collection); err != nil {
		return failSeq(&Error{Op: op, Collection: collection, Err: err})
	}
	return func(yield func(Entry, error) bool) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT key, data FROM records WHERE collection = ? ORDER BY key`, collection)
		if err != nil {
			yield(Entry{}, &Error{Op: op, Collection: collection, Path: s.path, Err: err})
			return
		}
		defer rows.Close()

		for rows.Next() {
			var key, data string
			if err := rows.Scan(&key, &data); err != nil {
				yield(Entry{}, &Error{Op: op, Collection: collection, Err: err})
				return
			}
			r, err := decodeRow(op, collection, key, data)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			e := Entry{Key: key, Record: r}
			if filter != nil && !filter(e) {
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Entry{}, &Error{Op: op, Collection: collection, Err: err})
		}
	}
}

func (s *SQLiteStore) Put(ctx context.Context, collection, key string, r Record) error {
	const op = "sqlite.put"
	if err := checkPut(op, collection, key, r); err != nil {
		return err
	}
	data, err := json.Marshal(r.Clone())
	if err != nil {
		return &Error{Op: op, Collection: collection, Key: key, Err: err}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (collection, key, data, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (collection, key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, key, string(data))
	if err != nil {
		return &Error{Op: op, Collection: collection, Key: key, Path: s.path, Err: err}
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, collection, key string) error {
	const op = "sqlite.delete"
	if err := checkKey(op, collection, key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE collection = ? AND key = ?`, collection, key); err != nil {
		return &Error{Op: op, Collection: collection, Key: key, Path: s.path, Err: err}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeRow(op, collection, key, data string) (Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, &Error{Op: op, Collection: collection, Key: key, Err: fmt.Errorf("%w: %v", ErrCorrupt, err)}
	}
	return r.Clone(), nil
}
