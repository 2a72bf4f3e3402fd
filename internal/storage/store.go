// Package storage persists records in named collections. Callers depend on
// the Store interface only, so a collection can move between the JSON, CSV
// and SQLite backends by configuration.
package storage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"strings"
	"unicode"
	"unicode/utf8"
)

// KeyField is reserved. CSV files use it as the key column.
const KeyField = "_key"

const maxKeyLen = 256

// Sentinel errors for errors.Is.
var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidKey        = errors.New("invalid key")
	ErrInvalidCollection = errors.New("invalid collection name")
	ErrReservedField     = errors.New("reserved field name")
	ErrInvalidValue      = errors.New("invalid field value")
	ErrCorrupt           = errors.New("corrupt collection file")
)

// Record is a flat set of named text fields. An empty value is the same as
// an absent field.
type Record map[string]string

// Clone returns a normalised copy without empty values.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Equal compares records after normalisation.
func (r Record) Equal(other Record) bool {
	return maps.Equal(r.Clone(), other.Clone())
}

// Entry is a record together with its key.
type Entry struct {
	Key    string
	Record Record
}

// Filter selects entries during List. A nil Filter selects everything.
type Filter func(Entry) bool

// FieldEquals matches entries whose field equals value, ignoring case.
func FieldEquals(field, value string) Filter {
	return func(e Entry) bool {
		return strings.EqualFold(e.Record[field], value)
	}
}

// Contains matches entries where any of the fields contains query, ignoring
// case. With no fields every field is searched.
func Contains(query string, fields ...string) Filter {
	q := strings.ToLower(strings.TrimSpace(query))
	return func(e Entry) bool {
		if q == "" {
			return true
		}
		if len(fields) == 0 {
			for _, v := range e.Record {
				if strings.Contains(strings.ToLower(v), q) {
					return true
				}
			}
			return false
		}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(e.Record[f]), q) {
				return true
			}
		}
		return false
	}
}

// All combines filters with a logical and. Nil filters are ignored.
func All(filters ...Filter) Filter {
	return func(e Entry) bool {
		for _, f := range filters {
			if f != nil && !f(e) {
				return false
			}
		}
		return true
	}
}

// Store is the data access interface.
type Store interface {
	// Get returns the record stored under key or an error wrapping ErrNotFound.
	Get(ctx context.Context, collection, key string) (Record, error)
	// List yields matching entries ordered by key. Each call re-reads the
	// collection.
	List(ctx context.Context, collection string, filter Filter) iter.Seq2[Entry, error]
	// Put inserts or replaces the record under key.
	Put(ctx context.Context, collection, key string, r Record) error
	// Delete removes key. Deleting a missing key succeeds.
	Delete(ctx context.Context, collection, key string) error
	Close() error
}

// Error describes a failed storage operation.
type Error struct {
	Op         string
	Collection string
	Key        string
	Path       string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := "storage." + e.Op
	if e.Collection != "" {
		base += " " + e.Collection
	}
	if e.Key != "" {
		base += fmt.Sprintf("[%s]", e.Key)
	}
	if e.Path != "" {
		base += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		base += ": " + e.Err.Error()
	}
	return base
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Collect drains an iterator into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Entry, error]) ([]Entry, error) {
	var out []Entry
	for e, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

func validateCollection(collection string) error {
	if collection == "" || len(collection) > 64 {
		return ErrInvalidCollection
	}
	for _, c := range collection {
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' || c == '-') {
			return ErrInvalidCollection
		}
	}
	return nil
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" || len(key) > maxKeyLen {
		return ErrInvalidKey
	}
	if !utf8.ValidString(key) {
		return ErrInvalidKey
	}
	for _, c := range key {
		if unicode.IsControl(c) {
			return ErrInvalidKey
		}
	}
	return nil
}

// validateRecord rejects what a backend cannot store byte for byte: JSON and
// SQLite replace invalid UTF-8, CSV folds \r\n into \n.
func validateRecord(r Record) error {
	for k, v := range r {
		if k == KeyField {
			return fmt.Errorf("%w: %s", ErrReservedField, k)
		}
		if strings.TrimSpace(k) == "" || !utf8.ValidString(k) || strings.ContainsRune(k, '\r') {
			return fmt.Errorf("%w: %q", ErrReservedField, k)
		}
		if !utf8.ValidString(v) {
			return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidValue, k)
		}
		if strings.ContainsRune(v, '\r') {
			return fmt.Errorf("%w: %s contains a carriage return", ErrInvalidValue, k)
		}
	}
	return nil
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// CleanText turns user input into a storable value: line endings become \n
// and invalid UTF-8 becomes U+FFFD.
func CleanText(s string) string {
	return lineEndings.Replace(strings.ToValidUTF8(s, "\uFFFD"))
}

// checkPut validates the arguments shared by every backend's Put.
func checkPut(op, collection, key string, r Record) error {
	if err := validateCollection(collection); err != nil {
		return &Error{Op: op, Collection: collection, Err: err}
	}
	if err := validateKey(key); err != nil {
		return &Error{Op: op, Collection: collection, Key: key, Err: err}
	}
	if err := validateRecord(r); err != nil {
		return &Error{Op: op, Collection: collection, Key: key, Err: err}
	}
	return nil
}

func checkKey(op, collection, key string) error {
	if err := validateCollection(collection); err != nil {
		return &Error{Op: op, Collection: collection, Err: err}
	}
	if err := validateKey(key); err != nil {
		return &Error{Op: op, Collection: collection, Key: key, Err: err}
	}
	return nil
}

func failSeq(err error) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		yield(Entry{}, err)
	}
}
