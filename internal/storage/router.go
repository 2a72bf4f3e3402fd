package storage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"

	"codeberg.org/snonux/sahachari/internal/config"
)

// Router sends each collection to the backend configured for it. Backends
// are opened on first use.
type Router struct {
	cfg config.StorageConfig

	mu       sync.Mutex
	backends map[string]Store
}

var _ Store = (*Router)(nil)

// NewRouter validates cfg and returns a router over cfg.Dir.
func NewRouter(cfg config.StorageConfig) (*Router, error) {
	for _, f := range append([]string{cfg.Format}, slices.Collect(maps.Values(cfg.Collections))...) {
		switch f {
		case config.FormatJSON, config.FormatCSV, config.FormatSQLite:
		default:
			return nil, fmt.Errorf("storage: unknown format %q", f)
		}
	}
	return &Router{cfg: cfg, backends: make(map[string]Store)}, nil
}

// Format returns the backend format used for collection.
func (r *Router) Format(collection string) string {
	return r.cfg.FormatFor(collection)
}

func (r *Router) backend(collection string) (Store, error) {
	format := r.cfg.FormatFor(collection)

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.backends[format]; ok {
		return s, nil
	}

	var (
		s   Store
		err error
	)
	switch format {
	case config.FormatCSV:
		s, err = NewCSVStore(r.cfg.Dir)
	case config.FormatSQLite:
		s, err = NewSQLiteStore(r.cfg.Dir)
	default:
		s, err = NewJSONStore(r.cfg.Dir)
	}
	if err != nil {
		return nil, err
	}
	r.backends[format] = s
	return s, nil
}

func (r *Router) Get(ctx context.Context, collection, key string) (Record, error) {
	s, err := r.backend(collection)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, collection, key)
}

func (r *Router) List(ctx context.Context, collection string, filter Filter) iter.Seq2[Entry, error] {
	s, err := r.backend(collection)
	if err != nil {
		return failSeq(err)
	}
	return s.List(ctx, collection, filter)
}

func (r *Router) Put(ctx context.Context, collection, key string, rec Record) error {
	s, err := r.backend(collection)
	if err != nil {
		return err
	}
	return s.Put(ctx, collection, key, rec)
}

func (r *Router) Delete(ctx context.Context, collection, key string) error {
	s, err := r.backend(collection)
	if err != nil {
		return err
	}
	return s.Delete(ctx, collection, key)
}

// Close closes every opened backend.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for format, s := range r.backends {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.backends, format)
	}
	return errors.Join(errs...)
}
