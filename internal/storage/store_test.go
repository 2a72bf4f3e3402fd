package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"codeberg.org/snonux/sahachari/internal/config"
)

type backendFactory struct {
	name string
	open func(t testing.TB, dir string) Store
}

var backends = []backendFactory{
	{"json", func(t testing.TB, dir string) Store {
		s, err := NewJSONStore(dir)
		require.NoError(t, err)
		return s
	}},
	{"csv", func(t testing.TB, dir string) Store {
		s, err := NewCSVStore(dir)
		require.NoError(t, err)
		return s
	}},
	{"sqlite", func(t testing.TB, dir string) Store {
		s, err := NewSQLiteStore(dir)
		require.NoError(t, err)
		return s
	}},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, t.TempDir())
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rec := Record{
			"name":        "పెసరట్టు",
			"ingredients": "green gram, rice, \"ginger\"",
			"notes":       "line one\nline two",
			"empty":       "",
		}
		require.NoError(t, s.Put(ctx, "recipes", "r1", rec))

		got, err := s.Get(ctx, "recipes", "r1")
		require.NoError(t, err)
		assert.Equal(t, rec.Clone(), got)
		assert.NotContains(t, got, "empty")
		assert.True(t, rec.Equal(got))
	})
}

func TestPutReplaces(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "recipes", "k", Record{"a": "1", "b": "2"}))
		require.NoError(t, s.Put(ctx, "recipes", "k", Record{"a": "3"}))

		got, err := s.Get(ctx, "recipes", "k")
		require.NoError(t, err)
		assert.Equal(t, Record{"a": "3"}, got)
	})
}

func TestGetMissing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		_, err := s.Get(context.Background(), "recipes", "nope")
		assert.ErrorIs(t, err, ErrNotFound)

		var se *Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "recipes", se.Collection)
	})
}

func TestDeleteIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "articles", "a1", Record{"title": "x"}))
		require.NoError(t, s.Delete(ctx, "articles", "a1"))
		require.NoError(t, s.Delete(ctx, "articles", "a1"))
		require.NoError(t, s.Delete(ctx, "articles", "never-existed"))

		_, err := s.Get(ctx, "articles", "a1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestValidation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		assert.ErrorIs(t, s.Put(ctx, "recipes", "", Record{"a": "b"}), ErrInvalidKey)
		assert.ErrorIs(t, s.Put(ctx, "recipes", "bad\nkey", Record{"a": "b"}), ErrInvalidKey)
		assert.ErrorIs(t, s.Put(ctx, "../etc", "k", Record{"a": "b"}), ErrInvalidCollection)
		assert.ErrorIs(t, s.Put(ctx, "recipes", "k", Record{KeyField: "x"}), ErrReservedField)
		assert.ErrorIs(t, s.Put(ctx, "recipes", "k\xff", Record{"a": "b"}), ErrInvalidKey)

		for _, v := range []string{"line one\r\nline two", "a\rb", "x\xffy"} {
			err := s.Put(ctx, "recipes", "k", Record{"notes": v})
			assert.ErrorIs(t, err, ErrInvalidValue, "value %q", v)
			var serr *Error
			assert.ErrorAs(t, err, &serr)
		}
		_, err := s.Get(ctx, "recipes", "k")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.Get(ctx, "Recipes", "k")
		assert.ErrorIs(t, err, ErrInvalidCollection)
	})
}

func TestListOrderAndFilter(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "recipes", "b", Record{"name": "Dal Tadka", "language": "en"}))
		require.NoError(t, s.Put(ctx, "recipes", "a", Record{"name": "Pesarattu", "language": "en"}))
		require.NoError(t, s.Put(ctx, "recipes", "c", Record{"name": "పులిహోర", "language": "te"}))

		all, err := Collect(s.List(ctx, "recipes", nil))
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].Key, all[1].Key, all[2].Key})

		en, err := Collect(s.List(ctx, "recipes", All(FieldEquals("language", "EN"), Contains("dal", "name"))))
		require.NoError(t, err)
		require.Len(t, en, 1)
		assert.Equal(t, "b", en[0].Key)

		empty, err := Collect(s.List(ctx, "nothing-here", nil))
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestListIsRestartableAndStopsEarly(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i := range 5 {
			require.NoError(t, s.Put(ctx, "recipes", fmt.Sprintf("k%d", i), Record{"n": fmt.Sprint(i)}))
		}
		seq := s.List(ctx, "recipes", nil)

		n := 0
		for _, err := range seq {
			require.NoError(t, err)
			n++
			if n == 2 {
				break
			}
		}
		assert.Equal(t, 2, n)

		again, err := Collect(seq)
		require.NoError(t, err)
		assert.Len(t, again, 5)
	})
}

func TestConcurrentPutSameKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := Record{"writer": "a", "value": strings.Repeat("a", 512)}
		b := Record{"writer": "b", "value": strings.Repeat("b", 512)}

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, rec := range []Record{a, b} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = s.Put(ctx, "recipes", "same", rec)
			}()
		}
		wg.Wait()
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		got, err := s.Get(ctx, "recipes", "same")
		require.NoError(t, err)
		assert.True(t, got.Equal(a) || got.Equal(b), "got a mix: %v", got)

		entries, err := Collect(s.List(ctx, "recipes", nil))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestConcurrentPutDistinctKeys(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Put(ctx, "articles", fmt.Sprintf("k%02d", i), Record{"i": fmt.Sprint(i)}))
			}()
		}
		wg.Wait()

		entries, err := Collect(s.List(ctx, "articles", nil))
		require.NoError(t, err)
		assert.Len(t, entries, 20)
	})
}

func TestCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recipes.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recipes.csv"), []byte("name\nx\n"), 0o644))

	js, err := NewJSONStore(dir)
	require.NoError(t, err)
	_, err = js.Get(context.Background(), "recipes", "k")
	assert.ErrorIs(t, err, ErrCorrupt)

	cs, err := NewCSVStore(dir)
	require.NoError(t, err)
	_, err = Collect(cs.List(context.Background(), "recipes", nil))
	assert.ErrorIs(t, err, ErrCorrupt)

	// A failed write leaves the original file untouched.
	assert.ErrorIs(t, js.Put(context.Background(), "recipes", "k", Record{"a": "b"}), ErrCorrupt)
	data, err := os.ReadFile(filepath.Join(dir, "recipes.json"))
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}

func TestNoTemporaryFilesLeft(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "recipes", "k", Record{"a": "b"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "recipes.json", entries[0].Name())
}

func TestRouterSwitchesFormats(t *testing.T) {
	for _, format := range []string{config.FormatJSON, config.FormatCSV, config.FormatSQLite} {
		t.Run(format, func(t *testing.T) {
			r, err := NewRouter(config.StorageConfig{
				Dir:         t.TempDir(),
				Format:      format,
				Collections: map[string]string{"articles": config.FormatCSV},
			})
			require.NoError(t, err)
			defer r.Close()

			ctx := context.Background()
			rec := Record{"name": "Rice Bowl", "cuisine": "Telugu"}
			require.NoError(t, r.Put(ctx, "recipes", "r", rec))
			got, err := r.Get(ctx, "recipes", "r")
			require.NoError(t, err)
			assert.Equal(t, rec, got)
			assert.Equal(t, format, r.Format("recipes"))
			assert.Equal(t, config.FormatCSV, r.Format("articles"))
		})
	}

	_, err := NewRouter(config.StorageConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Op: "json.get", Collection: "recipes", Key: "k", Err: ErrNotFound}
	assert.Equal(t, "storage.json.get recipes[k]: record not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
}

// Every backend either stores a record byte for byte or rejects it.
func TestRoundTripProperty(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			dir := t.TempDir()
			s := b.open(t, dir)
			defer s.Close()

			fieldName := rapid.StringMatching(`[a-z][a-z0-9_]{0,11}`)
			value := rapid.OneOf(
				rapid.StringOf(rapid.RuneFrom(nil, allPrintable)),
				rapid.Custom(func(bt *rapid.T) string {
					return string(rapid.SliceOf(rapid.Byte()).Draw(bt, "bytes"))
				}),
			)

			rapid.Check(t, func(rt *rapid.T) {
				ctx := context.Background()
				key := rapid.StringMatching(`[A-Za-z0-9_.-]{1,24}`).Draw(rt, "key")
				rec := rapid.MapOf(fieldName, value).Draw(rt, "record")

				if err := s.Put(ctx, "props", key, Record(rec)); err != nil {
					if errors.Is(err, ErrInvalidValue) && !storable(rec) {
						return
					}
					rt.Fatalf("put: %v", err)
				}
				if !storable(rec) {
					rt.Fatalf("put accepted %q", rec)
				}
				got, err := s.Get(ctx, "props", key)
				if err != nil {
					rt.Fatalf("get: %v", err)
				}
				if !Record(rec).Equal(got) {
					rt.Fatalf("round trip changed record: %q -> %q", rec, got)
				}

				if err := s.Delete(ctx, "props", key); err != nil {
					rt.Fatalf("delete: %v", err)
				}
				if err := s.Delete(ctx, "props", key); err != nil {
					rt.Fatalf("second delete: %v", err)
				}
				if _, err := s.Get(ctx, "props", key); !errors.Is(err, ErrNotFound) {
					rt.Fatalf("get after delete: %v", err)
				}
			})
		})
	}
}

func storable(rec map[string]string) bool {
	for _, v := range rec {
		if !utf8.ValidString(v) || strings.ContainsRune(v, '\r') {
			return false
		}
	}
	return true
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"line one\r\nline two", "line one\nline two"},
		{"a\rb", "a\nb"},
		{"x\xffy", "x\uFFFDy"},
		{"ఉప్పు\r\n", "ఉప్పు\n"},
	}
	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rec := Record{"notes": CleanText("line one\r\nline two"), "bad": CleanText("x\xffy")}
		require.NoError(t, s.Put(ctx, "recipes", "k", rec))
		got, err := s.Get(ctx, "recipes", "k")
		require.NoError(t, err)
		assert.Equal(t, rec, got)
	})
}

// allPrintable is ASCII plus tab, newline, carriage return and the
// Devanagari and Telugu blocks.
var allPrintable = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: '\t', Hi: '\n', Stride: 1},
		{Lo: '\r', Hi: '\r', Stride: 1},
		{Lo: ' ', Hi: '~', Stride: 1},
		{Lo: 0x0900, Hi: 0x097F, Stride: 1},
		{Lo: 0x0C00, Hi: 0x0C7F, Stride: 1},
	},
}
