package audio

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"codeberg.org/snonux/sahachari/internal/fallback"
)

// CacheMeta records who produced a cached audio file.
type CacheMeta struct {
	Format   string        `json:"format"`
	Language string        `json:"language"`
	Voice    string        `json:"voice"`
	Tier     fallback.Tier `json:"tier"`
	Provider string        `json:"provider"`
}

// Cache stores synthesized speech on disk keyed by the md5 of the request.
// A Cache with an empty directory, or a nil Cache, stores nothing.
type Cache struct {
	dir string
}

// NewCache returns a cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

func (c *Cache) enabled() bool {
	return c != nil && c.dir != ""
}

// Key hashes the request fields that change the audio.
func Key(req Request) string {
	h := md5.New()
	for _, part := range []string{req.Text, req.Language, req.Voice, strconv.FormatBool(req.Slow)} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// path uses the first two hash characters as a subdirectory.
func (c *Cache) path(hash, ext string) string {
	return filepath.Join(c.dir, hash[:2], hash[2:]+"."+ext)
}

// Get returns cached speech for req.
func (c *Cache) Get(req Request) (Speech, CacheMeta, bool) {
	if !c.enabled() {
		return Speech{}, CacheMeta{}, false
	}
	hash := Key(req)

	raw, err := os.ReadFile(c.path(hash, "json"))
	if err != nil {
		return Speech{}, CacheMeta{}, false
	}
	var meta CacheMeta
	if err := json.Unmarshal(raw, &meta); err != nil || meta.Format == "" {
		return Speech{}, CacheMeta{}, false
	}
	audio, err := os.ReadFile(c.path(hash, meta.Format))
	if err != nil || len(audio) == 0 {
		return Speech{}, CacheMeta{}, false
	}

	return Speech{
		Audio:    audio,
		Format:   meta.Format,
		Language: meta.Language,
		Voice:    meta.Voice,
	}, meta, true
}

// Put stores speech for req. The audio is written before its metadata so a
// reader never sees metadata without audio.
func (c *Cache) Put(req Request, speech Speech, tier fallback.Tier, provider string) error {
	if !c.enabled() {
		return nil
	}
	hash := Key(req)
	if err := os.MkdirAll(filepath.Join(c.dir, hash[:2]), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := writeFileAtomic(c.path(hash, speech.Format), speech.Audio); err != nil {
		return err
	}
	meta, err := json.Marshal(CacheMeta{
		Format:   speech.Format,
		Language: speech.Language,
		Voice:    speech.Voice,
		Tier:     tier,
		Provider: provider,
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache metadata: %w", err)
	}
	return writeFileAtomic(c.path(hash, "json"), meta)
}

// Clear removes all cached audio files.
func (c *Cache) Clear() error {
	if !c.enabled() {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// Stats counts cached audio files and their total size.
func (c *Cache) Stats() (fileCount int, totalSize int64, err error) {
	if !c.enabled() {
		return 0, 0, nil
	}
	err = filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == c.dir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) == ".json" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		fileCount++
		totalSize += info.Size()
		return nil
	})
	return fileCount, totalSize, err
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to store cache file: %w", err)
	}
	return nil
}
