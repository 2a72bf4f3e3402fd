// Package archive moves a data directory out of the way so the application
// can start again from a fresh seed.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DirName is the directory, next to the archived one, that holds archives.
const DirName = "archive"

// Move renames dir to archive/<name>-<timestamp> next to it and returns the
// new path.
func Move(dir string) (string, error) {
	dir = filepath.Clean(dir)
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("directory does not exist: %s", dir)
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", dir)
	}

	archiveDir := filepath.Join(filepath.Dir(dir), DirName)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	base := filepath.Base(dir)
	archivePath := filepath.Join(archiveDir, fmt.Sprintf("%s-%s", base, time.Now().Format("20060102-150405")))
	if _, err := os.Stat(archivePath); err == nil {
		// Same second as an earlier archive.
		archivePath = filepath.Join(archiveDir, fmt.Sprintf("%s-%s", base, time.Now().Format("20060102-150405.000000")))
	}

	if err := os.Rename(dir, archivePath); err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", dir, err)
	}
	return archivePath, nil
}
