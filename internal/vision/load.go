package vision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LoadImage reads a photo from a local path or an http(s) URL and returns
// its bytes and a file name usable as a recognition hint. Anything larger
// than maxBytes is rejected.
func LoadImage(ctx context.Context, client *http.Client, source string, maxBytes int64) ([]byte, string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}

	if u, err := url.Parse(source); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		data, err := download(ctx, client, source, maxBytes)
		return data, path.Base(u.Path), err
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	data, err := readLimited(f, maxBytes)
	return data, filepath.Base(source), err
}

func download(ctx context.Context, client *http.Client, source string, maxBytes int64) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") &&
		!strings.HasPrefix(ct, "application/octet-stream") {
		return nil, fmt.Errorf("not an image: content type %s", ct)
	}
	return readLimited(resp.Body, maxBytes)
}

// readLimited reads at most maxBytes and fails when more data follows.
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}
