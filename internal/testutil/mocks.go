package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockResponse represents a mocked HTTP response
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockProvider is a fake REST provider. Responses are keyed by request path;
// unknown paths answer 404.
type MockProvider struct {
	*httptest.Server

	mu        sync.Mutex
	responses map[string]MockResponse
	calls     []string
}

// NewMockProvider starts a provider that is closed when the test ends.
func NewMockProvider(t *testing.T, responses map[string]MockResponse) *MockProvider {
	t.Helper()

	m := &MockProvider{responses: responses}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Close)
	return m
}

func (m *MockProvider) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.calls = append(m.calls, fmt.Sprintf("%s %s", r.Method, r.URL.Path))
	resp, ok := m.responses[r.URL.Path]
	m.mu.Unlock()

	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp.Body))
}

// Calls returns "METHOD /path" for every request served so far.
func (m *MockProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// SetResponse replaces the response for path.
func (m *MockProvider) SetResponse(path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.responses == nil {
		m.responses = map[string]MockResponse{}
	}
	m.responses[path] = resp
}

// GenerateImageData returns a PNG of the given size filled with c.
func GenerateImageData(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}
