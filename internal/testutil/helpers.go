package testutil

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/snonux/sahachari/internal/config"
)

// CredentialVars are the provider variables config.Load reads.
var CredentialVars = []string{
	"GOOGLE_TRANSLATE_API_KEY", "GOOGLE_CLOUD_TTS_API_KEY", "GOOGLE_VISION_API_KEY",
	"AZURE_COMPUTER_VISION_KEY", "AZURE_COMPUTER_VISION_ENDPOINT",
	"SPOONACULAR_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY",
}

// Isolate points HOME at an empty directory, clears provider credentials
// and changes into the new home. It returns the home directory.
func Isolate(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, name := range CredentialVars {
		t.Setenv(name, "")
	}
	t.Chdir(home)
	return home
}

// Config isolates the environment and loads a configuration whose data and
// cache directories live in the test's temp dir. extra is appended to the
// generated YAML file. espeak-ng is made unreachable so the local speech tier
// always uses the built-in synthesizer.
func Config(t *testing.T, extra string) *config.Config {
	t.Helper()

	home := Isolate(t)
	t.Setenv("SAHACHARI_TTS_ESPEAK_BINARY", "sahachari-no-such-espeak")
	content := "data_dir: " + filepath.Join(home, "data") + "\n" +
		"cache_dir: " + filepath.Join(home, "cache") + "\n" +
		extra
	path := filepath.Join(home, "config.yaml")
	CreateTestFile(t, path, []byte(content))

	cfg, err := config.Load(config.Options{File: path})
	if err != nil {
		t.Fatalf("Failed to load test config: %v", err)
	}
	return cfg
}

// CreateTestFile creates a test file with content
func CreateTestFile(t *testing.T, path string, content []byte) {
	t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create directory for test file: %v", err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to create test file %s: %v", path, err)
	}
}

// AssertFileExists checks if a file exists
func AssertFileExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("Expected file to exist: %s", path)
	}
}

// AssertFileNotExists checks if a file does not exist
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); err == nil {
		t.Errorf("Expected file to not exist: %s", path)
	}
}

// AssertFileContains checks if a file contains a substring
func AssertFileContains(t *testing.T, path string, substring string) {
	t.Helper()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}

	if !strings.Contains(string(content), substring) {
		t.Errorf("File %s does not contain expected substring: %q", path, substring)
	}
}

// CaptureOutput captures stdout/stderr during test execution
func CaptureOutput(t *testing.T, f func()) (stdout, stderr string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	rErr, wErr, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}

	os.Stdout = wOut
	os.Stderr = wErr
	defer func() {
		os.Stdout = oldStdout
		os.Stderr = oldStderr
	}()

	outCh := make(chan string)
	errCh := make(chan string)
	go func() { b, _ := io.ReadAll(rOut); outCh <- string(b) }()
	go func() { b, _ := io.ReadAll(rErr); errCh <- string(b) }()

	f()

	wOut.Close()
	wErr.Close()
	return <-outCh, <-errCh
}
