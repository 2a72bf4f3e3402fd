package cli

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/testutil"
)

type execResult struct {
	code   int
	stdout string
	stderr string
}

// run executes the CLI against an isolated home with its data in home/data.
func run(t *testing.T, home string, args ...string) execResult {
	t.Helper()

	base := []string{"--data-dir", filepath.Join(home, "data"), "--log-level", "error"}
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), append(base, args...), &stdout, &stderr)
	return execResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func isolated(t *testing.T) string {
	t.Helper()
	home := testutil.Isolate(t)
	t.Setenv("SAHACHARI_TTS_ESPEAK_BINARY", "sahachari-no-such-espeak")
	t.Setenv("SAHACHARI_CACHE_DIR", filepath.Join(home, "cache"))
	return home
}

func TestCreateRootCommand(t *testing.T) {
	cmd := CreateRootCommand(NewFlags())

	if cmd.Use != "sahachari" {
		t.Errorf("Expected Use to be 'sahachari', got %s", cmd.Use)
	}

	for _, name := range []string{"config", "log-level", "log-json", "data-dir", "storage", "json"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("Expected persistent flag %s to exist", name)
		}
	}

	for _, name := range []string{
		"translate", "detect", "speak", "recognize", "recipes",
		"articles", "flashcards", "data", "status", "serve", "version",
	} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("Expected subcommand %s, got %v (%v)", name, sub, err)
		}
	}
}

func TestVersion(t *testing.T) {
	home := isolated(t)
	res := run(t, home, "version")
	assert.Equal(t, ExitOK, res.code)
	assert.True(t, strings.HasPrefix(res.stdout, "sahachari "), res.stdout)
}

func TestTranslate(t *testing.T) {
	home := isolated(t)

	res := run(t, home, "translate", "ఉప్పు", "--to", "en")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Equal(t, "salt\n", res.stdout)
	assert.Contains(t, res.stderr, "glossary")

	res = run(t, home, "--json", "translate", "ఉప్పు", "--to", "en")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, `"outcome": "success"`)
	assert.Contains(t, res.stdout, `"text": "salt"`)

	res = run(t, home, "translate")
	assert.Equal(t, ExitFailed, res.code)
	assert.Contains(t, res.stderr, "nothing to translate")
}

func TestDetectExhausted(t *testing.T) {
	home := isolated(t)

	res := run(t, home, "detect", "నమస్కారం")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.True(t, strings.HasPrefix(res.stdout, "te ("), res.stdout)

	res = run(t, home, "detect", "12345")
	assert.Equal(t, ExitFailed, res.code)
	assert.Empty(t, res.stdout)
	assert.Contains(t, res.stderr, "Error:")
	assert.Contains(t, res.stderr, "no letters")
}

func TestBatchTranslate(t *testing.T) {
	home := isolated(t)
	batch := filepath.Join(home, "words.txt")
	testutil.CreateTestFile(t, batch, []byte("ఉప్పు\nఉల్లిపాయ = onion\n"))
	out := filepath.Join(home, "out.txt")

	res := run(t, home, "translate", "--batch", batch, "--to", "en", "-o", out)
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stderr, "Total entries: 2")
	assert.Contains(t, res.stderr, "Already complete: 1")
	testutil.AssertFileContains(t, out, "ఉప్పు = salt")
	testutil.AssertFileContains(t, out, "ఉల్లిపాయ = onion")
}

func TestFlashcards(t *testing.T) {
	home := isolated(t)
	batch := filepath.Join(home, "kitchen.txt")
	testutil.CreateTestFile(t, batch, []byte("ఉప్పు\nబియ్యం = rice\n"))

	res := run(t, home, "flashcards", batch, "-o", filepath.Join(home, "kitchen.apkg"))
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stderr, "2 cards, 2 with audio, 1 translated")
	testutil.AssertFileExists(t, filepath.Join(home, "kitchen.apkg"))

	res = run(t, home, "flashcards", batch, "--csv", "--no-audio", "-o", filepath.Join(home, "deck", "kitchen.csv"))
	require.Equal(t, ExitOK, res.code, res.stderr)
	testutil.AssertFileContains(t, filepath.Join(home, "deck", "kitchen.csv"), "ఉప్పు,salt,,")
}

func TestSpeak(t *testing.T) {
	home := isolated(t)
	outDir := filepath.Join(home, "audio")

	res := run(t, home, "speak", "నమస్కారం", "--lang", "te", "--out", outDir)
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stderr, "warning:")

	path := strings.TrimSpace(res.stdout)
	assert.Equal(t, ".wav", filepath.Ext(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))
}

func TestRecognize(t *testing.T) {
	home := isolated(t)
	img := filepath.Join(home, "tomato.png")
	testutil.CreateTestFile(t, img, testutil.GenerateImageData(t, 64, 64, color.RGBA{R: 220, G: 30, B: 30, A: 255}))

	res := run(t, home, "recognize", img, "--caption", "fresh tomato and onion", "--recipes")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "tomato")
	assert.Contains(t, res.stdout, "Ingredients:")
	assert.Contains(t, res.stderr, "heuristics")

	res = run(t, home, "recognize", filepath.Join(home, "missing.png"))
	assert.Equal(t, ExitFailed, res.code)
}

func TestRecipesGenerate(t *testing.T) {
	home := isolated(t)

	res := run(t, home, "recipes", "generate", "carrot,", "onion", "tomato", "cumin")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "1. Vegetable Curry")

	res = run(t, home, "recipes", "generate", "--category", "dessert")
	assert.Equal(t, ExitFailed, res.code)

	res = run(t, home, "recipes", "suggest", "lentils", "onion", "tomato", "garlic")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Dal Tadka")

	res = run(t, home, "recipes", "generate", "carrot", "onion", "tomato", "cumin", "--save")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stderr, "saved Vegetable Curry")

	res = run(t, home, "recipes", "search", "curry")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Vegetable Curry")
	assert.Contains(t, res.stdout, "1 recipes")
}

func TestCatalogCommands(t *testing.T) {
	home := isolated(t)

	res := run(t, home, "data", "seed")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Equal(t, "Seeded 5 recipes and 3 articles\n", res.stdout)

	res = run(t, home, "data", "seed")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Equal(t, "Seeded 0 recipes and 0 articles\n", res.stdout)

	res = run(t, home, "recipes", "list", "--language", "te")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "పులిహోర")
	assert.Contains(t, res.stdout, "2 recipes")

	res = run(t, home, "recipes", "add", "--name", "Lemon Rice", "--ingredients", "rice, lemon",
		"--instructions", "Mix.", "--cooking-time", "20 minutes", "--difficulty", "easy")
	require.Equal(t, ExitOK, res.code, res.stderr)
	key := strings.TrimSpace(res.stdout)
	require.NotEmpty(t, key)

	res = run(t, home, "recipes", "add", "--name", "Bad", "--ingredients", "x",
		"--instructions", "y", "--cooking-time", "forever")
	assert.Equal(t, ExitFailed, res.code)

	res = run(t, home, "--json", "recipes", "stats")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, `"total": 6`)

	export := filepath.Join(home, "recipes.csv")
	res = run(t, home, "recipes", "export", export)
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stderr, "exported 6 recipes")
	testutil.AssertFileContains(t, export, "Lemon Rice")

	res = run(t, home, "recipes", "delete", key)
	require.Equal(t, ExitOK, res.code, res.stderr)
	res = run(t, home, "recipes", "delete", key)
	assert.Equal(t, ExitFailed, res.code)
	assert.Contains(t, res.stderr, "no recipe with key")

	res = run(t, home, "articles", "search", "sankranti")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Sankranti Harvest Feasts")
	assert.Contains(t, res.stdout, "1 articles")
}

func TestImport(t *testing.T) {
	home := isolated(t)
	file := filepath.Join(home, "in.csv")
	testutil.CreateTestFile(t, file, []byte(
		"name,ingredients,instructions,language\n"+
			"Tomato Rasam,\"tomato, tamarind\",Boil.,en\n"+
			",rice,Cook.,en\n"))

	res := run(t, home, "recipes", "import", file)
	assert.Equal(t, ExitFailed, res.code)
	assert.Contains(t, res.stdout, "Imported 1 recipes")
	assert.Contains(t, res.stderr, "row 3:")
}

func TestArchive(t *testing.T) {
	home := isolated(t)

	res := run(t, home, "data", "seed")
	require.Equal(t, ExitOK, res.code, res.stderr)

	res = run(t, home, "data", "archive")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Archived data to")
	testutil.AssertFileNotExists(t, filepath.Join(home, "data"))
	testutil.AssertFileExists(t, filepath.Join(home, "archive"))
}

func TestStatus(t *testing.T) {
	home := isolated(t)

	res := run(t, home, "status")
	require.Equal(t, ExitOK, res.code, res.stderr)
	for _, svc := range []string{"recipe:", "speech:", "translation:", "vision:"} {
		assert.Contains(t, res.stdout, svc)
	}
	assert.Contains(t, res.stdout, "unavailable:")
}

func TestConfigErrors(t *testing.T) {
	home := isolated(t)

	res := run(t, home, "--storage", "bogus", "status")
	assert.Equal(t, ExitConfig, res.code)

	res = run(t, home, "--config", filepath.Join(home, "missing.yaml"), "status")
	assert.Equal(t, ExitConfig, res.code)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", errors.New("boom"), ExitFailed},
		{"config", &config.Error{Key: "storage.format", Reason: "unknown"}, ExitConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
