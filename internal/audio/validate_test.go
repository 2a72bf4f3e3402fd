package audio

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"codeberg.org/snonux/sahachari/internal/fallback"
)

func TestValidateText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		lang    string
		wantErr bool
	}{
		{"telugu word", "ఉప్పు", "te", false},
		{"telugu mixed with latin", "ఉప్పు salt", "te", false},
		{"hindi in devanagari", "नमक", "hi", false},
		{"english", "salt", "en", false},
		{"empty", "", "te", true},
		{"blank", "   ", "en", true},
		{"latin for telugu", "salt", "te", true},
		{"tamil for telugu", "உப்பு", "te", true},
		{"digits only english", "12345", "en", true},
		{"unsupported language", "sal", "es", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateText(tt.text, tt.lang)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateText(%q, %q) error = %v, wantErr %v", tt.text, tt.lang, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTextNamesScript(t *testing.T) {
	err := ValidateText("salt", "te")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Telugu")
}

func TestChunkText(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want []string
	}{
		{"empty", "  ", 10, nil},
		{"fits", "one. two.", 20, []string{"one. two."}},
		{"sentences", "one. two. three.", 10, []string{"one. two.", "three."}},
		{"danda", "एक। दो। तीन।", 8, []string{"एक। दो।", "तीन।"}},
		{"long sentence", "aaa bbb ccc ddd", 7, []string{"aaa bbb", "ccc ddd"}},
		{"long word", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChunkText(tt.text, tt.size))
		})
	}
}

func TestChunkTextProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		words := rapid.SliceOfN(rapid.StringMatching(`[a-zఅ-హ]{1,12}[.]?`), 1, 60).Draw(t, "words")
		size := rapid.IntRange(13, 80).Draw(t, "size")
		text := strings.Join(words, " ")

		chunks := ChunkText(text, size)
		if len(chunks) == 0 {
			t.Fatalf("no chunks for %q", text)
		}
		for _, c := range chunks {
			if n := utf8.RuneCountInString(c); n > size || n == 0 {
				t.Fatalf("chunk %q has %d runes, limit %d", c, n, size)
			}
		}
		if got := strings.Join(strings.Fields(strings.Join(chunks, " ")), " "); got != text {
			t.Fatalf("chunks lose text: %q != %q", got, text)
		}
	})
}

func TestCache(t *testing.T) {
	c := NewCache(t.TempDir())
	req := Request{Text: "ఉప్పు", Language: "te"}
	speech := Speech{Audio: []byte("ID3"), Format: FormatMP3, Language: "te", Voice: "te-IN-Standard-A"}

	_, _, ok := c.Get(req)
	assert.False(t, ok)

	require.NoError(t, c.Put(req, speech, fallback.TierPrimary, "google-tts"))
	got, meta, ok := c.Get(req)
	require.True(t, ok)
	assert.Equal(t, speech, got)
	assert.Equal(t, fallback.TierPrimary, meta.Tier)
	assert.Equal(t, "google-tts", meta.Provider)

	_, _, ok = c.Get(Request{Text: "ఉప్పు", Language: "te", Slow: true})
	assert.False(t, ok, "slow requests are cached separately")

	hash := Key(req)
	assert.FileExists(t, c.path(hash, "mp3"))
	assert.Contains(t, c.path(hash, "mp3"), hash[:2]+"/"+hash[2:]+".mp3")

	require.NoError(t, c.Clear())
	files, size, err := c.Stats()
	require.NoError(t, err)
	assert.Zero(t, files)
	assert.Zero(t, size)
}

func TestCacheDisabled(t *testing.T) {
	for _, c := range []*Cache{nil, NewCache("")} {
		require.NoError(t, c.Put(Request{Text: "x"}, Speech{Format: FormatMP3}, fallback.TierPrimary, "p"))
		_, _, ok := c.Get(Request{Text: "x"})
		assert.False(t, ok)
		assert.NoError(t, c.Clear())
	}
}
