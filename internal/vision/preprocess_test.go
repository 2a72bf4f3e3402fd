package vision

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func TestPreprocess(t *testing.T) {
	var gifBuf, bmpBuf bytes.Buffer
	require.NoError(t, gif.Encode(&gifBuf, solid(12, 8, red), nil))
	require.NoError(t, bmp.Encode(&bmpBuf, solid(12, 8, red)))

	tests := []struct {
		name          string
		data          []byte
		format        string
		width, height int
	}{
		{"small png keeps size", pngBytes(t, solid(12, 8, red)), "png", 12, 8},
		{"wide png is scaled", pngBytes(t, solid(1600, 400, red)), "png", 800, 200},
		{"tall png is scaled", pngBytes(t, solid(300, 1200, red)), "png", 200, 800},
		{"gif", gifBuf.Bytes(), "gif", 12, 8},
		{"bmp", bmpBuf.Bytes(), "bmp", 12, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Preprocess(tt.data, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.format, p.Format)
			assert.Equal(t, image.Rect(0, 0, tt.width, tt.height), p.Image.Bounds())

			cfg, err := jpeg.DecodeConfig(bytes.NewReader(p.JPEG))
			require.NoError(t, err)
			assert.Equal(t, tt.width, cfg.Width)
			assert.Equal(t, tt.height, cfg.Height)
		})
	}
}

func TestPreprocessRejects(t *testing.T) {
	_, err := Preprocess(pngBytes(t, solid(4, 4, red)), 10)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = Preprocess([]byte("GIF89a-truncated"), 0)
	assert.Error(t, err)
}

func TestDownscaleKeepsAspect(t *testing.T) {
	img := Downscale(solid(1000, 999, red), MaxDimension)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 799, img.Bounds().Dy())

	thin := Downscale(solid(5000, 2, red), MaxDimension)
	assert.Equal(t, 1, thin.Bounds().Dy(), "never collapses to zero")
}

func TestKeywordHits(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"tomato_onion", []string{"tomato", "onion"}},
		{"Fresh POTATOES and tomatoes", []string{"tomato", "potato"}},
		{"టమాటా పప్పు", []string{"tomato", "lentil"}},
		{"price list 2024", nil},
		{"", nil},
	}
	for _, tt := range tests {
		var got []string
		for _, it := range KeywordHits(tt.text) {
			got = append(got, it.Name)
			assert.Equal(t, SourceKeyword, it.Source)
			assert.InDelta(t, 0.6, it.Confidence, 1e-9)
		}
		assert.Equal(t, tt.want, got, "KeywordHits(%q)", tt.text)
	}
}

func TestColorHints(t *testing.T) {
	half := solid(100, 100, white)
	for y := range 100 {
		for x := range 50 {
			half.Set(x, y, red)
		}
	}

	got := ColorHints(half)
	assert.ElementsMatch(t, []string{"tomato", "red pepper", "strawberry", "rice", "flour", "milk", "egg"}, got)
	assert.Nil(t, ColorHints(nil))
}

func TestFinalize(t *testing.T) {
	got := Finalize([]Ingredient{
		{Name: "Plate", Confidence: 0.99},
		{Name: "rice", Confidence: 0.4},
		{Name: "Rice", Confidence: 0.8},
		{Name: "Green chili", Confidence: 0.7},
		{Name: " ", Confidence: 0.9},
	})
	assert.Equal(t, []Ingredient{
		{Name: "Rice", Confidence: 0.8},
		{Name: "Green chili", Confidence: 0.7},
	}, got)
}

func TestNutrition(t *testing.T) {
	info, ok := Nutrition(" Carrot ")
	require.True(t, ok)
	assert.Equal(t, 41, info.Calories)
	assert.Equal(t, "very_high", info.Nutrients["vitamin_a"])

	info, ok = Nutrition("durian")
	assert.False(t, ok)
	assert.Equal(t, "Nutrition data not available", info.Notes)
}

func TestLoadImageFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gongura.png")
	img := pngBytes(t, solid(3, 3, red))
	require.NoError(t, os.WriteFile(path, img, 0o644))

	data, name, err := LoadImage(t.Context(), nil, path, 0)
	require.NoError(t, err)
	assert.Equal(t, img, data)
	assert.Equal(t, "gongura.png", name)

	_, _, err = LoadImage(t.Context(), nil, filepath.Join(dir, "missing.png"), 0)
	assert.Error(t, err)
}
