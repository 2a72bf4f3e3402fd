package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"codeberg.org/snonux/sahachari/internal/audio"
	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
	"codeberg.org/snonux/sahachari/internal/recipe"
	"codeberg.org/snonux/sahachari/internal/testutil"
	"codeberg.org/snonux/sahachari/internal/translation"
)

func TestServicesWithoutCredentials(t *testing.T) {
	cfg := testutil.Config(t, "")
	s := New(cfg, Options{Logger: zaptest.NewLogger(t)})
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	recipes, err := s.Recipes()
	require.NoError(t, err)
	again, err := s.Recipes()
	require.NoError(t, err)
	assert.Same(t, recipes, again, "services are built once")

	res := recipes.Generate(ctx, recipe.Request{Ingredients: []string{"carrot", "onion", "tomato", "cumin"}})
	assert.Equal(t, fallback.OutcomeSuccess, res.Outcome)
	assert.Equal(t, fallback.TierFallback, res.Tier)
	require.NotEmpty(t, res.Payload)
	assert.Equal(t, "Vegetable Curry", res.Payload[0].Name)

	tr, err := s.Translation()
	require.NoError(t, err)
	tres := tr.Translate(ctx, translation.Request{Text: "ఉప్పు", Target: "en"})
	assert.Equal(t, "salt", tres.Payload.Text)
	assert.Equal(t, config.ProviderGlossary, tres.Provider)

	speech, err := s.Speech()
	require.NoError(t, err)
	sres := speech.Synthesize(ctx, audio.Request{Text: "నమస్కారం", Language: "te"})
	require.True(t, sres.OK())
	assert.Equal(t, fallback.OutcomeDegraded, sres.Outcome, "the built-in synthesizer warns")
	assert.True(t, bytes.HasPrefix(sres.Payload.Audio, []byte("RIFF")))

	status, err := s.Status()
	require.NoError(t, err)
	require.Len(t, status, 4)
	for _, st := range status {
		last := st.Tiers[len(st.Tiers)-1]
		assert.Equal(t, fallback.TierFallback, last.Tier, st.Service)
		assert.True(t, last.Available, st.Service)
		assert.False(t, st.Tiers[0].Available, st.Service)
	}

	n, err := promtest.GatherAndCount(s.Metrics().Registry(), "sahachari_results_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "one result series per service called")
}

func TestCatalogUsesConfiguredStorage(t *testing.T) {
	cfg := testutil.Config(t, "storage:\n  format: csv\n  collections:\n    articles: sqlite\n")
	s := New(cfg, Options{Logger: zaptest.NewLogger(t)})

	c, err := s.Catalog()
	require.NoError(t, err)
	res, err := c.Seed(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Recipes)
	assert.Equal(t, 3, res.Articles)

	testutil.AssertFileExists(t, filepath.Join(cfg.Storage().Dir, "recipes.csv"))
	testutil.AssertFileExists(t, filepath.Join(cfg.Storage().Dir, "sahachari.db"))
	testutil.AssertFileNotExists(t, filepath.Join(cfg.Storage().Dir, "recipes.json"))

	require.NoError(t, s.Close())
}

func TestServicesUseConfiguredProvider(t *testing.T) {
	provider := testutil.NewMockProvider(t, map[string]testutil.MockResponse{
		"/v2": {Body: `{"data":{"translations":[{"translatedText":"lentils","detectedSourceLanguage":"te"}]}}`},
	})
	cfg := testutil.Config(t, "translation:\n  google:\n    api_key: test-key\n    endpoint: "+provider.URL+"/v2\n")
	s := New(cfg, Options{Logger: zaptest.NewLogger(t), HTTPClient: provider.Client()})

	tr, err := s.Translation()
	require.NoError(t, err)
	res := tr.Translate(context.Background(), translation.Request{Text: "పప్పు", Target: "en"})
	assert.Equal(t, fallback.OutcomeSuccess, res.Outcome)
	assert.Equal(t, fallback.TierPrimary, res.Tier)
	assert.Equal(t, "lentils", res.Payload.Text)
	assert.Equal(t, []string{"POST /v2"}, provider.Calls())
}

func TestCloseWithoutUse(t *testing.T) {
	s := New(testutil.Config(t, ""), Options{})
	assert.NoError(t, s.Close())
}
