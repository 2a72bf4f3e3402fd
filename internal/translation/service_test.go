package translation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
)

func serviceConfig(apiKey, endpoint string) config.ServiceConfig {
	return config.ServiceConfig{
		Name:    config.ServiceTranslation,
		Timeout: time.Second,
		Tiers: []config.TierConfig{
			{
				Tier:     fallback.TierPrimary,
				Provider: config.ProviderGoogleTranslate,
				APIKey:   apiKey,
				Endpoint: endpoint,
				Enabled:  apiKey != "",
			},
			{Tier: fallback.TierFallback, Provider: config.ProviderGlossary, Enabled: true},
		},
	}
}

func newService(t *testing.T, cfg config.ServiceConfig) *Service {
	t.Helper()
	s, err := New(cfg, Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	return s
}

func TestTranslateWithoutCredentials(t *testing.T) {
	s := newService(t, serviceConfig("", ""))

	res := s.Translate(context.Background(), Request{Text: "ఉప్పు", Target: "en"})
	assert.Equal(t, fallback.OutcomeSuccess, res.Outcome)
	assert.Equal(t, fallback.TierFallback, res.Tier)
	assert.Equal(t, config.ProviderGlossary, res.Provider)
	assert.Equal(t, "salt", res.Payload.Text)
	assert.Equal(t, "te", res.Payload.Source)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, fallback.StatusSkipped, res.Attempts[0].Status)
}

type fakeGoogle struct {
	calls  atomic.Int32
	status int
	delay  time.Duration
}

func (f *fakeGoogle) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if f.delay > 0 {
			time.Sleep(f.delay)
		}
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		if f.status != 0 {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"error":{"message":"denied"}}`))
			return
		}

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v2/detect" {
			_, _ = w.Write([]byte(`{"data":{"detections":[[{"language":"te","confidence":0.98}]]}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"translations": []map[string]string{{
					"translatedText":         "[" + body["target"] + "] " + body["q"] + " &amp; more",
					"detectedSourceLanguage": "te",
				}},
			},
		})
	}
}

func TestTranslatePrimary(t *testing.T) {
	fake := &fakeGoogle{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	s := newService(t, serviceConfig("test-key", srv.URL+"/v2"))
	res := s.Translate(context.Background(), Request{Text: "పప్పు", Target: "EN"})

	assert.Equal(t, fallback.OutcomeSuccess, res.Outcome)
	assert.Equal(t, fallback.TierPrimary, res.Tier)
	assert.Equal(t, "[en] పప్పు & more", res.Payload.Text)
	assert.Equal(t, "te", res.Payload.Source)
}

func TestTranslatePrimaryRejected(t *testing.T) {
	fake := &fakeGoogle{status: http.StatusForbidden}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	s := newService(t, serviceConfig("test-key", srv.URL))
	res := s.Translate(context.Background(), Request{Text: "ఉప్పు", Target: "en"})

	assert.Equal(t, fallback.OutcomeDegraded, res.Outcome)
	assert.Equal(t, fallback.TierFallback, res.Tier)
	assert.Equal(t, "salt", res.Payload.Text)
	assert.Contains(t, res.Warning, "google-translate (auth)")
	assert.Equal(t, fallback.KindAuth, res.Attempts[0].Kind)
}

func TestTranslatePrimaryTimeout(t *testing.T) {
	fake := &fakeGoogle{delay: 300 * time.Millisecond}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	cfg := serviceConfig("test-key", srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	s := newService(t, cfg)

	res := s.Translate(context.Background(), Request{Text: "salt", Source: "en", Target: "te"})
	assert.Equal(t, fallback.OutcomeDegraded, res.Outcome)
	assert.Equal(t, "ఉప్పు", res.Payload.Text)
	assert.Equal(t, fallback.KindTimeout, res.Attempts[0].Kind)
}

func TestTranslateInvalid(t *testing.T) {
	s := newService(t, serviceConfig("", ""))

	tests := []struct {
		name string
		req  Request
	}{
		{"empty text", Request{Text: "  ", Target: "en"}},
		{"missing target", Request{Text: "salt"}},
		{"unsupported target", Request{Text: "salt", Target: "fr"}},
		{"malformed source", Request{Text: "salt", Source: "!!", Target: "te"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Translate(context.Background(), tt.req)
			assert.Equal(t, fallback.OutcomeFailure, res.Outcome)
			assert.Equal(t, fallback.KindInvalidRequest, res.Kind)
			assert.Equal(t, fallback.TierNone, res.Tier)
			assert.Empty(t, res.Attempts)
		})
	}
}

func TestTranslatePartialGlossary(t *testing.T) {
	s := newService(t, serviceConfig("", ""))

	res := s.Translate(context.Background(), Request{Text: "ఉప్పు, గోంగూర", Target: "en"})
	assert.Equal(t, fallback.OutcomeDegraded, res.Outcome)
	assert.Equal(t, fallback.TierFallback, res.Tier)
	assert.Equal(t, "salt, gomguura", res.Payload.Text)
	assert.Contains(t, res.Warning, "1 of 2 words")
}

func TestTranslateSameLanguage(t *testing.T) {
	s := newService(t, serviceConfig("", ""))
	res := s.Translate(context.Background(), Request{Text: "hello", Source: "en", Target: "en"})
	assert.Equal(t, fallback.OutcomeSuccess, res.Outcome)
	assert.Equal(t, "hello", res.Payload.Text)
}

func TestDetect(t *testing.T) {
	t.Run("fallback", func(t *testing.T) {
		s := newService(t, serviceConfig("", ""))
		res := s.Detect(context.Background(), "ఉప్పు కారం")
		assert.Equal(t, fallback.OutcomeSuccess, res.Outcome)
		assert.Equal(t, "te", res.Payload.Language)
		assert.InDelta(t, 1.0, res.Payload.Confidence, 1e-9)
	})

	t.Run("primary", func(t *testing.T) {
		fake := &fakeGoogle{}
		srv := httptest.NewServer(fake.handler(t))
		defer srv.Close()

		s := newService(t, serviceConfig("test-key", srv.URL+"/v2"))
		res := s.Detect(context.Background(), "ఉప్పు")
		assert.Equal(t, fallback.TierPrimary, res.Tier)
		assert.Equal(t, "te", res.Payload.Language)
	})

	t.Run("no letters", func(t *testing.T) {
		fake := &fakeGoogle{}
		srv := httptest.NewServer(fake.handler(t))
		defer srv.Close()

		s := newService(t, serviceConfig("test-key", srv.URL+"/v2"))
		res := s.Detect(context.Background(), "1234 !!")
		assert.Equal(t, fallback.OutcomeFailure, res.Outcome)
		assert.Equal(t, fallback.KindInvalidRequest, res.Kind)
		assert.Equal(t, fallback.TierNone, res.Tier)
		assert.Empty(t, res.Attempts)
		assert.Contains(t, res.Message(), "no letters")
		assert.Zero(t, fake.calls.Load())
	})

	t.Run("unsupported script", func(t *testing.T) {
		s := newService(t, serviceConfig("", ""))
		res := s.Detect(context.Background(), "Привет")
		assert.Equal(t, fallback.OutcomeFailure, res.Outcome)
		assert.Equal(t, fallback.KindAllTiersExhausted, res.Kind)
	})

	t.Run("empty", func(t *testing.T) {
		s := newService(t, serviceConfig("", ""))
		res := s.Detect(context.Background(), "")
		assert.Equal(t, fallback.KindInvalidRequest, res.Kind)
	})
}

func TestTranslateBatch(t *testing.T) {
	fake := &fakeGoogle{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	s := newService(t, serviceConfig("test-key", srv.URL))
	first := s.Translate(context.Background(), Request{Text: "ఉప్పు", Source: "te", Target: "en"})
	require.Equal(t, fallback.TierPrimary, first.Tier)
	require.EqualValues(t, 1, fake.calls.Load())

	texts := []string{"ఉప్పు", "పప్పు", "", "కూర"}
	results := s.TranslateBatch(context.Background(), texts, "te", "en")
	require.Len(t, results, len(texts))

	assert.Equal(t, "[en] ఉప్పు & more", results[0].Payload.Text)
	assert.Equal(t, "[en] పప్పు & more", results[1].Payload.Text)
	assert.Equal(t, fallback.KindInvalidRequest, results[2].Kind)
	assert.Equal(t, "[en] కూర & more", results[3].Payload.Text)
	// The first text came from the cache.
	assert.EqualValues(t, 3, fake.calls.Load())
}

func TestStatus(t *testing.T) {
	s := newService(t, serviceConfig("", ""))
	st := s.Status()
	require.Len(t, st, 2)
	assert.False(t, st[0].Available)
	assert.Contains(t, st[0].Reason, "GOOGLE_TRANSLATE_API_KEY")
	assert.True(t, st[1].Available)
}
