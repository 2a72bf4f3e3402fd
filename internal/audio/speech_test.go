package audio

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
)

// missingEspeak forces the built-in synthesizer regardless of the host.
const missingEspeak = "sahachari-no-such-espeak"

func speechConfig(apiKey, endpoint string) config.ServiceConfig {
	return config.ServiceConfig{
		Name:    config.ServiceSpeech,
		Timeout: time.Second,
		Tiers: []config.TierConfig{
			{
				Tier:     fallback.TierPrimary,
				Provider: config.ProviderGoogleTTS,
				APIKey:   apiKey,
				Endpoint: endpoint,
				Enabled:  apiKey != "",
			},
			{Tier: fallback.TierFallback, Provider: config.ProviderLocalTTS, Enabled: true},
		},
	}
}

func newService(t *testing.T, cfg config.ServiceConfig, cacheDir string) *Service {
	t.Helper()
	s, err := New(cfg, Options{
		Logger:       zaptest.NewLogger(t),
		CacheDir:     cacheDir,
		EspeakBinary: missingEspeak,
	})
	require.NoError(t, err)
	return s
}

type fakeTTS struct {
	calls  atomic.Int32
	status int
	delay  time.Duration
	last   atomic.Value
}

func (f *fakeTTS) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if f.delay > 0 {
			time.Sleep(f.delay)
		}
		assert.Equal(t, "tts-key", r.URL.Query().Get("key"))
		if f.status != 0 {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"error":{"status":"RESOURCE_EXHAUSTED","message":"quota exceeded"}}`))
			return
		}

		var body googleSynthesizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.last.Store(body)
		audio := base64.StdEncoding.EncodeToString([]byte("ID3:" + body.Input.Text))
		_ = json.NewEncoder(w).Encode(map[string]string{"audioContent": audio})
	}
}

func (f *fakeTTS) lastRequest() googleSynthesizeRequest {
	v, _ := f.last.Load().(googleSynthesizeRequest)
	return v
}

func TestSynthesizePrimary(t *testing.T) {
	fake := &fakeTTS{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	s := newService(t, speechConfig("tts-key", srv.URL), "")
	res := s.Synthesize(context.Background(), Request{Text: "గోంగూర పచ్చడి", Language: "te", Slow: true})

	require.Equal(t, fallback.OutcomeSuccess, res.Outcome)
	assert.Equal(t, fallback.TierPrimary, res.Tier)
	assert.Equal(t, config.ProviderGoogleTTS, res.Provider)
	assert.Equal(t, FormatMP3, res.Payload.Format)
	assert.Equal(t, "te-IN-Standard-A", res.Payload.Voice)
	assert.Equal(t, "ID3:గోంగూర పచ్చడి", string(res.Payload.Audio))

	body := fake.lastRequest()
	assert.Equal(t, "te-IN", body.Voice.LanguageCode)
	assert.Equal(t, "MP3", body.AudioConfig.AudioEncoding)
	assert.InDelta(t, 0.75, body.AudioConfig.SpeakingRate, 1e-9)
}

func TestSynthesizeWithoutCredentials(t *testing.T) {
	s := newService(t, speechConfig("", ""), "")
	res := s.Synthesize(context.Background(), Request{Text: "ఉప్పు", Language: "te"})

	require.True(t, res.OK())
	assert.Equal(t, fallback.TierFallback, res.Tier)
	assert.Equal(t, config.ProviderLocalTTS, res.Provider)
	assert.Equal(t, FormatWAV, res.Payload.Format)
	assert.Equal(t, "formant", res.Payload.Voice)
	assert.Contains(t, res.Warning, "built-in synthesizer")
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, fallback.StatusSkipped, res.Attempts[0].Status)

	info, err := ParseWAVHeader(res.Payload.Audio)
	require.NoError(t, err)
	assert.Equal(t, FormantSampleRate, info.SampleRate)
	assert.Positive(t, info.Samples)
}

func TestSynthesizeQuotaDegrades(t *testing.T) {
	fake := &fakeTTS{status: http.StatusTooManyRequests}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	s := newService(t, speechConfig("tts-key", srv.URL), "")
	res := s.Synthesize(context.Background(), Request{Text: "rice", Language: "en"})

	assert.Equal(t, fallback.OutcomeDegraded, res.Outcome)
	assert.Equal(t, fallback.TierFallback, res.Tier)
	assert.Contains(t, res.Warning, "google-tts (quota)")
	assert.Equal(t, fallback.KindQuota, res.Attempts[0].Kind)
}

func TestSynthesizeTimeout(t *testing.T) {
	fake := &fakeTTS{delay: 300 * time.Millisecond}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	cfg := speechConfig("tts-key", srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	s := newService(t, cfg, "")
	res := s.Synthesize(context.Background(), Request{Text: "rice", Language: "en"})

	assert.Equal(t, fallback.OutcomeDegraded, res.Outcome)
	assert.Equal(t, fallback.KindTimeout, res.Attempts[0].Kind)
}

func TestSynthesizeInvalid(t *testing.T) {
	s := newService(t, speechConfig("", ""), "")

	tests := []struct {
		name string
		req  Request
	}{
		{"empty text", Request{Text: "  ", Language: "te"}},
		{"unknown language", Request{Text: "hola", Language: "es"}},
		{"wrong script", Request{Text: "salt", Language: "te"}},
		{"too long", Request{Text: strings.Repeat("a", MaxTextLength+1), Language: "en"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Synthesize(context.Background(), tt.req)
			assert.Equal(t, fallback.OutcomeFailure, res.Outcome)
			assert.Equal(t, fallback.KindInvalidRequest, res.Kind)
			assert.Equal(t, fallback.TierNone, res.Tier)
			assert.Empty(t, res.Attempts)
		})
	}
}

func TestSynthesizeUsesCache(t *testing.T) {
	fake := &fakeTTS{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	s := newService(t, speechConfig("tts-key", srv.URL), t.TempDir())
	req := Request{Text: "నీరు", Language: "te"}

	first := s.Synthesize(context.Background(), req)
	require.Equal(t, fallback.OutcomeSuccess, first.Outcome)
	second := s.Synthesize(context.Background(), req)

	assert.Equal(t, int32(1), fake.calls.Load())
	assert.Equal(t, fallback.OutcomeSuccess, second.Outcome)
	assert.Equal(t, fallback.TierPrimary, second.Tier)
	assert.Equal(t, config.ProviderGoogleTTS, second.Provider)
	assert.Equal(t, first.Payload, second.Payload)
	assert.Empty(t, second.Attempts)

	files, size, err := s.Cache().Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, files)
	assert.Equal(t, int64(len(first.Payload.Audio)), size)
}

func TestSynthesizeDoesNotCacheDegraded(t *testing.T) {
	dir := t.TempDir()
	s := newService(t, speechConfig("", ""), dir)

	res := s.Synthesize(context.Background(), Request{Text: "dal", Language: "en"})
	require.Equal(t, fallback.OutcomeDegraded, res.Outcome)

	files, _, err := s.Cache().Stats()
	require.NoError(t, err)
	assert.Zero(t, files)
}

func TestSynthesizeLongTextIsChunked(t *testing.T) {
	fake := &fakeTTS{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	sentence := strings.Repeat("x", 2500) + ". "
	s := newService(t, speechConfig("tts-key", srv.URL), "")
	res := s.Synthesize(context.Background(), Request{Text: sentence + sentence, Language: "en"})

	require.Equal(t, fallback.OutcomeSuccess, res.Outcome)
	assert.Equal(t, int32(2), fake.calls.Load())
}

func TestGoogleVoice(t *testing.T) {
	tests := []struct {
		lang, code, voice string
	}{
		{"en", "en-US", "en-US-Standard-D"},
		{"te", "te-IN", "te-IN-Standard-A"},
		{"hi", "hi-IN", "hi-IN-Standard-A"},
		{"ml", "ml-IN", "ml-IN-Standard-A"},
	}
	for _, tt := range tests {
		code, voice := GoogleVoice(tt.lang)
		if code != tt.code || voice != tt.voice {
			t.Errorf("GoogleVoice(%q) = %q, %q, want %q, %q", tt.lang, code, voice, tt.code, tt.voice)
		}
	}
}

func TestSaveAudio(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	path, err := SaveAudio(dir, "గోంగూర/pachadi", Speech{Audio: []byte("RIFF"), Format: FormatWAV})
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "గోంగూర_pachadi_"))
	assert.Equal(t, ".wav", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))

	_, err = SaveAudio(dir, "empty", Speech{})
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	s := newService(t, speechConfig("", ""), "")
	status := s.Status()
	require.Len(t, status, 2)
	assert.False(t, status[0].Available)
	assert.Contains(t, status[0].Reason, "GOOGLE_CLOUD_TTS_API_KEY")
	assert.True(t, status[1].Available)
}
