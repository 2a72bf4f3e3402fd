// Package audio turns text into speech through a fallback chain: a cloud
// voice (Google Cloud TTS or OpenAI) first, then espeak-ng or the built-in
// synthesizer.
package audio

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"codeberg.org/snonux/sahachari/internal"
	"codeberg.org/snonux/sahachari/internal/apiclient"
	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
	"codeberg.org/snonux/sahachari/internal/logging"
	"codeberg.org/snonux/sahachari/internal/translation"
)

const (
	// MaxTextLength bounds a single request.
	MaxTextLength = 5000
	// ChunkSize is the largest piece sent to an engine in one call.
	ChunkSize = 4000
)

// Audio formats.
const (
	FormatMP3 = "mp3"
	FormatWAV = "wav"
)

// Request asks for text to be spoken in Language.
type Request struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Slow     bool   `json:"slow,omitempty"`
	// Voice overrides the engine's default voice.
	Voice string `json:"voice,omitempty"`
}

// Speech is the payload of a successful synthesis.
type Speech struct {
	Audio    []byte `json:"-"`
	Format   string `json:"format"`
	Language string `json:"language"`
	Voice    string `json:"voice"`
}

// Options carries the collaborators of the service.
type Options struct {
	Logger     *zap.Logger
	Observer   fallback.Observer
	Breaker    *fallback.BreakerConfig
	HTTPClient *http.Client
	RateLimit  int
	// CacheDir enables the on-disk cache when non-empty.
	CacheDir     string
	EspeakBinary string
}

// Service synthesizes speech through its fallback chain.
type Service struct {
	chain  *fallback.Chain[Request, Speech]
	cache  *Cache
	logger *zap.Logger
}

// New builds the service from its configuration. The primary tier is either
// Google Cloud TTS or OpenAI, whichever the configuration names.
func New(cfg config.ServiceConfig, opts Options) (*Service, error) {
	logger := logging.OrNop(opts.Logger)

	var primary fallback.Handler[Request, Speech]
	if tc, ok := cfg.Tier(config.ProviderOpenAITTS); ok {
		primary = newOpenAIProvider(tc, opts.HTTPClient)
	} else {
		tc, _ := cfg.Tier(config.ProviderGoogleTTS)
		tc.Tier = fallback.TierPrimary
		tc.Provider = config.ProviderGoogleTTS
		client := apiclient.New(config.ProviderGoogleTTS, apiclient.Options{
			RequestsPerMinute: opts.RateLimit,
			HTTPClient:        opts.HTTPClient,
		})
		primary = newGoogleProvider(tc, client)
	}

	chain, err := fallback.New[Request, Speech](fallback.Options{
		Service:  config.ServiceSpeech,
		Timeout:  cfg.Timeout,
		Logger:   logger,
		Observer: opts.Observer,
		Breaker:  opts.Breaker,
	},
		primary,
		newLocalProvider(opts.EspeakBinary),
	)
	if err != nil {
		return nil, err
	}

	return &Service{
		chain:  chain,
		cache:  NewCache(opts.CacheDir),
		logger: logger,
	}, nil
}

func validate(req Request) (Request, string) {
	req.Text = strings.TrimSpace(req.Text)
	lang, err := translation.NormalizeLanguage(req.Language)
	if err != nil {
		return req, "language: " + err.Error()
	}
	req.Language = lang
	if err := ValidateText(req.Text, lang); err != nil {
		return req, err.Error()
	}
	if utf8.RuneCountInString(req.Text) > MaxTextLength {
		return req, fmt.Sprintf("text is longer than %d characters", MaxTextLength)
	}
	return req, ""
}

// Synthesize speaks one text. Cached audio is returned without running the
// chain and keeps the tier that first produced it.
func (s *Service) Synthesize(ctx context.Context, req Request) fallback.Result[Speech] {
	req, problem := validate(req)
	if problem != "" {
		return fallback.Invalid[Speech]("%s", problem)
	}

	if speech, meta, ok := s.cache.Get(req); ok {
		s.logger.Debug("speech cache hit",
			zap.String("language", req.Language),
			zap.String("provider", meta.Provider))
		return fallback.Result[Speech]{
			Outcome:  fallback.OutcomeSuccess,
			Payload:  speech,
			Tier:     meta.Tier,
			Provider: meta.Provider,
		}
	}

	res := s.chain.Do(ctx, req)
	if res.Outcome == fallback.OutcomeSuccess {
		if err := s.cache.Put(req, res.Payload, res.Tier, res.Provider); err != nil {
			s.logger.Warn("failed to cache speech", zap.Error(err))
		}
	}
	return res
}

// Status reports the availability of each tier.
func (s *Service) Status() []fallback.TierStatus {
	return s.chain.Tiers()
}

// Cache returns the on-disk cache, which is disabled when no directory was
// configured.
func (s *Service) Cache() *Cache {
	return s.cache
}

// SaveAudio writes speech into dir under a timestamped name and returns the
// path.
func SaveAudio(dir, name string, speech Speech) (string, error) {
	if len(speech.Audio) == 0 {
		return "", fmt.Errorf("no audio to save")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	base := internal.SanitizeFilename(name)
	if base == "" {
		base = "speech"
	}
	format := speech.Format
	if format == "" {
		format = FormatMP3
	}
	filename := fmt.Sprintf("%s_%s.%s", base, time.Now().Format("20060102_150405"), format)
	path := filepath.Join(dir, filename)

	if err := os.WriteFile(path, speech.Audio, 0o644); err != nil {
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	return path, nil
}
