// Package vision recognises food ingredients in photos. Google Cloud Vision
// is asked first, Azure Computer Vision second, and a local heuristic over
// the file name, caption and dominant colours answers when neither can.
package vision

import (
	"context"
	"image"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"codeberg.org/snonux/sahachari/internal/apiclient"
	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
	"codeberg.org/snonux/sahachari/internal/logging"
)

// DefaultMaxImageBytes bounds uploads when no limit is configured.
const DefaultMaxImageBytes = 10 << 20

// Request carries one photo. Filename and Caption are optional hints used by
// the heuristic tier.
type Request struct {
	Image    []byte `json:"-"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// Ingredient sources.
const (
	SourceLabel   = "label"
	SourceObject  = "object"
	SourceTag     = "tag"
	SourceKeyword = "keyword"
	SourceColor   = "color_analysis"
)

// Ingredient is one recognised food item.
type Ingredient struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// photo is what the tiers see: the preprocessed image plus its hints.
type photo struct {
	jpeg     []byte
	img      image.Image
	filename string
	caption  string
}

// Options carries the collaborators of the service.
type Options struct {
	Logger        *zap.Logger
	Observer      fallback.Observer
	Breaker       *fallback.BreakerConfig
	HTTPClient    *http.Client
	RateLimit     int
	MaxImageBytes int64
}

// Service recognises ingredients through its fallback chain.
type Service struct {
	chain    *fallback.Chain[photo, []Ingredient]
	maxBytes int64
	logger   *zap.Logger
}

// New builds the service from its configuration.
func New(cfg config.ServiceConfig, opts Options) (*Service, error) {
	logger := logging.OrNop(opts.Logger)

	googleTier, _ := cfg.Tier(config.ProviderGoogleVision)
	googleTier.Tier = fallback.TierPrimary
	googleTier.Provider = config.ProviderGoogleVision
	google := newGoogleVision(googleTier, apiclient.New(config.ProviderGoogleVision, apiclient.Options{
		RequestsPerMinute: opts.RateLimit,
		HTTPClient:        opts.HTTPClient,
	}))

	azureTier, _ := cfg.Tier(config.ProviderAzureVision)
	azureTier.Tier = fallback.TierSecondary
	azureTier.Provider = config.ProviderAzureVision
	azure := newAzureVision(azureTier, apiclient.New(config.ProviderAzureVision, apiclient.Options{
		RequestsPerMinute: opts.RateLimit,
		HTTPClient:        opts.HTTPClient,
		Header:            http.Header{"Ocp-Apim-Subscription-Key": {azureTier.APIKey}},
	}))

	chain, err := fallback.New[photo, []Ingredient](fallback.Options{
		Service:  config.ServiceVision,
		Timeout:  cfg.Timeout,
		Logger:   logger,
		Observer: opts.Observer,
		Breaker:  opts.Breaker,
	},
		google,
		azure,
		heuristics{},
	)
	if err != nil {
		return nil, err
	}

	maxBytes := opts.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &Service{chain: chain, maxBytes: maxBytes, logger: logger}, nil
}

// Recognize identifies the ingredients in one photo. Results are food items
// only, deduplicated and sorted by descending confidence.
func (s *Service) Recognize(ctx context.Context, req Request) fallback.Result[[]Ingredient] {
	if len(req.Image) == 0 {
		return fallback.Invalid[[]Ingredient]("image is empty")
	}
	prepared, err := Preprocess(req.Image, s.maxBytes)
	if err != nil {
		return fallback.Invalid[[]Ingredient]("%v", err)
	}
	s.logger.Debug("image preprocessed",
		zap.String("format", prepared.Format),
		zap.Int("bytes", len(prepared.JPEG)),
		zap.Int("width", prepared.Image.Bounds().Dx()),
		zap.Int("height", prepared.Image.Bounds().Dy()))

	return s.chain.Do(ctx, photo{
		jpeg:     prepared.JPEG,
		img:      prepared.Image,
		filename: strings.TrimSpace(req.Filename),
		caption:  strings.TrimSpace(req.Caption),
	})
}

// Status reports the availability of each tier.
func (s *Service) Status() []fallback.TierStatus {
	return s.chain.Tiers()
}
