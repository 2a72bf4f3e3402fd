package translation

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"codeberg.org/snonux/sahachari/internal/apiclient"
	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
	"codeberg.org/snonux/sahachari/internal/logging"
)

// MaxTextLength bounds a single request, matching the API's own limit.
const MaxTextLength = 5000

// batchConcurrency bounds parallel requests in TranslateBatch.
const batchConcurrency = 4

// Request asks for text to be translated. An empty Source means auto-detect.
type Request struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
	Target string `json:"target"`
}

// Translation is the payload of a successful translation.
type Translation struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Detection is the payload of a language detection.
type Detection struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// Options carries the collaborators shared by all services.
type Options struct {
	Logger     *zap.Logger
	Observer   fallback.Observer
	Breaker    *fallback.BreakerConfig
	HTTPClient *http.Client
	RateLimit  int
	Glossary   *Glossary
}

// Service translates text through its fallback chain.
type Service struct {
	translate *fallback.Chain[Request, Translation]
	detect    *fallback.Chain[string, Detection]
	cache     *Cache
	logger    *zap.Logger
}

// New builds the service from its configuration.
func New(cfg config.ServiceConfig, opts Options) (*Service, error) {
	logger := logging.OrNop(opts.Logger)
	glossary := opts.Glossary
	if glossary == nil {
		glossary = DefaultGlossary()
	}

	primary, _ := cfg.Tier(config.ProviderGoogleTranslate)
	primary.Tier = fallback.TierPrimary
	primary.Provider = config.ProviderGoogleTranslate
	client := apiclient.New(config.ProviderGoogleTranslate, apiclient.Options{
		RequestsPerMinute: opts.RateLimit,
		HTTPClient:        opts.HTTPClient,
	})
	google := newGoogleTranslator(primary, client)

	chainOpts := fallback.Options{
		Service:  config.ServiceTranslation,
		Timeout:  cfg.Timeout,
		Logger:   logger,
		Observer: opts.Observer,
		Breaker:  opts.Breaker,
	}
	translate, err := fallback.New[Request, Translation](chainOpts,
		google,
		glossaryTranslator{glossary: glossary},
	)
	if err != nil {
		return nil, err
	}

	chainOpts.Service = "detection"
	detect, err := fallback.New[string, Detection](chainOpts,
		googleDetector{google},
		scriptDetector{},
	)
	if err != nil {
		return nil, err
	}

	return &Service{
		translate: translate,
		detect:    detect,
		cache:     NewCache(),
		logger:    logger,
	}, nil
}

func validate(req Request) (Request, string) {
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return req, "text is empty"
	}
	if utf8.RuneCountInString(req.Text) > MaxTextLength {
		return req, "text is longer than 5000 characters"
	}
	target, err := NormalizeLanguage(req.Target)
	if err != nil {
		return req, "target: " + err.Error()
	}
	req.Target = target
	if req.Source != "" && !strings.EqualFold(req.Source, "auto") {
		source, err := NormalizeLanguage(req.Source)
		if err != nil {
			return req, "source: " + err.Error()
		}
		req.Source = source
	} else {
		req.Source = ""
	}
	return req, ""
}

// Translate translates one text.
func (s *Service) Translate(ctx context.Context, req Request) fallback.Result[Translation] {
	req, problem := validate(req)
	if problem != "" {
		return fallback.Invalid[Translation]("%s", problem)
	}
	res := s.translate.Do(ctx, req)
	if res.Outcome == fallback.OutcomeSuccess && res.Tier == fallback.TierPrimary {
		s.cache.Add(req.Source, req.Target, req.Text, res.Payload.Text)
	}
	return res
}

// Detect guesses the language of text.
func (s *Service) Detect(ctx context.Context, text string) fallback.Result[Detection] {
	text = strings.TrimSpace(text)
	if text == "" {
		return fallback.Invalid[Detection]("text is empty")
	}
	if !hasLetters(text) {
		return fallback.Invalid[Detection]("text has no letters to detect a language from")
	}
	return s.detect.Do(ctx, text)
}

// TranslateBatch translates texts concurrently. Results keep input order and
// identical texts reuse earlier primary-tier translations.
func (s *Service) TranslateBatch(ctx context.Context, texts []string, source, target string) []fallback.Result[Translation] {
	results := make([]fallback.Result[Translation], len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, text := range texts {
		g.Go(func() error {
			req := Request{Text: text, Source: source, Target: target}
			if v, problem := validate(req); problem == "" {
				if cached, ok := s.cache.Get(v.Source, v.Target, v.Text); ok {
					results[i] = fallback.Result[Translation]{
						Outcome:  fallback.OutcomeSuccess,
						Payload:  Translation{Text: cached, Source: v.Source, Target: v.Target},
						Tier:     fallback.TierPrimary,
						Provider: config.ProviderGoogleTranslate,
					}
					return nil
				}
			}
			results[i] = s.Translate(gctx, req)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Debug("batch translated", zap.Int("texts", len(texts)), zap.Int("cached", s.cache.Len()))
	return results
}

// Status reports the availability of each tier.
func (s *Service) Status() []fallback.TierStatus {
	return s.translate.Tiers()
}
