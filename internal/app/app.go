// Package app wires the configured services together. Every service is built
// on first use and shared afterwards, so a command that only translates never
// opens the recipe store or decodes the template book.
package app

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"codeberg.org/snonux/sahachari/internal/audio"
	"codeberg.org/snonux/sahachari/internal/catalog"
	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
	"codeberg.org/snonux/sahachari/internal/logging"
	"codeberg.org/snonux/sahachari/internal/metrics"
	"codeberg.org/snonux/sahachari/internal/recipe"
	"codeberg.org/snonux/sahachari/internal/storage"
	"codeberg.org/snonux/sahachari/internal/translation"
	"codeberg.org/snonux/sahachari/internal/vision"
)

// Options carries collaborators that tests replace.
type Options struct {
	Logger     *zap.Logger
	HTTPClient *http.Client
	// Metrics receives chain events. Nil creates a fresh collector.
	Metrics *metrics.Collector
}

// Services is the lazily initialised service container.
type Services struct {
	cfg     *config.Config
	logger  *zap.Logger
	client  *http.Client
	metrics *metrics.Collector

	translation func() (*translation.Service, error)
	speech      func() (*audio.Service, error)
	vision      func() (*vision.Service, error)
	recipes     func() (*recipe.Service, error)
	store       func() (*storage.Router, error)
	catalog     func() (*catalog.Catalog, error)

	mu     sync.Mutex
	opened *storage.Router
}

// New returns a container over cfg. Nothing is built until requested.
func New(cfg *config.Config, opts Options) *Services {
	s := &Services{
		cfg:     cfg,
		logger:  logging.OrNop(opts.Logger),
		client:  opts.HTTPClient,
		metrics: opts.Metrics,
	}
	if s.metrics == nil {
		s.metrics = metrics.NewCollector()
	}

	s.translation = sync.OnceValues(func() (*translation.Service, error) {
		return translation.New(cfg.Service(config.ServiceTranslation), translation.Options{
			Logger:     s.logger.Named(config.ServiceTranslation),
			Observer:   s.metrics,
			Breaker:    s.breaker(),
			HTTPClient: s.client,
			RateLimit:  cfg.RateLimit(),
		})
	})
	s.speech = sync.OnceValues(func() (*audio.Service, error) {
		return audio.New(cfg.Service(config.ServiceSpeech), audio.Options{
			Logger:       s.logger.Named(config.ServiceSpeech),
			Observer:     s.metrics,
			Breaker:      s.breaker(),
			HTTPClient:   s.client,
			RateLimit:    cfg.RateLimit(),
			CacheDir:     cfg.CacheDir(),
			EspeakBinary: cfg.EspeakBinary(),
		})
	})
	s.vision = sync.OnceValues(func() (*vision.Service, error) {
		return vision.New(cfg.Service(config.ServiceVision), vision.Options{
			Logger:        s.logger.Named(config.ServiceVision),
			Observer:      s.metrics,
			Breaker:       s.breaker(),
			HTTPClient:    s.client,
			RateLimit:     cfg.RateLimit(),
			MaxImageBytes: cfg.MaxImageBytes(),
		})
	})
	s.recipes = sync.OnceValues(func() (*recipe.Service, error) {
		return recipe.New(cfg.Service(config.ServiceRecipe), recipe.Options{
			Logger:     s.logger.Named(config.ServiceRecipe),
			Observer:   s.metrics,
			Breaker:    s.breaker(),
			HTTPClient: s.client,
			RateLimit:  cfg.RateLimit(),
		})
	})
	s.store = sync.OnceValues(func() (*storage.Router, error) {
		r, err := storage.NewRouter(cfg.Storage())
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.opened = r
		s.mu.Unlock()
		return r, nil
	})
	s.catalog = sync.OnceValues(func() (*catalog.Catalog, error) {
		store, err := s.store()
		if err != nil {
			return nil, err
		}
		return catalog.New(store, s.logger.Named("catalog")), nil
	})
	return s
}

func (s *Services) breaker() *fallback.BreakerConfig {
	b := s.cfg.Breaker()
	if b.Threshold == 0 {
		return nil
	}
	return &b
}

// Config returns the configuration the container was built from.
func (s *Services) Config() *config.Config { return s.cfg }

// Logger returns the root logger.
func (s *Services) Logger() *zap.Logger { return s.logger }

// Metrics returns the collector observing every chain.
func (s *Services) Metrics() *metrics.Collector { return s.metrics }

// Translation returns the translation service.
func (s *Services) Translation() (*translation.Service, error) {
	return wrap(config.ServiceTranslation, s.translation)
}

// Speech returns the speech synthesis service.
func (s *Services) Speech() (*audio.Service, error) {
	return wrap(config.ServiceSpeech, s.speech)
}

// Vision returns the ingredient recognition service.
func (s *Services) Vision() (*vision.Service, error) {
	return wrap(config.ServiceVision, s.vision)
}

// Recipes returns the recipe generation service.
func (s *Services) Recipes() (*recipe.Service, error) {
	return wrap(config.ServiceRecipe, s.recipes)
}

// Store returns the storage router.
func (s *Services) Store() (*storage.Router, error) {
	return wrap("storage", s.store)
}

// Catalog returns the recipe and article catalog.
func (s *Services) Catalog() (*catalog.Catalog, error) {
	return wrap("catalog", s.catalog)
}

func wrap[T any](name string, build func() (T, error)) (T, error) {
	v, err := build()
	if err != nil {
		return v, fmt.Errorf("failed to initialise %s: %w", name, err)
	}
	return v, nil
}

// ServiceStatus is the tier report of one chain.
type ServiceStatus struct {
	Service string                `json:"service"`
	Tiers   []fallback.TierStatus `json:"tiers"`
}

// Status reports every chain in service name order. Building a service for
// the report is allowed; a service that fails to build is an error.
func (s *Services) Status() ([]ServiceStatus, error) {
	var out []ServiceStatus
	for _, name := range s.cfg.Services() {
		var (
			tiers []fallback.TierStatus
			err   error
		)
		switch name {
		case config.ServiceTranslation:
			var svc *translation.Service
			if svc, err = s.Translation(); err == nil {
				tiers = svc.Status()
			}
		case config.ServiceSpeech:
			var svc *audio.Service
			if svc, err = s.Speech(); err == nil {
				tiers = svc.Status()
			}
		case config.ServiceVision:
			var svc *vision.Service
			if svc, err = s.Vision(); err == nil {
				tiers = svc.Status()
			}
		case config.ServiceRecipe:
			var svc *recipe.Service
			if svc, err = s.Recipes(); err == nil {
				tiers = svc.Status()
			}
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ServiceStatus{Service: name, Tiers: tiers})
	}
	return out, nil
}

// Close releases the storage backends if they were opened and flushes the
// logger.
func (s *Services) Close() error {
	s.mu.Lock()
	r := s.opened
	s.mu.Unlock()

	var errs []error
	if r != nil {
		errs = append(errs, r.Close())
	}
	_ = s.logger.Sync()
	return errors.Join(errs...)
}
