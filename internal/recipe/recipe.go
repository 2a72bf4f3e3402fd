// Package recipe suggests dishes for a set of ingredients or a category.
// Spoonacular is asked first, a language model second, and embedded
// templates answer when neither is reachable.
package recipe

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"go.uber.org/zap"

	"codeberg.org/snonux/sahachari/internal/apiclient"
	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
	"codeberg.org/snonux/sahachari/internal/logging"
)

// Categories lists the known dish categories.
var Categories = []string{"traditional", "modern", "fusion", "healthy", "quick"}

const (
	DefaultCount = 3
	MaxCount     = 5
	// maxIngredients bounds a request.
	maxIngredients = 30
)

// Request asks for Count recipes using Ingredients, in Category, or both.
type Request struct {
	Ingredients []string `json:"ingredients,omitempty"`
	Category    string   `json:"category,omitempty"`
	Count       int      `json:"count,omitempty"`
}

// Recipe is one generated dish.
type Recipe struct {
	Name         string   `json:"name" yaml:"name"`
	LocalName    string   `json:"local_name,omitempty" yaml:"local_name"`
	Category     string   `json:"category,omitempty" yaml:"category"`
	Ingredients  []string `json:"ingredients" yaml:"ingredients"`
	Instructions []string `json:"instructions" yaml:"instructions"`
	CookingTime  string   `json:"cooking_time,omitempty" yaml:"cooking_time"`
	Servings     int      `json:"servings,omitempty" yaml:"servings"`
	Difficulty   string   `json:"difficulty,omitempty" yaml:"difficulty"`
	Notes        string   `json:"notes,omitempty" yaml:"notes"`
	Source       string   `json:"source" yaml:"-"`
	URL          string   `json:"url,omitempty" yaml:"-"`
}

// Options carries the collaborators of the service.
type Options struct {
	Logger     *zap.Logger
	Observer   fallback.Observer
	Breaker    *fallback.BreakerConfig
	HTTPClient *http.Client
	RateLimit  int
	// Book replaces the embedded template book, mainly for tests.
	Book *Book
}

// Service generates recipes through its fallback chain.
type Service struct {
	chain  *fallback.Chain[Request, []Recipe]
	book   *Book
	logger *zap.Logger
}

// New builds the service from its configuration. The secondary tier is the
// language model named by the configuration, OpenAI or Gemini.
func New(cfg config.ServiceConfig, opts Options) (*Service, error) {
	logger := logging.OrNop(opts.Logger)
	book := opts.Book
	if book == nil {
		book = DefaultBook()
	}

	spoonTier, ok := cfg.Tier(config.ProviderSpoonacular)
	if !ok {
		spoonTier = config.TierConfig{Tier: fallback.TierPrimary, Provider: config.ProviderSpoonacular}
	}
	spoon := newSpoonacular(spoonTier, apiclient.New(config.ProviderSpoonacular, apiclient.Options{
		RequestsPerMinute: opts.RateLimit,
		HTTPClient:        opts.HTTPClient,
	}))

	var llm *llmProvider
	if tc, ok := cfg.Tier(config.ProviderGemini); ok {
		llm = newLLMProvider(tc, newGeminiModel(tc, opts.HTTPClient))
	} else {
		tc, ok := cfg.Tier(config.ProviderOpenAI)
		if !ok {
			tc = config.TierConfig{Tier: fallback.TierSecondary, Provider: config.ProviderOpenAI}
		}
		llm = newLLMProvider(tc, newOpenAIChat(tc, opts.HTTPClient))
	}

	chain, err := fallback.New[Request, []Recipe](fallback.Options{
		Service:  config.ServiceRecipe,
		Timeout:  cfg.Timeout,
		Logger:   logger,
		Observer: opts.Observer,
		Breaker:  opts.Breaker,
	},
		spoon,
		llm,
		templates{book: book},
	)
	if err != nil {
		return nil, err
	}
	return &Service{chain: chain, book: book, logger: logger}, nil
}

// Normalize trims the request, applies the default count and reports what
// is wrong with it, if anything.
func Normalize(req Request) (Request, error) {
	var ingredients []string
	seen := map[string]bool{}
	for _, ing := range req.Ingredients {
		ing = strings.TrimSpace(ing)
		key := strings.ToLower(ing)
		if ing == "" || seen[key] {
			continue
		}
		seen[key] = true
		ingredients = append(ingredients, ing)
	}
	req.Ingredients = ingredients
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))

	if len(req.Ingredients) == 0 && req.Category == "" {
		return req, fmt.Errorf("need at least one ingredient or a category")
	}
	if len(req.Ingredients) > maxIngredients {
		return req, fmt.Errorf("too many ingredients: %d, limit is %d", len(req.Ingredients), maxIngredients)
	}
	if req.Category != "" && !slices.Contains(Categories, req.Category) {
		return req, fmt.Errorf("unknown category %q, want one of %s", req.Category, strings.Join(Categories, ", "))
	}
	if req.Count == 0 {
		req.Count = DefaultCount
	}
	if req.Count < 1 || req.Count > MaxCount {
		return req, fmt.Errorf("count must be between 1 and %d", MaxCount)
	}
	return req, nil
}

// Generate returns up to req.Count recipes.
func (s *Service) Generate(ctx context.Context, req Request) fallback.Result[[]Recipe] {
	req, err := Normalize(req)
	if err != nil {
		return fallback.Invalid[[]Recipe]("%v", err)
	}
	res := s.chain.Do(ctx, req)
	if res.OK() {
		s.logger.Debug("recipes generated",
			zap.Int("count", len(res.Payload)),
			zap.String("provider", res.Provider))
	}
	return res
}

// Suggest names known dishes that can mostly be cooked from ingredients.
func (s *Service) Suggest(ingredients []string) []string {
	return s.book.Suggest(ingredients)
}

// Status reports the availability of each tier.
func (s *Service) Status() []fallback.TierStatus {
	return s.chain.Tiers()
}
