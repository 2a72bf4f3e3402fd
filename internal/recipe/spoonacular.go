package recipe

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"codeberg.org/snonux/sahachari/internal/apiclient"
	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
)

// informationFetches bounds concurrent detail requests.
const informationFetches = 3

// categoryTags maps categories onto Spoonacular tags for random picks.
var categoryTags = map[string]string{
	"traditional": "indian",
	"modern":      "main course",
	"fusion":      "asian",
	"healthy":     "vegetarian",
	"quick":       "snack",
}

// spoonacular is the primary tier.
type spoonacular struct {
	tier   config.TierConfig
	client *apiclient.Client
}

type foundRecipe struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type recipeInformation struct {
	ID                  int    `json:"id"`
	Title               string `json:"title"`
	ReadyInMinutes      int    `json:"readyInMinutes"`
	Servings            int    `json:"servings"`
	SourceURL           string `json:"sourceUrl"`
	Instructions        string `json:"instructions"`
	ExtendedIngredients []struct {
		Original string `json:"original"`
	} `json:"extendedIngredients"`
	AnalyzedInstructions []struct {
		Steps []struct {
			Number int    `json:"number"`
			Step   string `json:"step"`
		} `json:"steps"`
	} `json:"analyzedInstructions"`
}

type randomResponse struct {
	Recipes []recipeInformation `json:"recipes"`
}

func newSpoonacular(tier config.TierConfig, client *apiclient.Client) *spoonacular {
	tier.Endpoint = strings.TrimSuffix(tier.Endpoint, "/")
	return &spoonacular{tier: tier, client: client}
}

func (s *spoonacular) Name() string { return s.tier.Provider }

func (s *spoonacular) Tier() fallback.Tier { return s.tier.Tier }

func (s *spoonacular) Available() error {
	if !s.tier.Enabled || s.tier.APIKey == "" {
		return fallback.Unconfigured("SPOONACULAR_API_KEY")
	}
	return nil
}

func (s *spoonacular) Attempt(ctx context.Context, req Request) (fallback.Reply[[]Recipe], error) {
	var (
		infos []recipeInformation
		err   error
	)
	if len(req.Ingredients) == 0 {
		infos, err = s.random(ctx, req)
	} else {
		infos, err = s.byIngredients(ctx, req)
	}
	if err != nil {
		return fallback.Reply[[]Recipe]{}, err
	}
	if len(infos) == 0 {
		return fallback.Reply[[]Recipe]{}, s.client.BadResponse("no recipes found")
	}

	recipes := make([]Recipe, 0, len(infos))
	for _, info := range infos {
		recipes = append(recipes, info.recipe(req.Category))
	}
	return fallback.OK(recipes), nil
}

func (s *spoonacular) random(ctx context.Context, req Request) ([]recipeInformation, error) {
	q := s.query()
	q.Set("number", strconv.Itoa(req.Count))
	q.Set("tags", categoryTags[req.Category])

	var resp randomResponse
	if err := s.client.GetJSON(ctx, s.tier.Endpoint+"/recipes/random", q, &resp); err != nil {
		return nil, err
	}
	return resp.Recipes, nil
}

// byIngredients finds matching recipes, then loads each one's details.
func (s *spoonacular) byIngredients(ctx context.Context, req Request) ([]recipeInformation, error) {
	q := s.query()
	q.Set("ingredients", strings.Join(req.Ingredients, ","))
	q.Set("number", strconv.Itoa(req.Count))
	q.Set("ranking", "1")
	q.Set("ignorePantry", "true")

	var found []foundRecipe
	if err := s.client.GetJSON(ctx, s.tier.Endpoint+"/recipes/findByIngredients", q, &found); err != nil {
		return nil, err
	}
	if len(found) > req.Count {
		found = found[:req.Count]
	}

	infos := make([]recipeInformation, len(found))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(informationFetches)
	for i, f := range found {
		g.Go(func() error {
			dq := s.query()
			dq.Set("includeNutrition", "false")
			endpoint := fmt.Sprintf("%s/recipes/%d/information", s.tier.Endpoint, f.ID)
			return s.client.GetJSON(gctx, endpoint, dq, &infos[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

func (s *spoonacular) query() url.Values {
	return url.Values{"apiKey": {s.tier.APIKey}}
}

func (info recipeInformation) recipe(category string) Recipe {
	r := Recipe{
		Name:       info.Title,
		Category:   category,
		Servings:   info.Servings,
		Source:     config.ProviderSpoonacular,
		URL:        info.SourceURL,
		Difficulty: difficulty(info.ReadyInMinutes),
	}
	if info.ReadyInMinutes > 0 {
		r.CookingTime = fmt.Sprintf("%d minutes", info.ReadyInMinutes)
	}
	for _, ing := range info.ExtendedIngredients {
		if s := strings.TrimSpace(ing.Original); s != "" {
			r.Ingredients = append(r.Ingredients, s)
		}
	}
	for _, block := range info.AnalyzedInstructions {
		for _, step := range block.Steps {
			if s := strings.TrimSpace(step.Step); s != "" {
				r.Instructions = append(r.Instructions, s)
			}
		}
	}
	if len(r.Instructions) == 0 && info.Instructions != "" {
		r.Instructions = splitInstructions(info.Instructions)
	}
	return r
}

// splitInstructions turns Spoonacular's instruction blob into steps. Block
// tags and line breaks end a step; plain text is split on newlines.
func splitInstructions(s string) []string {
	var steps []string
	var cur strings.Builder
	flush := func() {
		for line := range strings.Lines(cur.String()) {
			if line = strings.Join(strings.Fields(line), " "); line != "" {
				steps = append(steps, line)
			}
		}
		cur.Reset()
	}

	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			flush()
			return steps
		case html.TextToken:
			cur.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Li, atom.P, atom.Br, atom.Ol, atom.Ul, atom.Div:
				flush()
			}
		}
	}
}

func difficulty(minutes int) string {
	switch {
	case minutes <= 0:
		return ""
	case minutes <= 30:
		return "easy"
	case minutes <= 60:
		return "medium"
	default:
		return "hard"
	}
}
