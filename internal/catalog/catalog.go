// Package catalog keeps the user's recipes and the heritage newspaper
// articles on top of the storage layer.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"codeberg.org/snonux/sahachari/internal"
	"codeberg.org/snonux/sahachari/internal/logging"
	"codeberg.org/snonux/sahachari/internal/recipe"
	"codeberg.org/snonux/sahachari/internal/storage"
	"codeberg.org/snonux/sahachari/internal/translation"
)

// Collection names.
const (
	Recipes  = "recipes"
	Articles = "articles"
)

// timeUnits are accepted in a cooking time, in English and Telugu.
var timeUnits = []string{"minute", "hour", "min", "hr", "నిమిష", "గంట"}

// Recipe is a stored recipe. Ingredients and instructions are free text.
type Recipe struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	LocalName    string `json:"local_name,omitempty"`
	Ingredients  string `json:"ingredients"`
	Instructions string `json:"instructions"`
	CookingTime  string `json:"cooking_time,omitempty"`
	Difficulty   string `json:"difficulty,omitempty"`
	Language     string `json:"language"`
	Cuisine      string `json:"cuisine,omitempty"`
	Category     string `json:"category,omitempty"`
	Source       string `json:"source,omitempty"`
	Created      string `json:"created,omitempty"`
}

func (r Recipe) record() storage.Record {
	return cleanRecord(storage.Record{
		"name":         r.Name,
		"local_name":   r.LocalName,
		"ingredients":  r.Ingredients,
		"instructions": r.Instructions,
		"cooking_time": r.CookingTime,
		"difficulty":   r.Difficulty,
		"language":     r.Language,
		"cuisine":      r.Cuisine,
		"category":     r.Category,
		"source":       r.Source,
		"created":      r.Created,
	})
}

func cleanRecord(r storage.Record) storage.Record {
	for k, v := range r {
		r[k] = storage.CleanText(v)
	}
	return r
}

func recipeFrom(e storage.Entry) Recipe {
	rec := e.Record
	return Recipe{
		Key:          e.Key,
		Name:         rec["name"],
		LocalName:    rec["local_name"],
		Ingredients:  rec["ingredients"],
		Instructions: rec["instructions"],
		CookingTime:  rec["cooking_time"],
		Difficulty:   rec["difficulty"],
		Language:     rec["language"],
		Cuisine:      rec["cuisine"],
		Category:     rec["category"],
		Source:       rec["source"],
		Created:      rec["created"],
	}
}

// ValidationError lists everything wrong with a recipe.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid recipe: " + strings.Join(e.Problems, "; ")
}

// Validate reports missing fields and malformed values.
func Validate(r Recipe) []string {
	var problems []string
	for _, f := range []struct{ name, value string }{
		{"name", r.Name},
		{"ingredients", r.Ingredients},
		{"instructions", r.Instructions},
	} {
		if strings.TrimSpace(f.value) == "" {
			problems = append(problems, "missing required field: "+f.name)
		}
	}
	if ct := strings.ToLower(r.CookingTime); ct != "" &&
		!slices.ContainsFunc(timeUnits, func(u string) bool { return strings.Contains(ct, u) }) {
		problems = append(problems, "cooking time should include time units")
	}
	if r.Language != "" {
		if _, err := NormalizeLanguage(r.Language); err != nil {
			problems = append(problems, err.Error())
		}
	}
	return problems
}

// NormalizeLanguage accepts language codes and the English names used by
// older exports, such as "telugu".
func NormalizeLanguage(lang string) (string, error) {
	l := strings.ToLower(strings.TrimSpace(lang))
	for _, sl := range translation.SupportedLanguages() {
		if l == strings.ToLower(sl.Name) || l == sl.Native {
			return sl.Code, nil
		}
	}
	return translation.NormalizeLanguage(lang)
}

// Stats summarises the recipe collection.
type Stats struct {
	Total        int            `json:"total"`
	Languages    map[string]int `json:"languages"`
	Cuisines     map[string]int `json:"cuisines"`
	Difficulties map[string]int `json:"difficulties"`
	Categories   map[string]int `json:"categories"`
}

// Catalog reads and writes recipes and articles.
type Catalog struct {
	store  storage.Store
	logger *zap.Logger
	now    func() time.Time
}

// New creates a catalog over store.
func New(store storage.Store, logger *zap.Logger) *Catalog {
	return &Catalog{store: store, logger: logging.OrNop(logger), now: time.Now}
}

// Recipes returns every recipe ordered by key.
func (c *Catalog) Recipes(ctx context.Context) ([]Recipe, error) {
	return c.SearchRecipes(ctx, "", "")
}

// SearchRecipes finds recipes whose name, ingredients, instructions or
// cuisine contain query. A non-empty language restricts the result.
func (c *Catalog) SearchRecipes(ctx context.Context, query, language string) ([]Recipe, error) {
	filters := []storage.Filter{
		storage.Contains(query, "name", "local_name", "ingredients", "instructions", "cuisine"),
	}
	if language != "" {
		code, err := NormalizeLanguage(language)
		if err != nil {
			return nil, err
		}
		filters = append(filters, storage.FieldEquals("language", code))
	}

	var out []Recipe
	for e, err := range c.store.List(ctx, Recipes, storage.All(filters...)) {
		if err != nil {
			return nil, err
		}
		out = append(out, recipeFrom(e))
	}
	return out, nil
}

// Recipe returns one recipe. The error wraps storage.ErrNotFound for
// unknown keys.
func (c *Catalog) Recipe(ctx context.Context, key string) (Recipe, error) {
	rec, err := c.store.Get(ctx, Recipes, key)
	if err != nil {
		return Recipe{}, err
	}
	return recipeFrom(storage.Entry{Key: key, Record: rec}), nil
}

// AddRecipe validates and stores r under a new key.
func (c *Catalog) AddRecipe(ctx context.Context, r Recipe) (Recipe, error) {
	if problems := Validate(r); len(problems) > 0 {
		return Recipe{}, &ValidationError{Problems: problems}
	}
	if r.Language == "" {
		r.Language = "en"
	}
	r.Language, _ = NormalizeLanguage(r.Language)
	r.Key = internal.NewRecordKey("")
	if r.Created == "" {
		r.Created = c.now().UTC().Format(time.RFC3339)
	}
	rec := r.record()
	if err := c.store.Put(ctx, Recipes, r.Key, rec); err != nil {
		return Recipe{}, err
	}
	c.logger.Debug("recipe added", zap.String("key", r.Key), zap.String("name", r.Name))
	return recipeFrom(storage.Entry{Key: r.Key, Record: rec}), nil
}

// UpdateRecipe merges the non-empty fields of patch into the stored recipe.
func (c *Catalog) UpdateRecipe(ctx context.Context, key string, patch Recipe) (Recipe, error) {
	current, err := c.store.Get(ctx, Recipes, key)
	if err != nil {
		return Recipe{}, err
	}
	current = current.Clone()
	for k, v := range patch.record() {
		if v != "" {
			current[k] = v
		}
	}
	updated := recipeFrom(storage.Entry{Key: key, Record: current})
	if problems := Validate(updated); len(problems) > 0 {
		return Recipe{}, &ValidationError{Problems: problems}
	}
	updated.Language, _ = NormalizeLanguage(updated.Language)
	if err := c.store.Put(ctx, Recipes, key, updated.record()); err != nil {
		return Recipe{}, err
	}
	return updated, nil
}

// DeleteRecipe removes a recipe. Unknown keys are not an error.
func (c *Catalog) DeleteRecipe(ctx context.Context, key string) error {
	return c.store.Delete(ctx, Recipes, key)
}

// SaveGenerated stores a recipe produced by the recipe service.
func (c *Catalog) SaveGenerated(ctx context.Context, g recipe.Recipe) (Recipe, error) {
	return c.AddRecipe(ctx, FromGenerated(g))
}

// FromGenerated converts a generated recipe into the stored form.
func FromGenerated(g recipe.Recipe) Recipe {
	var steps []string
	for i, s := range g.Instructions {
		steps = append(steps, fmt.Sprintf("%d. %s", i+1, s))
	}
	return Recipe{
		Name:         g.Name,
		LocalName:    g.LocalName,
		Ingredients:  strings.Join(g.Ingredients, ", "),
		Instructions: strings.Join(steps, " "),
		CookingTime:  g.CookingTime,
		Difficulty:   g.Difficulty,
		Language:     "en",
		Category:     g.Category,
		Source:       g.Source,
	}
}

// Stats counts recipes per language, cuisine, difficulty and category.
// Missing values count as "unknown".
func (c *Catalog) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		Languages:    map[string]int{},
		Cuisines:     map[string]int{},
		Difficulties: map[string]int{},
		Categories:   map[string]int{},
	}
	recipes, err := c.Recipes(ctx)
	if err != nil {
		return st, err
	}
	count := func(m map[string]int, v string) {
		if v == "" {
			v = "unknown"
		}
		m[v]++
	}
	for _, r := range recipes {
		st.Total++
		count(st.Languages, r.Language)
		count(st.Cuisines, r.Cuisine)
		count(st.Difficulties, r.Difficulty)
		count(st.Categories, r.Category)
	}
	return st, nil
}

// IsNotFound reports whether err is a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
