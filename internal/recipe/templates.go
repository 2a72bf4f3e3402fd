package recipe

import (
	"cmp"
	"context"
	_ "embed"
	"fmt"
	"hash/fnv"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
	"codeberg.org/snonux/sahachari/internal/translation"
)

const (
	// minTemplateCoverage is the share of required ingredients a template
	// needs before it is offered.
	minTemplateCoverage = 0.6
	// minSuggestCoverage is the same threshold for Suggest.
	minSuggestCoverage = 0.5
	maxSuggestions     = 5
	variantIngredients = 5
)

// GenericWarning is attached when no template matched the ingredients.
const GenericWarning = "no known recipe matches these ingredients; showing a generic recipe"

//go:embed templates.yaml
var embeddedBook []byte

// Template is a recipe skeleton. Required entries may name an ingredient
// class such as "vegetables".
type Template struct {
	Name         string   `yaml:"name"`
	Category     string   `yaml:"category"`
	Required     []string `yaml:"required"`
	Optional     []string `yaml:"optional"`
	Instructions []string `yaml:"instructions"`
	CookingTime  string   `yaml:"cooking_time"`
	Servings     int      `yaml:"servings"`
	Difficulty   string   `yaml:"difficulty"`
}

// Variant describes how category-only requests are answered.
type Variant struct {
	Names        []string `yaml:"names"`
	Pool         []string `yaml:"pool"`
	Techniques   []string `yaml:"techniques"`
	Instructions []string `yaml:"instructions"`
	CookingTime  string   `yaml:"cooking_time"`
	Difficulty   string   `yaml:"difficulty"`
	Notes        string   `yaml:"notes"`
}

// Book is the offline recipe collection.
type Book struct {
	Classes   map[string][]string `yaml:"classes"`
	Templates []Template          `yaml:"templates"`
	Dishes    []Recipe            `yaml:"dishes"`
	Variants  map[string]Variant  `yaml:"variants"`
}

// LoadBook parses a YAML recipe book.
func LoadBook(data []byte) (*Book, error) {
	var b Book
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse recipe book: %w", err)
	}
	for cat := range b.Variants {
		if !slices.Contains(Categories, cat) {
			return nil, fmt.Errorf("recipe book: unknown variant category %q", cat)
		}
	}
	for _, d := range b.Dishes {
		if d.Name == "" || len(d.Ingredients) == 0 {
			return nil, fmt.Errorf("recipe book: dish %q needs a name and ingredients", d.Name)
		}
	}
	return &b, nil
}

var defaultBook = sync.OnceValue(func() *Book {
	b, err := LoadBook(embeddedBook)
	if err != nil {
		panic(err)
	}
	return b
})

// DefaultBook returns the embedded recipe book.
func DefaultBook() *Book {
	return defaultBook()
}

// ingredient is a user supplied ingredient and its English lower-case form.
type ingredient struct {
	text  string
	canon string
}

func canonical(items []string) []ingredient {
	glossary := translation.DefaultGlossary()
	out := make([]ingredient, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		canon := strings.ToLower(it)
		for _, lang := range translation.Supported {
			if lang == "en" || !translation.HasScript(it, lang) {
				continue
			}
			if v, ok := glossary.Lookup(lang, "en", it); ok {
				canon = strings.ToLower(v)
			}
			break
		}
		out = append(out, ingredient{text: it, canon: canon})
	}
	return out
}

func overlaps(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// direct returns the first unused supplied ingredient naming want.
func direct(want string, have []ingredient, used map[string]bool) (ingredient, bool) {
	want = strings.ToLower(want)
	for _, h := range have {
		if !used[h.text] && overlaps(h.canon, want) {
			return h, true
		}
	}
	return ingredient{}, false
}

// byClass returns the first unused supplied ingredient belonging to the
// class want, falling back to used ones.
func (b *Book) byClass(want string, have []ingredient, used map[string]bool) (ingredient, bool) {
	members := b.Classes[strings.ToLower(want)]
	for _, skipUsed := range []bool{true, false} {
		for _, member := range members {
			for _, h := range have {
				if skipUsed && used[h.text] {
					continue
				}
				if overlaps(h.canon, member) {
					return h, true
				}
			}
		}
	}
	return ingredient{}, false
}

func (b *Book) find(want string, have []ingredient) bool {
	if _, ok := direct(want, have, nil); ok {
		return true
	}
	_, ok := b.byClass(want, have, nil)
	return ok
}

type match struct {
	recipe   Recipe
	coverage float64
}

// Match returns the templates and dishes covered by ingredients, best
// first. An empty category matches all of them.
func (b *Book) Match(ingredients []string, category string) []Recipe {
	have := canonical(ingredients)
	if len(have) == 0 {
		return nil
	}

	var found []match
	for _, t := range b.Templates {
		if category != "" && t.Category != category {
			continue
		}
		if m, ok := b.fromTemplate(t, have); ok {
			found = append(found, m)
		}
	}
	for _, d := range b.Dishes {
		if category != "" && d.Category != category {
			continue
		}
		if m, ok := b.fromDish(d, have); ok {
			found = append(found, m)
		}
	}

	slices.SortStableFunc(found, func(x, y match) int { return cmp.Compare(y.coverage, x.coverage) })
	out := make([]Recipe, 0, len(found))
	for _, m := range found {
		out = append(out, m.recipe)
	}
	return out
}

func (b *Book) fromTemplate(t Template, have []ingredient) (match, bool) {
	if len(t.Required) == 0 {
		return match{}, false
	}
	r := Recipe{
		Name:         t.Name,
		Category:     t.Category,
		Instructions: slices.Clone(t.Instructions),
		CookingTime:  t.CookingTime,
		Servings:     t.Servings,
		Difficulty:   t.Difficulty,
		Source:       config.ProviderTemplates,
	}
	// Named ingredients are resolved first so classes take what is left.
	picked := make([]string, len(t.Required))
	used := map[string]bool{}
	for i, req := range t.Required {
		if h, ok := direct(req, have, used); ok {
			picked[i] = h.text
			used[h.text] = true
		}
	}
	hits := 0
	for i, req := range t.Required {
		if picked[i] == "" {
			h, ok := b.byClass(req, have, used)
			if !ok {
				r.Ingredients = append(r.Ingredients, req)
				continue
			}
			picked[i] = h.text
			used[h.text] = true
		}
		hits++
		r.Ingredients = append(r.Ingredients, picked[i])
	}
	for _, opt := range t.Optional {
		if h, ok := direct(opt, have, used); ok {
			used[h.text] = true
			r.Ingredients = append(r.Ingredients, h.text)
		}
	}
	coverage := float64(hits) / float64(len(t.Required))
	return match{recipe: r, coverage: coverage}, coverage >= minTemplateCoverage
}

func (b *Book) fromDish(d Recipe, have []ingredient) (match, bool) {
	hits := 0
	for _, ing := range d.Ingredients {
		if b.find(ing, have) {
			hits++
		}
	}
	r := d
	r.Ingredients = slices.Clone(d.Ingredients)
	r.Instructions = slices.Clone(d.Instructions)
	r.Source = config.ProviderTemplates
	coverage := float64(hits) / float64(len(d.Ingredients))
	return match{recipe: r, coverage: coverage}, coverage >= minTemplateCoverage
}

// ForCategory returns up to count recipes of category. The choice depends
// only on the arguments.
func (b *Book) ForCategory(category string, count int) []Recipe {
	seed := requestHash(category, count)

	if category == "traditional" {
		var dishes []Recipe
		for _, d := range b.Dishes {
			if d.Category == category {
				dishes = append(dishes, d)
			}
		}
		var out []Recipe
		for i := range min(count, len(dishes)) {
			d := dishes[(seed+i)%len(dishes)]
			d.Ingredients = slices.Clone(d.Ingredients)
			d.Instructions = slices.Clone(d.Instructions)
			d.Source = config.ProviderTemplates
			out = append(out, d)
		}
		return out
	}

	v, ok := b.Variants[category]
	if !ok || len(v.Names) == 0 {
		return nil
	}
	var out []Recipe
	for i := range min(count, len(v.Names)) {
		r := Recipe{
			Name:        v.Names[(seed+i)%len(v.Names)],
			Category:    category,
			CookingTime: v.CookingTime,
			Difficulty:  v.Difficulty,
			Notes:       v.Notes,
			Source:      config.ProviderTemplates,
		}
		for j := range min(variantIngredients, len(v.Pool)) {
			r.Ingredients = append(r.Ingredients, v.Pool[(seed+2*i+j)%len(v.Pool)])
		}
		technique := "your preferred method"
		if len(v.Techniques) > 0 {
			technique = v.Techniques[(seed+i)%len(v.Techniques)]
		}
		for _, step := range v.Instructions {
			r.Instructions = append(r.Instructions, strings.ReplaceAll(step, "{technique}", technique))
		}
		out = append(out, r)
	}
	return out
}

func requestHash(parts ...any) int {
	h := fnv.New32a()
	for _, p := range parts {
		fmt.Fprint(h, p, "\x00")
	}
	return int(h.Sum32() & 0x7fffffff)
}

// Generic builds a simple recipe from any ingredients.
func Generic(ingredients []string, category string) Recipe {
	title := cases.Title(language.English)
	name := "Simple Mixed Stir-fry"
	if len(ingredients) > 0 {
		name = "Simple " + title.String(ingredients[0]) + " Stir-fry"
	}
	if category == "" {
		category = "quick"
	}
	return Recipe{
		Name:        name,
		Category:    category,
		Ingredients: append(slices.Clone(ingredients), "oil", "salt", "turmeric"),
		Instructions: []string{
			"Wash and chop the ingredients.",
			"Heat oil and add a pinch of turmeric.",
			"Add the harder ingredients first and cook until tender.",
			"Season with salt and serve hot with rice or roti.",
		},
		CookingTime: "20 minutes",
		Servings:    2,
		Difficulty:  "easy",
		Source:      config.ProviderTemplates,
	}
}

// Suggest names dishes whose ingredients are at least half covered.
func (b *Book) Suggest(ingredients []string) []string {
	have := canonical(ingredients)
	var names []string
	for _, d := range b.Dishes {
		hits := 0
		for _, h := range have {
			for _, ing := range d.Ingredients {
				if strings.Contains(strings.ToLower(ing), h.canon) {
					hits++
					break
				}
			}
		}
		if hits > 0 && float64(hits) >= float64(len(d.Ingredients))*minSuggestCoverage {
			names = append(names, d.Name)
		}
		if len(names) == maxSuggestions {
			break
		}
	}
	return names
}

// templates is the fallback tier.
type templates struct {
	book *Book
}

func (templates) Name() string { return config.ProviderTemplates }

func (templates) Tier() fallback.Tier { return fallback.TierFallback }

func (templates) Available() error { return nil }

func (t templates) Attempt(_ context.Context, req Request) (fallback.Reply[[]Recipe], error) {
	if len(req.Ingredients) == 0 {
		return fallback.OK(t.book.ForCategory(req.Category, req.Count)), nil
	}

	matched := t.book.Match(req.Ingredients, req.Category)
	if len(matched) > 0 {
		if len(matched) > req.Count {
			matched = matched[:req.Count]
		}
		return fallback.OK(matched), nil
	}
	return fallback.Warn([]Recipe{Generic(req.Ingredients, req.Category)}, GenericWarning), nil
}
