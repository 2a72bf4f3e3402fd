package vision

import (
	"cmp"
	"context"
	"image"
	"image/color"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/image/draw"

	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
	"codeberg.org/snonux/sahachari/internal/translation"
)

const (
	keywordConfidence = 0.6
	colorConfidence   = 0.5
	maxHeuristic      = 5
	// sampleSide is the thumbnail size colours are counted on.
	sampleSide = 64
	// minColorShare drops palette colours covering less of the image.
	minColorShare = 0.1
	maxColors     = 3
)

// HeuristicWarning is attached to every heuristic result.
const HeuristicWarning = "heuristic analysis from file name, caption and colours; results may be inaccurate"

// ingredientNames are matched as whole words in file names and captions.
var ingredientNames = []string{
	"tomato", "onion", "potato", "carrot", "garlic", "ginger", "chicken",
	"fish", "egg", "milk", "cheese", "yogurt", "curd", "bread", "flour",
	"sugar", "salt", "rice", "wheat", "lentil", "dal", "chili", "green chili",
	"okra", "brinjal", "eggplant", "spinach", "cucumber", "coconut",
	"tamarind", "paneer", "banana", "mango", "lemon", "pepper", "mushroom",
	"corn", "pumpkin", "peanut", "turmeric", "coriander", "cumin",
}

type paletteEntry struct {
	c     color.RGBA
	names []string
}

// palette maps reference colours to the ingredients they suggest.
var palette = []paletteEntry{
	{color.RGBA{255, 0, 0, 255}, []string{"tomato", "red pepper", "strawberry"}},
	{color.RGBA{200, 0, 0, 255}, []string{"tomato", "red chili"}},
	{color.RGBA{0, 255, 0, 255}, []string{"lettuce", "spinach", "green pepper"}},
	{color.RGBA{0, 128, 0, 255}, []string{"broccoli", "green beans", "cucumber"}},
	{color.RGBA{255, 165, 0, 255}, []string{"carrot", "orange", "pumpkin"}},
	{color.RGBA{255, 140, 0, 255}, []string{"carrot", "sweet potato"}},
	{color.RGBA{255, 255, 0, 255}, []string{"corn", "banana", "lemon"}},
	{color.RGBA{255, 215, 0, 255}, []string{"corn", "squash"}},
	{color.RGBA{139, 69, 19, 255}, []string{"potato", "onion", "mushroom"}},
	{color.RGBA{160, 82, 45, 255}, []string{"bread", "wheat", "rice"}},
	{color.RGBA{255, 255, 255, 255}, []string{"rice", "flour", "milk", "egg"}},
}

// heuristics is the fallback tier. It needs no network.
type heuristics struct{}

func (heuristics) Name() string { return config.ProviderHeuristics }

func (heuristics) Tier() fallback.Tier { return fallback.TierFallback }

func (heuristics) Available() error { return nil }

func (heuristics) Attempt(_ context.Context, p photo) (fallback.Reply[[]Ingredient], error) {
	base := strings.TrimSuffix(filepath.Base(p.filename), filepath.Ext(p.filename))
	items := KeywordHits(base + " " + p.caption)
	for _, name := range ColorHints(p.img) {
		items = append(items, Ingredient{Name: name, Confidence: colorConfidence, Source: SourceColor})
	}
	items = Dedupe(items)
	if len(items) > maxHeuristic {
		items = items[:maxHeuristic]
	}
	return fallback.Warn(items, HeuristicWarning), nil
}

// KeywordHits finds ingredient names in free text such as a file name or a
// caption. Indic words are looked up in the glossary first.
func KeywordHits(text string) []Ingredient {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.Is(unicode.Mn, r) && !unicode.Is(unicode.Mc, r)
	})

	english := make([]string, 0, len(words))
	for _, w := range words {
		english = append(english, toEnglish(w))
	}
	padded := " " + strings.ToLower(strings.Join(english, " ")) + " "

	var out []Ingredient
	for _, name := range ingredientNames {
		if strings.Contains(padded, " "+name+" ") || strings.Contains(padded, " "+name+"s ") ||
			strings.Contains(padded, " "+name+"es ") {
			out = append(out, Ingredient{Name: name, Confidence: keywordConfidence, Source: SourceKeyword})
		}
	}
	return out
}

func toEnglish(word string) string {
	glossary := translation.DefaultGlossary()
	for _, lang := range translation.Supported {
		if lang == "en" || !translation.HasScript(word, lang) {
			continue
		}
		if v, ok := glossary.Lookup(lang, "en", word); ok {
			return v
		}
		return word
	}
	return word
}

// ColorHints suggests ingredients from the dominant colours of img.
func ColorHints(img image.Image) []string {
	if img == nil || img.Bounds().Empty() {
		return nil
	}
	thumb := image.NewRGBA(image.Rect(0, 0, sampleSide, sampleSide))
	draw.ApproxBiLinear.Scale(thumb, thumb.Bounds(), img, img.Bounds(), draw.Src, nil)

	counts := make([]int, len(palette))
	for y := range sampleSide {
		for x := range sampleSide {
			counts[nearest(thumb.RGBAAt(x, y))]++
		}
	}

	order := make([]int, len(palette))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(counts[b], counts[a]) })

	var names []string
	total := float64(sampleSide * sampleSide)
	for _, i := range order[:maxColors] {
		if float64(counts[i])/total < minColorShare {
			break
		}
		names = append(names, palette[i].names...)
	}
	return names
}

func nearest(c color.RGBA) int {
	best, bestDist := 0, -1
	for i, p := range palette {
		dr := int(c.R) - int(p.c.R)
		dg := int(c.G) - int(p.c.G)
		db := int(c.B) - int(p.c.B)
		if d := dr*dr + dg*dg + db*db; bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
