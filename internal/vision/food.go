package vision

import (
	"cmp"
	"slices"
	"strings"
)

// FoodKeywords decides whether a label names something edible.
var FoodKeywords = []string{
	"food", "ingredient", "vegetable", "fruit", "meat", "spice", "grain",
	"dairy", "herb", "oil", "rice", "wheat", "tomato", "onion", "potato",
	"carrot", "pepper", "garlic", "ginger", "chicken", "fish", "egg",
	"milk", "cheese", "yogurt", "bread", "flour", "sugar", "salt",
	"lentil", "dal", "chili", "chilli", "okra", "brinjal", "eggplant",
	"coconut", "tamarind", "curry", "paneer", "banana", "mango", "lemon",
}

// IsFoodRelated reports whether text contains a food keyword.
func IsFoodRelated(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range FoodKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Finalize keeps food items, drops case-insensitive duplicates (the first,
// most confident one wins) and sorts by descending confidence.
func Finalize(items []Ingredient) []Ingredient {
	food := make([]Ingredient, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Name) != "" && IsFoodRelated(it.Name) {
			food = append(food, it)
		}
	}
	slices.SortStableFunc(food, func(a, b Ingredient) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	return Dedupe(food)
}

// Dedupe removes later entries whose name repeats an earlier one.
func Dedupe(items []Ingredient) []Ingredient {
	seen := make(map[string]bool, len(items))
	out := make([]Ingredient, 0, len(items))
	for _, it := range items {
		key := strings.ToLower(strings.TrimSpace(it.Name))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}

// NutritionInfo is a rough per-100g profile.
type NutritionInfo struct {
	Calories  int               `json:"calories,omitempty"`
	Nutrients map[string]string `json:"nutrients,omitempty"`
	Notes     string            `json:"notes,omitempty"`
}

var nutritionTable = map[string]NutritionInfo{
	"tomato":  {Calories: 18, Nutrients: map[string]string{"vitamin_c": "high", "lycopene": "high"}},
	"onion":   {Calories: 40, Nutrients: map[string]string{"vitamin_c": "medium", "quercetin": "high"}},
	"carrot":  {Calories: 41, Nutrients: map[string]string{"vitamin_a": "very_high", "beta_carotene": "high"}},
	"potato":  {Calories: 77, Nutrients: map[string]string{"potassium": "high", "vitamin_c": "medium"}},
	"rice":    {Calories: 130, Nutrients: map[string]string{"carbohydrates": "high", "protein": "medium"}},
	"chicken": {Calories: 165, Nutrients: map[string]string{"protein": "very_high", "vitamin_b6": "high"}},
}

// Nutrition returns basic nutrition data for an ingredient. Unknown
// ingredients get a note instead of numbers.
func Nutrition(name string) (NutritionInfo, bool) {
	info, ok := nutritionTable[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return NutritionInfo{Notes: "Nutrition data not available"}, false
	}
	return info, true
}
