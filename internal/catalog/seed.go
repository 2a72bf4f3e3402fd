package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

//go:embed seed.json
var seedData []byte

// SeedResult counts what Seed stored.
type SeedResult struct {
	Recipes  int `json:"recipes"`
	Articles int `json:"articles"`
}

type seedFile struct {
	Recipes  []Recipe  `json:"recipes"`
	Articles []Article `json:"articles"`
}

// Seed stores the bundled English and Telugu sample recipes and articles.
// A collection that already holds records is left alone unless force is set.
func (c *Catalog) Seed(ctx context.Context, force bool) (SeedResult, error) {
	var data seedFile
	if err := json.Unmarshal(seedData, &data); err != nil {
		return SeedResult{}, fmt.Errorf("failed to parse seed data: %w", err)
	}

	var res SeedResult
	if force || c.empty(ctx, Recipes) {
		for _, r := range data.Recipes {
			if _, err := c.AddRecipe(ctx, r); err != nil {
				return res, fmt.Errorf("failed to seed recipe %q: %w", r.Name, err)
			}
			res.Recipes++
		}
	}
	if force || c.empty(ctx, Articles) {
		for _, a := range data.Articles {
			if _, err := c.AddArticle(ctx, a); err != nil {
				return res, fmt.Errorf("failed to seed article %q: %w", a.Title, err)
			}
			res.Articles++
		}
	}
	c.logger.Info("catalog seeded", zap.Int("recipes", res.Recipes), zap.Int("articles", res.Articles))
	return res, nil
}

func (c *Catalog) empty(ctx context.Context, collection string) bool {
	for _, err := range c.store.List(ctx, collection, nil) {
		return err != nil
	}
	return true
}
