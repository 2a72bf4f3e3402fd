package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// csvColumns is the export layout. Imports accept any subset in any order.
var csvColumns = []string{
	"name", "local_name", "ingredients", "instructions", "cooking_time",
	"difficulty", "language", "cuisine", "category", "source",
}

// ImportError reports the rows an import skipped.
type ImportError struct {
	Rows map[int]string
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("%d rows skipped", len(e.Rows))
}

// ExportCSV writes every recipe with a header row.
func (c *Catalog) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	recipes, err := c.Recipes(ctx)
	if err != nil {
		return 0, err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(append([]string{"key"}, csvColumns...)); err != nil {
		return 0, fmt.Errorf("failed to write headers: %w", err)
	}
	for _, r := range recipes {
		rec := r.record()
		row := []string{r.Key}
		for _, col := range csvColumns {
			row = append(row, rec[col])
		}
		if err := writer.Write(row); err != nil {
			return 0, fmt.Errorf("failed to write recipe %s: %w", r.Key, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, fmt.Errorf("failed to write csv: %w", err)
	}
	return len(recipes), nil
}

// ImportCSV adds one recipe per row. The first row names the columns.
// Invalid rows are skipped and reported through *ImportError; the valid
// ones are stored regardless.
func (c *Catalog) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("empty csv")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := index["name"]; !ok {
		return 0, fmt.Errorf("csv header lacks a name column")
	}

	skipped := map[int]string{}
	imported := 0
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped[line] = err.Error()
			continue
		}
		field := func(name string) string {
			if i, ok := index[name]; ok && i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}
		rec := Recipe{
			Name:         field("name"),
			LocalName:    field("local_name"),
			Ingredients:  field("ingredients"),
			Instructions: field("instructions"),
			CookingTime:  field("cooking_time"),
			Difficulty:   field("difficulty"),
			Language:     field("language"),
			Cuisine:      field("cuisine"),
			Category:     field("category"),
			Source:       field("source"),
		}
		if _, err := c.AddRecipe(ctx, rec); err != nil {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				return imported, err
			}
			skipped[line] = verr.Error()
			continue
		}
		imported++
	}

	if len(skipped) > 0 {
		return imported, &ImportError{Rows: skipped}
	}
	return imported, nil
}
