package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"codeberg.org/snonux/sahachari/internal/catalog"
	"codeberg.org/snonux/sahachari/internal/fallback"
	"codeberg.org/snonux/sahachari/internal/recipe"
)

// render prints a service result. Failures become errors carrying the
// user-facing message; warnings and provenance go to stderr.
func render[T any](r *runner, cmd *cobra.Command, res fallback.Result[T], text func(io.Writer, T)) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	if r.flags.JSON {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else if res.OK() {
		text(out, res.Payload)
	}

	if !res.OK() {
		return errors.New(res.Message())
	}
	if res.Warning != "" {
		fmt.Fprintf(errOut, "warning: %s\n", res.Warning)
	}
	if !r.flags.JSON {
		fmt.Fprintf(errOut, "(via %s, %s tier)\n", res.Provider, res.Tier)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func printGenerated(w io.Writer, recipes []recipe.Recipe) {
	for i, rec := range recipes {
		if i > 0 {
			fmt.Fprintln(w)
		}
		title := rec.Name
		if rec.LocalName != "" {
			title += " (" + rec.LocalName + ")"
		}
		fmt.Fprintf(w, "%d. %s\n", i+1, title)

		var meta []string
		for _, v := range []string{rec.Category, rec.CookingTime, rec.Difficulty} {
			if v != "" {
				meta = append(meta, v)
			}
		}
		if len(meta) > 0 {
			fmt.Fprintf(w, "   %s\n", strings.Join(meta, " | "))
		}
		fmt.Fprintf(w, "   Ingredients: %s\n", strings.Join(rec.Ingredients, ", "))
		for j, step := range rec.Instructions {
			fmt.Fprintf(w, "   %d) %s\n", j+1, step)
		}
		if rec.URL != "" {
			fmt.Fprintf(w, "   %s\n", rec.URL)
		}
	}
}

func printStored(w io.Writer, recipes []catalog.Recipe) {
	for _, rec := range recipes {
		name := rec.Name
		if rec.LocalName != "" {
			name += " (" + rec.LocalName + ")"
		}
		fmt.Fprintf(w, "%s  %s  [%s]\n", rec.Key, name, rec.Language)
	}
	fmt.Fprintf(w, "%d recipes\n", len(recipes))
}
