package cli

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"codeberg.org/snonux/sahachari/internal/catalog"
	"codeberg.org/snonux/sahachari/internal/recipe"
)

func newRecipesCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recipes",
		Aliases: []string{"recipe"},
		Short:   "Generate, suggest and manage recipes",
	}
	cmd.AddCommand(
		newRecipesGenerateCommand(r),
		newRecipesSuggestCommand(r),
		newRecipesListCommand(r),
		newRecipesSearchCommand(r),
		newRecipesAddCommand(r),
		newRecipesDeleteCommand(r),
		newRecipesImportCommand(r),
		newRecipesExportCommand(r),
		newRecipesStatsCommand(r),
	)
	return cmd
}

func newRecipesGenerateCommand(r *runner) *cobra.Command {
	f := &recipeFlags{}
	cmd := &cobra.Command{
		Use:   "generate [ingredients...]",
		Short: "Generate recipes from ingredients or a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := r.svc.Recipes()
			if err != nil {
				return err
			}
			res := svc.Generate(cmd.Context(), recipe.Request{
				Ingredients: splitList(args),
				Category:    f.Category,
				Count:       f.Count,
			})
			if err := render(r, cmd, res, printGenerated); err != nil {
				return err
			}
			if !f.Save {
				return nil
			}

			cat, err := r.svc.Catalog()
			if err != nil {
				return err
			}
			for _, g := range res.Payload {
				saved, err := cat.SaveGenerated(cmd.Context(), g)
				if err != nil {
					return fmt.Errorf("failed to save %q: %w", g.Name, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "saved %s as %s\n", saved.Name, saved.Key)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.Category, "category", "c", "", "Recipe category: traditional, healthy, fusion, quick")
	cmd.Flags().IntVarP(&f.Count, "count", "n", 0, "Number of recipes (default 1, at most 5)")
	cmd.Flags().BoolVar(&f.Save, "save", false, "Store the generated recipes in the catalog")
	return cmd
}

func newRecipesSuggestCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <ingredients...>",
		Short: "Suggest dish names for ingredients",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := r.svc.Recipes()
			if err != nil {
				return err
			}
			suggestions := svc.Suggest(splitList(args))
			if r.flags.JSON {
				return writeJSON(cmd.OutOrStdout(), map[string][]string{"suggestions": suggestions})
			}
			if len(suggestions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No suggestions")
			}
			for _, s := range suggestions {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}

func newRecipesListCommand(r *runner) *cobra.Command {
	var language string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return searchRecipes(r, cmd, "", language)
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "Only recipes in this language (en or te)")
	return cmd
}

func newRecipesSearchCommand(r *runner) *cobra.Command {
	var language string
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search stored recipes by name, ingredients or cuisine",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return searchRecipes(r, cmd, strings.Join(args, " "), language)
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "Only recipes in this language (en or te)")
	return cmd
}

func searchRecipes(r *runner, cmd *cobra.Command, query, language string) error {
	cat, err := r.svc.Catalog()
	if err != nil {
		return err
	}
	recipes, err := cat.SearchRecipes(cmd.Context(), query, language)
	if err != nil {
		return err
	}
	if r.flags.JSON {
		return writeJSON(cmd.OutOrStdout(), recipes)
	}
	printStored(cmd.OutOrStdout(), recipes)
	return nil
}

func newRecipesAddCommand(r *runner) *cobra.Command {
	var rec catalog.Recipe
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a recipe to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := r.svc.Catalog()
			if err != nil {
				return err
			}
			added, err := cat.AddRecipe(cmd.Context(), rec)
			if err != nil {
				return err
			}
			if r.flags.JSON {
				return writeJSON(cmd.OutOrStdout(), added)
			}
			fmt.Fprintln(cmd.OutOrStdout(), added.Key)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&rec.Name, "name", "", "Recipe name")
	fl.StringVar(&rec.LocalName, "local-name", "", "Name in Telugu")
	fl.StringVar(&rec.Ingredients, "ingredients", "", "Ingredients")
	fl.StringVar(&rec.Instructions, "instructions", "", "Instructions")
	fl.StringVar(&rec.CookingTime, "cooking-time", "", "Cooking time, e.g. \"30 minutes\"")
	fl.StringVar(&rec.Difficulty, "difficulty", "", "easy, medium or hard")
	fl.StringVar(&rec.Language, "language", "en", "Language of the recipe (en or te)")
	fl.StringVar(&rec.Cuisine, "cuisine", "", "Cuisine")
	fl.StringVar(&rec.Category, "category", "", "Category")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newRecipesDeleteCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a stored recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := r.svc.Catalog()
			if err != nil {
				return err
			}
			if _, err := cat.Recipe(cmd.Context(), args[0]); err != nil {
				if catalog.IsNotFound(err) {
					return fmt.Errorf("no recipe with key %s", args[0])
				}
				return err
			}
			if err := cat.DeleteRecipe(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newRecipesImportCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import recipes from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := r.svc.Catalog()
			if err != nil {
				return err
			}
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer file.Close()

			n, err := cat.ImportCSV(cmd.Context(), file)
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d recipes\n", n)

			var ierr *catalog.ImportError
			if errors.As(err, &ierr) {
				for _, line := range slices.Sorted(maps.Keys(ierr.Rows)) {
					fmt.Fprintf(cmd.ErrOrStderr(), "row %d: %s\n", line, ierr.Rows[line])
				}
			}
			return err
		},
	}
}

func newRecipesExportCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file.csv]",
		Short: "Export stored recipes as CSV (stdout by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := r.svc.Catalog()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				file, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", args[0], err)
				}
				defer file.Close()
				out = file
			}
			n, err := cat.ExportCSV(cmd.Context(), out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d recipes\n", n)
			return nil
		},
	}
}

func newRecipesStatsCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count stored recipes by language, cuisine, difficulty and category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := r.svc.Catalog()
			if err != nil {
				return err
			}
			st, err := cat.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if r.flags.JSON {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total: %d\n", st.Total)
			printCounts(out, "Languages", st.Languages)
			printCounts(out, "Cuisines", st.Cuisines)
			printCounts(out, "Difficulties", st.Difficulties)
			printCounts(out, "Categories", st.Categories)
			return nil
		},
	}
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range slices.Sorted(maps.Keys(counts)) {
		fmt.Fprintf(w, "  %-24s %d\n", k, counts[k])
	}
}

// splitList accepts "a b", "a,b" and "a, b" alike.
func splitList(args []string) []string {
	var out []string
	for _, a := range args {
		for part := range strings.SplitSeq(a, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
