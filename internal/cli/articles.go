package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newArticlesCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "articles",
		Short: "Browse heritage food and culture articles",
	}

	var listLang, searchLang string
	list := &cobra.Command{
		Use:   "list",
		Short: "List articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return searchArticles(r, cmd, "", listLang)
		},
	}
	list.Flags().StringVar(&listLang, "language", "", "Only articles in this language (en or te)")

	search := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search articles by title or content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return searchArticles(r, cmd, strings.Join(args, " "), searchLang)
		},
	}
	search.Flags().StringVar(&searchLang, "language", "", "Only articles in this language (en or te)")

	cmd.AddCommand(list, search)
	return cmd
}

func searchArticles(r *runner, cmd *cobra.Command, query, language string) error {
	cat, err := r.svc.Catalog()
	if err != nil {
		return err
	}
	articles, err := cat.SearchArticles(cmd.Context(), query, language)
	if err != nil {
		return err
	}
	if r.flags.JSON {
		return writeJSON(cmd.OutOrStdout(), articles)
	}
	out := cmd.OutOrStdout()
	for _, a := range articles {
		fmt.Fprintf(out, "%s  %s  [%s]", a.Key, a.Title, a.Language)
		if a.Date != "" {
			fmt.Fprintf(out, "  %s", a.Date)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "%d articles\n", len(articles))
	return nil
}
