package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"codeberg.org/snonux/sahachari/internal/archive"
)

func newDataCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Manage the data directory",
	}

	var force bool
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Store the bundled sample recipes and articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := r.svc.Catalog()
			if err != nil {
				return err
			}
			res, err := cat.Seed(cmd.Context(), force)
			if err != nil {
				return err
			}
			if r.flags.JSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d recipes and %d articles\n", res.Recipes, res.Articles)
			return nil
		},
	}
	seed.Flags().BoolVar(&force, "force", false, "Seed even when the collections already hold records")

	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Move the data directory aside and start fresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := r.svc.Config().Storage().Dir
			// Open stores hold file handles on the directory.
			if err := r.close(); err != nil {
				return err
			}
			r.svc = nil
			path, err := archive.Move(dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived data to %s\n", path)
			return nil
		},
	}

	cmd.AddCommand(seed, archiveCmd)
	return cmd
}
