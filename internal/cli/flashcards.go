package cli

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"codeberg.org/snonux/sahachari/internal/flashcards"
	"codeberg.org/snonux/sahachari/internal/translation"
)

type flashcardFlags struct {
	Output  string
	Deck    string
	CSV     bool
	NoAudio bool
	Slow    bool
}

func newFlashcardsCommand(r *runner) *cobra.Command {
	f := &flashcardFlags{}
	cmd := &cobra.Command{
		Use:   "flashcards <batch file>",
		Short: "Build an Anki deck from Telugu and English vocabulary",
		Long: `Build an Anki deck. The batch file uses the translate --batch format with
Telugu on the left and English on the right; missing sides are translated
and every card gets the Telugu word spoken aloud.

With --csv the deck is written as a CSV file for Anki's text import and the
audio files go to collection.media next to it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := translation.ReadBatchFile(args[0])
			if err != nil {
				return err
			}
			tr, err := r.svc.Translation()
			if err != nil {
				return err
			}
			opts := flashcards.BuildOptions{
				Name:       f.Deck,
				Translator: tr,
				Slow:       f.Slow,
				Logger:     r.svc.Logger(),
			}
			if !f.NoAudio {
				sp, err := r.svc.Speech()
				if err != nil {
					return err
				}
				opts.Speaker = sp
			}
			if opts.Name == "" {
				opts.Name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			deck, report := flashcards.Build(cmd.Context(), entries, opts)
			if report.Cards == 0 {
				return fmt.Errorf("no cards to write")
			}

			out := f.Output
			if out == "" {
				out = opts.Name + ".apkg"
				if f.CSV {
					out = opts.Name + ".csv"
				}
			}
			if err := writeDeck(cmd, deck, out, f.CSV); err != nil {
				return err
			}

			if r.flags.JSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			errOut := cmd.ErrOrStderr()
			fmt.Fprintf(errOut, "%d cards, %d with audio, %d translated\n", report.Cards, report.WithAudio, report.Translated)
			for _, i := range slices.Sorted(maps.Keys(report.Skipped)) {
				fmt.Fprintf(errOut, "skipped entry %d: %s\n", i+1, report.Skipped[i])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.Output, "output", "o", "", "Output file (default: <batch name>.apkg)")
	cmd.Flags().StringVar(&f.Deck, "deck", "", "Deck name (default: batch file name)")
	cmd.Flags().BoolVar(&f.CSV, "csv", false, "Write CSV plus a media folder instead of .apkg")
	cmd.Flags().BoolVar(&f.NoAudio, "no-audio", false, "Skip speech synthesis")
	cmd.Flags().BoolVar(&f.Slow, "slow", false, "Speak slowly for learners")
	return cmd
}

func writeDeck(cmd *cobra.Command, deck *flashcards.Deck, out string, csv bool) error {
	if !csv {
		return deck.WriteAPKG(cmd.Context(), out)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	defer file.Close()
	if err := deck.WriteCSV(file, true); err != nil {
		return err
	}
	_, err = deck.WriteMedia(filepath.Join(filepath.Dir(out), "collection.media"))
	return err
}
