package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"codeberg.org/snonux/sahachari/internal/fallback"
	"codeberg.org/snonux/sahachari/internal/translation"
)

func newTranslateCommand(r *runner) *cobra.Command {
	f := &translateFlags{}
	cmd := &cobra.Command{
		Use:   "translate [text...]",
		Short: "Translate text between Telugu, English and the other supported languages",
		Long: `Translate text. The source language is detected when --from is empty.

With --batch, every line of the file is one entry:
  ఉప్పు          translate into --to
  ఉప్పు = salt   already translated, kept as is
  = salt         translate back into --from`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := r.svc.Translation()
			if err != nil {
				return err
			}
			if f.BatchFile != "" {
				return runBatch(cmd, svc, f)
			}
			if len(args) == 0 {
				return errors.New("nothing to translate")
			}
			res := svc.Translate(cmd.Context(), translation.Request{
				Text:   strings.Join(args, " "),
				Source: f.From,
				Target: f.To,
			})
			return render(r, cmd, res, func(w io.Writer, t translation.Translation) {
				fmt.Fprintln(w, t.Text)
			})
		},
	}
	cmd.Flags().StringVar(&f.From, "from", "", "Source language (default: detect)")
	cmd.Flags().StringVar(&f.To, "to", "en", "Target language")
	cmd.Flags().StringVar(&f.BatchFile, "batch", "", "Translate entries from file (one per line)")
	cmd.Flags().StringVarP(&f.Output, "output", "o", "", "Write batch results to file instead of stdout")
	return cmd
}

func newDetectCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "detect <text...>",
		Short: "Detect the language of text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := r.svc.Translation()
			if err != nil {
				return err
			}
			res := svc.Detect(cmd.Context(), strings.Join(args, " "))
			return render(r, cmd, res, func(w io.Writer, d translation.Detection) {
				fmt.Fprintf(w, "%s (%.0f%%)\n", d.Language, d.Confidence*100)
			})
		},
	}
}

// runBatch translates the entries of a batch file and prints them in the
// batch file format, so the output can be fed back in.
func runBatch(cmd *cobra.Command, svc *translation.Service, f *translateFlags) error {
	entries, err := translation.ReadBatchFile(f.BatchFile)
	if err != nil {
		return err
	}

	forward, reverse := splitBatch(entries)
	ctx := cmd.Context()
	apply(ctx, svc, entries, forward, f.From, f.To, func(e *translation.BatchEntry, text string) { e.Translation = text })
	apply(ctx, svc, entries, reverse, f.To, f.From, func(e *translation.BatchEntry, text string) { e.Text = text })

	out := cmd.OutOrStdout()
	if f.Output != "" {
		file, err := os.Create(f.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	failed := 0
	for _, e := range entries {
		if e.NeedsTranslation() {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "Error translating '%s%s'\n", e.Text, e.Translation)
			continue
		}
		fmt.Fprintf(out, "%s = %s\n", e.Text, e.Translation)
	}
	translated := len(forward) + len(reverse) - failed

	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "\n=== Batch Translation Summary ===\n")
	fmt.Fprintf(errOut, "Total entries: %d\n", len(entries))
	fmt.Fprintf(errOut, "Translated: %d\n", translated)
	fmt.Fprintf(errOut, "Already complete: %d\n", len(entries)-len(forward)-len(reverse))
	if failed > 0 {
		fmt.Fprintf(errOut, "Errors: %d\n", failed)
	}
	fmt.Fprintf(errOut, "=================================\n")

	if failed > 0 {
		return fmt.Errorf("%d of %d entries could not be translated", failed, len(entries))
	}
	return nil
}

// splitBatch returns the indexes of entries to translate forward and back.
func splitBatch(entries []translation.BatchEntry) (forward, reverse []int) {
	for i, e := range entries {
		switch {
		case !e.NeedsTranslation():
		case e.Reverse:
			reverse = append(reverse, i)
		default:
			forward = append(forward, i)
		}
	}
	return forward, reverse
}

func apply(ctx context.Context, svc *translation.Service, entries []translation.BatchEntry, idx []int,
	source, target string, set func(*translation.BatchEntry, string)) {
	if len(idx) == 0 {
		return
	}
	texts := make([]string, len(idx))
	for i, j := range idx {
		if entries[j].Reverse {
			texts[i] = entries[j].Translation
		} else {
			texts[i] = entries[j].Text
		}
	}
	for i, res := range svc.TranslateBatch(ctx, texts, source, target) {
		if res.Outcome != fallback.OutcomeFailure {
			set(&entries[idx[i]], res.Payload.Text)
		}
	}
}
