package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"codeberg.org/snonux/sahachari/internal/audio"
)

func newSpeakCommand(r *runner) *cobra.Command {
	f := &speakFlags{}
	cmd := &cobra.Command{
		Use:   "speak <text...>",
		Short: "Synthesize speech and save it as an audio file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := r.svc.Speech()
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			res := svc.Synthesize(cmd.Context(), audio.Request{
				Text:     text,
				Language: f.Language,
				Slow:     f.Slow,
				Voice:    f.Voice,
			})

			var saveErr error
			err = render(r, cmd, res, func(w io.Writer, s audio.Speech) {
				path, err := audio.SaveAudio(f.OutDir, text, s)
				if err != nil {
					saveErr = err
					return
				}
				fmt.Fprintln(w, path)
			})
			if err != nil {
				return err
			}
			return saveErr
		},
	}
	cmd.Flags().StringVarP(&f.Language, "lang", "l", "te", "Language of the text")
	cmd.Flags().StringVar(&f.Voice, "voice", "", "Voice name (default: chosen per language)")
	cmd.Flags().BoolVar(&f.Slow, "slow", false, "Speak slowly for learners")
	cmd.Flags().StringVarP(&f.OutDir, "out", "o", ".", "Output directory")
	return cmd
}
