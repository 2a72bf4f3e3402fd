package flashcards

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"codeberg.org/snonux/sahachari/internal/audio"
	"codeberg.org/snonux/sahachari/internal/fallback"
	"codeberg.org/snonux/sahachari/internal/logging"
	"codeberg.org/snonux/sahachari/internal/translation"
)

// speechConcurrency bounds parallel synthesis calls.
const speechConcurrency = 4

// Translator is the part of the translation service a deck build needs.
type Translator interface {
	TranslateBatch(ctx context.Context, texts []string, source, target string) []fallback.Result[translation.Translation]
}

// Speaker is the part of the speech service a deck build needs.
type Speaker interface {
	Synthesize(ctx context.Context, req audio.Request) fallback.Result[audio.Speech]
}

// BuildOptions configures Build. A nil Speaker builds cards without audio.
type BuildOptions struct {
	Name       string
	Translator Translator
	Speaker    Speaker
	Slow       bool
	Logger     *zap.Logger
}

// Report counts what happened to the batch entries.
type Report struct {
	Cards      int            `json:"cards"`
	Translated int            `json:"translated"`
	WithAudio  int            `json:"with_audio"`
	Skipped    map[int]string `json:"skipped,omitempty"`
}

// Build creates a deck from batch entries. Each entry's Text is Telugu and
// its Translation English; missing sides are translated first. Entries that
// still lack a side are skipped and listed in the report by index.
func Build(ctx context.Context, entries []translation.BatchEntry, opts BuildOptions) (*Deck, Report) {
	logger := logging.OrNop(opts.Logger)
	entries = append([]translation.BatchEntry(nil), entries...)
	report := Report{Skipped: map[int]string{}}

	var forward, reverse []int
	for i, e := range entries {
		switch {
		case !e.NeedsTranslation():
		case e.Reverse:
			reverse = append(reverse, i)
		default:
			forward = append(forward, i)
		}
	}
	report.Translated += fill(ctx, opts.Translator, entries, forward, "te", "en", report.Skipped)
	report.Translated += fill(ctx, opts.Translator, entries, reverse, "en", "te", report.Skipped)

	deck := NewDeck(opts.Name)
	for i, e := range entries {
		if _, skipped := report.Skipped[i]; skipped {
			continue
		}
		deck.Add(Card{Telugu: e.Text, English: e.Translation})
	}

	if opts.Speaker != nil {
		speak(ctx, opts.Speaker, deck.cards, opts.Slow, logger)
	}
	report.Cards, report.WithAudio = deck.Stats()
	logger.Info("deck built",
		zap.String("deck", opts.Name),
		zap.Int("cards", report.Cards),
		zap.Int("with_audio", report.WithAudio),
		zap.Int("skipped", len(report.Skipped)))
	return deck, report
}

// fill translates the entries at idx and returns how many succeeded.
func fill(ctx context.Context, tr Translator, entries []translation.BatchEntry, idx []int,
	source, target string, skipped map[int]string) int {
	if len(idx) == 0 {
		return 0
	}
	texts := make([]string, len(idx))
	for i, j := range idx {
		if entries[j].Reverse {
			texts[i] = entries[j].Translation
		} else {
			texts[i] = entries[j].Text
		}
	}

	ok := 0
	for i, res := range tr.TranslateBatch(ctx, texts, source, target) {
		j := idx[i]
		if !res.OK() {
			skipped[j] = res.Message()
			continue
		}
		if entries[j].Reverse {
			entries[j].Text = res.Payload.Text
		} else {
			entries[j].Translation = res.Payload.Text
		}
		ok++
	}
	return ok
}

// speak attaches Telugu audio to the cards. Failed syntheses leave a card
// without audio.
func speak(ctx context.Context, sp Speaker, cards []Card, slow bool, logger *zap.Logger) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(speechConcurrency)
	for i := range cards {
		g.Go(func() error {
			res := sp.Synthesize(gctx, audio.Request{Text: cards[i].Telugu, Language: "te", Slow: slow})
			if !res.OK() {
				logger.Warn("no audio for card", zap.String("text", cards[i].Telugu), zap.String("reason", res.Detail))
				return nil
			}
			cards[i].Audio = res.Payload.Audio
			cards[i].AudioFormat = res.Payload.Format
			return nil
		})
	}
	_ = g.Wait()
}
