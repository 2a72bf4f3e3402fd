package translation

import (
	"context"
	"fmt"

	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
)

// glossaryTranslator is the local tier. It never fails for valid input.
type glossaryTranslator struct {
	glossary *Glossary
}

func (glossaryTranslator) Name() string { return config.ProviderGlossary }

func (glossaryTranslator) Tier() fallback.Tier { return fallback.TierFallback }

func (glossaryTranslator) Available() error { return nil }

func (g glossaryTranslator) Attempt(_ context.Context, req Request) (fallback.Reply[Translation], error) {
	source := req.Source
	if source == "" {
		source, _ = detectScript(req.Text)
		if source == "" {
			source = "en"
		}
	}

	out := Translation{Source: source, Target: req.Target}
	if source == req.Target {
		out.Text = req.Text
		return fallback.OK(out), nil
	}

	text, hits, total := g.glossary.Render(source, req.Target, req.Text)
	out.Text = text
	if text == "" {
		out.Text = req.Text
	}
	if hits < total {
		action := "kept as is"
		if req.Target == "en" {
			action = "transliterated"
		}
		return fallback.Warn(out, fmt.Sprintf("offline glossary covered %d of %d words, the rest %s", hits, total, action)), nil
	}
	return fallback.OK(out), nil
}

// scriptDetector guesses the language from the Unicode script.
type scriptDetector struct{}

func (scriptDetector) Name() string { return "unicode-script" }

func (scriptDetector) Tier() fallback.Tier { return fallback.TierFallback }

func (scriptDetector) Available() error { return nil }

func (scriptDetector) Attempt(_ context.Context, text string) (fallback.Reply[Detection], error) {
	lang, share := detectScript(text)
	if lang == "" {
		return fallback.Reply[Detection]{}, fmt.Errorf("no letters of a supported script")
	}
	return fallback.OK(Detection{Language: lang, Confidence: share}), nil
}
