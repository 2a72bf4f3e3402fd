package translation

import (
	"context"
	"html"
	"net/url"

	"codeberg.org/snonux/sahachari/internal/apiclient"
	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
)

// googleTranslator calls the Cloud Translation v2 REST API.
type googleTranslator struct {
	tier   config.TierConfig
	client *apiclient.Client
}

type googleTranslateRequest struct {
	Q      string `json:"q"`
	Target string `json:"target"`
	Source string `json:"source,omitempty"`
	Format string `json:"format"`
}

type googleTranslateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
}

type googleDetectResponse struct {
	Data struct {
		Detections [][]struct {
			Language   string  `json:"language"`
			Confidence float64 `json:"confidence"`
		} `json:"detections"`
	} `json:"data"`
}

func newGoogleTranslator(tier config.TierConfig, client *apiclient.Client) *googleTranslator {
	return &googleTranslator{tier: tier, client: client}
}

func (g *googleTranslator) Name() string { return g.tier.Provider }

func (g *googleTranslator) Tier() fallback.Tier { return g.tier.Tier }

func (g *googleTranslator) Available() error {
	if !g.tier.Enabled || g.tier.APIKey == "" {
		return fallback.Unconfigured("GOOGLE_TRANSLATE_API_KEY")
	}
	return nil
}

func (g *googleTranslator) keyQuery() url.Values {
	return url.Values{"key": {g.tier.APIKey}}
}

func (g *googleTranslator) Attempt(ctx context.Context, req Request) (fallback.Reply[Translation], error) {
	body := googleTranslateRequest{Q: req.Text, Target: req.Target, Source: req.Source, Format: "text"}

	var resp googleTranslateResponse
	if err := g.client.PostJSON(ctx, g.tier.Endpoint+"?"+g.keyQuery().Encode(), body, &resp); err != nil {
		return fallback.Reply[Translation]{}, err
	}
	if len(resp.Data.Translations) == 0 || resp.Data.Translations[0].TranslatedText == "" {
		return fallback.Reply[Translation]{}, g.client.BadResponse("no translation returned")
	}

	t := resp.Data.Translations[0]
	source := req.Source
	if source == "" {
		source = t.DetectedSourceLanguage
	}
	return fallback.OK(Translation{
		Text:   html.UnescapeString(t.TranslatedText),
		Source: source,
		Target: req.Target,
	}), nil
}

// googleDetector uses the detect endpoint of the same API.
type googleDetector struct {
	*googleTranslator
}

func (g googleDetector) Attempt(ctx context.Context, text string) (fallback.Reply[Detection], error) {
	var resp googleDetectResponse
	body := map[string]string{"q": text}
	if err := g.client.PostJSON(ctx, g.tier.Endpoint+"/detect?"+g.keyQuery().Encode(), body, &resp); err != nil {
		return fallback.Reply[Detection]{}, err
	}
	if len(resp.Data.Detections) == 0 || len(resp.Data.Detections[0]) == 0 {
		return fallback.Reply[Detection]{}, g.client.BadResponse("no detection returned")
	}
	d := resp.Data.Detections[0][0]
	return fallback.OK(Detection{Language: d.Language, Confidence: d.Confidence}), nil
}
