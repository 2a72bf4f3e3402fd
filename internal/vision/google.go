package vision

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"

	"codeberg.org/snonux/sahachari/internal/apiclient"
	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
)

const maxResults = 20

// googleVision calls the Cloud Vision images:annotate endpoint.
type googleVision struct {
	tier   config.TierConfig
	client *apiclient.Client
}

type annotateFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type annotateImageRequest struct {
	Image struct {
		Content string `json:"content"`
	} `json:"image"`
	Features []annotateFeature `json:"features"`
}

type annotateRequest struct {
	Requests []annotateImageRequest `json:"requests"`
}

type annotateResponse struct {
	Responses []struct {
		LabelAnnotations []struct {
			Description string  `json:"description"`
			Score       float64 `json:"score"`
		} `json:"labelAnnotations"`
		LocalizedObjectAnnotations []struct {
			Name  string  `json:"name"`
			Score float64 `json:"score"`
		} `json:"localizedObjectAnnotations"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

func newGoogleVision(tier config.TierConfig, client *apiclient.Client) *googleVision {
	return &googleVision{tier: tier, client: client}
}

func (g *googleVision) Name() string { return g.tier.Provider }

func (g *googleVision) Tier() fallback.Tier { return g.tier.Tier }

func (g *googleVision) Available() error {
	if !g.tier.Enabled || g.tier.APIKey == "" {
		return fallback.Unconfigured("GOOGLE_VISION_API_KEY")
	}
	return nil
}

func (g *googleVision) Attempt(ctx context.Context, p photo) (fallback.Reply[[]Ingredient], error) {
	var item annotateImageRequest
	item.Image.Content = base64.StdEncoding.EncodeToString(p.jpeg)
	item.Features = []annotateFeature{
		{Type: "LABEL_DETECTION", MaxResults: maxResults},
		{Type: "OBJECT_LOCALIZATION", MaxResults: maxResults},
	}

	var resp annotateResponse
	endpoint := g.tier.Endpoint + "?" + url.Values{"key": {g.tier.APIKey}}.Encode()
	if err := g.client.PostJSON(ctx, endpoint, annotateRequest{Requests: []annotateImageRequest{item}}, &resp); err != nil {
		return fallback.Reply[[]Ingredient]{}, err
	}
	if len(resp.Responses) == 0 {
		return fallback.Reply[[]Ingredient]{}, g.client.BadResponse("no annotation response")
	}

	r := resp.Responses[0]
	if r.Error != nil {
		kind := apiclient.StatusKind(http.StatusBadRequest, r.Error.Message)
		return fallback.Reply[[]Ingredient]{}, fallback.Failf(kind, g.Name(), "annotate error %d: %s", r.Error.Code, r.Error.Message)
	}

	var items []Ingredient
	for _, l := range r.LabelAnnotations {
		items = append(items, Ingredient{Name: l.Description, Confidence: l.Score, Source: SourceLabel})
	}
	for _, o := range r.LocalizedObjectAnnotations {
		items = append(items, Ingredient{Name: o.Name, Confidence: o.Score, Source: SourceObject})
	}
	return fallback.OK(Finalize(items)), nil
}
