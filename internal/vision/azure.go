package vision

import (
	"context"
	"net/url"

	"codeberg.org/snonux/sahachari/internal/apiclient"
	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
)

const azureAnalyzePath = "/vision/v3.2/analyze"

// azureVision calls Azure Computer Vision v3.2 analyze.
type azureVision struct {
	tier   config.TierConfig
	client *apiclient.Client
}

type azureAnalyzeResponse struct {
	Tags []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"tags"`
	Objects []struct {
		Object     string  `json:"object"`
		Confidence float64 `json:"confidence"`
	} `json:"objects"`
}

func newAzureVision(tier config.TierConfig, client *apiclient.Client) *azureVision {
	return &azureVision{tier: tier, client: client}
}

func (a *azureVision) Name() string { return a.tier.Provider }

func (a *azureVision) Tier() fallback.Tier { return a.tier.Tier }

// Available needs both the key and the resource endpoint.
func (a *azureVision) Available() error {
	if a.tier.APIKey == "" {
		return fallback.Unconfigured("AZURE_COMPUTER_VISION_KEY")
	}
	if a.tier.Endpoint == "" {
		return fallback.Unconfigured("AZURE_COMPUTER_VISION_ENDPOINT")
	}
	if !a.tier.Enabled {
		return fallback.Unconfigured("azure vision")
	}
	return nil
}

func (a *azureVision) Attempt(ctx context.Context, p photo) (fallback.Reply[[]Ingredient], error) {
	query := url.Values{
		"visualFeatures": {"Categories,Description,Objects,Tags"},
		"details":        {"Food"},
	}
	endpoint := a.tier.Endpoint + azureAnalyzePath + "?" + query.Encode()

	var resp azureAnalyzeResponse
	if err := a.client.PostBytes(ctx, endpoint, "application/octet-stream", p.jpeg, &resp); err != nil {
		return fallback.Reply[[]Ingredient]{}, err
	}

	var items []Ingredient
	for _, t := range resp.Tags {
		items = append(items, Ingredient{Name: t.Name, Confidence: t.Confidence, Source: SourceTag})
	}
	for _, o := range resp.Objects {
		items = append(items, Ingredient{Name: o.Object, Confidence: o.Confidence, Source: SourceObject})
	}
	return fallback.OK(Finalize(items)), nil
}
