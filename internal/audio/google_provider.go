package audio

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/url"

	"codeberg.org/snonux/sahachari/internal/apiclient"
	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
)

const slowRate = 0.75

// googleVoices holds the default Cloud TTS voice per language.
var googleVoices = map[string]string{
	"en": "en-US-Standard-D",
	"te": "te-IN-Standard-A",
}

// GoogleVoice returns the language code and voice name used for lang.
func GoogleVoice(lang string) (languageCode, voice string) {
	if lang == "en" {
		return "en-US", googleVoices["en"]
	}
	languageCode = lang + "-IN"
	if v, ok := googleVoices[lang]; ok {
		return languageCode, v
	}
	return languageCode, languageCode + "-Standard-A"
}

// googleProvider calls the Cloud Text-to-Speech v1 REST API.
type googleProvider struct {
	tier   config.TierConfig
	client *apiclient.Client
}

type googleSynthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate"`
	} `json:"audioConfig"`
}

type googleSynthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

func newGoogleProvider(tier config.TierConfig, client *apiclient.Client) *googleProvider {
	return &googleProvider{tier: tier, client: client}
}

func (g *googleProvider) Name() string { return g.tier.Provider }

func (g *googleProvider) Tier() fallback.Tier { return g.tier.Tier }

func (g *googleProvider) Available() error {
	if !g.tier.Enabled || g.tier.APIKey == "" {
		return fallback.Unconfigured("GOOGLE_CLOUD_TTS_API_KEY")
	}
	return nil
}

// Attempt synthesizes every chunk and concatenates the MP3 streams.
func (g *googleProvider) Attempt(ctx context.Context, req Request) (fallback.Reply[Speech], error) {
	languageCode, voice := GoogleVoice(req.Language)
	if req.Voice != "" {
		voice = req.Voice
	}
	rate := 1.0
	if req.Slow {
		rate = slowRate
	}
	endpoint := g.tier.Endpoint + "?" + url.Values{"key": {g.tier.APIKey}}.Encode()

	var audio bytes.Buffer
	for _, chunk := range ChunkText(req.Text, ChunkSize) {
		var body googleSynthesizeRequest
		body.Input.Text = chunk
		body.Voice.LanguageCode = languageCode
		body.Voice.Name = voice
		body.AudioConfig.AudioEncoding = "MP3"
		body.AudioConfig.SpeakingRate = rate

		var resp googleSynthesizeResponse
		if err := g.client.PostJSON(ctx, endpoint, body, &resp); err != nil {
			return fallback.Reply[Speech]{}, err
		}
		if resp.AudioContent == "" {
			return fallback.Reply[Speech]{}, g.client.BadResponse("no audio content returned")
		}
		data, err := base64.StdEncoding.DecodeString(resp.AudioContent)
		if err != nil {
			return fallback.Reply[Speech]{}, g.client.BadResponse("invalid audio content: %v", err)
		}
		audio.Write(data)
	}

	return fallback.OK(Speech{
		Audio:    audio.Bytes(),
		Format:   FormatMP3,
		Language: req.Language,
		Voice:    voice,
	}), nil
}
