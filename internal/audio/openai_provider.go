package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/sashabaranov/go-openai"

	"codeberg.org/snonux/sahachari/internal/apiclient"
	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
	"codeberg.org/snonux/sahachari/internal/translation"
)

// OpenAIVoices lists the voices the speech endpoint accepts.
var OpenAIVoices = []string{
	"alloy", "ash", "ballad", "coral", "echo", "fable",
	"onyx", "nova", "sage", "shimmer", "verse",
}

// instructionModels accept free-form voice instructions.
var instructionModels = []string{"gpt-4o-mini-tts", "gpt-4o-mini-audio-preview"}

// openAIProvider speaks through the OpenAI audio API.
type openAIProvider struct {
	tier   config.TierConfig
	client *openai.Client
}

func newOpenAIProvider(tier config.TierConfig, httpClient *http.Client) *openAIProvider {
	cfg := openai.DefaultConfig(tier.APIKey)
	if tier.Endpoint != "" {
		cfg.BaseURL = tier.Endpoint
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if tier.Model == "" {
		tier.Model = "gpt-4o-mini-tts"
	}
	if tier.Voice == "" {
		tier.Voice = "nova"
	}
	if tier.Speed == 0 {
		tier.Speed = 1.0
	}
	return &openAIProvider{tier: tier, client: openai.NewClientWithConfig(cfg)}
}

func (p *openAIProvider) Name() string { return p.tier.Provider }

func (p *openAIProvider) Tier() fallback.Tier { return p.tier.Tier }

func (p *openAIProvider) Available() error {
	if !p.tier.Enabled || p.tier.APIKey == "" {
		return fallback.Unconfigured("OPENAI_API_KEY")
	}
	return nil
}

// instruction tells instruction-capable models which language they speak.
func (p *openAIProvider) instruction(lang string) string {
	if !slices.Contains(instructionModels, p.tier.Model) {
		return ""
	}
	if p.tier.Instruction != "" {
		return p.tier.Instruction
	}
	for _, l := range translation.SupportedLanguages() {
		if l.Code == lang {
			return fmt.Sprintf("You are speaking %s (%s). Use authentic %s pronunciation and speak clearly.",
				l.Name, l.Native, l.Name)
		}
	}
	return ""
}

func (p *openAIProvider) voice(req Request) string {
	if slices.Contains(OpenAIVoices, req.Voice) {
		return req.Voice
	}
	return p.tier.Voice
}

func (p *openAIProvider) speed(slow bool) float64 {
	speed := p.tier.Speed
	if slow {
		speed = max(speed*slowRate, 0.25)
	}
	return speed
}

// Attempt synthesizes every chunk and concatenates the MP3 streams.
func (p *openAIProvider) Attempt(ctx context.Context, req Request) (fallback.Reply[Speech], error) {
	voice := p.voice(req)
	var audio []byte

	for _, chunk := range ChunkText(req.Text, ChunkSize) {
		speechReq := openai.CreateSpeechRequest{
			Model:          openai.SpeechModel(p.tier.Model),
			Input:          chunk,
			Voice:          openai.SpeechVoice(voice),
			Instructions:   p.instruction(req.Language),
			ResponseFormat: openai.SpeechResponseFormatMp3,
			Speed:          p.speed(req.Slow),
		}

		response, err := p.client.CreateSpeech(ctx, speechReq)
		if err != nil {
			return fallback.Reply[Speech]{}, apiclient.WrapOpenAI(p.Name(), err)
		}
		data, err := io.ReadAll(response)
		response.Close()
		if err != nil {
			return fallback.Reply[Speech]{}, apiclient.WrapOpenAI(p.Name(), fmt.Errorf("failed to read audio: %w", err))
		}
		if len(data) == 0 {
			return fallback.Reply[Speech]{}, fallback.Failf(fallback.KindBadResponse, p.Name(), "no audio data received")
		}
		audio = append(audio, data...)
	}

	return fallback.OK(Speech{
		Audio:    audio,
		Format:   FormatMP3,
		Language: req.Language,
		Voice:    voice,
	}), nil
}
