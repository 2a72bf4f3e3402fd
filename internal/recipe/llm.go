package recipe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"codeberg.org/snonux/sahachari/internal/apiclient"
	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
)

const systemPrompt = "You are a cook who knows Telugu and wider Indian home cooking. " +
	"Answer with JSON only."

// chatModel sends one prompt to a language model and returns its text.
type chatModel interface {
	complete(ctx context.Context, system, prompt string) (string, error)
}

// llmProvider is the secondary tier. The model behind it is OpenAI or Gemini.
type llmProvider struct {
	tier  config.TierConfig
	model chatModel
}

func newLLMProvider(tier config.TierConfig, model chatModel) *llmProvider {
	return &llmProvider{tier: tier, model: model}
}

func (p *llmProvider) Name() string { return p.tier.Provider }

func (p *llmProvider) Tier() fallback.Tier { return p.tier.Tier }

func (p *llmProvider) Available() error {
	if !p.tier.Enabled || p.tier.APIKey == "" {
		if p.tier.Provider == config.ProviderGemini {
			return fallback.Unconfigured("GEMINI_API_KEY")
		}
		return fallback.Unconfigured("OPENAI_API_KEY")
	}
	return nil
}

func (p *llmProvider) Attempt(ctx context.Context, req Request) (fallback.Reply[[]Recipe], error) {
	text, err := p.model.complete(ctx, systemPrompt, Prompt(req))
	if err != nil {
		return fallback.Reply[[]Recipe]{}, err
	}
	recipes, err := ParseRecipes(text)
	if err != nil {
		return fallback.Reply[[]Recipe]{}, fallback.Failf(fallback.KindBadResponse, p.Name(), "%v", err)
	}
	if len(recipes) > req.Count {
		recipes = recipes[:req.Count]
	}
	for i := range recipes {
		recipes[i].Source = p.Name()
		if recipes[i].Category == "" {
			recipes[i].Category = req.Category
		}
	}
	return fallback.OK(recipes), nil
}

// Prompt renders the request for a language model.
func Prompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest %d recipes", req.Count)
	if req.Category != "" {
		fmt.Fprintf(&b, " in the %s category", req.Category)
	}
	if len(req.Ingredients) > 0 {
		fmt.Fprintf(&b, " that use mainly these ingredients: %s", strings.Join(req.Ingredients, ", "))
	}
	b.WriteString(".\nPrefer Telugu and South Indian dishes where they fit and give their Telugu name as local_name.\n")
	b.WriteString(`Reply with {"recipes":[{"name":"","local_name":"","category":"","ingredients":[""],` +
		`"instructions":[""],"cooking_time":"","servings":0,"difficulty":"","notes":""}]}`)
	return b.String()
}

// ParseRecipes reads a model reply. It accepts the wrapped object, a bare
// array and replies fenced in a markdown code block.
func ParseRecipes(text string) ([]Recipe, error) {
	text = strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(text, "```"); ok {
		rest = strings.TrimPrefix(rest, "json")
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), "```"))
	}

	var recipes []Recipe
	if strings.HasPrefix(text, "[") {
		if err := json.Unmarshal([]byte(text), &recipes); err != nil {
			return nil, fmt.Errorf("failed to parse recipes: %w", err)
		}
	} else {
		var wrapped struct {
			Recipes []Recipe `json:"recipes"`
		}
		if err := json.Unmarshal([]byte(text), &wrapped); err != nil {
			return nil, fmt.Errorf("failed to parse recipes: %w", err)
		}
		recipes = wrapped.Recipes
	}

	kept := recipes[:0]
	for _, r := range recipes {
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" || len(r.Ingredients) == 0 {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("reply contains no usable recipe")
	}
	return kept, nil
}

// openAIChat is the go-openai chat completion backend.
type openAIChat struct {
	provider string
	model    string
	client   *openai.Client
}

func newOpenAIChat(tier config.TierConfig, httpClient *http.Client) *openAIChat {
	cfg := openai.DefaultConfig(tier.APIKey)
	if tier.Endpoint != "" {
		cfg.BaseURL = tier.Endpoint
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	model := tier.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &openAIChat{provider: tier.Provider, model: model, client: openai.NewClientWithConfig(cfg)}
}

func (o *openAIChat) complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", apiclient.WrapOpenAI(o.provider, err)
	}
	if len(resp.Choices) == 0 {
		return "", fallback.Failf(fallback.KindBadResponse, o.provider, "no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// geminiModel is the genai backend. The client is created on first use
// because genai refuses to build one without a key.
type geminiModel struct {
	tier       config.TierConfig
	httpClient *http.Client

	mu     sync.Mutex
	client *genai.Client
}

func newGeminiModel(tier config.TierConfig, httpClient *http.Client) *geminiModel {
	if tier.Model == "" {
		tier.Model = "gemini-2.0-flash"
	}
	return &geminiModel{tier: tier, httpClient: httpClient}
}

func (g *geminiModel) genaiClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	cc := &genai.ClientConfig{
		APIKey:     g.tier.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if g.tier.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.tier.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fallback.Failf(fallback.KindAuth, g.tier.Provider, "failed to create client: %v", err)
	}
	g.client = client
	return client, nil
}

func (g *geminiModel) complete(ctx context.Context, system, prompt string) (string, error) {
	client, err := g.genaiClient(ctx)
	if err != nil {
		return "", err
	}
	resp, err := client.Models.GenerateContent(ctx, g.tier.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0.7),
	})
	if err != nil {
		return "", apiclient.WrapGenAI(g.tier.Provider, err)
	}
	text := resp.Text()
	if text == "" {
		return "", fallback.Failf(fallback.KindBadResponse, g.tier.Provider, "empty response")
	}
	return text, nil
}
