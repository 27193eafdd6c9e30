// Package openai implements D10, the OpenAI-backed NLU adapter: a
// JSON-mode chat completion that returns the same extraction shape
// D9's forced tool call does. Grounded on the teacher's
// pkg/providers/codex/provider.go Provider's client construction
// (openai.NewClient with option.WithAPIKey/WithBaseURL), adapted from
// the Responses API the teacher uses for its coding agent to the
// simpler Chat Completions API with response_format: json_object,
// since NLU extraction here needs one round trip, not a tool loop.
package openainlu

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/weavebot/weavebot/pkg/adapter"
	"github.com/weavebot/weavebot/pkg/message"
	"github.com/weavebot/weavebot/pkg/state"
)

// Name is the factory-registration name.
const Name = "openai"

const defaultModel = "gpt-5.2-mini"

const systemPrompt = `You extract structured intent from a user's message. ` +
	`Respond with a JSON object with keys: intent (string), confidence (0-1 float), ` +
	`sentiment (string), language (string), entities (object).`

// Adapter is a NLUAdapter backed by one JSON-mode chat completion.
type Adapter struct {
	client *openai.Client
	model  string
}

// New is the adapter.Factory registered under Name.
func New(info adapter.BotInfo) (adapter.Adapter, error) {
	cfg := info.Config.OpenAI
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api_key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Adapter{client: &client, model: model}, nil
}

// Name satisfies adapter.Adapter.
func (a *Adapter) Name() string { return Name }

// Start is a no-op: the openai client is stateless HTTP.
func (a *Adapter) Start(ctx context.Context) error { return nil }

// Shutdown is a no-op.
func (a *Adapter) Shutdown(ctx context.Context) error { return nil }

type extraction struct {
	Intent     string                 `json:"intent"`
	Confidence float64                `json:"confidence"`
	Sentiment  string                 `json:"sentiment"`
	Language   string                 `json:"language"`
	Entities   map[string]interface{} `json:"entities"`
}

// Process requests a JSON-mode completion and decodes it into a
// state.NLUResult.
func (a *Adapter) Process(ctx context.Context, msg message.Message) (*state.NLUResult, error) {
	params := openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(msg.TextContent()),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: nlu call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices in response")
	}

	var ex extraction
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &ex); err != nil {
		return nil, fmt.Errorf("openai: decode extraction: %w", err)
	}

	return &state.NLUResult{
		Intents:    []state.Intent{{Name: ex.Intent, Score: ex.Confidence}},
		Entities:   ex.Entities,
		Sentiment:  ex.Sentiment,
		Language:   ex.Language,
		Confidence: ex.Confidence,
	}, nil
}
