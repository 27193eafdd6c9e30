// Package anthropic implements D9, the Anthropic-backed NLU adapter:
// a single forced tool-use call that turns free text into the
// structured state.NLUResult shape (§4.14's "forced structured
// extraction"). Grounded on the teacher's
// pkg/providers/anthropic/provider.go Provider: the same
// anthropic.NewClient(option.WithAuthToken/WithBaseURL) construction
// and the same tool_use content-block parsing in parseResponse,
// narrowed to exactly one forced tool call instead of an open-ended
// agent loop.
package anthropicnlu

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/weavebot/weavebot/pkg/adapter"
	"github.com/weavebot/weavebot/pkg/message"
	"github.com/weavebot/weavebot/pkg/state"
)

// Name is the factory-registration name.
const Name = "anthropic"

const toolName = "extract_intent"
const defaultModel = "claude-sonnet-4.6"

// Adapter is a NLUAdapter backed by one forced tool-use call.
type Adapter struct {
	client *anthropic.Client
	model  string
}

// New is the adapter.Factory registered under Name.
func New(info adapter.BotInfo) (adapter.Adapter, error) {
	cfg := info.Config.Anthropic
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api_key is required")
	}
	opts := []option.RequestOption{option.WithAuthToken(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Adapter{client: &client, model: model}, nil
}

// Name satisfies adapter.Adapter.
func (a *Adapter) Name() string { return Name }

// Start is a no-op: the anthropic client is stateless HTTP.
func (a *Adapter) Start(ctx context.Context) error { return nil }

// Shutdown is a no-op.
func (a *Adapter) Shutdown(ctx context.Context) error { return nil }

var extractSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"intent":     map[string]interface{}{"type": "string"},
		"confidence": map[string]interface{}{"type": "number"},
		"sentiment":  map[string]interface{}{"type": "string"},
		"language":   map[string]interface{}{"type": "string"},
		"entities":   map[string]interface{}{"type": "object"},
	},
	"required": []string{"intent", "confidence"},
}

type extraction struct {
	Intent     string                 `json:"intent"`
	Confidence float64                `json:"confidence"`
	Sentiment  string                 `json:"sentiment"`
	Language   string                 `json:"language"`
	Entities   map[string]interface{} `json:"entities"`
}

// Process forces one extract_intent tool call and decodes its input
// into a state.NLUResult.
func (a *Adapter) Process(ctx context.Context, msg message.Message) (*state.NLUResult, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(msg.TextContent())),
		},
		Tools: []anthropic.ToolUnionParam{{
			OfTool: &anthropic.ToolParam{
				Name:        toolName,
				Description: anthropic.String("Extract the intent, sentiment, language, and named entities of the user's message."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: extractSchema["properties"],
					Required:   []string{"intent", "confidence"},
				},
			},
		}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: toolName},
		},
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: nlu call: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type != "tool_use" {
			continue
		}
		tu := block.AsToolUse()
		var ex extraction
		if err := json.Unmarshal(tu.Input, &ex); err != nil {
			return nil, fmt.Errorf("anthropic: decode extraction: %w", err)
		}
		return &state.NLUResult{
			Intents:    []state.Intent{{Name: ex.Intent, Score: ex.Confidence}},
			Entities:   ex.Entities,
			Sentiment:  ex.Sentiment,
			Language:   ex.Language,
			Confidence: ex.Confidence,
		}, nil
	}

	return nil, fmt.Errorf("anthropic: no tool_use block in response")
}
