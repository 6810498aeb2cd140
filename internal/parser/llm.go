package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/SofiaChang/shopping-agent/internal/models"
)

const llmSystemPrompt = `You are a shopping assistant maintaining a structured
set of shopping filters across a multi-turn conversation. From the user's
message and the current filters, produce the full updated filter object.
Preserve every field the message does not change; the user may refer to prior
values implicitly (e.g. "actually, make it cheaper"). If the message is vague,
make the best prediction for the category used to search for products. Use
null for values that are unknown.`

// LLMParser resolves constraints with a language model behind the same
// interface as the regex parser. Structured output comes from a forced tool
// call so the reply is always valid JSON.
type LLMParser struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

func NewLLMParser(apiKey, model string, logger *slog.Logger) *LLMParser {
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	return &LLMParser{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logger.With("component", "llm_parser"),
	}
}

func (p *LLMParser) Parse(ctx context.Context, utterance string, existing models.Constraints) (models.Constraints, error) {
	if strings.TrimSpace(utterance) == "" {
		return models.Constraints{}, &AmbiguousQueryError{
			Reason: "your query is empty; please specify what you're looking for",
		}
	}

	current, err := json.Marshal(existing)
	if err != nil {
		return models.Constraints{}, fmt.Errorf("marshal existing constraints: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: llmSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(
				fmt.Sprintf("Current filters: %s\n\nUser message: %s", current, utterance),
			)),
		},
		Tools: []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        "update_filters",
					Description: anthropic.String("Record the full updated shopping filter object"),
					InputSchema: anthropic.ToolInputSchemaParam{
						Type: "object",
						Properties: map[string]any{
							"category":       map[string]any{"type": []string{"string", "null"}},
							"min_price":      map[string]any{"type": []string{"number", "null"}},
							"max_price":      map[string]any{"type": []string{"number", "null"}},
							"prime_required": map[string]any{"type": "boolean"},
							"min_rating":     map[string]any{"type": []string{"number", "null"}},
							"min_reviews":    map[string]any{"type": []string{"integer", "null"}},
						},
						Required: []string{"prime_required"},
					},
				},
			},
		},
		ToolChoice: anthropic.ToolChoiceParamOfTool("update_filters"),
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return models.Constraints{}, fmt.Errorf("anthropic API error: %w", err)
	}

	var result models.Constraints
	found := false
	for _, block := range resp.Content {
		if tool, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			data, err := json.Marshal(tool.Input)
			if err != nil {
				return models.Constraints{}, fmt.Errorf("marshal tool input: %w", err)
			}
			if err := json.Unmarshal(data, &result); err != nil {
				return models.Constraints{}, fmt.Errorf("decode filters: %w", err)
			}
			found = true
		}
	}
	if !found {
		return models.Constraints{}, &AmbiguousQueryError{
			Reason: "please try again, the assistant did not produce filters",
		}
	}

	if result.Category == nil && existing.Category == nil {
		return models.Constraints{}, &AmbiguousQueryError{
			Reason: "your query is too broad or incomplete; please specify what product you're looking for",
		}
	}

	p.logger.Debug("llm parsed constraints", "utterance", utterance)
	return result, nil
}
