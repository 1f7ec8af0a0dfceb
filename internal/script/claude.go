package script

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

var claudeModels = map[string]string{
	"haiku":  "claude-haiku-4-5-20251001",
	"sonnet": "claude-sonnet-4-5-20250929",
}

const (
	temperature    = 0.7
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	backoffMult    = 2
)

// generateWithRetry calls fn up to maxRetries times with exponential backoff.
// An empty transcript counts as a failed attempt.
func generateWithRetry(ctx context.Context, name string, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		text, err := fn(ctx)
		switch {
		case err != nil:
			lastErr = fmt.Errorf("%s API error (attempt %d/%d): %w", name, attempt, maxRetries, err)
		case cleanTranscript(text) == "":
			lastErr = fmt.Errorf("empty response from %s (attempt %d/%d)", name, attempt, maxRetries)
		default:
			return cleanTranscript(text), nil
		}

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= time.Duration(backoffMult)
		}
	}
	return "", lastErr
}

type ClaudeGenerator struct {
	model   string
	prompts PromptBuilder
	client  anthropic.Client
}

func NewClaudeGenerator(model string, prompts PromptBuilder) *ClaudeGenerator {
	return &ClaudeGenerator{model: model, prompts: prompts, client: anthropic.NewClient()}
}

func (g *ClaudeGenerator) Name() string { return "claude" }

func (g *ClaudeGenerator) Generate(ctx context.Context, material string, opts GenerateOptions) (string, error) {
	modelID := resolveModel(claudeModels, g.model, claudeModels["haiku"])

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(modelID),
		MaxTokens:   int64(maxTokensForLength(opts.Length)),
		Temperature: anthropic.Float(temperature),
		System: []anthropic.TextBlockParam{
			{Text: g.prompts.System()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(g.prompts.User(material, opts))),
		},
	}

	return generateWithRetry(ctx, "Claude", func(ctx context.Context) (string, error) {
		message, err := g.client.Messages.New(ctx, params)
		if err != nil {
			return "", err
		}
		return extractText(message), nil
	})
}

func extractText(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "")
}
