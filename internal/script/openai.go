package script

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

var openAIModels = map[string]string{
	"gpt-4o-mini": openai.GPT4oMini,
	"gpt-4o":      openai.GPT4o,
}

type OpenAIGenerator struct {
	model   string
	prompts PromptBuilder
	client  *openai.Client
}

func NewOpenAIGenerator(model, apiKey string, prompts PromptBuilder) *OpenAIGenerator {
	return &OpenAIGenerator{model: model, prompts: prompts, client: openai.NewClient(apiKey)}
}

func (g *OpenAIGenerator) Name() string { return "openai" }

func (g *OpenAIGenerator) Generate(ctx context.Context, material string, opts GenerateOptions) (string, error) {
	modelID := resolveModel(openAIModels, g.model, openai.GPT4oMini)

	req := openai.ChatCompletionRequest{
		Model:       modelID,
		Temperature: temperature,
		MaxTokens:   maxTokensForLength(opts.Length),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.prompts.System()},
			{Role: openai.ChatMessageRoleUser, Content: g.prompts.User(material, opts)},
		},
	}

	return generateWithRetry(ctx, "OpenAI", func(ctx context.Context) (string, error) {
		resp, err := g.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("response contained no choices")
		}
		return resp.Choices[0].Message.Content, nil
	})
}
