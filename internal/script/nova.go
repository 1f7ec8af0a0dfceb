package script

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

var novaModels = map[string]string{
	"nova-lite": "us.amazon.nova-2-lite-v1:0",
	"nova-pro":  "us.amazon.nova-pro-v1:0",
}

// ConverseAPI is the subset of the Bedrock runtime client NovaGenerator uses.
type ConverseAPI interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type NovaGenerator struct {
	model   string
	prompts PromptBuilder
	client  ConverseAPI
}

// NewNovaGenerator wraps a Bedrock runtime client, usually built from the
// shared AWS config so it carries the otelaws middleware.
func NewNovaGenerator(model string, client ConverseAPI, prompts PromptBuilder) *NovaGenerator {
	return &NovaGenerator{model: model, prompts: prompts, client: client}
}

func NewNovaGeneratorFromConfig(model string, cfg aws.Config, prompts PromptBuilder) *NovaGenerator {
	return NewNovaGenerator(model, bedrockruntime.NewFromConfig(cfg), prompts)
}

func (g *NovaGenerator) Name() string { return "nova" }

func (g *NovaGenerator) Generate(ctx context.Context, material string, opts GenerateOptions) (string, error) {
	modelID := resolveModel(novaModels, g.model, novaModels["nova-lite"])

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(modelID),
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: g.prompts.System()},
		},
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: g.prompts.User(material, opts)},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(maxTokensForLength(opts.Length))),
			Temperature: aws.Float32(temperature),
		},
	}

	return generateWithRetry(ctx, "Bedrock Converse", func(ctx context.Context) (string, error) {
		resp, err := g.client.Converse(ctx, input)
		if err != nil {
			return "", err
		}
		return extractNovaText(resp), nil
	})
}

func extractNovaText(resp *bedrockruntime.ConverseOutput) string {
	if resp == nil || resp.Output == nil {
		return ""
	}
	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			return tb.Value
		}
	}
	return ""
}
