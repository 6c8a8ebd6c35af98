package synthesizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
)

// DefaultModel is the chat model used for answer generation unless
// configured otherwise.
const DefaultModel = openai.ChatModelGPT4o

// ErrGeneration indicates a provider failure during answer generation.
var ErrGeneration = errors.New("generation provider failure")

// Generator produces a raw structured payload for a prompt. The payload is
// treated as untrusted and validated by the synthesizer.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OpenAIGenerator implements Generator on the OpenAI chat completions API,
// requesting JSON object output.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a generator with the given client. Model falls
// back to DefaultModel when empty.
func NewOpenAIGenerator(client *openai.Client, model string) *OpenAIGenerator {
	if model == "" {
		model = string(DefaultModel)
	}
	return &OpenAIGenerator{client: client, model: model}
}

// Generate runs one chat completion and returns the raw message content.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(g.model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response contained no choices", ErrGeneration)
	}
	return resp.Choices[0].Message.Content, nil
}
