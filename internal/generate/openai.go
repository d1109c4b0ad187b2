package generate

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultBaseURL targets the DashScope OpenAI-compatible endpoint.
const DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// OpenAIClient implements LLMClient using the official openai-go SDK against
// any chat-completions-compatible endpoint.
type OpenAIClient struct {
	opts []option.RequestOption
}

// NewOpenAIClient validates settings and prepares request options.
func NewOpenAIClient(cfg LLMSettings) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm api key missing; set llm.api_key or DASHSCOPE_API_KEY")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(base),
	}
	return &OpenAIClient{opts: opts}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, model string, prompt Prompt) (string, error) {
	client := openai.NewClient(c.opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty choices in completion response")
	}
	return resp.Choices[0].Message.Content, nil
}
