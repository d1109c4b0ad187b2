package generate

import "context"

// Prompt is the message pair sent to the generation backend.
type Prompt struct {
	System string
	User   string
}

// LLMClient abstracts the chat-completion backend so it can be swapped or mocked.
type LLMClient interface {
	Complete(ctx context.Context, model string, prompt Prompt) (string, error)
}

// LLMSettings carries backend connection parameters.
type LLMSettings struct {
	APIKey  string
	BaseURL string
}
