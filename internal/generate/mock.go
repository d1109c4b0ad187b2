package generate

import "context"

// MockLLM is an offline LLMClient for tests and local runs. It returns Reply
// verbatim, or Err when set.
type MockLLM struct {
	Reply string
	Err   error

	Calls   int
	LastReq Prompt
}

func (m *MockLLM) Complete(ctx context.Context, model string, prompt Prompt) (string, error) {
	m.Calls++
	m.LastReq = prompt
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}
