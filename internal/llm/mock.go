package llm

import (
	"context"
	"sync"
)

// MockCompleter returns canned completions. Fn takes precedence when set,
// then Err, then Responses keyed by the exact prompt, then Response.
type MockCompleter struct {
	Response  string
	Err       error
	Responses map[string]string
	Fn        func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

// NewMockCompleter returns a completer that always answers response, err.
func NewMockCompleter(response string, err error) *MockCompleter {
	return &MockCompleter{Response: response, Err: err}
}

// Complete implements Completer.
func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Fn != nil {
		return m.Fn(ctx, prompt)
	}
	if m.Err != nil {
		return "", m.Err
	}
	if r, ok := m.Responses[prompt]; ok {
		return r, nil
	}
	return m.Response, nil
}

// Prompts returns the prompts received so far.
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Calls returns the number of Complete calls.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
