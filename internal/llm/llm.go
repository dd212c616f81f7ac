// Package llm turns the text of a bill into a raw model completion.
//
// A Completer sends one prompt to a language model provider and returns the
// reply text unchanged. RecordExtractor builds the bill prompt, applies the
// configured rate limit and retry policy, and delegates to a Completer.
package llm

import (
	"context"
	"strings"
)

// Provider names used in logs and errors.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Completer sends a prompt to a language model and returns its reply text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// snippet shortens provider error bodies for error messages.
func snippet(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
