// Package billparser turns a model completion into a BillRecord: it cleans the
// text, reads it as a dictionary literal, validates the keys and converts the values.
package billparser

import (
	"strings"
	"unicode"
)

const codeFence = "```"

// CleanResponse removes every "$" and every newline from a model completion.
// The substitution is purely textual, so "$5 discount" inside a value becomes "5 discount".
func CleanResponse(response string) string {
	return strings.NewReplacer("$", "", "\n", "").Replace(response)
}

// StripCodeFence removes a Markdown code fence wrapping the whole reply,
// along with its language tag. Anything else around the dictionary is kept, so
// prose before or after it still fails to parse.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2*len(codeFence) || !strings.HasPrefix(s, codeFence) || !strings.HasSuffix(s, codeFence) {
		return s
	}
	inner := s[len(codeFence) : len(s)-len(codeFence)]
	if rest := strings.TrimLeftFunc(inner, unicode.IsLetter); strings.HasPrefix(strings.TrimSpace(rest), "{") {
		inner = rest
	}
	return strings.TrimSpace(inner)
}
