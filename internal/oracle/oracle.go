// Package oracle talks to a generative-text service. The service's output
// is always treated as untrusted free text; DecodeLenient is the only way
// responses enter the rest of the system.
package oracle

import "context"

// Oracle generates a text completion for a prompt.
type Oracle interface {
	// Generate sends a prompt and returns the raw response text.
	Generate(ctx context.Context, prompt string) (string, error)
	// Close releases client resources.
	Close() error
}

var (
	_ Oracle = (*Gemini)(nil)
	_ Oracle = (*Ollama)(nil)
)
