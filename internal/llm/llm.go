package llm

import (
	"context"
	"errors"
	"fmt"
)

// Generator abstracts text-generation providers. Implementations are selected
// at construction time; a prompt plus a fixed system instruction goes in, the
// generated text comes out.
type Generator interface {
	Generate(ctx context.Context, systemInstruction, prompt string) (string, error)
}

// ErrMissingAPIKey signals that the provider credential is absent. It is
// checked before any remote call is attempted.
var ErrMissingAPIKey = errors.New("llm: API key is missing")

// ProviderError wraps a failure reported by (or while reaching) the remote
// provider. Callers branch on it with errors.As.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
