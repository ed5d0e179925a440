package llm

import (
	"context"
	"errors"
)

var (
	// ErrRateLimited marks a backend refusal that should be retried after a cooldown.
	ErrRateLimited = errors.New("llm: rate limited")
	// ErrNoContent marks a successful response that carried no generated text.
	ErrNoContent = errors.New("llm: no content in response")
)

// Backend is a minimal chat interface to allow pluggable providers.
// It sends one prompt as a single user message and returns the generated text.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
