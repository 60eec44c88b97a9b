package llm

import (
	"context"
	"errors"
)

// ErrNoChoices is returned when the model answered without any choice.
var ErrNoChoices = errors.New("completion returned no choices")

// CompletionRequest is a single system+user exchange.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

// Completer turns a prompt into a text completion.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}
