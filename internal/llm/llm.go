package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Client abstracts LLM providers for resume content generation.
type Client interface {
	GenerateContent(ctx context.Context, input GenerateInput) (json.RawMessage, error)
}

// GenerateInput captures the inputs for a content generation request.
type GenerateInput struct {
	ResumeJSON   string
	Title        string
	TargetRole   string
	Instructions string
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// GenerateContent returns ErrNotImplemented.
func (PlaceholderClient) GenerateContent(ctx context.Context, input GenerateInput) (json.RawMessage, error) {
	_ = ctx
	_ = input
	return nil, ErrNotImplemented
}
