package interfaces

import (
	"context"
)

// GenerationRequest is a provider-agnostic single-prompt request.
type GenerationRequest struct {
	// Prompt is sent as the user turn.
	Prompt string

	// SystemInstruction frames the model; empty means none.
	SystemInstruction string

	// Temperature is the sampling temperature.
	Temperature float32

	// MaxOutputTokens caps the response length.
	MaxOutputTokens int
}

// TextProvider generates text from a prompt using a remote model.
// Implementations must return the provider's raw error text unchanged
// (wrapped is fine) so callers can classify rate-limit and quota errors.
type TextProvider interface {
	GenerateText(ctx context.Context, request *GenerationRequest) (string, error)

	// Name returns the provider identifier, e.g. "gemini".
	Name() string

	Close() error
}
