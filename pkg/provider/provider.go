package provider

import (
	"context"

	"github.com/rhuss/llmrouter/pkg/api"
)

// Provider abstracts one LLM host. Each adapter handles its own backend
// protocol internally and speaks the common chat-completion schema at its
// boundary.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the adapter identifier (e.g., "anthropic", "openai").
	Name() string

	// ListModels returns the models the host can serve, with bare ids.
	ListModels(ctx context.Context) ([]api.Model, error)

	// Chat performs one chat call. The model in req is already bare.
	// When req.Stream is set the result carries a Stream, otherwise a
	// Completion.
	Chat(ctx context.Context, req *api.ChatCompletionRequest) (*ChatResult, error)

	// Close releases adapter resources (HTTP clients, connections).
	Close() error
}
