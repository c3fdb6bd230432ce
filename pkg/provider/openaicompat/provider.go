package openaicompat

import (
	"context"
	"time"

	"github.com/rhuss/llmrouter/pkg/api"
	"github.com/rhuss/llmrouter/pkg/debug"
	"github.com/rhuss/llmrouter/pkg/provider"
)

// Ensure Provider implements provider.Provider at compile time.
var _ provider.Provider = (*Provider)(nil)

// Config holds the configuration for one OpenAI-compatible host.
type Config struct {
	// Name is the host id (e.g., "openai", "deepseek").
	Name string

	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string

	// APIKey is sent as a Bearer token.
	APIKey string

	// Timeout applies to unary calls and listings. Zero means DefaultTimeout.
	Timeout time.Duration

	// Headers are added to every backend request.
	Headers map[string]string

	// Quirks is the per-model patch table. Nil means DefaultQuirks().
	Quirks QuirkTable
}

// Provider is the pass-through adapter for one OpenAI-compatible host.
type Provider struct {
	name   string
	client *Client
	quirks QuirkTable
}

// New creates a pass-through adapter.
func New(cfg Config) *Provider {
	quirks := cfg.Quirks
	if quirks == nil {
		quirks = DefaultQuirks()
	}

	client := NewClient(cfg.Name, cfg.BaseURL, cfg.APIKey, cfg.Timeout)
	client.Headers = cfg.Headers

	return &Provider{
		name:   cfg.Name,
		client: client,
		quirks: quirks,
	}
}

// Name returns the host id.
func (p *Provider) Name() string {
	return p.name
}

// Quirks returns the quirk table in effect.
func (p *Provider) Quirks() QuirkTable {
	return p.quirks
}

// ListModels returns the host's models minus those marked Unlisted.
// Entries are returned as reported by the host.
func (p *Provider) ListModels(ctx context.Context) ([]api.Model, error) {
	models, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	filtered := models[:0]
	for _, m := range models {
		if p.quirks.Unlisted(m.ID) {
			debug.Log("providers", "hiding unlisted model", "host", p.name, "model", m.ID)
			continue
		}
		filtered = append(filtered, m)
	}
	return filtered, nil
}

// Chat forwards req after applying the model's quirk entry. Backend
// failures are returned as *Error.
func (p *Provider) Chat(ctx context.Context, req *api.ChatCompletionRequest) (*provider.ChatResult, error) {
	patched := req
	if q, ok := p.quirks[req.Model]; ok {
		patched = q.Apply(req)
		debug.Log("providers", "applied model quirk", "host", p.name, "model", req.Model)
	}

	if patched.Stream {
		stream, err := p.client.Stream(ctx, patched)
		if err != nil {
			return nil, err
		}
		return &provider.ChatResult{Stream: stream}, nil
	}

	completion, err := p.client.Complete(ctx, patched)
	if err != nil {
		return nil, err
	}
	return &provider.ChatResult{Completion: completion}, nil
}

// Close releases the HTTP client.
func (p *Provider) Close() error {
	return p.client.Close()
}
