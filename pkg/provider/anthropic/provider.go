package anthropic

import (
	"context"
	"fmt"
	"time"

	"github.com/rhuss/llmrouter/pkg/api"
	"github.com/rhuss/llmrouter/pkg/debug"
	"github.com/rhuss/llmrouter/pkg/provider"
)

// Ensure Provider implements provider.Provider at compile time.
var _ provider.Provider = (*Provider)(nil)

// HostName is the default host id of the bridge.
const HostName = "anthropic"

// Config holds the bridge configuration.
type Config struct {
	// Name is the host id. Empty means HostName.
	Name string

	// BaseURL overrides DefaultBaseURL.
	BaseURL string

	// APIKey is sent in the x-api-key header.
	APIKey string

	// Timeout applies to unary calls and listings.
	Timeout time.Duration

	// StrictStreamErrors makes mid-stream failures surface from Recv
	// instead of ending the stream quietly.
	StrictStreamErrors bool
}

// Provider bridges the common chat schema to the Messages API.
type Provider struct {
	name   string
	client *Client
	strict bool

	// now supplies the capture time of unary responses.
	now func() time.Time
}

// New creates the bridge adapter.
func New(cfg Config) *Provider {
	name := cfg.Name
	if name == "" {
		name = HostName
	}
	return &Provider{
		name:   name,
		client: NewClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout),
		strict: cfg.StrictStreamErrors,
		now:    time.Now,
	}
}

// Name returns the host id.
func (p *Provider) Name() string {
	return p.name
}

// ListModels lists backend models. created is the model's creation time
// in epoch milliseconds, object is the backend's type tag, and the owner
// is left empty.
func (p *Provider) ListModels(ctx context.Context) ([]api.Model, error) {
	infos, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	models := make([]api.Model, 0, len(infos))
	for _, info := range infos {
		var created int64
		if info.CreatedAt != "" {
			t, err := time.Parse(time.RFC3339, info.CreatedAt)
			if err != nil {
				return nil, fmt.Errorf("model %s: parsing created_at: %w", info.ID, err)
			}
			created = t.UnixMilli()
		}
		models = append(models, api.Model{
			ID:      info.ID,
			Object:  info.Type,
			Created: created,
			OwnedBy: "",
		})
	}
	return models, nil
}

// Chat maps req to a Messages API call. Translation failures are returned
// before any backend call; backend failures are returned as *Error.
func (p *Provider) Chat(ctx context.Context, req *api.ChatCompletionRequest) (*provider.ChatResult, error) {
	if req.Model == "" {
		return nil, &api.ModelNotFoundError{Model: req.Model}
	}

	msgReq, err := MapRequest(req)
	if err != nil {
		return nil, err
	}
	debug.Log("providers", "mapped request", "host", p.name, "model", msgReq.Model,
		"messages", len(msgReq.Messages), "system", len(msgReq.System) > 0, "max_tokens", msgReq.MaxTokens)

	if msgReq.Stream {
		body, err := p.client.StreamMessage(ctx, msgReq)
		if err != nil {
			return nil, err
		}
		return &provider.ChatResult{
			Stream: NewStream(ctx, p.name, body, msgReq.Model, p.strict),
		}, nil
	}

	msg, err := p.client.CreateMessage(ctx, msgReq)
	if err != nil {
		return nil, err
	}
	return &provider.ChatResult{Completion: MapResponse(msg, p.now())}, nil
}

// Close releases the HTTP client.
func (p *Provider) Close() error {
	return p.client.Close()
}
