package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/llmrouter/pkg/api"
	"github.com/rhuss/llmrouter/pkg/debug"
)

// DefaultTimeout applies to unary calls and listings when no timeout is configured.
const DefaultTimeout = 120 * time.Second

// Client performs HTTP requests against an OpenAI-compatible Chat
// Completions backend. Requests and responses use the common schema
// directly.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	host       string

	// Headers are added to every backend request (e.g., OpenRouter's
	// HTTP-Referer and X-Title attribution headers).
	Headers map[string]string
}

// NewClient creates a new Client for an OpenAI-compatible backend. baseURL
// is the API root that {base}/chat/completions and {base}/models hang off,
// for example "https://api.openai.com/v1". host names the backend in logs
// and metrics.
func NewClient(host, baseURL, apiKey string, timeout time.Duration) *Client {
	// Normalize: remove trailing slash from base URL.
	baseURL = strings.TrimRight(baseURL, "/")

	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
		host:    host,
	}
}

// Complete performs a unary chat call.
func (c *Client) Complete(ctx context.Context, req *api.ChatCompletionRequest) (*api.ChatCompletion, error) {
	reqCopy := *req
	reqCopy.Stream = false

	httpResp, err := c.postChat(ctx, c.httpClient, &reqCopy)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var completion api.ChatCompletion
	if err := json.NewDecoder(httpResp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("parsing %s chat response: %w", c.host, err)
	}
	return &completion, nil
}

// Stream performs a streaming chat call and returns once the backend has
// answered with a success status. Chunks are read on demand through the
// returned Stream.
//
// The HTTP client timeout is not applied for streaming requests because a
// stream can legitimately last longer than any fixed timeout. Lifecycle
// control relies on context cancellation instead.
func (c *Client) Stream(ctx context.Context, req *api.ChatCompletionRequest) (*Stream, error) {
	reqCopy := *req
	reqCopy.Stream = true

	// Use a client without timeout for streaming. The context controls
	// the request lifetime instead.
	streamClient := &http.Client{
		Transport: c.httpClient.Transport,
	}

	httpResp, err := c.postChat(ctx, streamClient, &reqCopy)
	if err != nil {
		return nil, err
	}
	return newStream(ctx, c.host, httpResp.Body), nil
}

func (c *Client) postChat(ctx context.Context, hc *http.Client, req *api.ChatCompletionRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s chat request: %w", c.host, err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating %s chat request: %w", c.host, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	c.setHeaders(httpReq)

	debug.Log("providers", "backend request", "host", c.host, "url", url, "model", req.Model, "stream", req.Stream)
	debug.Dump("providers", c.host+" POST "+url, body)

	httpResp, err := hc.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		apiErr := MapHTTPError(httpResp)
		debug.Log("providers", "backend error", "host", c.host, "status", apiErr.StatusCode, "type", apiErr.Type)
		return nil, apiErr
	}
	return httpResp, nil
}

// ListModels returns the models reported by {base}/models.
func (c *Client) ListModels(ctx context.Context) ([]api.Model, error) {
	url := c.baseURL + "/models"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating %s models request: %w", c.host, err)
	}
	c.setHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(httpResp)
	}

	var modelsResp ChatModelsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&modelsResp); err != nil {
		return nil, fmt.Errorf("parsing %s models response: %w", c.host, err)
	}
	return modelsResp.Data, nil
}

func (c *Client) setHeaders(r *http.Request) {
	if c.apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.Headers {
		r.Header.Set(k, v)
	}
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
