package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rhuss/llmrouter/pkg/debug"
)

const (
	// DefaultBaseURL is the public Messages API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	// APIVersion is sent in the anthropic-version header.
	APIVersion = "2023-06-01"

	// DefaultTimeout applies to unary calls and listings when none is configured.
	DefaultTimeout = 120 * time.Second

	modelsPageSize = 100
)

// Client performs HTTP requests against the Messages API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a Client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// CreateMessage performs a unary POST /v1/messages.
func (c *Client) CreateMessage(ctx context.Context, req *MessageRequest) (*Message, error) {
	reqCopy := *req
	reqCopy.Stream = false

	httpResp, err := c.post(ctx, c.httpClient, &reqCopy)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var msg Message
	if err := json.NewDecoder(httpResp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("parsing anthropic message: %w", err)
	}
	return &msg, nil
}

// StreamMessage performs a streaming POST /v1/messages and returns the
// SSE body once the backend has answered with a success status. The
// caller owns the body.
//
// The HTTP client timeout is not applied to streams; the context controls
// their lifetime.
func (c *Client) StreamMessage(ctx context.Context, req *MessageRequest) (io.ReadCloser, error) {
	reqCopy := *req
	reqCopy.Stream = true

	streamClient := &http.Client{
		Transport: c.httpClient.Transport,
	}

	httpResp, err := c.post(ctx, streamClient, &reqCopy)
	if err != nil {
		return nil, err
	}
	return httpResp.Body, nil
}

func (c *Client) post(ctx context.Context, hc *http.Client, req *MessageRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling anthropic request: %w", err)
	}

	u := c.baseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	c.setHeaders(httpReq)

	debug.Log("providers", "backend request", "host", "anthropic", "url", u, "model", req.Model, "stream", req.Stream)
	debug.Dump("providers", "anthropic POST "+u, body)

	httpResp, err := hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend connection error: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		apiErr := MapHTTPError(httpResp)
		debug.Log("providers", "backend error", "host", "anthropic", "status", apiErr.StatusCode, "type", apiErr.Type)
		return nil, apiErr
	}
	return httpResp, nil
}

// ListModels walks every page of GET /v1/models.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var (
		all     []ModelInfo
		afterID string
	)
	for {
		page, err := c.listModelsPage(ctx, afterID)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Data...)

		if !page.HasMore || page.LastID == "" || page.LastID == afterID {
			return all, nil
		}
		afterID = page.LastID
	}
}

func (c *Client) listModelsPage(ctx context.Context, afterID string) (*ModelsPage, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(modelsPageSize))
	if afterID != "" {
		q.Set("after_id", afterID)
	}
	u := c.baseURL + "/v1/models?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating anthropic models request: %w", err)
	}
	c.setHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend connection error: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(httpResp)
	}

	var page ModelsPage
	if err := json.NewDecoder(httpResp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("parsing anthropic models page: %w", err)
	}
	return &page, nil
}

func (c *Client) setHeaders(r *http.Request) {
	r.Header.Set("x-api-key", c.apiKey)
	r.Header.Set("anthropic-version", APIVersion)
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
