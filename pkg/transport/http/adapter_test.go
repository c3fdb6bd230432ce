package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/llmrouter/pkg/api"
	"github.com/rhuss/llmrouter/pkg/provider"
	"github.com/rhuss/llmrouter/pkg/transport"
)

// mockChatter is a configurable Chatter for testing.
type mockChatter struct {
	completion *api.ChatCompletion
	chunks     []*api.ChatCompletionChunk
	streamErr  error
	err        error
	gotReq     *api.ChatCompletionRequest
	gotReqID   string
}

func (m *mockChatter) Chat(ctx context.Context, req *api.ChatCompletionRequest) (*provider.ChatResult, error) {
	m.gotReq = req
	m.gotReqID = transport.RequestIDFromContext(ctx)
	if m.err != nil {
		return nil, m.err
	}
	if req.Stream {
		return &provider.ChatResult{Stream: provider.NewSliceStream(m.chunks, m.streamErr)}, nil
	}
	return &provider.ChatResult{Completion: m.completion}, nil
}

// mockLister is a configurable ModelLister for testing.
type mockLister struct {
	models  []api.Model
	err     error
	gotHost string
}

func (m *mockLister) ListModels(_ context.Context, host string) ([]api.Model, error) {
	m.gotHost = host
	return m.models, m.err
}

func newTestAdapter(chatter *mockChatter, lister *mockLister) *Adapter {
	if lister == nil {
		lister = &mockLister{}
	}
	return NewAdapter(transport.Dispatch(chatter), lister, DefaultConfig(),
		transport.Recovery(), transport.RequestID())
}

func chatBody(t *testing.T, model string, stream bool) *bytes.Reader {
	t.Helper()
	req := api.ChatCompletionRequest{
		Model:    model,
		Messages: []api.ChatMessage{{Role: api.RoleUser, Content: api.TextContent("hi")}},
		Stream:   stream,
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(data)
}

func doRequest(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) *api.APIError {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("missing error object")
	}
	return resp.Error
}

func TestChatCompletionLeavesValueLimitsToBackend(t *testing.T) {
	chatter := &mockChatter{completion: &api.ChatCompletion{ID: "msg_1", Object: api.ObjectChatCompletion}}
	a := newTestAdapter(chatter, nil)

	stops := make([]string, 17)
	for i := range stops {
		stops[i] = "s"
	}
	body, err := json.Marshal(map[string]any{
		"model":       "claude-x@anthropic",
		"messages":    []map[string]any{{"role": "user", "content": "hi"}},
		"max_tokens":  0,
		"temperature": 5,
		"stop":        stops,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest("POST", "/v1/chat/completions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := doRequest(a.Handler(), req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if chatter.gotReq == nil || len(chatter.gotReq.Stop) != 17 {
		t.Fatalf("request should reach the backend unchanged, got %+v", chatter.gotReq)
	}
	if chatter.gotReq.MaxTokens == nil || *chatter.gotReq.MaxTokens != 0 {
		t.Errorf("max_tokens forwarded = %v, want 0", chatter.gotReq.MaxTokens)
	}
}

func TestChatCompletionUnary(t *testing.T) {
	chatter := &mockChatter{completion: &api.ChatCompletion{
		ID:      "chatcmpl-1",
		Object:  api.ObjectChatCompletion,
		Model:   "gpt-4o",
		Choices: []api.Choice{{Message: api.CompletionMessage{Role: api.RoleAssistant, Content: "hello"}, FinishReason: api.FinishReasonStop}},
	}}
	a := newTestAdapter(chatter, nil)

	req := httptest.NewRequest("POST", "/v1/chat/completions", chatBody(t, "gpt-4o@openai", false))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := doRequest(a.Handler(), req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if chatter.gotReq.Model != "gpt-4o@openai" {
		t.Errorf("model forwarded = %q", chatter.gotReq.Model)
	}

	id := rec.Header().Get(HeaderRequestID)
	if !api.ValidateRequestID(id) {
		t.Errorf("X-Request-ID = %q, want generated ID", id)
	}
	if chatter.gotReqID != id {
		t.Errorf("context request ID = %q, header = %q", chatter.gotReqID, id)
	}

	var got api.ChatCompletion
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Choices[0].Message.Content != "hello" {
		t.Errorf("content = %q", got.Choices[0].Message.Content)
	}
}

func TestRequestIDFromClient(t *testing.T) {
	chatter := &mockChatter{completion: &api.ChatCompletion{ID: "c"}}
	a := newTestAdapter(chatter, nil)

	req := httptest.NewRequest("POST", "/v1/chat/completions", chatBody(t, "m@h", false))
	req.Header.Set(HeaderRequestID, "client-trace-42")
	rec := doRequest(a.Handler(), req)

	if got := rec.Header().Get(HeaderRequestID); got != "client-trace-42" {
		t.Errorf("X-Request-ID = %q, want client value", got)
	}
	if chatter.gotReqID != "client-trace-42" {
		t.Errorf("context request ID = %q", chatter.gotReqID)
	}

	req = httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", maxRequestIDLen+1))
	rec = doRequest(a.Handler(), req)
	if got := rec.Header().Get(HeaderRequestID); !api.ValidateRequestID(got) {
		t.Errorf("oversized client ID should be replaced, got %q", got)
	}
}

func TestChatCompletionStream(t *testing.T) {
	chatter := &mockChatter{chunks: []*api.ChatCompletionChunk{testChunk("Hel"), testChunk("lo")}}
	a := newTestAdapter(chatter, nil)

	rec := doRequest(a.Handler(), httptest.NewRequest("POST", "/v1/chat/completions", chatBody(t, "m@h", true)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	body := rec.Body.String()
	if n := strings.Count(body, "data: {"); n != 2 {
		t.Errorf("chunk frames = %d, want 2: %q", n, body)
	}
	if !strings.HasSuffix(body, doneFrame) {
		t.Errorf("stream should end with [DONE]: %q", body)
	}
	if a.inflight.Len() != 0 {
		t.Errorf("in-flight registry holds %d streams after completion", a.inflight.Len())
	}
}

func TestChatCompletionStreamFailsMidway(t *testing.T) {
	chatter := &mockChatter{
		chunks:    []*api.ChatCompletionChunk{testChunk("partial")},
		streamErr: &api.ModalityNotSupportedError{Modality: "audio"},
	}
	a := newTestAdapter(chatter, nil)

	rec := doRequest(a.Handler(), httptest.NewRequest("POST", "/v1/chat/completions", chatBody(t, "m@h", true)))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, headers were already sent", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"error":{"type":"invalid_request_error","code":"modality_not_supported"`) {
		t.Errorf("error frame missing: %q", body)
	}
	if !strings.HasSuffix(body, doneFrame) {
		t.Errorf("stream should end with [DONE]: %q", body)
	}
}

func TestChatCompletionErrors(t *testing.T) {
	tests := []struct {
		name        string
		chatErr     error
		body        string
		contentType string
		wantStatus  int
		wantType    api.ErrorType
	}{
		{
			name:       "host not found",
			chatErr:    &api.HostNotFoundError{Host: "mars"},
			body:       `{"model":"m@mars","messages":[{"role":"user","content":"hi"}]}`,
			wantStatus: http.StatusNotFound,
			wantType:   api.ErrorTypeNotFound,
		},
		{
			name:       "missing messages",
			body:       `{"model":"m@h","messages":[]}`,
			wantStatus: http.StatusBadRequest,
			wantType:   api.ErrorTypeInvalidRequest,
		},
		{
			name:       "unknown role",
			body:       `{"model":"m@h","messages":[{"role":"narrator","content":"hi"}]}`,
			wantStatus: http.StatusBadRequest,
			wantType:   api.ErrorTypeInvalidRequest,
		},
		{
			name:       "invalid JSON",
			body:       `{"model":`,
			wantStatus: http.StatusBadRequest,
			wantType:   api.ErrorTypeInvalidRequest,
		},
		{
			name:        "wrong content type",
			body:        `model=m`,
			contentType: "application/x-www-form-urlencoded",
			wantStatus:  http.StatusUnsupportedMediaType,
			wantType:    api.ErrorTypeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(&mockChatter{err: tt.chatErr}, nil)

			req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := doRequest(a.Handler(), req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if apiErr := decodeAPIError(t, rec); apiErr.Type != tt.wantType {
				t.Errorf("error type = %q, want %q", apiErr.Type, tt.wantType)
			}
		})
	}
}

func TestChatCompletionBodyTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodySize = 32
	a := NewAdapter(transport.Dispatch(&mockChatter{}), &mockLister{}, cfg)

	body := `{"model":"m@h","messages":[{"role":"user","content":"` + strings.Repeat("x", 64) + `"}]}`
	rec := doRequest(a.Handler(), httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestChatCompletionBackendStatusForwarded(t *testing.T) {
	backendErr := &fakeBackendError{status: 529, typ: "overloaded_error"}
	a := newTestAdapter(&mockChatter{err: backendErr}, nil)

	rec := doRequest(a.Handler(), httptest.NewRequest("POST", "/v1/chat/completions", chatBody(t, "m@h", false)))

	if rec.Code != 529 {
		t.Errorf("status = %d, want 529", rec.Code)
	}
	apiErr := decodeAPIError(t, rec)
	if apiErr.Type != api.ErrorTypeUpstream || apiErr.Code != "overloaded_error" {
		t.Errorf("error = %+v", apiErr)
	}
}

type fakeBackendError struct {
	status int
	typ    string
}

func (e *fakeBackendError) Error() string     { return "backend said no" }
func (e *fakeBackendError) HTTPStatus() int   { return e.status }
func (e *fakeBackendError) ErrorType() string { return e.typ }

func TestListModels(t *testing.T) {
	lister := &mockLister{models: []api.Model{
		{ID: "gpt-4o@openai", Object: api.ObjectModel, Created: 2},
		{ID: "claude-3-5-haiku@anthropic", Object: api.ObjectModel, Created: 1},
	}}
	a := newTestAdapter(&mockChatter{}, lister)

	rec := doRequest(a.Handler(), httptest.NewRequest("GET", "/v1/models", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if lister.gotHost != "" {
		t.Errorf("host = %q, want empty for aggregated listing", lister.gotHost)
	}

	var got api.ModelList
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Object != api.ObjectList || len(got.Data) != 2 || got.Data[0].ID != "gpt-4o@openai" {
		t.Errorf("listing = %+v", got)
	}
}

func TestListModelsByHost(t *testing.T) {
	lister := &mockLister{}
	a := newTestAdapter(&mockChatter{}, lister)

	rec := doRequest(a.Handler(), httptest.NewRequest("GET", "/v1/models?host=anthropic", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if lister.gotHost != "anthropic" {
		t.Errorf("host = %q, want anthropic", lister.gotHost)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("empty listing should encode as an empty array: %s", rec.Body.String())
	}

	lister.err = &api.HostNotFoundError{Host: "mars"}
	rec = doRequest(a.Handler(), httptest.NewRequest("GET", "/v1/models?host=mars", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown host status = %d, want 404", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	a := newTestAdapter(&mockChatter{}, nil)
	rec := doRequest(a.Handler(), httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestUnknownRoute(t *testing.T) {
	a := newTestAdapter(&mockChatter{}, nil)
	rec := doRequest(a.Handler(), httptest.NewRequest("GET", "/v1/responses", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	rec = doRequest(a.Handler(), httptest.NewRequest("GET", "/v1/chat/completions", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET chat status = %d, want 405", rec.Code)
	}
}
