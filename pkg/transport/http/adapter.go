package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/rhuss/llmrouter/pkg/api"
	"github.com/rhuss/llmrouter/pkg/debug"
	"github.com/rhuss/llmrouter/pkg/transport"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

// maxRequestIDLen bounds client-supplied request IDs.
const maxRequestIDLen = 128

// Adapter serves the OpenAI-compatible chat API over HTTP.
// It routes requests to the appropriate handler and serializes responses.
type Adapter struct {
	chat     transport.ChatHandler
	models   transport.ModelLister
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
	}
}

// NewAdapter creates an HTTP adapter. Middleware is applied to the
// ChatHandler in the given order.
func NewAdapter(chat transport.ChatHandler, models transport.ModelLister, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		chat = transport.Chain(middlewares...)(chat)
	}

	a := &Adapter{
		chat:     chat,
		models:   models,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.HandleFunc("POST /v1/chat/completions", a.handleChatCompletions)
	a.mux.HandleFunc("GET /v1/models", a.handleListModels)
	a.mux.HandleFunc("GET /healthz", a.handleHealthz)

	return a
}

// Handle registers an additional route, such as the metrics endpoint.
func (a *Adapter) Handle(pattern string, h http.Handler) {
	a.mux.Handle(pattern, h)
}

// Handler returns the http.Handler for this adapter, wrapped in request ID
// propagation. Extra HTTP middleware (auth, metrics) runs between the
// request ID layer and the router, in the given order.
func (a *Adapter) Handler(middlewares ...func(http.Handler) http.Handler) http.Handler {
	var h http.Handler = a.mux
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return httpRequestIDMiddleware(h)
}

// CancelStreams cancels every in-flight stream and returns how many there were.
func (a *Adapter) CancelStreams() int {
	return a.inflight.CancelAll()
}

// httpRequestIDMiddleware assigns each request an ID, taken from the
// X-Request-ID header when the client sent a usable one, stores it in the
// context, and echoes it in the response headers.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = api.NewRequestID()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(transport.ContextWithRequestID(r.Context(), id)))
	})
}

// handleChatCompletions handles POST /v1/chat/completions.
func (a *Adapter) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return
	}

	if apiErr := api.ValidateRequest(&req); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	debug.Log("transport", "chat request",
		"request_id", transport.RequestIDFromContext(r.Context()),
		"model", req.Model,
		"stream", req.Stream,
		"messages", len(req.Messages),
	)

	if req.Stream {
		a.handleStreaming(w, r, &req)
		return
	}

	rw := newSSEResponseWriter(w)
	if err := a.chat.ChatCompletion(r.Context(), &req, rw); err != nil {
		a.writeHandlerError(w, rw, err)
	}
}

// handleStreaming handles stream: true requests. The stream is registered
// in the in-flight registry so shutdown can cancel it.
func (a *Adapter) handleStreaming(w http.ResponseWriter, r *http.Request, req *api.ChatCompletionRequest) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id := transport.RequestIDFromContext(ctx)
	if id == "" {
		id = api.NewRequestID()
		ctx = transport.ContextWithRequestID(ctx, id)
	}
	a.inflight.Register(id, cancel)
	defer a.inflight.Remove(id)

	rw := newSSEResponseWriter(w)
	if err := a.chat.ChatCompletion(ctx, req, rw); err != nil {
		a.writeHandlerError(w, rw, err)
		return
	}
	if err := rw.finish(); err != nil {
		debug.Log("streaming", "finishing stream failed", "request_id", id, "error", err)
	}
}

// handleListModels handles GET /v1/models. The optional host query
// parameter narrows the listing to one host.
func (a *Adapter) handleListModels(w http.ResponseWriter, r *http.Request) {
	host := r.URL.Query().Get("host")

	models, err := a.models.ListModels(r.Context(), host)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	if models == nil {
		models = []api.Model{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(api.ModelList{Object: api.ObjectList, Data: models})
}

// handleHealthz handles GET /healthz.
func (a *Adapter) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}` + "\n"))
}

// writeHandlerError writes an error from the handler. Once a stream has
// started the status line is gone, so the error travels as a final data
// frame followed by [DONE]. Otherwise it is a standard JSON error response.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, rw *sseResponseWriter, err error) {
	apiErr, status := transport.APIErrorFromError(err)

	if rw.hasStartedStreaming() {
		if errors.Is(err, context.Canceled) {
			return
		}
		if writeErr := rw.writeError(apiErr); writeErr != nil {
			slog.Debug("writing stream error failed", "error", writeErr)
		}
		return
	}

	transport.WriteErrorResponse(w, apiErr, status)
}
