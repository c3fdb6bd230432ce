package transport

import (
	"context"

	"github.com/rhuss/llmrouter/pkg/api"
)

// RequestID returns middleware that assigns a unique request ID to each
// call. If the context already carries one (set by the HTTP adapter from
// the X-Request-ID header), that value is kept.
func RequestID() Middleware {
	return func(next ChatHandler) ChatHandler {
		return ChatHandlerFunc(func(ctx context.Context, req *api.ChatCompletionRequest, w ResponseWriter) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, api.NewRequestID())
			}
			return next.ChatCompletion(ctx, req, w)
		})
	}
}
