package transport

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/rhuss/llmrouter/pkg/api"
)

// Logging returns middleware that emits one structured log entry per chat
// call with the request ID, model, host, stream flag, and duration.
// HTTP status codes are not visible at this level; the HTTP adapter's
// metrics middleware records those.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ChatHandler) ChatHandler {
		return ChatHandlerFunc(func(ctx context.Context, req *api.ChatCompletionRequest, w ResponseWriter) error {
			start := time.Now()

			err := next.ChatCompletion(ctx, req, w)

			host := ""
			if i := strings.LastIndex(req.Model, "@"); i >= 0 {
				host = req.Model[i+1:]
			}

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("model", req.Model),
				slog.String("host", host),
				slog.Bool("stream", req.Stream),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "chat failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "chat completed", attrs...)
			}

			return err
		})
	}
}
