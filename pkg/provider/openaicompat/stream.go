package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rhuss/llmrouter/pkg/api"
	"github.com/rhuss/llmrouter/pkg/debug"
	"github.com/rhuss/llmrouter/pkg/observability"
	"github.com/rhuss/llmrouter/pkg/provider"
	"github.com/rhuss/llmrouter/pkg/provider/sse"
)

// Ensure Stream implements provider.ChunkStream at compile time.
var _ provider.ChunkStream = (*Stream)(nil)

// streamEnvelope is one SSE data payload. Some hosts report failures
// in-band as {"error": {...}} after the stream has started.
type streamEnvelope struct {
	api.ChatCompletionChunk
	Error *struct {
		Message string          `json:"message"`
		Type    string          `json:"type"`
		Code    json.RawMessage `json:"code"`
	} `json:"error,omitempty"`
}

// Stream reads Chat Completions SSE chunks from a backend response body.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	\n
//	data: [DONE]\n
//	\n
//
// Malformed chunks are logged and skipped. Context cancellation ends the
// stream with io.EOF.
type Stream struct {
	ctx  context.Context
	host string
	body io.ReadCloser
	dec  *sse.Decoder
	done bool
}

func newStream(ctx context.Context, host string, body io.ReadCloser) *Stream {
	return &Stream{
		ctx:  ctx,
		host: host,
		body: body,
		dec:  sse.NewDecoder(body),
	}
}

// Recv returns the next chunk, or io.EOF after [DONE], end of body, or
// cancellation.
func (s *Stream) Recv() (*api.ChatCompletionChunk, error) {
	for !s.done {
		ev, err := s.dec.Next()
		if err != nil {
			s.finish()
			if errors.Is(err, io.EOF) || s.ctx.Err() != nil {
				return nil, io.EOF
			}
			observability.StreamErrorsTotal.WithLabelValues(s.host, "read").Inc()
			return nil, fmt.Errorf("reading %s stream: %w", s.host, err)
		}

		if ev.Done() {
			s.finish()
			return nil, io.EOF
		}

		var env streamEnvelope
		if err := json.Unmarshal([]byte(ev.Data), &env); err != nil {
			observability.StreamErrorsTotal.WithLabelValues(s.host, "decode").Inc()
			slog.Warn("skipping malformed SSE chunk",
				"host", s.host,
				"error", err.Error(),
				"data", Truncate(ev.Data, 200),
			)
			continue
		}

		if env.Error != nil {
			s.finish()
			observability.StreamErrorsTotal.WithLabelValues(s.host, "backend").Inc()
			return nil, &Error{
				StatusCode: 502,
				Type:       env.Error.Type,
				Code:       decodeCode(env.Error.Code),
				Message:    env.Error.Message,
			}
		}

		if debug.Enabled("streaming") {
			debug.Log("streaming", "chunk", "host", s.host, "id", env.ID, "choices", len(env.Choices))
		}
		chunk := env.ChatCompletionChunk
		return &chunk, nil
	}
	return nil, io.EOF
}

// Close releases the backend connection.
func (s *Stream) Close() error {
	s.finish()
	return nil
}

func (s *Stream) finish() {
	if s.done {
		return
	}
	s.done = true
	s.body.Close()
}
