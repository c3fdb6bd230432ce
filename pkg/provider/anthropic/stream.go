package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rhuss/llmrouter/pkg/api"
	"github.com/rhuss/llmrouter/pkg/debug"
	"github.com/rhuss/llmrouter/pkg/observability"
	"github.com/rhuss/llmrouter/pkg/provider"
	"github.com/rhuss/llmrouter/pkg/provider/sse"
)

// StreamMapper turns backend stream events into common chunks. It carries
// the message id and model from message_start and the latest stop reason.
// A mapper serves one stream and is not safe for concurrent use.
type StreamMapper struct {
	id         string
	model      string
	stopReason *StopReason
	started    bool

	// now supplies chunk timestamps.
	now func() time.Time
}

// NewStreamMapper returns a mapper for a stream requested for model.
func NewStreamMapper(model string) *StreamMapper {
	return &StreamMapper{model: model, now: time.Now}
}

// ID returns the carried message id.
func (m *StreamMapper) ID() string {
	return m.id
}

// Map converts one event. It returns a nil chunk for events that produce
// none (ping, error, unknown types) and done=true for message_stop.
func (m *StreamMapper) Map(ev *StreamEvent) (chunk *api.ChatCompletionChunk, done bool) {
	var delta api.ChunkDelta

	switch ev.Type {
	case EventMessageStart:
		if ev.Message != nil && !m.started {
			m.started = true
			m.id = ev.Message.ID
			if ev.Message.Model != "" {
				m.model = ev.Message.Model
			}
		}
		if ev.Message != nil {
			m.stopReason = ev.Message.StopReason
		}
		delta = api.ChunkDelta{Role: api.RoleAssistant, Content: api.String("")}

	case EventContentBlockStart, EventContentBlockStop:
		delta = api.ChunkDelta{Content: api.String("")}

	case EventContentBlockDelta:
		delta = mapDelta(ev.Delta)

	case EventMessageDelta:
		if ev.Delta != nil && ev.Delta.StopReason != nil {
			m.stopReason = ev.Delta.StopReason
		}

	case EventMessageStop:
		stop := api.FinishReasonStop
		return m.chunk(delta, &stop), true

	default:
		return nil, false
	}

	return m.chunk(delta, MapFinishReason(m.stopReason)), false
}

func (m *StreamMapper) chunk(delta api.ChunkDelta, finish *api.FinishReason) *api.ChatCompletionChunk {
	return &api.ChatCompletionChunk{
		ID:      m.id,
		Object:  api.ObjectChatCompletionChunk,
		Created: m.now().Unix(),
		Model:   m.model,
		Choices: []api.ChunkChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finish,
		}},
	}
}

// mapDelta selects the delta content for a content_block_delta event.
func mapDelta(d *EventDelta) api.ChunkDelta {
	if d == nil {
		return api.ChunkDelta{}
	}
	switch d.Type {
	case DeltaText:
		return api.ChunkDelta{Content: api.String(d.Text)}
	case DeltaInputJSON:
		return api.ChunkDelta{Content: api.String(d.PartialJSON)}
	case DeltaThinking:
		return api.ChunkDelta{Content: api.String(d.Thinking)}
	case DeltaSignature:
		return api.ChunkDelta{Content: api.String(d.Signature)}
	case DeltaCitations:
		citation := string(d.Citation)
		if citation == "" {
			citation = "null"
		}
		return api.ChunkDelta{Content: api.String(citation)}
	default:
		return api.ChunkDelta{}
	}
}

// Ensure Stream implements provider.ChunkStream at compile time.
var _ provider.ChunkStream = (*Stream)(nil)

// Stream reads Messages API SSE events and yields common chunks, one per
// Recv call with no read-ahead.
//
// Cancellation of the request context ends the stream with io.EOF. Other
// failures after the stream has started (read errors, malformed events,
// backend error events, a body that ends before message_stop) are logged
// and counted, and the stream ends with io.EOF, unless the stream is
// strict, in which case Recv returns them.
type Stream struct {
	ctx    context.Context
	host   string
	body   io.ReadCloser
	dec    *sse.Decoder
	mapper *StreamMapper
	strict bool
	done   bool
}

// NewStream wraps an SSE body. model is the bare model the stream was
// requested for.
func NewStream(ctx context.Context, host string, body io.ReadCloser, model string, strict bool) *Stream {
	return &Stream{
		ctx:    ctx,
		host:   host,
		body:   body,
		dec:    sse.NewDecoder(body),
		mapper: NewStreamMapper(model),
		strict: strict,
	}
}

// Recv returns the next chunk or io.EOF once the stream has ended.
func (s *Stream) Recv() (*api.ChatCompletionChunk, error) {
	for !s.done {
		ev, err := s.dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return s.fail("truncated", fmt.Errorf("anthropic stream ended before %s: %w", EventMessageStop, io.ErrUnexpectedEOF))
			}
			return s.fail("read", fmt.Errorf("reading anthropic stream: %w", err))
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(ev.Data), &event); err != nil {
			return s.fail("decode", fmt.Errorf("decoding anthropic %q event: %w", ev.Name, err))
		}
		if event.Type == "" {
			event.Type = ev.Name
		}

		if event.Type == EventError {
			var detail ErrorDetail
			if event.Error != nil {
				detail = *event.Error
			}
			return s.fail("backend", errorFromEvent(detail))
		}

		chunk, done := s.mapper.Map(&event)
		if done {
			s.finish()
		}
		if chunk != nil {
			if debug.Enabled("streaming") {
				debug.Log("streaming", "chunk", "host", s.host, "event", event.Type, "id", chunk.ID)
			}
			return chunk, nil
		}
	}
	return nil, io.EOF
}

// fail ends the stream after a mid-stream failure.
func (s *Stream) fail(kind string, err error) (*api.ChatCompletionChunk, error) {
	s.finish()
	if s.ctx.Err() != nil {
		return nil, io.EOF
	}

	observability.StreamErrorsTotal.WithLabelValues(s.host, kind).Inc()
	if s.strict {
		return nil, err
	}
	slog.Warn("stream ended after backend failure",
		"host", s.host,
		"kind", kind,
		"message_id", s.mapper.ID(),
		"error", err.Error(),
	)
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
