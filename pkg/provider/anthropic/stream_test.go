package anthropic

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/rhuss/llmrouter/pkg/api"
	"github.com/rhuss/llmrouter/pkg/observability"
	"github.com/rhuss/llmrouter/pkg/provider"
)

// sseBody renders (event, data) pairs as an SSE stream.
func sseBody(events ...[2]string) string {
	var b strings.Builder
	for _, ev := range events {
		b.WriteString("event: " + ev[0] + "\n")
		b.WriteString("data: " + ev[1] + "\n\n")
	}
	return b.String()
}

var conversation = [][2]string{
	{"message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-20241022","content":[],"stop_reason":null}}`},
	{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
	{"ping", `{"type":"ping"}`},
	{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`},
	{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}`},
	{"content_block_stop", `{"type":"content_block_stop","index":0}`},
	{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":2}}`},
	{"message_stop", `{"type":"message_stop"}`},
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func newTestStream(ctx context.Context, body io.Reader, strict bool) (*Stream, *closeTracker) {
	rc := &closeTracker{Reader: body}
	s := NewStream(ctx, "anthropic", rc, "claude-3-5-haiku", strict)
	s.mapper.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s, rc
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := vec.WithLabelValues(labels...).Write(m); err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestStreamConversation(t *testing.T) {
	s, body := newTestStream(context.Background(), strings.NewReader(sseBody(conversation...)), false)

	chunks, err := provider.CollectChunks(s)
	if err != nil {
		t.Fatalf("CollectChunks: %v", err)
	}
	if !body.closed {
		t.Error("body should be closed")
	}

	// ping produces no chunk.
	if len(chunks) != 7 {
		t.Fatalf("got %d chunks, want 7", len(chunks))
	}

	for i, c := range chunks {
		if c.ID != "msg_1" {
			t.Errorf("chunk %d ID = %q, want msg_1", i, c.ID)
		}
		if c.Model != "claude-3-5-haiku-20241022" {
			t.Errorf("chunk %d Model = %q", i, c.Model)
		}
		if c.Object != api.ObjectChatCompletionChunk || c.Created != 1700000000 {
			t.Errorf("chunk %d = %+v", i, c)
		}
		if len(c.Choices) != 1 || c.Choices[0].Index != 0 {
			t.Fatalf("chunk %d choices = %+v", i, c.Choices)
		}
	}

	first := chunks[0].Choices[0]
	if first.Delta.Role != api.RoleAssistant {
		t.Errorf("first delta role = %q, want assistant", first.Delta.Role)
	}
	if first.FinishReason != nil {
		t.Errorf("first finish reason = %q, want nil", *first.FinishReason)
	}

	var text strings.Builder
	for _, c := range chunks[1:] {
		if c.Choices[0].Delta.Role != "" {
			t.Errorf("only the first chunk carries a role, got %q", c.Choices[0].Delta.Role)
		}
		if c.Choices[0].Delta.Content != nil {
			text.WriteString(*c.Choices[0].Delta.Content)
		}
	}
	if text.String() != "Hello" {
		t.Errorf("text = %q, want Hello", text.String())
	}

	delta := chunks[5].Choices[0]
	if delta.FinishReason == nil || *delta.FinishReason != api.FinishReasonStop {
		t.Errorf("message_delta finish reason = %v, want stop", delta.FinishReason)
	}
	if delta.Delta.Content != nil {
		t.Errorf("message_delta content = %q, want none", *delta.Delta.Content)
	}

	last := chunks[6].Choices[0]
	if last.FinishReason == nil || *last.FinishReason != api.FinishReasonStop {
		t.Errorf("message_stop finish reason = %v, want stop", last.FinishReason)
	}
}

func TestStreamMapperCarriesStopReason(t *testing.T) {
	m := NewStreamMapper("claude")
	m.Map(&StreamEvent{Type: EventMessageStart, Message: &Message{ID: "msg_9"}})

	maxTokens := StopMaxTokens
	chunk, done := m.Map(&StreamEvent{Type: EventMessageDelta, Delta: &EventDelta{StopReason: &maxTokens}})
	if done {
		t.Fatal("message_delta should not end the stream")
	}
	if chunk.Model != "claude" {
		t.Errorf("Model = %q, want requested model when message_start has none", chunk.Model)
	}
	if fr := chunk.Choices[0].FinishReason; fr == nil || *fr != api.FinishReasonLength {
		t.Errorf("finish reason = %v, want length", fr)
	}

	chunk, _ = m.Map(&StreamEvent{Type: EventContentBlockStop})
	if fr := chunk.Choices[0].FinishReason; fr == nil || *fr != api.FinishReasonLength {
		t.Errorf("carried finish reason = %v, want length", fr)
	}

	chunk, done = m.Map(&StreamEvent{Type: EventMessageStop})
	if !done {
		t.Error("message_stop should end the stream")
	}
	if fr := chunk.Choices[0].FinishReason; fr == nil || *fr != api.FinishReasonStop {
		t.Errorf("message_stop finish reason = %v, want stop", fr)
	}
	if m.ID() != "msg_9" {
		t.Errorf("ID() = %q", m.ID())
	}
}

func TestStreamMapperDeltaKinds(t *testing.T) {
	tests := []struct {
		delta EventDelta
		want  string
	}{
		{EventDelta{Type: DeltaText, Text: "t"}, "t"},
		{EventDelta{Type: DeltaInputJSON, PartialJSON: `{"a":`}, `{"a":`},
		{EventDelta{Type: DeltaThinking, Thinking: "reasoning"}, "reasoning"},
		{EventDelta{Type: DeltaSignature, Signature: "sig"}, "sig"},
		{EventDelta{Type: DeltaCitations, Citation: []byte(`{"cited_text":"x"}`)}, `{"cited_text":"x"}`},
		{EventDelta{Type: DeltaCitations}, "null"},
	}
	m := NewStreamMapper("claude")
	for _, tt := range tests {
		d := tt.delta
		chunk, _ := m.Map(&StreamEvent{Type: EventContentBlockDelta, Delta: &d})
		got := chunk.Choices[0].Delta.Content
		if got == nil || *got != tt.want {
			t.Errorf("delta %s content = %v, want %q", tt.delta.Type, got, tt.want)
		}
	}

	if chunk, done := m.Map(&StreamEvent{Type: "future_event"}); chunk != nil || done {
		t.Errorf("unknown event = %v, %v; want nil, false", chunk, done)
	}
}

func TestStreamErrorEventEndsQuietly(t *testing.T) {
	before := counterValue(t, observability.StreamErrorsTotal, "anthropic", "backend")

	body := sseBody(
		conversation[0],
		[2]string{"error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`},
		conversation[7],
	)
	s, rc := newTestStream(context.Background(), strings.NewReader(body), false)

	if _, err := s.Recv(); err != nil {
		t.Fatalf("first Recv: %v", err)
	}
	if _, err := s.Recv(); err != io.EOF {
		t.Fatalf("Recv after error event = %v, want io.EOF", err)
	}
	if _, err := s.Recv(); err != io.EOF {
		t.Errorf("Recv after end = %v, want io.EOF", err)
	}
	if !rc.closed {
		t.Error("body should be closed after failure")
	}

	if got := counterValue(t, observability.StreamErrorsTotal, "anthropic", "backend") - before; got != 1 {
		t.Errorf("stream error counter delta = %v, want 1", got)
	}
}

func TestStreamErrorEventStrict(t *testing.T) {
	body := sseBody(
		conversation[0],
		[2]string{"error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`},
	)
	s, _ := newTestStream(context.Background(), strings.NewReader(body), true)

	if _, err := s.Recv(); err != nil {
		t.Fatalf("first Recv: %v", err)
	}
	_, err := s.Recv()
	var backendErr *Error
	if !errors.As(err, &backendErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if backendErr.HTTPStatus() != 529 || backendErr.ErrorType() != "overloaded_error" {
		t.Errorf("error = %+v", backendErr)
	}
	if _, err := s.Recv(); err != io.EOF {
		t.Errorf("Recv after failure = %v, want io.EOF", err)
	}
}

func TestStreamMalformedEvent(t *testing.T) {
	body := sseBody(conversation[0], [2]string{"content_block_delta", `{not json`})

	s, _ := newTestStream(context.Background(), strings.NewReader(body), false)
	chunks, err := provider.CollectChunks(s)
	if err != nil {
		t.Fatalf("CollectChunks: %v", err)
	}
	if len(chunks) != 1 {
		t.Errorf("got %d chunks, want 1 before the malformed event", len(chunks))
	}

	s, _ = newTestStream(context.Background(), strings.NewReader(body), true)
	if _, err := s.Recv(); err != nil {
		t.Fatalf("first Recv: %v", err)
	}
	if _, err := s.Recv(); err == nil || err == io.EOF {
		t.Errorf("strict Recv = %v, want decode error", err)
	}
}

type failingReader struct {
	data string
	err  error
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		return copy(p, r.data), nil
	}
	return 0, r.err
}

func TestStreamReadErrorStrict(t *testing.T) {
	reset := errors.New("connection reset by peer")
	s, _ := newTestStream(context.Background(), &failingReader{data: sseBody(conversation[0]), err: reset}, true)

	if _, err := s.Recv(); err != nil {
		t.Fatalf("first Recv: %v", err)
	}
	if _, err := s.Recv(); !errors.Is(err, reset) {
		t.Errorf("Recv = %v, want wrapped read error", err)
	}
}

func TestStreamCancelledEndsSilently(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, _ := newTestStream(ctx, &failingReader{data: sseBody(conversation[0]), err: context.Canceled}, true)

	if _, err := s.Recv(); err != nil {
		t.Fatalf("first Recv: %v", err)
	}
	cancel()
	if _, err := s.Recv(); err != io.EOF {
		t.Errorf("Recv after cancel = %v, want io.EOF even when strict", err)
	}
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	s, rc := newTestStream(context.Background(), strings.NewReader(sseBody(conversation...)), false)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !rc.closed {
		t.Error("body should be closed")
	}
	if _, err := s.Recv(); err != io.EOF {
		t.Errorf("Recv after Close = %v, want io.EOF", err)
	}
}

func TestStreamUnknownBlockShapeContinues(t *testing.T) {
	body := sseBody(
		conversation[0],
		[2]string{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"search_result","source":"https://example.com"}}`},
		[2]string{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		conversation[1],
		conversation[3],
		conversation[7],
	)
	s, _ := newTestStream(context.Background(), strings.NewReader(body), true)
	chunks, err := provider.CollectChunks(s)
	if err != nil {
		t.Fatalf("CollectChunks: %v", err)
	}
	if len(chunks) != 6 {
		t.Fatalf("got %d chunks, want 6", len(chunks))
	}
	if got := *chunks[4].Choices[0].Delta.Content; got != "Hel" {
		t.Errorf("text delta = %q, want Hel", got)
	}
}

func TestStreamTruncatedIsCounted(t *testing.T) {
	before := counterValue(t, observability.StreamErrorsTotal, "anthropic", "truncated")

	body := sseBody(conversation[:4]...)
	s, rc := newTestStream(context.Background(), strings.NewReader(body), false)
	chunks, err := provider.CollectChunks(s)
	if err != nil {
		t.Fatalf("CollectChunks: %v", err)
	}
	if len(chunks) != 3 {
		t.Errorf("got %d chunks, want 3", len(chunks))
	}
	if !rc.closed {
		t.Error("body should be closed")
	}
	if got := counterValue(t, observability.StreamErrorsTotal, "anthropic", "truncated") - before; got != 1 {
		t.Errorf("truncated counter delta = %v, want 1", got)
	}

	s, _ = newTestStream(context.Background(), strings.NewReader(body), true)
	for range 3 {
		if _, err := s.Recv(); err != nil {
			t.Fatalf("Recv: %v", err)
		}
	}
	if _, err := s.Recv(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("strict Recv = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestStreamCompleteIsNotCountedAsTruncated(t *testing.T) {
	before := counterValue(t, observability.StreamErrorsTotal, "anthropic", "truncated")
	s, _ := newTestStream(context.Background(), strings.NewReader(sseBody(conversation...)), true)
	if _, err := provider.CollectChunks(s); err != nil {
		t.Fatalf("CollectChunks: %v", err)
	}
	if got := counterValue(t, observability.StreamErrorsTotal, "anthropic", "truncated") - before; got != 0 {
		t.Errorf("truncated counter delta = %v, want 0", got)
	}
}
