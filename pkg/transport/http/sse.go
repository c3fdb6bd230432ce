package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rhuss/llmrouter/pkg/api"
	"github.com/rhuss/llmrouter/pkg/transport"
)

// writerState tracks the state of an SSE ResponseWriter.
type writerState int

const (
	writerIdle      writerState = iota // Initial state, no writes yet
	writerStreaming                    // WriteChunk has been called at least once
	writerCompleted                    // [DONE] sent or WriteCompletion called
)

// doneFrame terminates every chunk stream.
const doneFrame = "data: [DONE]\n\n"

// sseResponseWriter implements transport.ResponseWriter for HTTP responses.
// Chunks are sent as unnamed SSE events ("data: <json>"), the way
// OpenAI-compatible clients expect them; completions as a JSON body.
type sseResponseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState
}

var _ transport.ResponseWriter = (*sseResponseWriter)(nil)

func newSSEResponseWriter(w http.ResponseWriter) *sseResponseWriter {
	return &sseResponseWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// WriteChunk sends one chunk as
//
//	data: {json}\n
//	\n
func (s *sseResponseWriter) WriteChunk(ctx context.Context, chunk *api.ChatCompletionChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errors.New("cannot write chunk: writer is completed")
	}

	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk: %w", err)
	}
	return s.writeFrame(data)
}

// WriteCompletion sends a complete non-streaming JSON response.
// This is mutually exclusive with WriteChunk.
func (s *sseResponseWriter) WriteCompletion(ctx context.Context, completion *api.ChatCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerStreaming {
		return errors.New("cannot write completion: streaming has already started")
	}
	if s.state == writerCompleted {
		return errors.New("cannot write completion: writer is completed")
	}

	s.w.Header().Set("Content-Type", "application/json")
	s.state = writerCompleted

	if err := json.NewEncoder(s.w).Encode(completion); err != nil {
		return fmt.Errorf("failed to encode completion: %w", err)
	}
	return nil
}

// Flush ensures buffered data is sent to the client.
func (s *sseResponseWriter) Flush() error {
	return s.rc.Flush()
}

// writeError sends a terminal error event followed by [DONE]. It is used
// when a stream fails after the first chunk has been sent.
func (s *sseResponseWriter) writeError(apiErr *api.APIError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errors.New("cannot write error: writer is completed")
	}

	data, err := json.Marshal(api.ErrorResponse{Error: apiErr})
	if err != nil {
		return fmt.Errorf("failed to marshal error: %w", err)
	}
	if err := s.writeFrame(data); err != nil {
		return err
	}
	return s.writeDone()
}

// finish terminates a stream with [DONE]. A stream that produced no
// chunks still gets SSE headers so the client sees an empty stream.
func (s *sseResponseWriter) finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return nil
	}
	s.startStream()
	return s.writeDone()
}

// hasStartedStreaming returns true if SSE output has begun.
func (s *sseResponseWriter) hasStartedStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == writerStreaming
}

// startStream sets SSE headers on the first write. Caller holds mu.
func (s *sseResponseWriter) startStream() {
	if s.state != writerIdle {
		return
	}
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.state = writerStreaming
}

// writeFrame writes one data frame and flushes. Caller holds mu.
func (s *sseResponseWriter) writeFrame(data []byte) error {
	s.startStream()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write chunk: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// writeDone writes [DONE] and completes the writer. Caller holds mu.
func (s *sseResponseWriter) writeDone() error {
	s.state = writerCompleted
	if _, err := fmt.Fprint(s.w, doneFrame); err != nil {
		return fmt.Errorf("failed to write [DONE]: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush [DONE]: %w", err)
	}
	return nil
}
