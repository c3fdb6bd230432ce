package provider

import (
	"errors"
	"io"

	"github.com/rhuss/llmrouter/pkg/api"
)

// ChatResult is the outcome of a chat call. Exactly one of Completion and
// Stream is set.
type ChatResult struct {
	Completion *api.ChatCompletion
	Stream     ChunkStream
}

// IsStream reports whether the result is a streaming one.
func (r *ChatResult) IsStream() bool {
	return r != nil && r.Stream != nil
}

// ChunkStream is a pull-based sequence of streaming chunks.
//
// Recv returns the next chunk, or io.EOF once the sequence has ended. Any
// other error is a failure of the stream. Close releases the backend
// connection and may be called at any time, including before the sequence
// has been drained.
type ChunkStream interface {
	Recv() (*api.ChatCompletionChunk, error)
	Close() error
}

// SliceStream replays a fixed list of chunks. It is used by adapters that
// already hold the whole sequence and by tests.
type SliceStream struct {
	chunks []*api.ChatCompletionChunk
	err    error
	pos    int
	closed bool
}

// NewSliceStream returns a stream over chunks. If err is non-nil it is
// returned after the last chunk instead of io.EOF.
func NewSliceStream(chunks []*api.ChatCompletionChunk, err error) *SliceStream {
	return &SliceStream{chunks: chunks, err: err}
}

// Recv implements ChunkStream.
func (s *SliceStream) Recv() (*api.ChatCompletionChunk, error) {
	if s.closed {
		return nil, io.EOF
	}
	if s.pos < len(s.chunks) {
		c := s.chunks[s.pos]
		s.pos++
		return c, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

// Close implements ChunkStream.
func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *SliceStream) Closed() bool {
	return s.closed
}

// CollectChunks drains stream and closes it. It returns the chunks received
// before the sequence ended and the first non-EOF error, if any.
func CollectChunks(stream ChunkStream) ([]*api.ChatCompletionChunk, error) {
	defer stream.Close()

	var chunks []*api.ChatCompletionChunk
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
}
