package transport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rhuss/llmrouter/pkg/api"
	"github.com/rhuss/llmrouter/pkg/provider"
)

// ChatHandler handles one chat completion call. The implementation writes
// the result (chunks or a complete completion) to the ResponseWriter.
type ChatHandler interface {
	ChatCompletion(ctx context.Context, req *api.ChatCompletionRequest, w ResponseWriter) error
}

// ChatHandlerFunc is an adapter that allows using an ordinary function
// as a ChatHandler.
type ChatHandlerFunc func(ctx context.Context, req *api.ChatCompletionRequest, w ResponseWriter) error

// ChatCompletion calls f(ctx, req, w).
func (f ChatHandlerFunc) ChatCompletion(ctx context.Context, req *api.ChatCompletionRequest, w ResponseWriter) error {
	return f(ctx, req, w)
}

// ModelLister serves GET /v1/models. An empty host lists every host.
type ModelLister interface {
	ListModels(ctx context.Context, host string) ([]api.Model, error)
}

// Chatter performs chat calls against host-qualified model ids.
type Chatter interface {
	Chat(ctx context.Context, req *api.ChatCompletionRequest) (*provider.ChatResult, error)
}

// ResponseWriter abstracts streaming and non-streaming output for the handler.
//
// WriteChunk and WriteCompletion are mutually exclusive on a single writer
// instance. Calling one after the other returns an error.
type ResponseWriter interface {
	// WriteChunk sends a single streaming chunk.
	WriteChunk(ctx context.Context, chunk *api.ChatCompletionChunk) error

	// WriteCompletion sends a complete non-streaming completion.
	WriteCompletion(ctx context.Context, completion *api.ChatCompletion) error

	// Flush ensures buffered data is sent to the client. Returns an error
	// if the client has disconnected.
	Flush() error
}

// Dispatch returns a ChatHandler that forwards requests to c. Streaming
// results are drained chunk by chunk into the writer and always closed.
func Dispatch(c Chatter) ChatHandler {
	return ChatHandlerFunc(func(ctx context.Context, req *api.ChatCompletionRequest, w ResponseWriter) error {
		result, err := c.Chat(ctx, req)
		if err != nil {
			return err
		}

		if !result.IsStream() {
			if result.Completion == nil {
				return errors.New("chat result carries neither completion nor stream")
			}
			return w.WriteCompletion(ctx, result.Completion)
		}

		stream := result.Stream
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := w.WriteChunk(ctx, chunk); err != nil {
				return fmt.Errorf("writing chunk: %w", err)
			}
		}
	})
}
