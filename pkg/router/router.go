package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rhuss/llmrouter/pkg/api"
	"github.com/rhuss/llmrouter/pkg/debug"
	"github.com/rhuss/llmrouter/pkg/observability"
	"github.com/rhuss/llmrouter/pkg/provider"
)

// Separator joins a bare model id and its host id.
const Separator = "@"

// Router owns the host table.
type Router struct {
	hosts map[string]provider.Provider
	names []string
}

// New creates a Router over hosts. The map is copied.
func New(hosts map[string]provider.Provider) *Router {
	r := &Router{hosts: make(map[string]provider.Provider, len(hosts))}
	for name, p := range hosts {
		r.hosts[name] = p
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r
}

// Hosts returns the configured host ids, sorted.
func (r *Router) Hosts() []string {
	return append([]string(nil), r.names...)
}

// SplitModel splits a host-qualified model id at the last separator. ok is
// false when the id carries no separator.
func SplitModel(id string) (model, host string, ok bool) {
	i := strings.LastIndex(id, Separator)
	if i < 0 {
		return id, "", false
	}
	return id[:i], id[i+len(Separator):], true
}

// JoinModel builds a host-qualified model id.
func JoinModel(model, host string) string {
	return model + Separator + host
}

// Resolve finds the adapter for a host-qualified model id and returns it
// with the host id and the bare model id. Host failures take precedence
// over an empty model segment.
func (r *Router) Resolve(id string) (p provider.Provider, host, model string, err error) {
	model, host, ok := SplitModel(id)
	if !ok {
		return nil, "", "", &api.HostNotFoundError{}
	}
	p, found := r.hosts[host]
	if !found {
		return nil, "", "", &api.HostNotFoundError{Host: host}
	}
	if model == "" {
		return nil, "", "", &api.ModelNotFoundError{Model: id}
	}
	return p, host, model, nil
}

// Chat forwards req to the host named in its model id. The adapter
// receives a copy with the bare model id; req is not modified.
func (r *Router) Chat(ctx context.Context, req *api.ChatCompletionRequest) (*provider.ChatResult, error) {
	p, host, model, err := r.Resolve(req.Model)
	if err != nil {
		return nil, err
	}

	fwd := req.Clone()
	fwd.Model = model

	debug.Log("router", "dispatch", "host", host, "model", model, "stream", fwd.Stream)

	start := time.Now()
	result, err := p.Chat(ctx, fwd)
	observability.ProviderLatency.WithLabelValues(host, model).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(host, model, "error").Inc()
		return nil, err
	}
	observability.ProviderRequestsTotal.WithLabelValues(host, model, "success").Inc()

	if result.IsStream() {
		result.Stream = &countingStream{ChunkStream: result.Stream, host: host, model: model}
		return result, nil
	}
	if u := result.Completion.Usage; u != nil {
		recordUsage(host, model, u)
	}
	return result, nil
}

// ListModels lists models. With a host, the host's listing is returned as
// is. Without one, every host is queried concurrently; a failing host is
// logged and contributes nothing, and the union of ids, each qualified
// with its host, is returned sorted in descending order. The aggregate
// form does not fail.
func (r *Router) ListModels(ctx context.Context, host string) ([]api.Model, error) {
	if host != "" {
		p, ok := r.hosts[host]
		if !ok {
			return nil, &api.HostNotFoundError{Host: host}
		}
		return p.ListModels(ctx)
	}

	var (
		mu  sync.Mutex
		all []api.Model
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range r.names {
		p := r.hosts[name]
		g.Go(func() error {
			models, err := p.ListModels(gctx)
			if err != nil {
				// A failed host must not cancel its siblings.
				observability.HostListFailuresTotal.WithLabelValues(name).Inc()
				slog.Warn("model listing failed", "host", name, "error", err.Error())
				return nil
			}
			qualified := make([]api.Model, len(models))
			for i, m := range models {
				m.ID = JoinModel(m.ID, name)
				qualified[i] = m
			}
			mu.Lock()
			all = append(all, qualified...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	debug.Log("router", "aggregated listing", "hosts", len(r.names), "models", len(all))
	return all, nil
}

// Close closes every adapter and joins their errors.
func (r *Router) Close() error {
	var errs []error
	for _, name := range r.names {
		if err := r.hosts[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing host %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func recordUsage(host, model string, u *api.Usage) {
	observability.ProviderTokensTotal.WithLabelValues(host, model, "input").Add(float64(u.PromptTokens))
	observability.ProviderTokensTotal.WithLabelValues(host, model, "output").Add(float64(u.CompletionTokens))
}

// countingStream counts delivered chunks and records usage carried by the
// final chunk of backends that report it.
type countingStream struct {
	provider.ChunkStream
	host  string
	model string
}

func (s *countingStream) Recv() (*api.ChatCompletionChunk, error) {
	chunk, err := s.ChunkStream.Recv()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			debug.Log("router", "stream failed", "host", s.host, "model", s.model, "error", err)
		}
		return nil, err
	}
	observability.StreamChunksTotal.WithLabelValues(s.host).Inc()
	if chunk.Usage != nil {
		recordUsage(s.host, s.model, chunk.Usage)
	}
	return chunk, nil
}
