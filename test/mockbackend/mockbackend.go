// Package mockbackend provides a deterministic fake LLM backend that
// speaks both wire protocols the router talks to:
//
//   - OpenAI Chat Completions under /openai/v1
//   - Anthropic Messages under /anthropic
//
// Replies echo the last user text word by word, so unary and streaming
// results are predictable. The model "fail" makes every call fail with
// the host's usual overload error.
package mockbackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rhuss/llmrouter/pkg/api"
	"github.com/rhuss/llmrouter/pkg/provider/anthropic"
)

// Path prefixes of the two protocol surfaces.
const (
	OpenAIPrefix    = "/openai/v1"
	AnthropicPrefix = "/anthropic"
)

// FailModel triggers a backend error on either surface.
const FailModel = "fail"

// Created timestamps reported by the listings.
const (
	openAICreated    = 1700000000
	anthropicCreated = "2024-01-01T00:00:00Z"
)

// New returns the handler serving both surfaces plus GET /healthz.
func New() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+OpenAIPrefix+"/chat/completions", handleOpenAIChat)
	mux.HandleFunc("GET "+OpenAIPrefix+"/models", handleOpenAIModels)

	mux.HandleFunc("POST "+AnthropicPrefix+"/v1/messages", requireAnthropicHeaders(handleAnthropicMessages))
	mux.HandleFunc("GET "+AnthropicPrefix+"/v1/models", requireAnthropicHeaders(handleAnthropicModels))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// Reply returns the text the backend answers a prompt with.
func Reply(prompt string) string {
	if prompt == "" {
		return "echo"
	}
	return "echo: " + prompt
}

// words splits a reply into the deltas of a streamed answer, keeping the
// separating spaces so that concatenation restores the text.
func words(s string) []string {
	parts := strings.SplitAfter(s, " ")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// ---------------------------------------------------------------------------
// OpenAI surface
// ---------------------------------------------------------------------------

func handleOpenAIChat(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeOpenAIError(w, http.StatusUnauthorized, "invalid_request_error", "missing bearer token")
		return
	}

	var req api.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOpenAIError(w, http.StatusBadRequest, "invalid_request_error", "invalid request: "+err.Error())
		return
	}
	if req.Model == FailModel {
		writeOpenAIError(w, http.StatusServiceUnavailable, "server_error", "mock failure")
		return
	}

	prompt := ""
	for _, m := range req.Messages {
		if m.Role == api.RoleUser {
			prompt = m.Content.String()
		}
	}
	reply := Reply(prompt)
	usage := &api.Usage{PromptTokens: len(words(prompt)), CompletionTokens: len(words(reply))}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	if !req.Stream {
		writeJSON(w, http.StatusOK, api.ChatCompletion{
			ID:      "chatcmpl-mock",
			Object:  api.ObjectChatCompletion,
			Created: openAICreated,
			Model:   req.Model,
			Choices: []api.Choice{{
				Message:      api.CompletionMessage{Role: api.RoleAssistant, Content: reply},
				FinishReason: api.FinishReasonStop,
			}},
			Usage: usage,
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	chunk := func(delta api.ChunkDelta, finish *api.FinishReason, u *api.Usage) {
		c := api.ChatCompletionChunk{
			ID:      "chatcmpl-mock",
			Object:  api.ObjectChatCompletionChunk,
			Created: openAICreated,
			Model:   req.Model,
			Choices: []api.ChunkChoice{{Delta: delta, FinishReason: finish}},
			Usage:   u,
		}
		if u != nil {
			c.Choices = []api.ChunkChoice{}
		}
		data, _ := json.Marshal(c)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flush(w)
	}

	chunk(api.ChunkDelta{Role: api.RoleAssistant, Content: api.String("")}, nil, nil)
	for _, word := range words(reply) {
		chunk(api.ChunkDelta{Content: api.String(word)}, nil, nil)
	}
	stop := api.FinishReasonStop
	chunk(api.ChunkDelta{}, &stop, nil)
	if includeUsage(req) {
		chunk(api.ChunkDelta{}, nil, usage)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flush(w)
}

// includeUsage reports whether stream_options.include_usage was requested.
func includeUsage(req api.ChatCompletionRequest) bool {
	raw, ok := req.Extra["stream_options"]
	if !ok {
		return false
	}
	var opts struct {
		IncludeUsage bool `json:"include_usage"`
	}
	return json.Unmarshal(raw, &opts) == nil && opts.IncludeUsage
}

func handleOpenAIModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.ModelList{
		Object: api.ObjectList,
		Data: []api.Model{
			{ID: "mock-gpt", Object: api.ObjectModel, Created: openAICreated, OwnedBy: "mock"},
			{ID: "mock-gpt-mini", Object: api.ObjectModel, Created: openAICreated + 100, OwnedBy: "mock"},
		},
	})
}

func writeOpenAIError(w http.ResponseWriter, status int, typ, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"type": typ, "message": msg, "code": nil, "param": nil},
	})
}

// ---------------------------------------------------------------------------
// Anthropic surface
// ---------------------------------------------------------------------------

func requireAnthropicHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") == "" {
			writeAnthropicError(w, http.StatusUnauthorized, "authentication_error", "x-api-key header is required")
			return
		}
		if r.Header.Get("anthropic-version") == "" {
			writeAnthropicError(w, http.StatusBadRequest, "invalid_request_error", "anthropic-version header is required")
			return
		}
		next(w, r)
	}
}

func handleAnthropicMessages(w http.ResponseWriter, r *http.Request) {
	var req anthropic.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAnthropicError(w, http.StatusBadRequest, "invalid_request_error", "invalid request: "+err.Error())
		return
	}
	if req.MaxTokens <= 0 {
		writeAnthropicError(w, http.StatusBadRequest, "invalid_request_error", "max_tokens: field required")
		return
	}
	if req.Model == FailModel {
		writeAnthropicError(w, 529, "overloaded_error", "Overloaded")
		return
	}

	prompt := ""
	for _, m := range req.Messages {
		if m.Role != anthropic.RoleUser {
			continue
		}
		if m.Blocks == nil {
			prompt = m.Text
			continue
		}
		var texts []string
		for _, b := range m.Blocks {
			if b.Type == anthropic.BlockText {
				texts = append(texts, b.Text)
			}
		}
		prompt = strings.Join(texts, "\n")
	}
	reply := Reply(prompt)
	usage := &anthropic.Usage{InputTokens: len(words(prompt)), OutputTokens: len(words(reply))}
	endTurn := anthropic.StopEndTurn

	if !req.Stream {
		writeJSON(w, http.StatusOK, anthropic.Message{
			ID:         "msg_mock",
			Type:       "message",
			Role:       anthropic.RoleAssistant,
			Model:      req.Model,
			Content:    []anthropic.ContentBlock{{Type: anthropic.BlockText, Text: reply}},
			StopReason: &endTurn,
			Usage:      usage,
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	event := func(ev anthropic.StreamEvent) {
		data, _ := json.Marshal(ev)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
		flush(w)
	}

	event(anthropic.StreamEvent{
		Type: anthropic.EventMessageStart,
		Message: &anthropic.Message{
			ID: "msg_mock", Type: "message", Role: anthropic.RoleAssistant, Model: req.Model,
			Content: []anthropic.ContentBlock{},
			Usage:   &anthropic.Usage{InputTokens: usage.InputTokens},
		},
	})
	event(anthropic.StreamEvent{
		Type:         anthropic.EventContentBlockStart,
		ContentBlock: &anthropic.ContentBlock{Type: anthropic.BlockText},
	})
	event(anthropic.StreamEvent{Type: anthropic.EventPing})
	for _, word := range words(reply) {
		event(anthropic.StreamEvent{
			Type:  anthropic.EventContentBlockDelta,
			Delta: &anthropic.EventDelta{Type: anthropic.DeltaText, Text: word},
		})
	}
	event(anthropic.StreamEvent{Type: anthropic.EventContentBlockStop})
	event(anthropic.StreamEvent{
		Type:  anthropic.EventMessageDelta,
		Delta: &anthropic.EventDelta{StopReason: &endTurn},
		Usage: &anthropic.Usage{OutputTokens: usage.OutputTokens},
	})
	event(anthropic.StreamEvent{Type: anthropic.EventMessageStop})
}

func handleAnthropicModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, anthropic.ModelsPage{
		Data: []anthropic.ModelInfo{
			{ID: "claude-mock", Type: "model", DisplayName: "Claude Mock", CreatedAt: anthropicCreated},
		},
		FirstID: "claude-mock",
		LastID:  "claude-mock",
	})
}

func writeAnthropicError(w http.ResponseWriter, status int, typ, msg string) {
	writeJSON(w, status, anthropic.ErrorResponse{
		Type:  "error",
		Error: anthropic.ErrorDetail{Type: typ, Message: msg},
	})
}
