package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Roles
// ---------------------------------------------------------------------------

// Role identifies the author of a chat message. The set is closed.
type Role string

const (
	RoleSystem    Role = "system"
	RoleDeveloper Role = "developer"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleFunction  Role = "function"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleDeveloper, RoleUser, RoleAssistant, RoleTool, RoleFunction:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Content parts
// ---------------------------------------------------------------------------

// Content part type tags.
const (
	ContentPartText       = "text"
	ContentPartImageURL   = "image_url"
	ContentPartInputAudio = "input_audio"
	ContentPartRefusal    = "refusal"
	ContentPartFile       = "file"
)

// ContentPart is one typed unit of message content. Type selects which of
// the payload fields is meaningful.
type ContentPart struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	Refusal    string      `json:"refusal,omitempty"`
	ImageURL   *ImageURL   `json:"image_url,omitempty"`
	InputAudio *InputAudio `json:"input_audio,omitempty"`
	File       *FileData   `json:"file,omitempty"`

	// raw holds the original JSON so parts with unknown tags can still be
	// reported in full.
	raw json.RawMessage
}

// ImageURL references an image by URL (http(s) or data URI).
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// InputAudio carries base64 audio data.
type InputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

// FileData carries an inline file (base64) or a reference to an uploaded file.
type FileData struct {
	FileData string `json:"file_data,omitempty"`
	FileID   string `json:"file_id,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// UnmarshalJSON decodes a content part and keeps the raw payload.
func (p *ContentPart) UnmarshalJSON(data []byte) error {
	type wire ContentPart
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = ContentPart(w)
	p.raw = append(json.RawMessage(nil), data...)
	return nil
}

// Raw returns the JSON the part was decoded from, or its re-encoded form
// when the part was built in code.
func (p ContentPart) Raw() json.RawMessage {
	if len(p.raw) > 0 {
		return p.raw
	}
	type wire ContentPart
	data, err := json.Marshal(wire(p))
	if err != nil {
		return nil
	}
	return data
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentPartText, Text: text}
}

// MessageContent is either plain text or an ordered list of content parts.
// A nil Parts slice means the text form.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

// TextContent wraps a plain string as message content.
func TextContent(s string) MessageContent {
	return MessageContent{Text: s}
}

// PartsContent wraps content parts as message content.
func PartsContent(parts ...ContentPart) MessageContent {
	if parts == nil {
		parts = []ContentPart{}
	}
	return MessageContent{Parts: parts}
}

// IsParts reports whether the content uses the list form.
func (c MessageContent) IsParts() bool {
	return c.Parts != nil
}

// String flattens the content to text. Text and refusal parts contribute
// their text; other parts are skipped.
func (c MessageContent) String() string {
	if !c.IsParts() {
		return c.Text
	}
	var buf bytes.Buffer
	for _, p := range c.Parts {
		var s string
		switch p.Type {
		case ContentPartText:
			s = p.Text
		case ContentPartRefusal:
			s = p.Refusal
		default:
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(s)
	}
	return buf.String()
}

// MarshalJSON encodes the content as a JSON string or array.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.IsParts() {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts a string, an array of parts, or null.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*c = MessageContent{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &c.Text)
	case '[':
		parts := []ContentPart{}
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		c.Parts = parts
		return nil
	default:
		return fmt.Errorf("message content must be a string or an array of parts, got %s", truncateJSON(data))
	}
}

// ---------------------------------------------------------------------------
// Messages and requests
// ---------------------------------------------------------------------------

// ChatMessage is one conversation turn in the common schema.
type ChatMessage struct {
	Role       Role           `json:"role"`
	Content    MessageContent `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`

	// ToolCalls is reserved; it is forwarded by pass-through hosts but not
	// translated by the bridge.
	ToolCalls json.RawMessage `json:"tool_calls,omitempty"`
}

// Service tier hints accepted in the common schema.
const (
	ServiceTierAuto    = "auto"
	ServiceTierDefault = "default"
	ServiceTierFlex    = "flex"
)

// StopSequences accepts either a single string or an array of strings.
type StopSequences []string

// UnmarshalJSON decodes a string or string array.
func (s *StopSequences) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*s = StopSequences{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("stop must be a string or an array of strings: %w", err)
	}
	*s = many
	return nil
}

// ChatCompletionRequest is the client request in the common schema.
type ChatCompletionRequest struct {
	Model            string        `json:"model"`
	Messages         []ChatMessage `json:"messages"`
	Temperature      *float64      `json:"temperature,omitempty"`
	TopP             *float64      `json:"top_p,omitempty"`
	FrequencyPenalty *float64      `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64      `json:"presence_penalty,omitempty"`

	// MaxCompletionTokens is the newer name for the output token limit;
	// MaxTokens is the legacy one.
	MaxCompletionTokens *int `json:"max_completion_tokens,omitempty"`
	MaxTokens           *int `json:"max_tokens,omitempty"`

	Stop        StopSequences `json:"stop,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
	ServiceTier string        `json:"service_tier,omitempty"`
	User        string        `json:"user,omitempty"`

	// Tools and ToolChoice are reserved slots. They are never translated
	// for bridged hosts.
	Tools      json.RawMessage `json:"tools,omitempty"`
	ToolChoice json.RawMessage `json:"tool_choice,omitempty"`

	// Extra holds request fields this package does not model. They are
	// re-emitted on marshal so pass-through hosts see them unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

// knownRequestFields lists the JSON names modelled by ChatCompletionRequest.
var knownRequestFields = []string{
	"model", "messages", "temperature", "top_p", "frequency_penalty",
	"presence_penalty", "max_completion_tokens", "max_tokens", "stop",
	"stream", "service_tier", "user", "tools", "tool_choice",
}

// UnmarshalJSON decodes the request and collects unmodelled fields in Extra.
func (r *ChatCompletionRequest) UnmarshalJSON(data []byte) error {
	type wire ChatCompletionRequest
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownRequestFields {
		delete(all, k)
	}
	if len(all) > 0 {
		w.Extra = all
	}

	*r = ChatCompletionRequest(w)
	return nil
}

// MarshalJSON encodes the request, merging Extra fields back in. Modelled
// fields win over Extra entries with the same name.
func (r ChatCompletionRequest) MarshalJSON() ([]byte, error) {
	type wire ChatCompletionRequest
	data, err := json.Marshal(wire(r))
	if err != nil || len(r.Extra) == 0 {
		return data, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// Clone returns a copy of the request whose messages slice and Extra map can
// be modified without affecting r. Message contents are shared.
func (r *ChatCompletionRequest) Clone() *ChatCompletionRequest {
	c := *r
	if r.Messages != nil {
		c.Messages = make([]ChatMessage, len(r.Messages))
		copy(c.Messages, r.Messages)
	}
	if r.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

// FinishReason explains why generation stopped.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonContentFilter FinishReason = "content_filter"
	FinishReasonFunctionCall  FinishReason = "function_call"
)

// Object tags used in responses.
const (
	ObjectChatCompletion      = "chat.completion"
	ObjectChatCompletionChunk = "chat.completion.chunk"
	ObjectList                = "list"
	ObjectModel               = "model"
)

// Usage reports token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionMessage is the assistant message inside a unary choice.
type CompletionMessage struct {
	Role      Role            `json:"role"`
	Content   string          `json:"content"`
	Refusal   *string         `json:"refusal"`
	ToolCalls json.RawMessage `json:"tool_calls,omitempty"`
}

// Choice is one completion alternative. Routers always produce exactly one.
type Choice struct {
	Index        int               `json:"index"`
	Message      CompletionMessage `json:"message"`
	FinishReason FinishReason      `json:"finish_reason"`
	Logprobs     json.RawMessage   `json:"logprobs"`
}

// ChatCompletion is the unary response in the common schema.
type ChatCompletion struct {
	ID                string   `json:"id"`
	Object            string   `json:"object"`
	Created           int64    `json:"created"`
	Model             string   `json:"model"`
	Choices           []Choice `json:"choices"`
	Usage             *Usage   `json:"usage,omitempty"`
	ServiceTier       string   `json:"service_tier,omitempty"`
	SystemFingerprint string   `json:"system_fingerprint,omitempty"`
}

// ChunkDelta is the incremental message content of a streaming chunk.
// A nil Content means the chunk carries no content change.
type ChunkDelta struct {
	Role      Role            `json:"role,omitempty"`
	Content   *string         `json:"content,omitempty"`
	Refusal   *string         `json:"refusal,omitempty"`
	ToolCalls json.RawMessage `json:"tool_calls,omitempty"`
}

// ChunkChoice is the single choice inside a streaming chunk.
type ChunkChoice struct {
	Index        int             `json:"index"`
	Delta        ChunkDelta      `json:"delta"`
	FinishReason *FinishReason   `json:"finish_reason"`
	Logprobs     json.RawMessage `json:"logprobs,omitempty"`
}

// ChatCompletionChunk is one increment of a streaming response.
type ChatCompletionChunk struct {
	ID                string        `json:"id"`
	Object            string        `json:"object"`
	Created           int64         `json:"created"`
	Model             string        `json:"model"`
	Choices           []ChunkChoice `json:"choices"`
	Usage             *Usage        `json:"usage,omitempty"`
	SystemFingerprint string        `json:"system_fingerprint,omitempty"`
}

// ---------------------------------------------------------------------------
// Models
// ---------------------------------------------------------------------------

// Model describes one model a host can serve. OwnedBy may be empty.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the listing envelope returned by GET /v1/models.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// String returns a pointer to s.
func String(s string) *string { return &s }

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }

// Int returns a pointer to i.
func Int(i int) *int { return &i }

func truncateJSON(data []byte) string {
	const max = 64
	if len(data) <= max {
		return string(data)
	}
	return string(data[:max]) + "..."
}
