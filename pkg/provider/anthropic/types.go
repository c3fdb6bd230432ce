package anthropic

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Messages API wire types. Only the fields the bridge reads or writes are
// modelled; content blocks keep their raw JSON so unknown kinds survive.

// ---------------------------------------------------------------------------
// Request
// ---------------------------------------------------------------------------

// Role is a Messages API role. The backend accepts only user and assistant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Service tiers accepted by the Messages API.
const (
	ServiceTierAuto         = "auto"
	ServiceTierStandardOnly = "standard_only"
)

// MessageRequest is the body of POST /v1/messages.
type MessageRequest struct {
	Model         string         `json:"model"`
	Messages      []MessageParam `json:"messages"`
	System        string         `json:"system,omitempty"`
	MaxTokens     int            `json:"max_tokens"`
	Temperature   *float64       `json:"temperature,omitempty"`
	TopP          *float64       `json:"top_p,omitempty"`
	StopSequences []string       `json:"stop_sequences,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	ServiceTier   string         `json:"service_tier,omitempty"`
	Metadata      *Metadata      `json:"metadata,omitempty"`

	// Tools and ToolChoice are always left empty by the bridge.
	Tools      json.RawMessage `json:"tools,omitempty"`
	ToolChoice json.RawMessage `json:"tool_choice,omitempty"`
}

// Metadata carries the end-user id for abuse detection.
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}

// MessageParam is one conversation turn. Content is either Text or Blocks;
// a nil Blocks slice means the string form.
type MessageParam struct {
	Role   Role
	Text   string
	Blocks []ContentBlock
}

type messageParamWire struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON encodes content as a string or a block array.
func (m MessageParam) MarshalJSON() ([]byte, error) {
	var (
		content []byte
		err     error
	)
	if m.Blocks != nil {
		content, err = json.Marshal(m.Blocks)
	} else {
		content, err = json.Marshal(m.Text)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(messageParamWire{Role: m.Role, Content: content})
}

// UnmarshalJSON decodes string or block-array content.
func (m *MessageParam) UnmarshalJSON(data []byte) error {
	var w messageParamWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = MessageParam{Role: w.Role}
	raw := bytes.TrimSpace(w.Content)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		return json.Unmarshal(raw, &m.Text)
	}
	m.Blocks = []ContentBlock{}
	return json.Unmarshal(raw, &m.Blocks)
}

// ---------------------------------------------------------------------------
// Content blocks
// ---------------------------------------------------------------------------

// Content block kinds.
const (
	BlockText                = "text"
	BlockImage               = "image"
	BlockDocument            = "document"
	BlockToolUse             = "tool_use"
	BlockServerToolUse       = "server_tool_use"
	BlockWebSearchToolResult = "web_search_tool_result"
	BlockThinking            = "thinking"
	BlockRedactedThinking    = "redacted_thinking"
)

// Source kinds for image and document blocks.
const (
	SourceURL    = "url"
	SourceBase64 = "base64"
)

// ContentBlock is one typed content unit. Only the fields used by the
// request direction are modelled; decoded blocks keep their raw JSON.
type ContentBlock struct {
	Type   string  `json:"type"`
	Text   string  `json:"text,omitempty"`
	Source *Source `json:"source,omitempty"`

	raw json.RawMessage
}

// Source locates image or document data.
type Source struct {
	Type      string `json:"type"`
	URL       string `json:"url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
}

// UnmarshalJSON decodes a block and keeps its raw JSON. Only text, image
// and document blocks have their fields decoded; other kinds are carried
// by type and raw JSON alone, whatever shape their fields take.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	*b = ContentBlock{Type: head.Type, raw: append(json.RawMessage(nil), data...)}

	switch head.Type {
	case BlockText, BlockImage, BlockDocument:
		type wire ContentBlock
		var w wire
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("decoding %s block: %w", head.Type, err)
		}
		b.Text = w.Text
		b.Source = w.Source
	}
	return nil
}

// MarshalJSON re-emits the raw JSON of decoded blocks unchanged and
// encodes built blocks from their fields. A text block always carries
// its text field, even when empty.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	if len(b.raw) > 0 {
		return b.raw, nil
	}
	if b.Type == BlockText {
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{b.Type, b.Text})
	}
	type wire ContentBlock
	return json.Marshal(wire(b))
}

// Raw returns the JSON the block was decoded from, or its encoded form.
func (b ContentBlock) Raw() json.RawMessage {
	if len(b.raw) > 0 {
		return b.raw
	}
	data, err := b.MarshalJSON()
	if err != nil {
		return nil
	}
	return data
}

// ---------------------------------------------------------------------------
// Response
// ---------------------------------------------------------------------------

// StopReason explains why the backend stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopMaxTokens StopReason = "max_tokens"
	StopSequence  StopReason = "stop_sequence"
	StopToolUse   StopReason = "tool_use"
	StopPauseTurn StopReason = "pause_turn"
	StopRefusal   StopReason = "refusal"
)

// Usage reports backend token accounting.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Message is the unary response of POST /v1/messages, and the payload of
// the message_start stream event.
type Message struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         Role           `json:"role"`
	Model        string         `json:"model"`
	Content      []ContentBlock `json:"content"`
	StopReason   *StopReason    `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        *Usage         `json:"usage,omitempty"`
}

// ---------------------------------------------------------------------------
// Streaming
// ---------------------------------------------------------------------------

// Stream event types.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventPing              = "ping"
	EventError             = "error"
)

// Delta types carried by content_block_delta.
const (
	DeltaText      = "text_delta"
	DeltaInputJSON = "input_json_delta"
	DeltaThinking  = "thinking_delta"
	DeltaSignature = "signature_delta"
	DeltaCitations = "citations_delta"
)

// StreamEvent is one decoded SSE event. Type selects which fields are set.
type StreamEvent struct {
	Type         string        `json:"type"`
	Message      *Message      `json:"message,omitempty"`
	Index        int           `json:"index,omitempty"`
	ContentBlock *ContentBlock `json:"content_block,omitempty"`
	Delta        *EventDelta   `json:"delta,omitempty"`
	Usage        *Usage        `json:"usage,omitempty"`
	Error        *ErrorDetail  `json:"error,omitempty"`
}

// EventDelta is the delta payload of content_block_delta and message_delta.
type EventDelta struct {
	// content_block_delta
	Type        string          `json:"type,omitempty"`
	Text        string          `json:"text,omitempty"`
	PartialJSON string          `json:"partial_json,omitempty"`
	Thinking    string          `json:"thinking,omitempty"`
	Signature   string          `json:"signature,omitempty"`
	Citation    json.RawMessage `json:"citation,omitempty"`

	// message_delta
	StopReason   *StopReason `json:"stop_reason,omitempty"`
	StopSequence *string     `json:"stop_sequence,omitempty"`
}

// ---------------------------------------------------------------------------
// Errors and models
// ---------------------------------------------------------------------------

// ErrorDetail is the error object of error responses and error events.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorResponse is the body of a non-2xx response.
type ErrorResponse struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// ModelInfo is one entry of GET /v1/models.
type ModelInfo struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	CreatedAt   string `json:"created_at"`
}

// ModelsPage is one page of GET /v1/models.
type ModelsPage struct {
	Data    []ModelInfo `json:"data"`
	HasMore bool        `json:"has_more"`
	FirstID string      `json:"first_id"`
	LastID  string      `json:"last_id"`
}

func (e ErrorDetail) String() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}
