package anthropic

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/rhuss/llmrouter/pkg/api"
)

// MapResponse converts a unary backend message into a common completion
// with one assistant choice. created is the capture time in Unix seconds.
// Usage and service tier are left unset.
func MapResponse(msg *Message, created time.Time) *api.ChatCompletion {
	texts := make([]string, 0, len(msg.Content))
	for _, block := range msg.Content {
		texts = append(texts, RenderBlock(block))
	}

	return &api.ChatCompletion{
		ID:      msg.ID,
		Object:  api.ObjectChatCompletion,
		Created: created.Unix(),
		Model:   msg.Model,
		Choices: []api.Choice{{
			Index: 0,
			Message: api.CompletionMessage{
				Role:    api.RoleAssistant,
				Content: strings.Join(texts, "\n"),
			},
			FinishReason: MapFinishReasonOrStop(msg.StopReason),
		}},
	}
}

// RenderBlock renders a content block as text. Text blocks contribute their
// text verbatim. Every other kind, known or not, renders as space-joined
// key=value pairs over its top-level fields in wire order: strings plain,
// numbers and literals as written, objects and arrays as compact JSON.
func RenderBlock(b ContentBlock) string {
	if b.Type == BlockText {
		return b.Text
	}

	raw := b.Raw()
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return string(raw)
	}

	var pairs []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		key, ok := tok.(string)
		if !ok {
			break
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			break
		}
		pairs = append(pairs, key+"="+renderValue(value))
	}
	return strings.Join(pairs, " ")
}

func renderValue(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return ""
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err == nil {
			return buf.String()
		}
	}
	return string(v)
}
