package anthropic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rhuss/llmrouter/pkg/api"
)

// DefaultMaxTokens is used when the request sets no output token limit.
const DefaultMaxTokens = 1000

// MapRequest converts a common chat request into a Messages API request.
//
// System and developer messages leave the message list and are joined, in
// order and separated by a blank line, into the system prompt. Function
// and tool messages have no backend counterpart and become assistant text
// that embeds their name or call id and payload.
func MapRequest(req *api.ChatCompletionRequest) (*MessageRequest, error) {
	out := &MessageRequest{
		Model:       req.Model,
		Messages:    make([]MessageParam, 0, len(req.Messages)),
		MaxTokens:   maxTokens(req),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
		ServiceTier: mapServiceTier(req.ServiceTier),
	}

	if len(req.Stop) > 0 {
		out.StopSequences = append([]string(nil), req.Stop...)
	}
	if req.User != "" {
		out.Metadata = &Metadata{UserID: req.User}
	}

	var system []string
	for i, msg := range req.Messages {
		switch msg.Role {
		case api.RoleSystem, api.RoleDeveloper:
			if text := systemText(msg.Content); text != "" {
				system = append(system, text)
			}

		case api.RoleUser, api.RoleAssistant:
			param, err := MapContent(msg.Content)
			if err != nil {
				return nil, contentError(i, err)
			}
			param.Role = Role(msg.Role)
			out.Messages = append(out.Messages, param)

		case api.RoleFunction:
			out.Messages = append(out.Messages, MessageParam{
				Role: RoleAssistant,
				Text: fmt.Sprintf("[Function call: %s (%s)]", msg.Name, msg.Content.String()),
			})

		case api.RoleTool:
			out.Messages = append(out.Messages, MessageParam{
				Role: RoleAssistant,
				Text: fmt.Sprintf("[Tool use: %s (%s)]", msg.ToolCallID, msg.Content.String()),
			})

		default:
			return nil, &api.InvalidContentError{
				Param: fmt.Sprintf("messages[%d].role", i),
				Err:   fmt.Errorf("unsupported role %q", msg.Role),
			}
		}
	}
	out.System = strings.Join(system, "\n\n")

	return out, nil
}

// contentError classifies a content mapping failure of message i. Modality
// failures keep their own type; anything else is malformed client input.
func contentError(i int, err error) error {
	if errors.Is(err, api.ErrModalityNotSupported) {
		return fmt.Errorf("messages[%d]: %w", i, err)
	}
	return &api.InvalidContentError{Param: fmt.Sprintf("messages[%d].content", i), Err: err}
}

// maxTokens prefers max_completion_tokens, then max_tokens, then the
// default. Zero counts as unset; other values, negative ones included, are
// forwarded for the backend to judge.
func maxTokens(req *api.ChatCompletionRequest) int {
	if req.MaxCompletionTokens != nil && *req.MaxCompletionTokens != 0 {
		return *req.MaxCompletionTokens
	}
	if req.MaxTokens != nil && *req.MaxTokens != 0 {
		return *req.MaxTokens
	}
	return DefaultMaxTokens
}

func mapServiceTier(tier string) string {
	switch tier {
	case api.ServiceTierAuto, api.ServiceTierFlex:
		return ServiceTierAuto
	case api.ServiceTierDefault:
		return ServiceTierStandardOnly
	default:
		return ""
	}
}

// systemText extracts the text of a system or developer message. Only text
// parts contribute when the content is a part list.
func systemText(c api.MessageContent) string {
	if !c.IsParts() {
		return c.Text
	}
	var texts []string
	for _, p := range c.Parts {
		if p.Type == api.ContentPartText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}
