package openaicompat

import (
	"fmt"
	"sort"

	"github.com/rhuss/llmrouter/pkg/api"
)

// Parameter names accepted by Quirk.DropParams and Quirk.Clamp. DropParams
// also accepts any request field carried in ChatCompletionRequest.Extra.
const (
	ParamTemperature         = "temperature"
	ParamTopP                = "top_p"
	ParamFrequencyPenalty    = "frequency_penalty"
	ParamPresencePenalty     = "presence_penalty"
	ParamMaxTokens           = "max_tokens"
	ParamMaxCompletionTokens = "max_completion_tokens"
	ParamStop                = "stop"
	ParamServiceTier         = "service_tier"
	ParamUser                = "user"
)

// Quirk is a declarative patch for one model. The zero value is a no-op.
type Quirk struct {
	// Unlisted hides the model from ListModels. Chat calls still go through.
	Unlisted bool

	// DropParams unsets the named request parameters.
	DropParams []string

	// RoleRewrites forces messages with the key role to the value role.
	RoleRewrites map[api.Role]api.Role

	// Clamp pins a sampling parameter to its only legal value when the
	// request sets it. Unset parameters stay unset.
	Clamp map[string]float64
}

// QuirkTable maps bare model ids to their quirk. Models without an entry
// are forwarded unchanged.
type QuirkTable map[string]Quirk

// DefaultQuirks returns the built-in table for OpenAI-compatible hosts.
func DefaultQuirks() QuirkTable {
	return QuirkTable{
		// No chat completions support.
		"codex-mini-latest":          {Unlisted: true},
		"omni-moderation-2024-09-26": {Unlisted: true},
		"gpt-4o-transcribe":          {Unlisted: true},

		"gpt-4o-mini-search-preview": {
			DropParams: []string{ParamPresencePenalty},
		},
		"o1-mini": {
			RoleRewrites: map[api.Role]api.Role{api.RoleSystem: api.RoleUser},
			Clamp:        map[string]float64{ParamTemperature: 1},
		},
	}
}

// Merge returns a new table holding t's entries overridden by extra.
// Entries are replaced whole, not field by field.
func (t QuirkTable) Merge(extra QuirkTable) QuirkTable {
	merged := make(QuirkTable, len(t)+len(extra))
	for k, v := range t {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// Unlisted reports whether model is hidden from listings.
func (t QuirkTable) Unlisted(model string) bool {
	return t[model].Unlisted
}

// Models returns the sorted ids that have an entry.
func (t QuirkTable) Models() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks that every parameter name in the table is known.
func (t QuirkTable) Validate() error {
	for _, model := range t.Models() {
		q := t[model]
		for param := range q.Clamp {
			if !isFloatParam(param) {
				return fmt.Errorf("quirk for %q: cannot clamp %q", model, param)
			}
		}
		for from, to := range q.RoleRewrites {
			if !from.Valid() || !to.Valid() {
				return fmt.Errorf("quirk for %q: invalid role rewrite %q -> %q", model, from, to)
			}
		}
	}
	return nil
}

// Apply returns a patched copy of req. req itself is never modified.
// When q is the zero value the copy is still returned so callers can
// treat the result uniformly.
func (q Quirk) Apply(req *api.ChatCompletionRequest) *api.ChatCompletionRequest {
	out := req.Clone()

	for _, param := range q.DropParams {
		dropParam(out, param)
	}

	if len(q.RoleRewrites) > 0 {
		for i := range out.Messages {
			if to, ok := q.RoleRewrites[out.Messages[i].Role]; ok {
				out.Messages[i].Role = to
			}
		}
	}

	for param, value := range q.Clamp {
		if p := floatParam(out, param); p != nil && *p != nil {
			v := value
			*p = &v
		}
	}

	return out
}

func dropParam(req *api.ChatCompletionRequest, param string) {
	switch param {
	case ParamMaxTokens:
		req.MaxTokens = nil
	case ParamMaxCompletionTokens:
		req.MaxCompletionTokens = nil
	case ParamStop:
		req.Stop = nil
	case ParamServiceTier:
		req.ServiceTier = ""
	case ParamUser:
		req.User = ""
	default:
		if p := floatParam(req, param); p != nil {
			*p = nil
			return
		}
		delete(req.Extra, param)
	}
}

func floatParam(req *api.ChatCompletionRequest, param string) **float64 {
	switch param {
	case ParamTemperature:
		return &req.Temperature
	case ParamTopP:
		return &req.TopP
	case ParamFrequencyPenalty:
		return &req.FrequencyPenalty
	case ParamPresencePenalty:
		return &req.PresencePenalty
	}
	return nil
}

func isFloatParam(param string) bool {
	switch param {
	case ParamTemperature, ParamTopP, ParamFrequencyPenalty, ParamPresencePenalty:
		return true
	}
	return false
}
