package anthropic

import "github.com/rhuss/llmrouter/pkg/api"

var finishReasons = map[StopReason]api.FinishReason{
	StopEndTurn:   api.FinishReasonStop,
	StopMaxTokens: api.FinishReasonLength,
	StopSequence:  api.FinishReasonStop,
	StopToolUse:   api.FinishReasonToolCalls,
	StopPauseTurn: api.FinishReasonStop,
	StopRefusal:   api.FinishReasonContentFilter,
}

// MapFinishReason maps a backend stop reason to a common finish reason.
// It returns nil for an absent or unrecognized stop reason, which is what
// streaming chunks carry.
func MapFinishReason(r *StopReason) *api.FinishReason {
	if r == nil {
		return nil
	}
	fr, ok := finishReasons[*r]
	if !ok {
		return nil
	}
	return &fr
}

// MapFinishReasonOrStop is MapFinishReason for unary responses, where the
// finish reason is never null and defaults to "stop".
func MapFinishReasonOrStop(r *StopReason) api.FinishReason {
	if fr := MapFinishReason(r); fr != nil {
		return *fr
	}
	return api.FinishReasonStop
}
