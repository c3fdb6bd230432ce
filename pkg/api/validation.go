package api

import (
	"fmt"
)

// ValidateRequest checks a ChatCompletionRequest for structural validity.
// It returns an *APIError describing the first failure, or nil if the
// request is valid.
//
// Only the shape of the request is checked: a model id, at least one
// message, and roles from the closed role set. Value ranges and limits
// (sampling parameters, token limits, stop sequences) belong to the
// backend, which rejects them with its own error. Host resolution and
// content translation are left to the router and the adapters.
func ValidateRequest(req *ChatCompletionRequest) *APIError {
	if req.Model == "" {
		return NewInvalidRequestError("model", "model is required")
	}

	if len(req.Messages) == 0 {
		return NewInvalidRequestError("messages", "messages must contain at least one message")
	}

	for i, msg := range req.Messages {
		if !msg.Role.Valid() {
			return NewInvalidRequestError(fmt.Sprintf("messages[%d].role", i),
				fmt.Sprintf("unknown role %q", msg.Role))
		}
	}

	return nil
}
