package openaicompat

import (
	"encoding/json"

	"github.com/rhuss/llmrouter/pkg/api"
)

// ChatErrorResponse is the error envelope returned by Chat Completions backends.
// Code is kept raw because hosts send it as a string or a number.
type ChatErrorResponse struct {
	Error struct {
		Message string          `json:"message"`
		Type    string          `json:"type"`
		Param   string          `json:"param"`
		Code    json.RawMessage `json:"code"`
	} `json:"error"`
}

// ChatModelsResponse is the response from {base}/models.
type ChatModelsResponse struct {
	Object string      `json:"object"`
	Data   []api.Model `json:"data"`
}
