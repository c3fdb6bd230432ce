package openaicompat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody bounds how much of an error response body is read.
const maxErrorBody = 16 * 1024

// Error is a failure reported by an OpenAI-compatible backend. It carries
// the backend's status, type, code and message verbatim.
type Error struct {
	StatusCode int
	Type       string
	Code       string
	Param      string
	Message    string

	// Body is the raw response body, truncated.
	Body string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Type != "" {
		return fmt.Sprintf("backend error (HTTP %d, %s): %s", e.StatusCode, e.Type, msg)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.StatusCode, msg)
}

// HTTPStatus returns the status code the backend answered with.
func (e *Error) HTTPStatus() int {
	return e.StatusCode
}

// ErrorType returns the backend's error type.
func (e *Error) ErrorType() string {
	return e.Type
}

// ErrorCode returns the backend's error code.
func (e *Error) ErrorCode() string {
	return e.Code
}

// MapHTTPError converts a non-2xx response into an *Error. It parses the
// body as a ChatErrorResponse when possible and keeps the raw body
// otherwise.
func MapHTTPError(resp *http.Response) *Error {
	e := &Error{StatusCode: resp.StatusCode}

	if resp.Body == nil {
		return e
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return e
	}
	e.Body = Truncate(string(data), 1024)

	var errResp ChatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil {
		e.Type = errResp.Error.Type
		e.Param = errResp.Error.Param
		e.Message = errResp.Error.Message
		e.Code = decodeCode(errResp.Error.Code)
	}
	if e.Message == "" {
		e.Message = string(bytes.TrimSpace(data[:min(len(data), 512)]))
	}
	return e
}

// MapNetworkError wraps a transport-level failure (connection refused,
// timeout, DNS). The cause stays reachable through errors.Is so context
// cancellation can be recognised by callers.
func MapNetworkError(err error) error {
	return fmt.Errorf("backend connection error: %w", err)
}

func decodeCode(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Truncate limits a string to maxLen bytes for log output.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
