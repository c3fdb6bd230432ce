package anthropic

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Content failures caused by malformed client parts.
var (
	// ErrEmptyFile is returned when a file content part carries no inline data.
	ErrEmptyFile = errors.New("empty file")

	// ErrMissingImageURL is returned when an image_url part has no url.
	ErrMissingImageURL = errors.New("image_url part without url")
)

// maxErrorBody bounds how much of an error response body is read.
const maxErrorBody = 16 * 1024

// Error is a failure reported by the Messages API, either as a non-2xx
// response or as an error event inside a stream. Fields are verbatim.
type Error struct {
	StatusCode int
	Type       string
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
		return fmt.Sprintf("anthropic error (HTTP %d, %s): %s", e.StatusCode, e.Type, msg)
	}
	return fmt.Sprintf("anthropic error (HTTP %d): %s", e.StatusCode, msg)
}

// HTTPStatus returns the status code the backend answered with.
func (e *Error) HTTPStatus() int {
	return e.StatusCode
}

// ErrorType returns the backend's error type (e.g., "overloaded_error").
func (e *Error) ErrorType() string {
	return e.Type
}

// MapHTTPError converts a non-2xx response into an *Error.
func MapHTTPError(resp *http.Response) *Error {
	e := &Error{StatusCode: resp.StatusCode}
	if resp.Body == nil {
		return e
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return e
	}
	e.Body = truncate(string(data), 1024)

	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Type != "" {
		e.Type = errResp.Error.Type
		e.Message = errResp.Error.Message
		return e
	}
	e.Message = strings.TrimSpace(truncate(string(data), 512))
	return e
}

// errorFromEvent converts an in-stream error event. The stream has already
// answered 200, so the status is derived from the error type.
func errorFromEvent(d ErrorDetail) *Error {
	return &Error{
		StatusCode: statusForErrorType(d.Type),
		Type:       d.Type,
		Message:    d.Message,
	}
}

func statusForErrorType(t string) int {
	switch t {
	case "invalid_request_error":
		return http.StatusBadRequest
	case "authentication_error":
		return http.StatusUnauthorized
	case "permission_error":
		return http.StatusForbidden
	case "not_found_error":
		return http.StatusNotFound
	case "request_too_large":
		return http.StatusRequestEntityTooLarge
	case "rate_limit_error":
		return http.StatusTooManyRequests
	case "overloaded_error":
		return 529
	default:
		return http.StatusInternalServerError
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
