package api

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request_error"
	ErrorTypeNotFound        ErrorType = "not_found_error"
	ErrorTypeAuthentication  ErrorType = "authentication_error"
	ErrorTypeUpstream        ErrorType = "upstream_error"
	ErrorTypeTooManyRequests ErrorType = "rate_limit_error"
)

// APIError represents a structured API error with type, code, param, and message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(code, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// NewUpstreamError creates an APIError for a failure reported by a backend host.
func NewUpstreamError(code, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeUpstream,
		Code:    code,
		Message: message,
	}
}

// NewAuthenticationError creates an APIError for rejected credentials.
func NewAuthenticationError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeAuthentication,
		Message: message,
	}
}

// NewTooManyRequestsError creates an APIError for rate limiting.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTooManyRequests,
		Message: message,
	}
}

// ---------------------------------------------------------------------------
// Routing and translation errors
// ---------------------------------------------------------------------------

// Sentinels matched by the typed errors below via errors.Is.
var (
	ErrModalityNotSupported = errors.New("modality not supported")
	ErrModelNotFound        = errors.New("model not found")
	ErrHostNotFound         = errors.New("host not found")
	ErrInvalidContent       = errors.New("invalid content")
)

// ModalityNotSupportedError reports content the target backend cannot
// express. Detail carries the raw payload of unrecognized parts.
type ModalityNotSupportedError struct {
	Modality string
	Detail   string
}

func (e *ModalityNotSupportedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("modality not supported: %s (%s)", e.Modality, e.Detail)
	}
	return "modality not supported: " + e.Modality
}

// Is matches ErrModalityNotSupported.
func (e *ModalityNotSupportedError) Is(target error) bool {
	return target == ErrModalityNotSupported
}

// ModelNotFoundError reports a request whose model segment is empty or
// otherwise unresolvable.
type ModelNotFoundError struct {
	Model string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model not found: %q", e.Model)
}

// Is matches ErrModelNotFound.
func (e *ModelNotFoundError) Is(target error) bool {
	return target == ErrModelNotFound
}

// HostNotFoundError reports a host id that is missing or not configured.
type HostNotFoundError struct {
	Host string
}

func (e *HostNotFoundError) Error() string {
	if e.Host == "" {
		return "host not found: model id has no @host suffix"
	}
	return fmt.Sprintf("host not found: %q", e.Host)
}

// Is matches ErrHostNotFound.
func (e *HostNotFoundError) Is(target error) bool {
	return target == ErrHostNotFound
}

// InvalidContentError reports client content that cannot be translated
// for the target backend because it is malformed, such as a file part
// without data. Param names the offending request field.
type InvalidContentError struct {
	Param string
	Err   error
}

func (e *InvalidContentError) Error() string {
	return fmt.Sprintf("invalid content in %s: %v", e.Param, e.Err)
}

// Unwrap returns the underlying cause.
func (e *InvalidContentError) Unwrap() error {
	return e.Err
}

// Is matches ErrInvalidContent.
func (e *InvalidContentError) Is(target error) bool {
	return target == ErrInvalidContent
}
