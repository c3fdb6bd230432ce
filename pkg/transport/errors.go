package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rhuss/llmrouter/pkg/api"
)

// Error codes attached to mapped routing and translation errors.
const (
	CodeHostNotFound         = "host_not_found"
	CodeModelNotFound        = "model_not_found"
	CodeModalityNotSupported = "modality_not_supported"
)

// backendError is implemented by errors reported by a backend host.
type backendError interface {
	error
	HTTPStatus() int
	ErrorType() string
}

// HTTPStatusFromError maps an APIError type to the corresponding HTTP status
// code. Transport-level errors (body too large, unsupported content type)
// are handled separately by the HTTP adapter.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case api.ErrorTypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// APIErrorFromError converts any error returned by a handler into an
// APIError and the status code to answer with.
//
//   - *api.APIError: itself, status from its type
//   - HostNotFound, ModelNotFound: 404
//   - ModalityNotSupported, InvalidContent: 400
//   - backend errors: the backend's own status, type carried as code
//   - anything else: 500
func APIErrorFromError(err error) (*api.APIError, int) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr, HTTPStatusFromError(apiErr)
	}

	switch {
	case errors.Is(err, api.ErrHostNotFound):
		return api.NewNotFoundError(CodeHostNotFound, err.Error()), http.StatusNotFound
	case errors.Is(err, api.ErrModelNotFound):
		return api.NewNotFoundError(CodeModelNotFound, err.Error()), http.StatusNotFound
	case errors.Is(err, api.ErrModalityNotSupported):
		e := api.NewInvalidRequestError("messages", err.Error())
		e.Code = CodeModalityNotSupported
		return e, http.StatusBadRequest
	}

	var contentErr *api.InvalidContentError
	if errors.As(err, &contentErr) {
		return api.NewInvalidRequestError(contentErr.Param, contentErr.Error()), http.StatusBadRequest
	}

	var be backendError
	if errors.As(err, &be) {
		status := be.HTTPStatus()
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return api.NewUpstreamError(be.ErrorType(), be.Error()), status
	}

	return api.NewServerError(err.Error()), http.StatusInternalServerError
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api. It sets the Content-Type header and writes
// the HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteError maps err with APIErrorFromError and writes it.
func WriteError(w http.ResponseWriter, err error) {
	apiErr, status := APIErrorFromError(err)
	WriteErrorResponse(w, apiErr, status)
}
