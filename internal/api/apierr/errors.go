package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/ingamehud/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeInvalidPlayerID     = "INVALID_PLAYER_ID"
	CodeInvalidPosition     = "INVALID_POSITION"
	CodeUnsupportedLanguage = "UNSUPPORTED_LANGUAGE"
	CodeUnknownCommand      = "UNKNOWN_COMMAND"
	CodeBusy                = "BUSY"
	CodeInternalError       = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, model.ErrEmptyPlayerID):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidPlayerID, "Player id is required"}}
	case errors.Is(err, model.ErrInvalidPosition):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidPosition, "Position must be 1-5 or a position name"}}
	case errors.Is(err, model.ErrUnsupportedLanguage):
		return &httpError{http.StatusBadRequest, APIError{CodeUnsupportedLanguage, "Language is not supported"}}
	case errors.Is(err, model.ErrUnknownMutation):
		return &httpError{http.StatusBadRequest, APIError{CodeUnknownCommand, "Command must be toggle, position or language"}}
	case errors.Is(err, context.DeadlineExceeded):
		// The main loop did not pick the request up in time
		return &httpError{http.StatusServiceUnavailable, APIError{CodeBusy, "Server is busy, try again"}}
	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
