package web

// errors.go provides unified error response handling for the web layer.
//
// The technical error is logged server-side with the request ID; the client
// receives the mapped user message and its code. The status code follows
// from the error type:
//
//	parse.UnsupportedFormatError  415
//	parse.MalformedFileError      400
//	core.ErrFileTooLarge          413
//	core.ErrTooManyImports        429
//	store.ErrNotFound             404
//	anything else                 500

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/ticketimport/internal/core"
	"github.com/JonMunkholm/ticketimport/internal/logging"
	"github.com/JonMunkholm/ticketimport/internal/parse"
	"github.com/JonMunkholm/ticketimport/internal/store"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	var unsupported *parse.UnsupportedFormatError
	var malformed *parse.MalformedFileError

	switch {
	case errors.As(err, &unsupported):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &malformed):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusTooManyRequests
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped message with the status
// derived from its type.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorStatus(w, r, statusFor(err), err)
}

// writeError reports a request problem detected by the handler itself.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeErrorStatus(w, r, status, errors.New(message))
}

func writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	// Unmapped client errors carry the handler's own wording; unmapped
	// server errors never leak internals.
	message := msg.Message
	if !core.IsUserFacing(err) && status < http.StatusInternalServerError {
		message = err.Error()
	}

	writeJSON(w, status, ErrorResponse{
		Error:   message,
		Message: message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
