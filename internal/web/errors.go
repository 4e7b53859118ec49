package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as a JSON user message with an action and a code
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err, statusCode)
//  3. Error is mapped via core.MapError to get user-friendly message
//  4. Technical error + context is logged with request ID for correlation

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/JonMunkholm/txnimport/internal/logging"
)

var (
	errNoFile       = errors.New("no file provided")
	errEmptyFile    = errors.New("empty file")
	errFileTooLarge = errors.New("file too large")
	errRateLimited  = errors.New("rate limit exceeded")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error server-side and writes the mapped
// user message as JSON. Errors without a catalogue entry (ERR000) are logged
// at error level whatever the status, since the log is all support has.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	uerr := core.NewUserError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", uerr.Technical.Error(),
		"code", uerr.User.Code,
	}
	if statusCode >= http.StatusInternalServerError || !core.IsUserFacing(err) {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	writeJSON(w, statusCode, ErrorResponse{
		Error:   uerr.Error(),
		Message: uerr.User.Message,
		Action:  uerr.User.Action,
		Code:    uerr.User.Code,
	})
}

// importStatus picks the HTTP status for an error returned by the import service.
func importStatus(err error) int {
	var (
		decodeErr *core.DecodeError
		headerErr *core.MissingHeaderError
	)
	switch {
	case errors.As(err, &decodeErr), errors.As(err, &headerErr), errors.Is(err, core.ErrInvalidTenant):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnsupportedContentType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrHistoryUnavailable):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
