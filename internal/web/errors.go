package web

// errors.go turns service errors into JSON error responses. Every error is
// logged with its request ID; the client receives the mapped user message
// plus the raw error text.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/sheetrest/internal/core"
	"github.com/JonMunkholm/sheetrest/internal/logging"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for an error kind.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrMalformedRequest),
		errors.Is(err, core.ErrUnknownColumn),
		errors.Is(err, core.ErrReservedColumn):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrSheetNotFound),
		errors.Is(err, core.ErrRowNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUnsupportedMethod):
		return http.StatusMethodNotAllowed
	case errors.Is(err, core.ErrTooManyInserts):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// client went away; nginx convention
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes it as an ErrorResponse.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	logger := logging.WithFields(r.Context(), "status", status, "code", msg.Code)
	log := logger.Warn
	if !core.IsClientError(err) {
		log = logger.Error
	}
	log("request error",
		"error", err.Error(),
		"user_message", core.FormatUserError(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   err.Error(),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v with status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
