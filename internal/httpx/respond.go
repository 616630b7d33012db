// Package httpx holds the HTTP plumbing shared by the handlers: JSON
// responses, error mapping, request decoding and middleware.
package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"bookshelf/internal/apperr"

	"github.com/go-chi/chi/v5/middleware"
)

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	Details   []apperr.Detail `json:"details,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:     http.StatusNotFound,
	apperr.KindConflict:     http.StatusConflict,
	apperr.KindForbidden:    http.StatusForbidden,
	apperr.KindValidation:   http.StatusBadRequest,
	apperr.KindUnauthorized: http.StatusUnauthorized,
	apperr.KindRateLimited:  http.StatusTooManyRequests,
}

// StatusOf maps an error to the HTTP status it is reported with.
func StatusOf(err error) int {
	if status, ok := statusByKind[apperr.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes err with its stable code. Untyped errors are logged and
// reported as INTERNAL without leaking their text.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	body := ErrorBody{RequestID: middleware.GetReqID(r.Context())}

	if e, ok := apperr.As(err); ok {
		body.Code, body.Message, body.Details = e.Code, e.Message, e.Details
	} else {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", body.RequestID,
			"error", err,
		)
		body.Code, body.Message = "INTERNAL", "internal server error"
	}

	JSON(w, StatusOf(err), ErrorResponse{Error: body})
}
