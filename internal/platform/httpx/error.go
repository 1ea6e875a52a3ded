package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/teranga-app/api/internal/platform/requestctx"
)

// Error is the flat JSON envelope every non-2xx response carries.
type Error struct {
	Code    string
	Message string
	Status  int
}

// NewError builds an Error, defaulting the status to 500 when unset.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    clean(code, 80),
		Message: clean(message, 512),
		Status:  status,
	}
}

type envelope struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// WriteError renders the envelope, stamping the request and trace identifiers
// from the context so clients can quote them in support reports.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	payload := envelope{
		Error:     err.Code,
		Message:   err.Message,
		Status:    status,
		RequestID: clean(middleware.GetReqID(ctx), 80),
		TraceID:   clean(requestctx.TraceID(ctx), 64),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// clean keeps caller-derived strings single-line and bounded.
func clean(value string, limit int) string {
	value = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, value)
	value = strings.TrimSpace(value)
	if limit > 0 && len(value) > limit {
		value = value[:limit]
	}
	return value
}
