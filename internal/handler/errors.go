package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Samilrotech/WHS-sub005/internal/domain"
)

// ErrorDetail is the machine-readable error element of every non-2xx body.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// writeJSON serialises v with the given status. Encoding failures are logged;
// by then the status line is already on the wire.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

// writeError maps a domain error to its HTTP status:
//
//	ErrValidation        → 422 validation_error
//	ErrNotFound          → 404 not_found
//	ErrInvalidTransition → 409 invalid_transition
//	ErrConflict          → 409 conflict (retryable)
//	ErrStoreUnavailable  → 503 store_unavailable (retryable)
//	anything else        → 500 internal
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{Code: "validation_error", Message: unwrapMessage(err)},
		})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{Code: "not_found", Message: "journey not found"},
		})
	case errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{Code: "invalid_transition", Message: unwrapMessage(err)},
		})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{Code: "conflict", Message: "journey was modified concurrently, retry"},
		})
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error: ErrorDetail{Code: "store_unavailable", Message: "persistence temporarily unavailable, retry"},
		})
	default:
		slog.Error("unhandled error", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{Code: "internal", Message: "internal server error"},
		})
	}
}

// requestError rejects a request before it reaches the service layer
// (missing body, malformed JSON, bad UUID).
func requestError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error: ErrorDetail{Code: "validation_error", Message: message},
	})
}

// unwrapMessage extracts the human-readable tail from a wrapped sentinel
// error. e.g. "service.JourneyService.Start: start journey in status
// \"active\": invalid transition" → the part after the last wrap prefix.
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	// Drop "service.X.Y: " style prefixes, keep the meaningful remainder.
	for {
		idx := strings.Index(msg, ": ")
		if idx < 0 {
			return msg
		}
		head := msg[:idx]
		if strings.HasPrefix(head, "service.") || strings.HasPrefix(head, "repo.") {
			msg = msg[idx+2:]
			continue
		}
		return msg
	}
}
