package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kevinaaaquil/library/backend/service"
)

type APIError struct {
	Error     string       `json:"error"`
	Code      string       `json:"code,omitempty"`
	RequestID string       `json:"requestId,omitempty"`
	Fields    []FieldError `json:"fields,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, fields []FieldError) {
	writeJSON(w, status, APIError{
		Error:     message,
		Code:      code,
		RequestID: chimw.GetReqID(r.Context()),
		Fields:    fields,
	})
}

func respondBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	respondError(w, r, http.StatusBadRequest, "invalid_request", message, nil)
}

// respondServiceError maps service errors onto HTTP statuses. Unknown errors are logged
// and answered with fallback so driver details never reach the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, fallback string) {
	var partial *service.PartialFailureError
	switch {
	case errors.As(err, &partial):
		log.ErrorContext(r.Context(), fallback, "error", err, "compensated", partial.Compensated,
			"request_id", chimw.GetReqID(r.Context()))
		respondError(w, r, http.StatusInternalServerError, "partial_failure", fallback, nil)
	case errors.Is(err, service.ErrInvalidInput):
		respondError(w, r, http.StatusBadRequest, "invalid_request", clientMessage(err, service.ErrInvalidInput), nil)
	case errors.Is(err, service.ErrConflict):
		respondError(w, r, http.StatusBadRequest, "conflict", clientMessage(err, service.ErrConflict), nil)
	case errors.Is(err, service.ErrOutOfStock):
		respondError(w, r, http.StatusBadRequest, "out_of_stock", "Book is currently out of stock", nil)
	case errors.Is(err, service.ErrUnauthorized):
		respondError(w, r, http.StatusUnauthorized, "unauthorized", clientMessage(err, service.ErrUnauthorized), nil)
	case errors.Is(err, service.ErrForbidden):
		respondError(w, r, http.StatusForbidden, "forbidden", clientMessage(err, service.ErrForbidden), nil)
	case errors.Is(err, service.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "not_found", clientMessage(err, service.ErrNotFound), nil)
	case errors.Is(err, service.ErrUnavailable):
		respondError(w, r, http.StatusServiceUnavailable, "unavailable", err.Error(), nil)
	default:
		log.ErrorContext(r.Context(), fallback, "error", err, "request_id", chimw.GetReqID(r.Context()))
		respondError(w, r, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

// clientMessage drops the sentinel prefix added by "%w: detail" wrapping and capitalizes the rest.
func clientMessage(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
