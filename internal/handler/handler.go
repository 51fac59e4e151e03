// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/inkpost/inkpost/internal/handler/dto"
	"github.com/inkpost/inkpost/internal/service"
)

// Version is reported by the root endpoint.
var Version = "0.1.0"

// Error codes returned in the "code" field of error bodies.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInvalidJSON      = "INVALID_JSON"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeUserNotFound     = "USER_NOT_FOUND"
	CodePostNotFound     = "POST_NOT_FOUND"
	CodeEmailTaken       = "EMAIL_TAKEN"
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternal         = "INTERNAL_ERROR"
)

// Handler serves the endpoints that do not touch content.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// Hello reports the service name and version.
// GET /
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "inkpost",
		"version": Version,
	})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, CodeNotFound, "resource not found", nil)
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed", nil)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeData wraps data in the success envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dto.DataResponse{Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string, fields map[string]string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:  message,
		Code:   code,
		Fields: fields,
	})
}

// decodeJSON reads the request body into dst. It writes the error response
// itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "request body too large", nil)
			return false
		}
		writeError(w, http.StatusBadRequest, CodeInvalidJSON, "invalid JSON body", nil)
		return false
	}
	return true
}

// handleServiceError maps service errors to HTTP responses.
// Unexpected errors are logged and reported without detail.
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "validation failed", validationErr.Fields)
	case errors.Is(err, service.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "authentication required", nil)
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, CodeForbidden, "only the author may modify this post", nil)
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, CodeUserNotFound, "user not found", nil)
	case errors.Is(err, service.ErrPostNotFound):
		writeError(w, http.StatusNotFound, CodePostNotFound, "post not found", nil)
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, CodeEmailTaken, "email already registered", nil)
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error", nil)
	}
}
