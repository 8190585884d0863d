package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// WHY HELPERS?
// Without helpers, every handler repeats the same boilerplate:
//   w.Header().Set("Content-Type", "application/json")
//   w.WriteHeader(statusCode)
//   json.NewEncoder(w).Encode(data)
//
// With helpers, handlers are cleaner and more consistent:
//   writeJSON(w, http.StatusOK, data)
//   writeError(w, err)
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "not_found", "message": "user alice not found"}
//
// This makes it easy for the frontend to parse errors — it always knows
// what fields to expect, regardless of whether it's a 400, 404, or 500.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/colab/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
// Having a struct ensures consistent JSON shape across all error responses.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// Envelope is the success shape of the /user endpoints:
//
//	{"status": "success", "data": [...], "message": "Fetched one user"}
type Envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
}

func success(data any, message string) Envelope {
	return Envelope{Status: "success", Data: data, Message: message}
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// You MUST set headers and status code BEFORE writing the body.
// Once you call w.Write() (which Encode does internally), the headers are sent.
// Any header changes after that are silently ignored.
//
// That's why we do:
//  1. w.Header().Set(...)     ← set headers
//  2. w.WriteHeader(status)   ← send status + headers
//  3. json.Encode(data)       ← send body
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// If encoding fails, the headers are already sent — we can only log it.
			// This is rare (usually means the data has an unencodable type like a channel).
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
// The service layer returns apperror kinds; this is the only place they
// become status codes:
//
//	ErrValidation   → 400 validation_error
//	ErrConflict     → 400 conflict        (duplicate username/email)
//	ErrUnauthorized → 401 unauthorized
//	ErrForbidden    → 403 forbidden
//	ErrNotFound     → 404 not_found
//	ErrUnavailable  → 503 unavailable
//	anything else   → 500 internal_error
//
// Conflict is a 400 rather than a 409: clients of this API have always
// treated "user already exists" as a plain bad request.
//
// errors.Is() UNWRAPPING:
// errors.Is(err, target) walks the entire error chain (via Unwrap()), so
//
//	service returns: fmt.Errorf("service: creating user alice: %w", apperror.Conflict(...))
//	which wraps:     AppError{Err: ErrConflict, Message: "user already exists"}
//	errors.Is walks: outer error → AppError → ErrConflict ✓ match!
func writeError(w http.ResponseWriter, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		// The cause stays in the log, never in the response.
		slog.Error("request failed", slog.Int("status", status), slog.String("error", err.Error()))
	}
	writeJSON(w, status, body)
}

// errorResponse is shared by the JSON API and the HTML pages, which show
// the same message inside the form.
func errorResponse(err error) (int, ErrorResponse) {
	var appErr *apperror.AppError

	// errors.As() is like errors.Is() but extracts the error value.
	if !errors.As(err, &appErr) {
		// NEVER expose internal error details to the client. The raw message
		// might contain SQL, file paths or hostnames.
		return http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		}
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
		errorType = "validation_error"
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusBadRequest
		errorType = "conflict"
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusUnauthorized
		errorType = "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
		errorType = "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
		errorType = "not_found"
	case errors.Is(err, apperror.ErrUnavailable):
		status = http.StatusServiceUnavailable
		errorType = "unavailable"
	}

	return status, ErrorResponse{Error: errorType, Message: appErr.Message}
}
