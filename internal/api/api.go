// Package api provides the shared HTTP response utilities used by the
// handler packages: the JSON error envelope, response writing, and the
// health endpoint.
package api

import (
	"encoding/json"
	"net/http"
)

// Error status labels carried in the errorStatus field. They are stable
// identifiers for clients; the message field is free-form.
const (
	StatusUnauthorized  = "Unauthorized"
	StatusBadRequest    = "BadRequest"
	StatusNotFound      = "NotFound"
	StatusConflict      = "Conflict"
	StatusForbidden     = "Forbidden"
	StatusInternalError = "InternalError"
)

// ErrorResponse is the error envelope returned by every failing endpoint.
type ErrorResponse struct {
	ErrorStatus string `json:"errorStatus"`
	Message     string `json:"message"`
}

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, status int, errorStatus, message string) {
	WriteJSON(w, status, ErrorResponse{ErrorStatus: errorStatus, Message: message})
}

// WriteUnauthenticated writes the fixed response for requests without a
// valid identity. The status is 403, not 401, which clients depend on.
func WriteUnauthenticated(w http.ResponseWriter) {
	WriteError(w, http.StatusForbidden, StatusUnauthorized, "User not logged in or not a valid user")
}

// WriteBadRequest writes a 400 error.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, StatusBadRequest, message)
}

// WriteNotFound writes a 404 error.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, StatusNotFound, message)
}

// WriteConflict writes a 409 error.
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, StatusConflict, message)
}

// WriteInternalError writes a 500 error. Keep messages generic so internal
// detail does not leak to clients.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, StatusInternalError, message)
}

// DecodeJSON decodes a request body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// HealthResponse is the body of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthHandler handles GET /healthz.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
