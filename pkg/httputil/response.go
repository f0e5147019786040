// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"
)

// InternalErrorMessage is the only detail a client sees for unexpected failures
const InternalErrorMessage = "Internal server error"

// Response is the envelope every API response is wrapped in. Handlers that
// need extra top-level keys embed it.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes {"success":true,"message":...,"data":...}
func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) error {
	return WriteJSON(w, status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// WriteCreated writes a successful creation response (201 Created)
func WriteCreated(w http.ResponseWriter, message string, data interface{}) error {
	return WriteSuccess(w, http.StatusCreated, message, data)
}

// WriteOK writes a successful response (200 OK)
func WriteOK(w http.ResponseWriter, message string, data interface{}) error {
	return WriteSuccess(w, http.StatusOK, message, data)
}

// WriteErrorMessage writes {"success":false,"message":...}
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, Response{Message: message})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteNotFound writes a not found error (404)
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteConflict writes a conflict error (409)
func WriteConflict(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusConflict, message)
}

// WriteTooManyRequests writes a rate limit error (429)
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusTooManyRequests, message)
}

// WriteBadGateway writes an upstream failure (502)
func WriteBadGateway(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadGateway, message)
}

// WriteInternalError writes a 500 with the generic message. The cause must
// be logged by the caller; it never reaches the client.
func WriteInternalError(w http.ResponseWriter) {
	WriteErrorMessage(w, http.StatusInternalServerError, InternalErrorMessage)
}
