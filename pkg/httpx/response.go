// Package httpx carries the small HTTP helpers shared by every handler:
// the uniform response envelope, middleware chaining and per-key rate
// limiting.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform response shape for every endpoint. Keeping the
// shape identical across success and failure (and across "account exists"
// and "account does not exist") is part of the anti-enumeration posture.
type Envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    any      `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// WriteJSON writes v as JSON with the given status code. Sensitive responses
// must not be cached, so no-store is set unconditionally.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a success envelope.
func OK(w http.ResponseWriter, code int, message string, data any) {
	WriteJSON(w, code, Envelope{Success: true, Message: message, Data: data})
}

// Fail writes a failure envelope.
func Fail(w http.ResponseWriter, code int, message string, errs ...string) {
	WriteJSON(w, code, Envelope{Success: false, Message: message, Errors: errs})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
