// Package httputil writes JSON responses.
package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const contentTypeJSON = "application/json; charset=utf-8"

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": message} with the given status.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// FixedResponse is a response whose body is encoded once. Every write is
// byte-identical, including Content-Length.
type FixedResponse struct {
	status int
	body   []byte
}

// NewFixedResponse encodes v once.
func NewFixedResponse(status int, v any) *FixedResponse {
	body, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return &FixedResponse{status: status, body: append(body, '\n')}
}

// Status returns the response status.
func (f *FixedResponse) Status() int {
	return f.status
}

// Write sends the response.
func (f *FixedResponse) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", contentTypeJSON)
	h.Set("Content-Length", strconv.Itoa(len(f.body)))
	w.WriteHeader(f.status)
	w.Write(f.body)
}
