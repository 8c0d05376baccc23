// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// ListEnvelope wraps collection responses with paging metadata.
type ListEnvelope struct {
	Items any `json:"items"`
	Page  int `json:"page,omitempty"`
	Total int `json:"total,omitempty"`
	Pages int `json:"pages,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// NoContent sends an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// ErrMalformedBody indicates an unreadable or invalid JSON request body.
var ErrMalformedBody = errors.New("malformed request body")

// DecodeJSON decodes JSON request body into the target struct. Unknown fields
// are rejected so clients notice typos instead of silently losing data.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return ErrMalformedBody
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return ErrMalformedBody
	}
	return nil
}
