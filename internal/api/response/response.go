// Package response writes the JSON envelopes used by every API endpoint.
// Success bodies live under "data", list endpoints add "meta", and errors
// carry a machine-readable code alongside the human-readable message.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type successBody struct {
	Data any             `json:"data"`
	Meta *PaginationMeta `json:"meta,omitempty"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details,omitempty"`
	} `json:"error"`
}

// PaginationMeta describes the page window of a collection response.
type PaginationMeta struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
}

// JSON writes data in the success envelope with a 200 status.
func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, successBody{Data: data})
}

// Created writes data in the success envelope with a 201 status.
func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, successBody{Data: data})
}

// Accepted writes data in the success envelope with a 202 status. Used by
// endpoints that enqueue work and return before it runs.
func Accepted(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusAccepted, successBody{Data: data})
}

// Collection writes a list response with pagination metadata.
func Collection(w http.ResponseWriter, data any, meta PaginationMeta) {
	writeJSON(w, http.StatusOK, successBody{Data: data, Meta: &meta})
}

// Error writes the error envelope. Details is optional structured context,
// omitted from the body when nil.
func Error(w http.ResponseWriter, status int, code, message string, details any) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	body.Error.Details = details
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already written; all we can do is log.
		slog.Error("failed to encode response body", "error", err)
	}
}
