package response

// Every endpoint answers with one of two envelopes: successful payloads go
// under "data" (collections additionally carry "meta"), failures go under
// "error" with a machine-readable code. Handlers never write raw JSON.

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// PaginationMeta describes the page window applied to a collection. The
// synthesis provider returns full history in one shot, so total is always
// the exact count.
type PaginationMeta struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes a 200 with the payload under "data".
func JSON(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, map[string]any{"data": data})
}

// Accepted writes a 202 for work handed off to the background pipeline.
func Accepted(w http.ResponseWriter, data any) {
	write(w, http.StatusAccepted, map[string]any{"data": data})
}

// Collection writes a 200 with the page of items and its pagination meta.
func Collection(w http.ResponseWriter, data any, meta PaginationMeta) {
	write(w, http.StatusOK, map[string]any{"data": data, "meta": meta})
}

// Error writes the error envelope. code is the stable machine-readable
// identifier clients switch on; message is for humans.
func Error(w http.ResponseWriter, status int, code, message string, details any) {
	write(w, status, map[string]any{"error": errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

func write(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// The status line is already out; all that is left is a trace.
		slog.Warn("encoding response failed", "status", status, "error", err)
	}
}
