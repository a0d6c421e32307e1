package api

import (
	"encoding/json"
	"net/http"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON-encoded payload with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	// Signed URLs are full of '&'; keep them readable.
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

// writeError writes an error response with the given status and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}
