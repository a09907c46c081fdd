package api

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body. Phase is set when the
// failure maps to a transcription phase (model_load, inference,
// serialization, file_write).
type ErrorResponse struct {
	Error  string `json:"error"`
	Phase  string `json:"phase,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WritePhaseError writes a JSON error response naming the failed phase.
func WritePhaseError(w http.ResponseWriter, status int, phase, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Phase: phase})
}
