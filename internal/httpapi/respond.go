package httpapi

import (
	"encoding/json"
	"net/http"
)

// Client-facing messages. Login failures share one message whatever the
// cause.
const (
	msgInvalidCredentials = "Invalid username or password"
	msgRateLimited        = "Too many failed login attempts, try again later"
	msgInvalidBody        = "Invalid request body"
	msgInternal           = "Internal server error"
	msgRegistered         = "User registered successfully"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // the client may have gone away
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, msgInternal)
}
