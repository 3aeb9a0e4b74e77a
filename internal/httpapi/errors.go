package httpapi

import (
	"encoding/json"
	"net/http"

	"translatord/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSONErrorDetails(w, status, msg, "")
}

// writeJSONErrorDetails adds a details field, used for JSON parse failures.
func writeJSONErrorDetails(w http.ResponseWriter, status int, msg, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Details: details})
}
