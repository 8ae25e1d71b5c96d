package httpapi

import (
	"net/http"

	json "github.com/goccy/go-json"

	"sessiond/internal/session"
	"sessiond/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusForError maps session errors to HTTP status codes. Unknown errors
// fall through to 500.
func statusForError(err error) int {
	switch {
	case session.IsConfiguration(err), session.IsValidation(err):
		return http.StatusBadRequest
	case session.IsSessionNotFound(err), session.IsModelNotFound(err):
		return http.StatusNotFound
	case session.IsInvalidHandle(err):
		return http.StatusConflict
	case session.IsTaskRunning(err):
		return http.StatusTooManyRequests
	case session.IsResource(err):
		return http.StatusServiceUnavailable
	case session.IsNativeUnavailable(err):
		// A binary built without native support is an availability
		// problem, not a server bug.
		return http.StatusServiceUnavailable
	case session.IsNativeLibrary(err):
		return http.StatusInternalServerError
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeError maps err to a status and writes the JSON error payload.
func writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("session_busy")
	}
	writeJSONError(w, status, err.Error())
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
