package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"voicenote/internal/log"
	"voicenote/internal/pipeline"
)

// writeJSON writes v with the given status. Encoding errors are logged by
// the caller's context logger only, the status is already on the wire.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its status and body. Retryable failures carry a
// Retry-After hint.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := pipeline.MapError(err)
	if resp.Retryable {
		w.Header().Set("Retry-After", strconv.Itoa(pipeline.RetryAfterSeconds))
	}

	logger := log.FromContext(r.Context())
	if resp.Status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldErrorKind, string(resp.Kind),
			log.FieldError, err.Error())
	} else {
		logger.WarnContext(r.Context(), "Request rejected",
			log.FieldErrorKind, string(resp.Kind),
			log.FieldError, err.Error())
	}
	writeJSON(w, resp.Status, resp)
}

// writeBadRequest rejects a malformed request body.
func writeBadRequest(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := http.StatusBadRequest
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
		message = "Request body is too large."
	}
	resp := pipeline.ErrorResponse{
		Kind:    pipeline.KindInvalidInput,
		Message: message,
	}
	if err != nil {
		resp.Details = err.Error()
	}
	log.FromContext(r.Context()).WarnContext(r.Context(), "Invalid request body",
		log.FieldPath, r.URL.Path,
		"details", resp.Details)
	writeJSON(w, status, resp)
}

// requirePOST answers 405 for any other method and reports whether the
// handler may continue.
func requirePOST(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodPost {
		return true
	}
	w.Header().Set("Allow", http.MethodPost)
	writeJSON(w, http.StatusMethodNotAllowed, pipeline.ErrorResponse{
		Kind:    "MethodNotAllowed",
		Message: "Method Not Allowed",
	})
	return false
}
