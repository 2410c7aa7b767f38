package pipeline

import (
	"errors"
	"net/http"
	"strings"

	"voicenote/internal/core"
	"voicenote/internal/records"
)

// StatusClientClosedRequest is returned when the caller went away before
// the job finished.
const StatusClientClosedRequest = 499

// RetryAfterSeconds is the hint given with retryable failures.
const RetryAfterSeconds = 30

// ErrorResponse is the caller-facing view of a failed job.
type ErrorResponse struct {
	Status    int       `json:"-"`
	Kind      ErrorKind `json:"error"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
}

// MapError converts any error returned by Run into a status and body.
// Errors that are not StageErrors are classified on the fly.
func MapError(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{Status: http.StatusOK}
	}

	kind := KindInternal
	var se *StageError
	if errors.As(err, &se) {
		kind = se.Kind
	} else {
		kind = Classify(err, KindInternal)
	}

	resp := ErrorResponse{
		Kind:    kind,
		Message: UserMessage(kind, err),
		Details: err.Error(),
	}
	switch kind {
	case KindInvalidInput:
		resp.Status = http.StatusBadRequest
	case KindCancelled:
		resp.Status = StatusClientClosedRequest
	case KindUpstreamUnavailable:
		resp.Status = http.StatusInternalServerError
		resp.Retryable = true
	default:
		resp.Status = http.StatusInternalServerError
	}
	return resp
}

// UserMessage returns a short explanation a person can act on. Well-known
// upstream failures are recognized from the error text.
func UserMessage(kind ErrorKind, err error) string {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	lower := strings.ToLower(msg)

	switch {
	case kind == KindCancelled:
		return "The request was cancelled before processing finished."
	case strings.Contains(msg, "413"):
		return "Audio file is too large to process."
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return "Processing timed out. Long recordings take longer to transcribe, please try again."
	case strings.Contains(lower, "api key"):
		return "The inference service rejected the configured API key."
	case strings.Contains(lower, "unsupported audio reference") || strings.Contains(lower, "invalid or unsupported file uri"):
		return "The referenced audio could not be read. Check that the upload finished and the URI is correct."
	}

	switch kind {
	case KindInvalidInput:
		switch {
		case errors.Is(err, core.ErrNoInput):
			return "No audio or text was provided."
		case errors.Is(err, core.ErrAmbiguousInput):
			return "Provide exactly one of inline audio, an audio reference or text."
		case errors.Is(err, core.ErrMissingMime), errors.Is(err, core.ErrUnsupportedMime):
			return "The audio format is missing or not supported."
		}
		return "The request is not valid."
	case KindTranscriptionFailed:
		return "Failed to get a transcription. The audio might be unclear, too long or in an unsupported format."
	case KindPersistenceFailed:
		if errors.Is(err, records.ErrNotConfigured) || errors.Is(err, ErrNoRecordStore) {
			return "The record store is not configured on the server."
		}
		return "Failed to save the note to the record store."
	case KindUpstreamUnavailable:
		return "An upstream service is temporarily unavailable. Please retry shortly."
	case KindCorrectionDegraded:
		return "Text correction failed."
	case KindExtractionDegraded:
		return "Structured extraction failed."
	default:
		return "An unexpected error occurred."
	}
}
