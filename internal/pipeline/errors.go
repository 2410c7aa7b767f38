package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"

	"voicenote/internal/inference"
)

// ErrorKind names a failure or degradation in the pipeline taxonomy.
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "InvalidInput"
	KindTranscriptionFailed ErrorKind = "TranscriptionFailed"
	KindCorrectionDegraded  ErrorKind = "CorrectionDegraded"
	KindExtractionDegraded  ErrorKind = "ExtractionDegraded"
	KindPersistenceFailed   ErrorKind = "PersistenceFailed"
	KindUpstreamUnavailable ErrorKind = "UpstreamUnavailable"
	KindCancelled           ErrorKind = "Cancelled"
	KindCleanupFailed       ErrorKind = "CleanupFailed"
	KindInternal            ErrorKind = "InternalError"
)

var (
	ErrEmptyTranscript = errors.New("transcription returned no text")
	ErrEmptyCorrection = errors.New("correction returned no text")
	ErrEmptyExternalID = errors.New("record store returned no identifier")
	ErrNoRecordStore   = errors.New("no record store configured")
)

// StageError is a job-ending failure. It records the stage that was running
// when the job failed.
type StageError struct {
	JobID string
	Stage State
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s failed: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Warning is a non-fatal degradation attached to a completed outcome.
type Warning struct {
	Kind    ErrorKind `json:"kind"`
	Stage   State     `json:"stage"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
}

func stageError(stage State, kind ErrorKind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// Classify picks the kind for an error raised by a dependency during stage.
// Cancellation and unavailability take precedence over fallback.
func Classify(err error, fallback ErrorKind) ErrorKind {
	var se *StageError
	switch {
	case err == nil:
		return fallback
	case errors.As(err, &se):
		return se.Kind
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case IsUnavailable(err):
		return KindUpstreamUnavailable
	default:
		return fallback
	}
}

// IsUnavailable reports timeouts and transient upstream failures.
func IsUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, inference.ErrUnavailable) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
