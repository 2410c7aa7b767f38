package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"voicenote/internal/core"
	"voicenote/internal/inference"
	"voicenote/internal/records"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		kind      ErrorKind
		retryable bool
	}{
		{"invalid input", stageError(StateTranscribing, KindInvalidInput, core.ErrAmbiguousInput), http.StatusBadRequest, KindInvalidInput, false},
		{"transcription", stageError(StateTranscribing, KindTranscriptionFailed, ErrEmptyTranscript), http.StatusInternalServerError, KindTranscriptionFailed, false},
		{"persistence", stageError(StatePersisting, KindPersistenceFailed, records.ErrNotConfigured), http.StatusInternalServerError, KindPersistenceFailed, false},
		{"upstream", stageError(StateTranscribing, KindUpstreamUnavailable, inference.ErrUnavailable), http.StatusInternalServerError, KindUpstreamUnavailable, true},
		{"cancelled", stageError(StateCorrecting, KindCancelled, context.Canceled), StatusClientClosedRequest, KindCancelled, false},
		{"bare deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), http.StatusInternalServerError, KindUpstreamUnavailable, true},
		{"bare error", errors.New("boom"), http.StatusInternalServerError, KindInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Status != tt.status || got.Kind != tt.kind || got.Retryable != tt.retryable {
				t.Fatalf("MapError = %+v", got)
			}
			if got.Message == "" || got.Details == "" {
				t.Fatalf("message and details should be set: %+v", got)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		err  error
		want string
	}{
		{KindTranscriptionFailed, errors.New("audio payload exceeds limit (413)"), "too large"},
		{KindUpstreamUnavailable, errors.New("request timeout"), "timed out"},
		{KindTranscriptionFailed, errors.New("Incorrect API key provided"), "API key"},
		{KindTranscriptionFailed, inference.ErrUnsupportedReference, "referenced audio"},
		{KindPersistenceFailed, records.ErrNotConfigured, "not configured"},
		{KindPersistenceFailed, ErrNoRecordStore, "not configured"},
		{KindInvalidInput, core.ErrNoInput, "No audio or text"},
		{KindTranscriptionFailed, ErrEmptyTranscript, "Failed to get a transcription"},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.kind, tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("UserMessage(%s, %v) = %q, want it to mention %q", tt.kind, tt.err, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	if got := Classify(context.Canceled, KindTranscriptionFailed); got != KindCancelled {
		t.Fatalf("canceled = %s", got)
	}
	if got := Classify(fmt.Errorf("x: %w", inference.ErrUnavailable), KindPersistenceFailed); got != KindUpstreamUnavailable {
		t.Fatalf("unavailable = %s", got)
	}
	if got := Classify(errors.New("x"), KindPersistenceFailed); got != KindPersistenceFailed {
		t.Fatalf("fallback = %s", got)
	}
}
