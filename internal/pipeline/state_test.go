package pipeline

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StatePending, StateTranscribing, true},
		{StateTranscribing, StateCorrecting, true},
		{StateCorrecting, StateExtracting, true},
		{StateExtracting, StatePersisting, true},
		{StatePersisting, StateCompleted, true},
		{StatePending, StateCorrecting, false},
		{StateCorrecting, StatePersisting, false},
		{StateTranscribing, StateCompleted, false},
		{StateExtracting, StateFailed, true},
		{StateCompleted, StateFailed, false},
		{StateFailed, StateTranscribing, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestJobTransition(t *testing.T) {
	job := newJob(time.Now())
	if job.ID == "" {
		t.Fatal("job id should be set")
	}
	for _, s := range []State{StateTranscribing, StateCorrecting} {
		if err := job.transition(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	if err := job.transition(StateCompleted); err == nil {
		t.Fatal("expected disallowed transition error")
	}
	if err := job.transition(StateFailed); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if job.FailedAt != StateCorrecting {
		t.Fatalf("FailedAt = %s", job.FailedAt)
	}
	if job.Reached(StateExtracting) {
		t.Fatal("job never reached Extracting")
	}
	if len(job.History) != 4 {
		t.Fatalf("history = %v", job.History)
	}
}
