package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle position of a pipeline job.
type State string

const (
	StatePending      State = "Pending"
	StateTranscribing State = "Transcribing"
	StateCorrecting   State = "Correcting"
	StateExtracting   State = "Extracting"
	StatePersisting   State = "Persisting"
	StateCompleted    State = "Completed"
	StateFailed       State = "Failed"
)

// IsTerminal reports whether the state ends a job.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether a job may move from s to next. Every
// non-terminal state may fail; otherwise states advance strictly in order.
func (s State) CanTransition(next State) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	switch s {
	case StatePending:
		return next == StateTranscribing
	case StateTranscribing:
		return next == StateCorrecting
	case StateCorrecting:
		return next == StateExtracting
	case StateExtracting:
		return next == StatePersisting
	case StatePersisting:
		return next == StateCompleted
	default:
		return false
	}
}

// Job is the trace of one pipeline run.
type Job struct {
	ID        string
	State     State
	FailedAt  State
	History   []State
	StartedAt time.Time
}

func newJob(now time.Time) *Job {
	return &Job{
		ID:        uuid.NewString(),
		State:     StatePending,
		History:   []State{StatePending},
		StartedAt: now,
	}
}

func (j *Job) transition(next State) error {
	if !j.State.CanTransition(next) {
		return fmt.Errorf("job %s: disallowed transition %s -> %s", j.ID, j.State, next)
	}
	if next == StateFailed {
		j.FailedAt = j.State
	}
	j.State = next
	j.History = append(j.History, next)
	return nil
}

// Reached reports whether the job ever entered s.
func (j *Job) Reached(s State) bool {
	for _, h := range j.History {
		if h == s {
			return true
		}
	}
	return false
}
