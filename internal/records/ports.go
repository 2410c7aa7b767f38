package records

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotConfigured is returned when the store has no target database or
// sheet to write to.
var ErrNotConfigured = errors.New("record store target not configured")

var (
	ErrEmptyTitle = errors.New("entry title is required")
	ErrZeroDate   = errors.New("entry date is required")
)

// Entry is the store-facing shape of a validated voice note record.
type Entry struct {
	Title       string
	Description string
	Amount      *float64
	Category    string
	Date        time.Time
	Note        string // full corrected note text
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if e.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// Ports for outbound adapters.
type (
	RecordStore interface {
		// CreateEntry writes the entry and returns the store's identifier for it.
		CreateEntry(ctx context.Context, e Entry) (id string, err error)
	}
)
