package pipeline

import (
	"context"
	"strings"
	"time"

	"voicenote/internal/core"
	"voicenote/internal/records"
)

// TitleLayout formats the processing time in entry titles.
const TitleLayout = "January 2, 2006 at 03:04 PM MST"

// Persister writes a validated record to the configured record store.
type Persister struct {
	store records.RecordStore
	now   func() time.Time
}

// NewPersister accepts a nil store; every Persist call then fails with
// PersistenceFailed.
func NewPersister(store records.RecordStore, now func() time.Time) *Persister {
	if now == nil {
		now = time.Now
	}
	return &Persister{store: store, now: now}
}

// Title returns the entry title for a note processed at t.
func Title(t time.Time) string {
	return "Voice Note - " + t.Format(TitleLayout)
}

func (p *Persister) Persist(ctx context.Context, rec core.ExtractedRecord, finalText string) (string, error) {
	if p.store == nil {
		return "", stageError(StatePersisting, KindPersistenceFailed, ErrNoRecordStore)
	}
	at := p.now()
	entry := records.Entry{
		Title:       Title(at),
		Description: rec.Description,
		Amount:      rec.Amount,
		Category:    rec.Category,
		Date:        at,
		Note:        finalText,
	}

	id, err := p.store.CreateEntry(ctx, entry)
	if err != nil {
		return "", stageError(StatePersisting, Classify(err, KindPersistenceFailed), err)
	}
	if strings.TrimSpace(id) == "" {
		return "", stageError(StatePersisting, KindPersistenceFailed, ErrEmptyExternalID)
	}
	return id, nil
}
