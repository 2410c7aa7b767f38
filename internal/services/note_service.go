package services

import (
	"context"
	"fmt"
	"log/slog"

	"voicenote/internal/log"
	"voicenote/internal/records"
	"voicenote/internal/storage"
)

// NoteRepository is the local store notes are saved to first
type NoteRepository interface {
	CreateNote(ctx context.Context, e records.Entry) (*storage.VoiceNote, error)
	GetNote(ctx context.Context, id string) (*storage.VoiceNote, error)
	GetPendingSyncNotes(ctx context.Context, maxAttempts, limit int) ([]storage.VoiceNote, error)
	MarkSynced(ctx context.Context, id, sheetsRef string) error
	MarkSyncError(ctx context.Context, id string) error
}

// Publisher announces saved notes to the sync worker
type Publisher interface {
	PublishNoteRecorded(ctx context.Context, noteID string) error
}

// NoteService orchestrates note persistence across SQLite and AMQP
type NoteService struct {
	storage   NoteRepository
	publisher Publisher
}

var _ records.RecordStore = (*NoteService)(nil)

// NewNoteService accepts a nil publisher; notes are then only picked up by
// the pending scan of the sync processor.
func NewNoteService(storage NoteRepository, publisher Publisher) *NoteService {
	return &NoteService{
		storage:   storage,
		publisher: publisher,
	}
}

// CreateEntry saves a note locally and publishes a sync message. The note
// ID is the external identifier returned to the caller.
func (s *NoteService) CreateEntry(ctx context.Context, e records.Entry) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("save note: %w", records.ErrNotConfigured)
	}

	// Save to SQLite first (fast, reliable)
	note, err := s.storage.CreateNote(ctx, e)
	if err != nil {
		return "", fmt.Errorf("save note: %w", err)
	}

	// Publish sync message; a failure does not fail the request
	if err := s.publish(ctx, note.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish note recorded message",
			log.FieldNoteID, note.ID,
			log.FieldOperation, log.OpPublish,
			log.FieldError, err)
	}

	return note.ID, nil
}

func (s *NoteService) publish(ctx context.Context, id string) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message", "note_id", id)
		return nil
	}
	return s.publisher.PublishNoteRecorded(ctx, id)
}

// Close closes storage and publisher when they hold connections
func (s *NoteService) Close() error {
	var errs []error

	if c, ok := s.storage.(interface{ Close() error }); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(interface{ Close() error }); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close note service: %v", errs)
	}

	return nil
}
