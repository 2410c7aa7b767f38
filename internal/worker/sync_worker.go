package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"voicenote/internal/amqp"
	"voicenote/internal/storage"
)

// NoteSyncer mirrors one stored note, or a batch of pending ones, into the
// Sheets record store
type NoteSyncer interface {
	SyncNote(ctx context.Context, id string) error
	ProcessBatch(ctx context.Context) int
}

// SyncWorker handles note recorded messages from AMQP
type SyncWorker struct {
	syncer NoteSyncer
}

func NewSyncWorker(syncer NoteSyncer) *SyncWorker {
	return &SyncWorker{syncer: syncer}
}

// HandleNoteRecorded processes a single note recorded message. A note that
// no longer exists is acknowledged so the message is not redelivered.
func (w *SyncWorker) HandleNoteRecorded(ctx context.Context, msg *amqp.NoteRecordedMessage) error {
	slog.InfoContext(ctx, "Processing note recorded message",
		"note_id", msg.NoteID,
		"published_at", msg.Timestamp)

	err := w.syncer.SyncNote(ctx, msg.NoteID)
	if errors.Is(err, storage.ErrNoteNotFound) {
		slog.WarnContext(ctx, "Note not found, dropping message", "note_id", msg.NoteID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("sync note to sheets: %w", err)
	}
	return nil
}

// StartupSyncCheck syncs notes left pending while the worker was down
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) {
	synced := w.syncer.ProcessBatch(ctx)
	if synced == 0 {
		slog.InfoContext(ctx, "No pending notes synced on startup")
		return
	}
	slog.InfoContext(ctx, "Synced pending notes on startup", "count", synced)
}
