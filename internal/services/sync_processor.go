package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"voicenote/internal/log"
	"voicenote/internal/records"
	"voicenote/internal/storage"
)

// ErrSyncUnavailable is returned when no mirror store is configured
var ErrSyncUnavailable = errors.New("sheets mirror not configured")

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending notes (default: 1m)
	PollInterval time.Duration

	// BatchSize is the max number of notes to process per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the number of failed attempts after which a note is
	// left alone by the pending scan (default: 3)
	MaxRetries int
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: time.Minute,
		BatchSize:    10,
		MaxRetries:   3,
	}
}

// SyncProcessor mirrors locally saved notes into the Sheets record store.
// SyncNote handles one note; the poll loop retries notes whose messages
// were lost or failed.
type SyncProcessor struct {
	storage NoteRepository
	sheets  records.RecordStore
	config  SyncProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(storage NoteRepository, sheets records.RecordStore, config SyncProcessorConfig) *SyncProcessor {
	def := DefaultSyncProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = def.MaxRetries
	}
	return &SyncProcessor{
		storage: storage,
		sheets:  sheets,
		config:  config,
	}
}

// SyncNote appends one note to Sheets unless it is already synced
func (p *SyncProcessor) SyncNote(ctx context.Context, id string) error {
	if p.storage == nil || p.sheets == nil {
		return ErrSyncUnavailable
	}

	note, err := p.storage.GetNote(ctx, id)
	if err != nil {
		return fmt.Errorf("get note %s: %w", id, err)
	}
	if note.SyncStatus == storage.SyncStatusSynced {
		slog.DebugContext(ctx, "Note already synced, skipping", "note_id", id)
		return nil
	}

	ref, err := p.sheets.CreateEntry(ctx, note.Entry())
	if err != nil {
		if markErr := p.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark note sync error", "note_id", id, "error", markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	if err := p.storage.MarkSynced(ctx, id, ref); err != nil {
		// the row exists in Sheets; a later scan may append it twice
		slog.WarnContext(ctx, "Failed to mark note as synced", "note_id", id, "error", err)
	}

	slog.InfoContext(ctx, "Synced note to Google Sheets",
		log.FieldNoteID, id,
		log.FieldOperation, log.OpSync,
		log.FieldExternalID, ref)
	return nil
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on startup
	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch syncs one batch of pending notes and returns how many succeeded
func (p *SyncProcessor) ProcessBatch(ctx context.Context) int {
	if p.storage == nil || p.sheets == nil {
		return 0
	}

	notes, err := p.storage.GetPendingSyncNotes(ctx, p.config.MaxRetries, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch pending notes", "error", err)
		return 0
	}

	synced := 0
	for _, n := range notes {
		if ctx.Err() != nil {
			return synced
		}
		if err := p.SyncNote(ctx, n.ID); err != nil {
			slog.WarnContext(ctx, "Sync processing failed",
				"note_id", n.ID,
				"attempt", n.SyncAttempts+1,
				"error", err)
			continue
		}
		synced++
	}
	return synced
}
