package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"voicenote/internal/records"

	_ "modernc.org/sqlite"
)

// ErrNoteNotFound is returned when no note has the requested id.
var ErrNoteNotFound = errors.New("voice note not found")

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := ApplyMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r != nil && r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateNote stores a validated entry as a pending voice note
func (r *SQLiteRepository) CreateNote(ctx context.Context, e records.Entry) (*VoiceNote, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	amount := sql.NullFloat64{}
	if e.Amount != nil {
		amount = sql.NullFloat64{Float64: *e.Amount, Valid: true}
	}

	note, err := r.queries.CreateNote(ctx, CreateNoteParams{
		ID:          uuid.NewString(),
		Title:       e.Title,
		Description: e.Description,
		Amount:      amount,
		Category:    e.Category,
		Note:        e.Note,
		RecordedAt:  e.Date.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("create voice note: %w", err)
	}

	slog.InfoContext(ctx, "Voice note saved to SQLite",
		"id", note.ID,
		"category", note.Category,
		"has_amount", note.Amount.Valid)

	return &note, nil
}

// CreateEntry implements records.RecordStore without event publishing
func (r *SQLiteRepository) CreateEntry(ctx context.Context, e records.Entry) (string, error) {
	note, err := r.CreateNote(ctx, e)
	if err != nil {
		return "", err
	}
	return note.ID, nil
}

// GetNote retrieves a single voice note by ID
func (r *SQLiteRepository) GetNote(ctx context.Context, id string) (*VoiceNote, error) {
	note, err := r.queries.GetNote(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get voice note by id: %w", err)
	}
	return &note, nil
}

// GetPendingSyncNotes returns notes that still need to reach Google Sheets
// and have failed fewer than maxAttempts times
func (r *SQLiteRepository) GetPendingSyncNotes(ctx context.Context, maxAttempts, limit int) ([]VoiceNote, error) {
	notes, err := r.queries.GetPendingSyncNotes(ctx, GetPendingSyncNotesParams{
		MaxAttempts: int64(maxAttempts),
		Limit:       int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("get pending sync notes: %w", err)
	}
	return notes, nil
}

// MarkSynced records the Sheets reference of a mirrored note
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id, sheetsRef string) error {
	err := r.queries.MarkNoteSynced(ctx, MarkNoteSyncedParams{
		SheetsRef: sql.NullString{String: sheetsRef, Valid: sheetsRef != ""},
		ID:        id,
	})
	if err != nil {
		return fmt.Errorf("mark note synced: %w", err)
	}

	slog.InfoContext(ctx, "Voice note marked as synced", "id", id, "sheets_ref", sheetsRef)
	return nil
}

// MarkSyncError marks a note as having sync errors
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	err := r.queries.MarkNoteSyncError(ctx, id)
	if err != nil {
		return fmt.Errorf("mark note sync error: %w", err)
	}

	slog.WarnContext(ctx, "Voice note marked with sync error", "id", id)
	return nil
}

// CountByStatus returns how many notes are in the given sync status
func (r *SQLiteRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	n, err := r.queries.CountNotesByStatus(ctx, status)
	if err != nil {
		return 0, fmt.Errorf("count notes by status: %w", err)
	}
	return n, nil
}

// Entry converts a stored note back into a record store entry
func (n VoiceNote) Entry() records.Entry {
	e := records.Entry{
		Title:       n.Title,
		Description: n.Description,
		Category:    n.Category,
		Date:        n.RecordedAt,
		Note:        n.Note,
	}
	if n.Amount.Valid {
		amount := n.Amount.Float64
		e.Amount = &amount
	}
	return e
}
