package storage

import (
	"context"
	"database/sql"
	"time"
)

const noteColumns = `id, title, description, amount, category, note, recorded_at, sync_status, sync_attempts, sheets_ref, synced_at, created_at`

const createNote = `-- name: CreateNote :one
INSERT INTO voice_notes (id, title, description, amount, category, note, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + noteColumns

type CreateNoteParams struct {
	ID          string
	Title       string
	Description string
	Amount      sql.NullFloat64
	Category    string
	Note        string
	RecordedAt  time.Time
}

func (q *Queries) CreateNote(ctx context.Context, arg CreateNoteParams) (VoiceNote, error) {
	row := q.db.QueryRowContext(ctx, createNote,
		arg.ID,
		arg.Title,
		arg.Description,
		arg.Amount,
		arg.Category,
		arg.Note,
		arg.RecordedAt,
	)
	return scanNote(row)
}

const getNote = `-- name: GetNote :one
SELECT ` + noteColumns + ` FROM voice_notes WHERE id = ?`

func (q *Queries) GetNote(ctx context.Context, id string) (VoiceNote, error) {
	row := q.db.QueryRowContext(ctx, getNote, id)
	return scanNote(row)
}

const getPendingSyncNotes = `-- name: GetPendingSyncNotes :many
SELECT ` + noteColumns + ` FROM voice_notes
WHERE sync_status IN ('pending', 'error') AND sync_attempts < ?
ORDER BY created_at ASC
LIMIT ?`

type GetPendingSyncNotesParams struct {
	MaxAttempts int64
	Limit       int64
}

func (q *Queries) GetPendingSyncNotes(ctx context.Context, arg GetPendingSyncNotesParams) ([]VoiceNote, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSyncNotes, arg.MaxAttempts, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []VoiceNote
	for rows.Next() {
		i, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markNoteSynced = `-- name: MarkNoteSynced :exec
UPDATE voice_notes
SET sync_status = 'synced', sheets_ref = ?, synced_at = CURRENT_TIMESTAMP
WHERE id = ?`

type MarkNoteSyncedParams struct {
	SheetsRef sql.NullString
	ID        string
}

func (q *Queries) MarkNoteSynced(ctx context.Context, arg MarkNoteSyncedParams) error {
	_, err := q.db.ExecContext(ctx, markNoteSynced, arg.SheetsRef, arg.ID)
	return err
}

const markNoteSyncError = `-- name: MarkNoteSyncError :exec
UPDATE voice_notes
SET sync_status = 'error', sync_attempts = sync_attempts + 1
WHERE id = ?`

func (q *Queries) MarkNoteSyncError(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markNoteSyncError, id)
	return err
}

const countNotesByStatus = `-- name: CountNotesByStatus :one
SELECT COUNT(*) FROM voice_notes WHERE sync_status = ?`

func (q *Queries) CountNotesByStatus(ctx context.Context, status string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countNotesByStatus, status)
	var count int64
	err := row.Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNote(s scanner) (VoiceNote, error) {
	var i VoiceNote
	err := s.Scan(
		&i.ID,
		&i.Title,
		&i.Description,
		&i.Amount,
		&i.Category,
		&i.Note,
		&i.RecordedAt,
		&i.SyncStatus,
		&i.SyncAttempts,
		&i.SheetsRef,
		&i.SyncedAt,
		&i.CreatedAt,
	)
	return i, err
}
