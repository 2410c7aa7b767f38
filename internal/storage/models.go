package storage

import (
	"database/sql"
	"time"
)

const (
	SyncStatusPending = "pending"
	SyncStatusSynced  = "synced"
	SyncStatusError   = "error"
)

type VoiceNote struct {
	ID           string
	Title        string
	Description  string
	Amount       sql.NullFloat64
	Category     string
	Note         string
	RecordedAt   time.Time
	SyncStatus   string
	SyncAttempts int64
	SheetsRef    sql.NullString
	SyncedAt     sql.NullTime
	CreatedAt    time.Time
}
