package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"voicenote/internal/records"
	"voicenote/internal/records/memory"
	"voicenote/internal/storage"
)

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "notes.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func entry() records.Entry {
	amount := 2500.0
	return records.Entry{
		Title:       "Voice Note - March 14, 2025 at 03:04 PM UTC",
		Description: "Tea",
		Amount:      &amount,
		Category:    "Food",
		Date:        time.Date(2025, 3, 14, 15, 4, 0, 0, time.UTC),
		Note:        "လက်ဖက်ရည် 2500",
	}
}

type fakePublisher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (p *fakePublisher) PublishNoteRecorded(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
	return p.err
}

type failingStore struct{ err error }

func (s failingStore) CreateEntry(ctx context.Context, e records.Entry) (string, error) {
	return "", s.err
}

func TestNoteService_CreateEntryPublishes(t *testing.T) {
	repo := newRepo(t)
	pub := &fakePublisher{}
	svc := NewNoteService(repo, pub)

	id, err := svc.CreateEntry(context.Background(), entry())
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if len(pub.ids) != 1 || pub.ids[0] != id {
		t.Fatalf("published = %v, id = %s", pub.ids, id)
	}
	if _, err := repo.GetNote(context.Background(), id); err != nil {
		t.Fatalf("note should be stored: %v", err)
	}
}

func TestNoteService_PublishFailureDoesNotFail(t *testing.T) {
	svc := NewNoteService(newRepo(t), &fakePublisher{err: errors.New("broker down")})
	id, err := svc.CreateEntry(context.Background(), entry())
	if err != nil || id == "" {
		t.Fatalf("CreateEntry = %q, %v", id, err)
	}
}

func TestNoteService_NoStorage(t *testing.T) {
	svc := NewNoteService(nil, nil)
	if _, err := svc.CreateEntry(context.Background(), entry()); !errors.Is(err, records.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close with nil components: %v", err)
	}
}

func TestSyncProcessor_SyncNote(t *testing.T) {
	repo := newRepo(t)
	sheets := memory.New()
	p := NewSyncProcessor(repo, sheets, DefaultSyncProcessorConfig())
	ctx := context.Background()

	note, err := repo.CreateNote(ctx, entry())
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if err := p.SyncNote(ctx, note.ID); err != nil {
		t.Fatalf("SyncNote: %v", err)
	}
	// a redelivered message must not append twice
	if err := p.SyncNote(ctx, note.ID); err != nil {
		t.Fatalf("second SyncNote: %v", err)
	}

	got := sheets.Entries()
	if len(got) != 1 {
		t.Fatalf("sheets entries = %d", len(got))
	}
	if got[0].Description != "Tea" || got[0].Amount == nil || *got[0].Amount != 2500 {
		t.Fatalf("entry = %+v", got[0])
	}
	stored, _ := repo.GetNote(ctx, note.ID)
	if stored.SyncStatus != storage.SyncStatusSynced || stored.SheetsRef.String == "" {
		t.Fatalf("stored = %+v", stored)
	}
}

func TestSyncProcessor_FailureMarksError(t *testing.T) {
	repo := newRepo(t)
	p := NewSyncProcessor(repo, failingStore{err: errors.New("quota")}, SyncProcessorConfig{MaxRetries: 2})
	ctx := context.Background()

	note, _ := repo.CreateNote(ctx, entry())
	if err := p.SyncNote(ctx, note.ID); err == nil {
		t.Fatal("expected error")
	}
	stored, _ := repo.GetNote(ctx, note.ID)
	if stored.SyncStatus != storage.SyncStatusError || stored.SyncAttempts != 1 {
		t.Fatalf("stored = %+v", stored)
	}

	p.ProcessBatch(ctx)
	stored, _ = repo.GetNote(ctx, note.ID)
	if stored.SyncAttempts != 2 {
		t.Fatalf("attempts = %d", stored.SyncAttempts)
	}
	// over the retry limit the scan leaves it alone
	p.ProcessBatch(ctx)
	stored, _ = repo.GetNote(ctx, note.ID)
	if stored.SyncAttempts != 2 {
		t.Fatalf("attempts after limit = %d", stored.SyncAttempts)
	}
}

func TestSyncProcessor_ProcessBatch(t *testing.T) {
	repo := newRepo(t)
	sheets := memory.New()
	p := NewSyncProcessor(repo, sheets, SyncProcessorConfig{BatchSize: 5})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := repo.CreateNote(ctx, entry()); err != nil {
			t.Fatalf("CreateNote: %v", err)
		}
	}
	if n := p.ProcessBatch(ctx); n != 3 {
		t.Fatalf("synced = %d", n)
	}
	if n := p.ProcessBatch(ctx); n != 0 {
		t.Fatalf("second batch synced = %d", n)
	}
}

func TestSyncProcessor_Unconfigured(t *testing.T) {
	p := NewSyncProcessor(nil, nil, DefaultSyncProcessorConfig())
	if err := p.SyncNote(context.Background(), "x"); !errors.Is(err, ErrSyncUnavailable) {
		t.Fatalf("expected ErrSyncUnavailable, got %v", err)
	}
	if p.ProcessBatch(context.Background()) != 0 {
		t.Fatal("nothing to process")
	}
}

func TestSyncProcessor_Lifecycle(t *testing.T) {
	p := NewSyncProcessor(nil, nil, SyncProcessorConfig{PollInterval: 10 * time.Millisecond})
	ctx := context.Background()

	if p.IsRunning() {
		t.Fatal("processor should not be running initially")
	}
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Fatal("second Start should fail")
	}
	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.IsRunning() {
		t.Fatal("processor should be stopped")
	}
}
