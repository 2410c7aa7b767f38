package memory

import (
	"context"
	"fmt"
	"sync"

	"voicenote/internal/records"
)

// Store keeps entries in process memory.
type Store struct {
	mu    sync.Mutex
	items []records.Entry
}

var _ records.RecordStore = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// CreateEntry stores the entry and returns a synthetic reference.
func (s *Store) CreateEntry(_ context.Context, e records.Entry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Entries returns a copy of the stored entries.
func (s *Store) Entries() []records.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]records.Entry(nil), s.items...)
}
