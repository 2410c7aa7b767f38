package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"

	"voicenote/internal/inference"
	"voicenote/internal/records"
)

type fakeService struct {
	mu sync.Mutex

	transcript    string
	transcribeErr error
	correction    string
	correctErr    error
	extraction    string
	extractErr    error
	deleteErr     error

	// block makes every call wait for ctx to end.
	block bool

	transcribeCalls int
	prompts         []string
	deleted         []string
	deleteDone      chan struct{}
	// deleteRelease, when set, holds DeleteReference until it is closed.
	deleteRelease chan struct{}
}

var _ inference.Service = (*fakeService)(nil)

func (f *fakeService) TranscribeAudio(ctx context.Context, src inference.AudioSource, mime, instruction string) (string, error) {
	f.mu.Lock()
	f.transcribeCalls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.transcript, f.transcribeErr
}

func (f *fakeService) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	switch {
	case strings.HasPrefix(prompt, "Review the following"):
		return f.correction, f.correctErr
	case strings.HasPrefix(prompt, "Extract the expense"):
		return f.extraction, f.extractErr
	}
	return "", errors.New("unexpected prompt")
}

func (f *fakeService) DeleteReference(ctx context.Context, uri string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, uri)
	f.mu.Unlock()
	if f.deleteDone != nil {
		defer close(f.deleteDone)
	}
	if f.deleteRelease != nil {
		<-f.deleteRelease
	}
	return f.deleteErr
}

func (f *fakeService) promptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeStore struct {
	mu      sync.Mutex
	id      string
	err     error
	entries []records.Entry
}

func (s *fakeStore) CreateEntry(ctx context.Context, e records.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	if s.err != nil {
		return "", s.err
	}
	return s.id, nil
}

func (s *fakeStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
