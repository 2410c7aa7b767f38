// Package memory is an in-process blob store for development and tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"voicenote/internal/blob"
)

const Scheme = "mem"

type Store struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	deletes int
}

var (
	_ blob.Store     = (*Store)(nil)
	_ blob.Presigner = (*Store)(nil)
)

func New(bucket string) *Store {
	if bucket == "" {
		bucket = "local"
	}
	return &Store{bucket: bucket, objects: make(map[string][]byte)}
}

// Put stores data under key and returns its URI.
func (s *Store) Put(key string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	uri := blob.Location{Scheme: Scheme, Bucket: s.bucket, Key: key}.String()
	s.objects[uri] = append([]byte(nil), data...)
	return uri
}

func (s *Store) Handles(uri string) bool {
	loc, err := blob.ParseURI(uri)
	return err == nil && loc.Scheme == Scheme
}

func (s *Store) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, uri)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) Delete(_ context.Context, uri string) error {
	if !s.Handles(uri) {
		return fmt.Errorf("%w: %s", blob.ErrUnsupportedURI, uri)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, uri)
	s.deletes++
	return nil
}

// Exists reports whether uri is stored.
func (s *Store) Exists(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[uri]
	return ok
}

// Deletes returns how many deletes were issued.
func (s *Store) Deletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}

func (s *Store) PresignPut(_ context.Context, key, _ string, ttl time.Duration) (blob.Upload, error) {
	uri := blob.Location{Scheme: Scheme, Bucket: s.bucket, Key: key}.String()
	return blob.Upload{
		URL:       "http://localhost/blob/" + s.bucket + "/" + key,
		URI:       uri,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}
