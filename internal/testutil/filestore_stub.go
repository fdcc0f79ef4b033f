// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"sync"

	"casedesk/internal/storage"
)

// MemoryFileStore is an in-memory storage.FileStore for tests.
type MemoryFileStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// PutErr, GetErr and DeleteErr force the matching call to fail when set.
	PutErr    error
	GetErr    error
	DeleteErr error

	// AfterPut and BeforeDelete run outside the lock, letting tests interleave other work.
	AfterPut     func(key string)
	BeforeDelete func(key string)
}

// NewMemoryFileStore creates an empty in-memory file store.
func NewMemoryFileStore() *MemoryFileStore {
	return &MemoryFileStore{objects: make(map[string][]byte)}
}

// Put buffers r fully and stores it under a fresh key.
func (s *MemoryFileStore) Put(ctx context.Context, r io.Reader, info storage.ObjectInfo) (string, int64, error) {
	if s.PutErr != nil {
		return "", 0, s.PutErr
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, storage.ContextReader(ctx, r))
	if err != nil {
		return "", n, err
	}
	key := storage.NewKey(info.FileName)
	s.mu.Lock()
	s.objects[key] = buf.Bytes()
	s.mu.Unlock()
	if s.AfterPut != nil {
		s.AfterPut(key)
	}
	return key, n, nil
}

// Get returns a reader over the stored bytes.
func (s *MemoryFileStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the object under key.
func (s *MemoryFileStore) Delete(_ context.Context, key string) error {
	if s.BeforeDelete != nil {
		s.BeforeDelete(key)
	}
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(s.objects, key)
	return nil
}

// Has reports whether key is stored.
func (s *MemoryFileStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// Len returns the number of stored objects.
func (s *MemoryFileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Drop removes key without going through Delete, simulating out-of-band loss.
func (s *MemoryFileStore) Drop(key string) {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
}
