// Package memory implements an in-memory Store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/filecmd/pkg/store"
)

// MemoryStore implements store.Store using a map.
//
// Characteristics:
//   - Fast: all operations are memory-speed
//   - Volatile: data is lost on restart
//   - Thread-safe: protected by an RWMutex
//
// Data is copied on Read and Write so callers can reuse their buffers.
//
// With the process pool each worker process owns its own MemoryStore, so
// files are not shared between workers. Use it for tests and the thread pool.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
	order []string // insertion order, returned by List
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string][]byte),
	}
}

// List returns file names in the order they were first written.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.order))
	copy(names, s.order)
	return names, nil
}

// Read returns a copy of the content of name.
func (s *MemoryStore) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.files[name]
	if !exists {
		return nil, fmt.Errorf("file %q: %w", name, store.ErrNotFound)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write stores a copy of data under name, replacing any previous content.
func (s *MemoryStore) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateName(name); err != nil {
		return err
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[name]; !exists {
		s.order = append(s.order, name)
	}
	s.files[name] = buf
	return nil
}

// Delete removes name.
func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[name]; !exists {
		return fmt.Errorf("file %q: %w", name, store.ErrNotFound)
	}

	delete(s.files, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
