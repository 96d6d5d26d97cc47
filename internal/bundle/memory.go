package bundle

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore is an in-memory Store for tests and local experiments.
// All operations are thread-safe.
type MemoryStore struct {
	mu      sync.RWMutex
	bundles map[string]map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bundles: make(map[string]map[string][]byte)}
}

// Backend returns BackendMemory.
func (s *MemoryStore) Backend() string { return BackendMemory }

// List implements Store.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name, files := range s.bundles {
		if complete(files) {
			names = append(names, name)
		}
	}
	return names, nil
}

// Exists implements Store.
func (s *MemoryStore) Exists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bundles[name]
	return ok, nil
}

// Read implements Store.
func (s *MemoryStore) Read(ctx context.Context, name, filename string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, ok := s.bundles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBundleNotFound, name)
	}
	data, ok := files[filename]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrBundleNotFound, name, filename)
	}
	return slices.Clone(data), nil
}

// Write implements Store.
func (s *MemoryStore) Write(ctx context.Context, name string, artifacts []Artifact) error {
	files := make(map[string][]byte, len(artifacts))
	for _, a := range artifacts {
		files[a.Filename] = slices.Clone(a.Data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[name] = files
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bundles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrBundleNotFound, name)
	}
	delete(s.bundles, name)
	return nil
}

// PutPartial stores files under name without any completeness check. It
// exists to simulate interrupted uploads.
func (s *MemoryStore) PutPartial(name string, artifacts ...Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := s.bundles[name]
	if files == nil {
		files = make(map[string][]byte)
		s.bundles[name] = files
	}
	for _, a := range artifacts {
		files[a.Filename] = slices.Clone(a.Data)
	}
}

func complete(files map[string][]byte) bool {
	for _, name := range RequiredArtifacts {
		if _, ok := files[name]; !ok {
			return false
		}
	}
	return true
}
