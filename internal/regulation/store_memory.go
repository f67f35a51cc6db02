package regulation

import (
	"context"
	"sync"
)

// InMemoryIndex is a map-backed regulation index for tests and fixtures.
type InMemoryIndex struct {
	mu       sync.RWMutex
	excerpts map[string][]Excerpt
}

func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{excerpts: make(map[string][]Excerpt)}
}

// Add registers an excerpt under commune+code.
func (s *InMemoryIndex) Add(insee, code string, excerpt Excerpt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := insee + "/" + code
	s.excerpts[key] = append(s.excerpts[key], excerpt)
}

func (s *InMemoryIndex) FindExcerpts(_ context.Context, insee, code string) ([]Excerpt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found, ok := s.excerpts[insee+"/"+code]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Excerpt, len(found))
	copy(out, found)
	return out, nil
}
