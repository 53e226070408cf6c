package storage

import "sync"

// MemoryStore is the default CrawlStore for single-run sessions. All state is
// lost when the process exits.
type MemoryStore struct {
	mu     sync.Mutex
	pages  map[string]struct{}
	images map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pages:  make(map[string]struct{}),
		images: make(map[string]struct{}),
	}
}

func (s *MemoryStore) MarkPageVisited(normalizedURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pages[normalizedURL]; exists {
		return false, nil
	}
	s.pages[normalizedURL] = struct{}{}
	return true, nil
}

func (s *MemoryStore) MarkImageSeen(normalizedURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.images[normalizedURL]; exists {
		return false, nil
	}
	s.images[normalizedURL] = struct{}{}
	return true, nil
}

func (s *MemoryStore) VisitedCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages) + len(s.images), nil
}

func (s *MemoryStore) Close() error { return nil }
