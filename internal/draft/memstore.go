package draft

import (
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store used in tests and as a fallback when no durable
// backing is configured.
type MemStore struct {
	mu   sync.Mutex
	data map[string]Draft
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]Draft)}
}

func (s *MemStore) Put(key string, d Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = d
	return nil
}

func (s *MemStore) Get(key string) (Draft, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[key]
	return d, ok, nil
}

func (s *MemStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemStore) DeletePrefix(prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.data {
		if keyMatches(k, prefix) {
			delete(s.data, k)
		}
	}
	return nil
}

func (s *MemStore) List(prefix string) ([]Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Draft
	for k, d := range s.data {
		if keyMatches(k, prefix) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}

func (s *MemStore) PurgeStale(maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	n := 0
	for k, d := range s.data {
		if d.StaleAt(maxAge, now) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

var _ Store = (*MemStore)(nil)
