package cache

import (
	"strings"
	"sync"
	"time"
)

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// localStore is the in-process fallback used when the cache backend is
// unreachable. Expired entries are dropped lazily on read.
type localStore struct {
	mu    sync.RWMutex
	items map[string]localEntry
}

func newLocalStore() *localStore {
	return &localStore{items: make(map[string]localEntry)}
}

func (s *localStore) get(key string) ([]byte, bool) {
	s.mu.RLock()
	entry, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !time.Now().Before(entry.expiresAt) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return nil, false
	}
	return append([]byte(nil), entry.value...), true
}

func (s *localStore) set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = localEntry{
		value:     append([]byte(nil), value...),
		expiresAt: time.Now().Add(ttl),
	}
}

func (s *localStore) deletePrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.items {
		if strings.HasPrefix(key, prefix) {
			delete(s.items, key)
		}
	}
}
