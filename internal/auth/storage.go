package auth

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStorage is a bounded SessionStorage whose entries expire after a fixed TTL.
type MemoryStorage struct {
	cache *expirable.LRU[string, Session]
}

// NewMemoryStorage creates a MemoryStorage holding at most size sessions for ttl each.
func NewMemoryStorage(size int, ttl time.Duration) *MemoryStorage {
	return &MemoryStorage{
		cache: expirable.NewLRU[string, Session](size, nil, ttl),
	}
}

// Load returns a copy of the session stored for sid.
func (m *MemoryStorage) Load(sid string) (*Session, bool) {
	s, ok := m.cache.Get(sid)
	if !ok {
		return nil, false
	}
	return &s, true
}

// Save stores a copy of s for sid.
func (m *MemoryStorage) Save(sid string, s *Session) {
	if s == nil {
		m.cache.Remove(sid)
		return
	}
	m.cache.Add(sid, *s)
}

// Remove deletes the session stored for sid.
func (m *MemoryStorage) Remove(sid string) {
	m.cache.Remove(sid)
}
