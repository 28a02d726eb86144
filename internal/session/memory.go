package session

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. Sessions are copied on the way in and
// out so callers never share mutable state with the map.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Get(_ context.Context, senderID string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[senderID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) Put(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SenderID] = cloneSession(s)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, senderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, senderID)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, cloneSession(s))
	}
	return out, nil
}

func cloneSession(s Session) Session {
	clone := s
	if s.Log != nil {
		clone.Log = append([]Turn(nil), s.Log...)
	}
	if s.RecentReplies != nil {
		clone.RecentReplies = append([]string(nil), s.RecentReplies...)
	}
	if s.Slots.Photos != nil {
		clone.Slots.Photos = append([]AttachmentRef(nil), s.Slots.Photos...)
	}
	if s.Slots.Coordinates != nil {
		coords := *s.Slots.Coordinates
		clone.Slots.Coordinates = &coords
	}
	return clone
}
