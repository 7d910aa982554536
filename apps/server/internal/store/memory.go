package store

import (
	"context"
	"sync"

	"royalcourt/court"
)

type MemoryStore struct {
	mu     sync.RWMutex
	rooms  map[string]*court.Session
	hub    *hub
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*court.Session),
		hub:   newHub(),
	}
}

func (m *MemoryStore) Create(_ context.Context, s *court.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.rooms[s.Code]; ok {
		return ErrExists
	}
	s.Version = 1
	m.rooms[s.Code] = s.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, code string) (*court.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	s, ok := m.rooms[code]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, baseVersion uint64, next *court.Session) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	cur, ok := m.rooms[next.Code]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if cur.Version != baseVersion {
		m.mu.Unlock()
		return ErrConflict
	}
	next.Version = baseVersion + 1
	stored := next.Clone()
	m.rooms[next.Code] = stored
	// publish under the lock so subscribers see versions in commit order
	m.hub.publish(stored)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, code)
	return nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, code string) (<-chan *court.Session, error) {
	return m.hub.subscribe(ctx, code)
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.hub.close()
	return nil
}
