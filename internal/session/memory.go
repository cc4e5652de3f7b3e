package session

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/query-desk/internal/domain"
)

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	now      func() time.Time
}

// NewMemoryStore keeps sessions in process memory; they end with the process.
func NewMemoryStore(now func() time.Time) Store {
	if now == nil {
		now = time.Now
	}
	return &memoryStore{sessions: make(map[string]domain.Session), now: now}
}

// Save also drops every expired session, so abandoned logins do not accumulate.
func (s *memoryStore) Save(_ context.Context, session *domain.Session) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, stored := range s.sessions {
		if stored.Expired(now) {
			delete(s.sessions, id)
		}
	}
	s.sessions[session.ID] = *session
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	stored, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if stored.Expired(s.now()) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, nil
	}
	return &stored, nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *memoryStore) Ping(context.Context) error {
	return nil
}
