package audit

import (
	"context"
	"sync"

	"clearclaim/pkg/domain"
)

// InMemoryStore keeps audit events per actor for development and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[domain.UserID][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[domain.UserID][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.Actor] = append(s.events[event.Actor], event)
	return nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actor domain.UserID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[actor]...), nil
}
