package eventstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julian-najas/cacp/pkg/models"
)

// MemoryStore keeps events in process memory. Suitable for dev and tests;
// production uses the PostgreSQL store.
type MemoryStore struct {
	mu     sync.RWMutex
	events []models.Event
	byKey  map[string]string // idempotency key -> event id

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory event log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey: make(map[string]string),
		now:   time.Now,
	}
}

func (s *MemoryStore) Append(_ context.Context, event models.Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.IdempotencyKey != "" {
		if existing, ok := s.byKey[event.IdempotencyKey]; ok {
			return existing, nil
		}
	}

	event.EventID = uuid.NewString()
	event.CreatedAt = s.now().UTC()
	if event.Actor == "" {
		event.Actor = defaultActor
	}

	s.events = append(s.events, event)
	if event.IdempotencyKey != "" {
		s.byKey[event.IdempotencyKey] = event.EventID
	}
	return event.EventID, nil
}

func (s *MemoryStore) CountByType(_ context.Context, eventTypes ...string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(eventTypes))
	for _, eventType := range eventTypes {
		counts[eventType] = 0
	}
	for _, event := range s.events {
		if _, ok := counts[event.EventType]; ok {
			counts[event.EventType]++
		}
	}
	return counts, nil
}

func (s *MemoryStore) DeleteBefore(_ context.Context, cutoff time.Time, eventTypes ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prunable := make(map[string]bool, len(eventTypes))
	for _, eventType := range eventTypes {
		prunable[eventType] = true
	}

	kept := s.events[:0]
	deleted := 0
	for _, event := range s.events {
		if prunable[event.EventType] && event.CreatedAt.Before(cutoff) {
			deleted++
			// Free the idempotency key so the slot matches what a
			// row delete does in Postgres.
			if event.IdempotencyKey != "" {
				delete(s.byKey, event.IdempotencyKey)
			}
			continue
		}
		kept = append(kept, event)
	}
	s.events = kept
	return deleted, nil
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.limit()
	result := make([]models.Event, 0, limit)

	// Newest first: walk the append order backwards.
	for i := len(s.events) - 1; i >= 0 && len(result) < limit; i-- {
		event := s.events[i]
		if filter.AggregateID != "" && event.AggregateID != filter.AggregateID {
			continue
		}
		if filter.EventType != "" && event.EventType != filter.EventType {
			continue
		}
		result = append(result, event)
	}
	return result, nil
}
