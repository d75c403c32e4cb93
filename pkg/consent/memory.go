package consent

import (
	"context"
	"sync"
	"time"

	"github.com/julian-najas/cacp/pkg/models"
)

// InMemoryStore keeps consent records in process memory. Suitable for dev
// and tests; production deployments use the Redis-backed store.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.ConsentRecord

	now func() time.Time
}

// NewInMemoryStore creates an empty in-memory consent store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]models.ConsentRecord),
		now:     time.Now,
	}
}

func (s *InMemoryStore) HasConsent(_ context.Context, patientID, channel string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[consentKey(patientID, channel)]
	return ok && record.IsActive(), nil
}

func (s *InMemoryStore) Grant(_ context.Context, patientID, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[consentKey(patientID, channel)] = models.ConsentRecord{
		PatientID: patientID,
		Channel:   channel,
		GrantedAt: s.now().UTC(),
	}
	return nil
}

func (s *InMemoryStore) Revoke(_ context.Context, patientID, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := consentKey(patientID, channel)
	record, ok := s.records[key]
	if !ok || !record.IsActive() {
		return nil
	}

	revokedAt := s.now().UTC()
	record.RevokedAt = &revokedAt
	s.records[key] = record
	return nil
}
