package patients

import (
	"context"
	"sync"

	"clearclaim/pkg/domain"
	"clearclaim/pkg/platform/sentinel"
)

// InMemoryStore holds medical records keyed by patient id.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.PatientID]MedicalRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.PatientID]MedicalRecord)}
}

func (s *InMemoryStore) FindByPatient(_ context.Context, patientID domain.PatientID) (*MedicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[patientID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := record
	copied.Conditions = append([]Condition{}, record.Conditions...)
	return &copied, nil
}

// Put seeds a record. Used by wiring and tests.
func (s *InMemoryStore) Put(record MedicalRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.PatientID] = record
}
