package claims

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"clearclaim/pkg/domain"
	"clearclaim/pkg/platform/sentinel"
)

// InMemoryStore is the development and unit-test claim store. It mirrors the
// conditional-write semantics of the PostgreSQL store exactly, including
// version checks, so service tests exercise the same contract.
type InMemoryStore struct {
	mu     sync.RWMutex
	claims map[domain.ClaimID]*Claim
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{claims: make(map[domain.ClaimID]*Claim)}
}

func (s *InMemoryStore) Create(_ context.Context, claim *Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.claims[claim.ID]; exists {
		return sentinel.ErrConflict
	}
	claim.Version = 1
	s.claims[claim.ID] = claim.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ClaimID) (*Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	claim, ok := s.claims[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return claim.Clone(), nil
}

func (s *InMemoryStore) List(_ context.Context, filter ListFilter, page Page) ([]*Claim, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Claim
	for _, claim := range s.claims {
		if matches(claim, filter) {
			matched = append(matched, claim)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page = page.Normalize()
	total := len(matched)
	start := (page.Number - 1) * page.Size
	if start > total {
		start = total
	}
	end := start + page.Size
	if end > total {
		end = total
	}

	items := make([]*Claim, 0, end-start)
	for _, claim := range matched[start:end] {
		items = append(items, claim.Clone())
	}
	return items, total, nil
}

func matches(claim *Claim, filter ListFilter) bool {
	if !filter.PatientID.IsZero() && claim.PatientID != filter.PatientID {
		return false
	}
	if filter.Status != "" && claim.Status != filter.Status {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(claim.Notes), needle) &&
			!containsCode(claim.ProcedureCodes, needle) &&
			!containsCode(claim.DiagnosisCodes, needle) {
			return false
		}
	}
	return true
}

func containsCode(codes []string, needle string) bool {
	for _, code := range codes {
		if strings.Contains(strings.ToLower(code), needle) {
			return true
		}
	}
	return false
}

func (s *InMemoryStore) ListByPatientSince(_ context.Context, patientID domain.PatientID, since time.Time) ([]*Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Claim
	for _, claim := range s.claims {
		if claim.PatientID == patientID && !claim.CreatedAt.Before(since) {
			matched = append(matched, claim.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}

func (s *InMemoryStore) UpdateIfVersion(_ context.Context, claim *Claim, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.claims[claim.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	claim.Version = expectedVersion + 1
	s.claims[claim.ID] = claim.Clone()
	return nil
}

func (s *InMemoryStore) BulkUpdateStatusWherePending(_ context.Context, ids []domain.ClaimID, target ClaimStatus, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for _, id := range ids {
		stored, ok := s.claims[id]
		if !ok || stored.Status != StatusPending {
			continue
		}
		stored.Status = target
		stored.UpdatedAt = now
		stored.Version++
		updated++
	}
	return updated, nil
}
