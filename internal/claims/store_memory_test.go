package claims

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clearclaim/pkg/domain"
	"clearclaim/pkg/platform/sentinel"
)

func newClaim(patientID domain.PatientID, createdAt time.Time) *Claim {
	return &Claim{
		ID:             domain.NewClaimID(),
		PatientID:      patientID,
		Amount:         100,
		ProcedureCodes: []string{"99213"},
		DiagnosisCodes: []string{"I10"},
		Status:         StatusPending,
		FraudCheck:     &FraudCheckDetails{Reasons: []string{}},
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestInMemoryStore_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	claim := newClaim(domain.PatientID(uuid.New()), time.Now())

	require.NoError(t, store.Create(ctx, claim))
	assert.Equal(t, 1, claim.Version)

	found, err := store.FindByID(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, claim.ID, found.ID)

	// Reads return copies; mutating one must not leak into the store.
	found.Amount = 9999
	again, err := store.FindByID(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, again.Amount)

	_, err = store.FindByID(ctx, domain.NewClaimID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	assert.ErrorIs(t, store.Create(ctx, claim), sentinel.ErrConflict)
}

func TestInMemoryStore_UpdateIfVersion(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	claim := newClaim(domain.PatientID(uuid.New()), time.Now())
	require.NoError(t, store.Create(ctx, claim))

	t.Run("stale version conflicts", func(t *testing.T) {
		stale := claim.Clone()
		err := store.UpdateIfVersion(ctx, stale, 99)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("matching version writes and bumps", func(t *testing.T) {
		current, err := store.FindByID(ctx, claim.ID)
		require.NoError(t, err)
		current.Amount = 250
		require.NoError(t, store.UpdateIfVersion(ctx, current, current.Version))
		assert.Equal(t, 2, current.Version)

		stored, err := store.FindByID(ctx, claim.ID)
		require.NoError(t, err)
		assert.Equal(t, 250.0, stored.Amount)
		assert.Equal(t, 2, stored.Version)
	})

	t.Run("lost update is rejected", func(t *testing.T) {
		first, err := store.FindByID(ctx, claim.ID)
		require.NoError(t, err)
		second, err := store.FindByID(ctx, claim.ID)
		require.NoError(t, err)

		require.NoError(t, store.UpdateIfVersion(ctx, first, first.Version))
		err = store.UpdateIfVersion(ctx, second, second.Version)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("unknown claim", func(t *testing.T) {
		ghost := newClaim(domain.PatientID(uuid.New()), time.Now())
		err := store.UpdateIfVersion(ctx, ghost, 1)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestInMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	patientA := domain.PatientID(uuid.New())
	patientB := domain.PatientID(uuid.New())
	base := time.Now()

	oldest := newClaim(patientA, base.Add(-3*time.Hour))
	oldest.Notes = "physical therapy follow-up"
	middle := newClaim(patientA, base.Add(-2*time.Hour))
	middle.Status = StatusApproved
	newest := newClaim(patientB, base.Add(-time.Hour))
	for _, c := range []*Claim{oldest, middle, newest} {
		require.NoError(t, store.Create(ctx, c))
	}

	t.Run("newest first", func(t *testing.T) {
		items, total, err := store.List(ctx, ListFilter{}, Page{})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, items, 3)
		assert.Equal(t, newest.ID, items[0].ID)
		assert.Equal(t, oldest.ID, items[2].ID)
	})

	t.Run("patient filter", func(t *testing.T) {
		items, total, err := store.List(ctx, ListFilter{PatientID: patientA}, Page{})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, items, 2)
	})

	t.Run("status filter", func(t *testing.T) {
		items, total, err := store.List(ctx, ListFilter{Status: StatusApproved}, Page{})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, items, 1)
		assert.Equal(t, middle.ID, items[0].ID)
	})

	t.Run("search over notes and codes", func(t *testing.T) {
		_, total, err := store.List(ctx, ListFilter{Search: "therapy"}, Page{})
		require.NoError(t, err)
		assert.Equal(t, 1, total)

		_, total, err = store.List(ctx, ListFilter{Search: "99213"}, Page{})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
	})

	t.Run("pagination past the end", func(t *testing.T) {
		items, total, err := store.List(ctx, ListFilter{}, Page{Number: 5, Size: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Empty(t, items)
	})
}

func TestInMemoryStore_ListByPatientSince(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	patientID := domain.PatientID(uuid.New())
	base := time.Now()

	inside := newClaim(patientID, base.Add(-10*24*time.Hour))
	outside := newClaim(patientID, base.Add(-120*24*time.Hour))
	other := newClaim(domain.PatientID(uuid.New()), base.Add(-time.Hour))
	for _, c := range []*Claim{inside, outside, other} {
		require.NoError(t, store.Create(ctx, c))
	}

	history, err := store.ListByPatientSince(ctx, patientID, base.Add(-90*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, inside.ID, history[0].ID)
}

func TestInMemoryStore_BulkUpdateStatusWherePending(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	patientID := domain.PatientID(uuid.New())

	pending := newClaim(patientID, time.Now())
	approved := newClaim(patientID, time.Now())
	approved.Status = StatusApproved
	for _, c := range []*Claim{pending, approved} {
		require.NoError(t, store.Create(ctx, c))
	}

	now := time.Now()
	ids := []domain.ClaimID{pending.ID, approved.ID, domain.NewClaimID()}
	updated, err := store.BulkUpdateStatusWherePending(ctx, ids, StatusDenied, now)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	moved, err := store.FindByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDenied, moved.Status)
	assert.Equal(t, 2, moved.Version)

	untouched, err := store.FindByID(ctx, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, untouched.Status)
}

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to ClaimStatus
		allowed  bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusDenied, true},
		{StatusPending, StatusPaid, false},
		{StatusApproved, StatusPaid, true},
		{StatusApproved, StatusDenied, false},
		{StatusApproved, StatusPending, false},
		{StatusDenied, StatusApproved, false},
		{StatusDenied, StatusPaid, false},
		{StatusPaid, StatusApproved, false},
		{StatusPaid, StatusDenied, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}
