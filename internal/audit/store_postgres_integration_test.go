//go:build integration

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"clearclaim/internal/audit"
	"clearclaim/pkg/domain"
	"clearclaim/pkg/testutil/containers"
)

func TestPostgresStore_AppendAndListByActor(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgres(t, audit.Schema)
	store := audit.NewPostgres(pg.DB)

	actor := domain.UserID(uuid.New())
	other := domain.UserID(uuid.New())
	claimID := domain.NewClaimID()
	patientID := domain.PatientID(uuid.New())
	base := time.Now().UTC().Truncate(time.Microsecond)

	events := []audit.Event{
		{Timestamp: base.Add(-2 * time.Minute), Actor: actor, ActorRole: domain.RoleAdjuster, Action: audit.ActionCreate, ClaimID: claimID, PatientID: patientID},
		{Timestamp: base.Add(-time.Minute), Actor: actor, ActorRole: domain.RoleAdjuster, Action: audit.ActionTransition, ClaimID: claimID, PatientID: patientID, Detail: "target=DENIED"},
		// Bulk events carry no claim or patient id.
		{Timestamp: base, Actor: other, ActorRole: domain.RoleAdmin, Action: audit.ActionBulkTransition, Detail: "target=APPROVED"},
	}
	for _, event := range events {
		require.NoError(t, store.Append(ctx, event))
	}

	listed, err := store.ListByActor(ctx, actor)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	// Most recent first.
	require.Equal(t, audit.ActionTransition, listed[0].Action)
	require.Equal(t, "target=DENIED", listed[0].Detail)
	require.Equal(t, claimID, listed[0].ClaimID)
	require.Equal(t, patientID, listed[0].PatientID)
	require.Equal(t, audit.ActionCreate, listed[1].Action)

	bulk, err := store.ListByActor(ctx, other)
	require.NoError(t, err)
	require.Len(t, bulk, 1)
	require.True(t, bulk[0].ClaimID.IsZero())
	require.True(t, bulk[0].PatientID.IsZero())

	none, err := store.ListByActor(ctx, domain.UserID(uuid.New()))
	require.NoError(t, err)
	require.Empty(t, none)
}
