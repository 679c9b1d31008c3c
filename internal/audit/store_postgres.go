package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"clearclaim/pkg/domain"
)

// PostgresStore persists audit events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is the table this store expects.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
    id         BIGSERIAL PRIMARY KEY,
    ts         TIMESTAMPTZ NOT NULL,
    actor      UUID NOT NULL,
    actor_role TEXT NOT NULL,
    action     TEXT NOT NULL,
    claim_id   UUID,
    patient_id UUID,
    detail     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_actor_ts ON audit_events (actor, ts DESC);
`

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	var claimID, patientID any
	if !event.ClaimID.IsZero() {
		claimID = uuid.UUID(event.ClaimID)
	}
	if !event.PatientID.IsZero() {
		patientID = uuid.UUID(event.PatientID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (ts, actor, actor_role, action, claim_id, patient_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.Timestamp, uuid.UUID(event.Actor), string(event.ActorRole),
		string(event.Action), claimID, patientID, event.Detail,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByActor(ctx context.Context, actor domain.UserID) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, actor, actor_role, action, claim_id, patient_id, detail
		FROM audit_events WHERE actor = $1 ORDER BY ts DESC`,
		uuid.UUID(actor),
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event     Event
			actorID   uuid.UUID
			role      string
			action    string
			claimID   uuid.NullUUID
			patientID uuid.NullUUID
		)
		if err := rows.Scan(&event.Timestamp, &actorID, &role, &action, &claimID, &patientID, &event.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Actor = domain.UserID(actorID)
		event.ActorRole = domain.Role(role)
		event.Action = Action(action)
		if claimID.Valid {
			event.ClaimID = domain.ClaimID(claimID.UUID)
		}
		if patientID.Valid {
			event.PatientID = domain.PatientID(patientID.UUID)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}
