package claims

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"clearclaim/pkg/domain"
	"clearclaim/pkg/platform/sentinel"
)

// PostgresStore persists claims in PostgreSQL. fraud_check_details is a JSONB
// column so the tagged structure round-trips without a join; the version
// column backs the conditional update.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed claim store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is the table this store expects. Applied by tests and dev wiring;
// production schema management happens outside this core.
const Schema = `
CREATE TABLE IF NOT EXISTS claims (
    id                  UUID PRIMARY KEY,
    patient_id          UUID NOT NULL,
    amount              NUMERIC(12,2) NOT NULL CHECK (amount > 0),
    procedure_codes     TEXT[] NOT NULL,
    diagnosis_codes     TEXT[] NOT NULL,
    notes               TEXT NOT NULL DEFAULT '',
    status              TEXT NOT NULL,
    is_fraudulent       BOOLEAN NOT NULL DEFAULT FALSE,
    fraud_check_details JSONB,
    created_by          UUID NOT NULL,
    created_at          TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL,
    version             INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_claims_patient_created ON claims (patient_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_claims_status ON claims (status);
`

func (s *PostgresStore) Create(ctx context.Context, claim *Claim) error {
	fraudJSON, err := marshalFraudCheck(claim.FraudCheck)
	if err != nil {
		return err
	}
	claim.Version = 1
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO claims (id, patient_id, amount, procedure_codes, diagnosis_codes,
			notes, status, is_fraudulent, fraud_check_details, created_by,
			created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(claim.ID), uuid.UUID(claim.PatientID), claim.Amount,
		pq.Array(claim.ProcedureCodes), pq.Array(claim.DiagnosisCodes),
		claim.Notes, string(claim.Status), claim.IsFraudulent, fraudJSON,
		uuid.UUID(claim.CreatedBy), claim.CreatedAt, claim.UpdatedAt, claim.Version,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

const claimColumns = `id, patient_id, amount, procedure_codes, diagnosis_codes,
	notes, status, is_fraudulent, fraud_check_details, created_by,
	created_at, updated_at, version`

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ClaimID) (*Claim, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = $1`, uuid.UUID(id))
	claim, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find claim by id: %w", err)
	}
	return claim, nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter, page Page) ([]*Claim, int, error) {
	page = page.Normalize()

	where := `WHERE ($1::uuid IS NULL OR patient_id = $1)
		AND ($2 = '' OR status = $2)
		AND ($3 = '' OR notes ILIKE '%' || $3 || '%'
			OR EXISTS (SELECT 1 FROM unnest(procedure_codes) pc WHERE pc ILIKE '%' || $3 || '%')
			OR EXISTS (SELECT 1 FROM unnest(diagnosis_codes) dc WHERE dc ILIKE '%' || $3 || '%'))`

	var patientID any
	if !filter.PatientID.IsZero() {
		patientID = uuid.UUID(filter.PatientID)
	}

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM claims `+where,
		patientID, string(filter.Status), filter.Search,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count claims: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+claimColumns+` FROM claims `+where+`
		ORDER BY created_at DESC LIMIT $4 OFFSET $5`,
		patientID, string(filter.Status), filter.Search,
		page.Size, (page.Number-1)*page.Size,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var items []*Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan claim: %w", err)
		}
		items = append(items, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list claims: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) ListByPatientSince(ctx context.Context, patientID domain.PatientID, since time.Time) ([]*Claim, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+claimColumns+` FROM claims
		WHERE patient_id = $1 AND created_at >= $2
		ORDER BY created_at DESC`,
		uuid.UUID(patientID), since,
	)
	if err != nil {
		return nil, fmt.Errorf("list claims by patient: %w", err)
	}
	defer rows.Close()

	var items []*Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		items = append(items, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list claims by patient: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateIfVersion(ctx context.Context, claim *Claim, expectedVersion int) error {
	fraudJSON, err := marshalFraudCheck(claim.FraudCheck)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE claims SET
			amount = $2, procedure_codes = $3, diagnosis_codes = $4, notes = $5,
			status = $6, is_fraudulent = $7, fraud_check_details = $8,
			updated_at = $9, version = version + 1
		WHERE id = $1 AND version = $10`,
		uuid.UUID(claim.ID), claim.Amount,
		pq.Array(claim.ProcedureCodes), pq.Array(claim.DiagnosisCodes), claim.Notes,
		string(claim.Status), claim.IsFraudulent, fraudJSON,
		claim.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	if affected == 0 {
		// Either the row is gone or another writer got there first.
		if _, findErr := s.FindByID(ctx, claim.ID); findErr != nil {
			return findErr
		}
		return sentinel.ErrConflict
	}
	claim.Version = expectedVersion + 1
	return nil
}

func (s *PostgresStore) BulkUpdateStatusWherePending(ctx context.Context, ids []domain.ClaimID, target ClaimStatus, now time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	raw := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		raw[i] = uuid.UUID(id)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk transition: %w", err)
	}
	defer tx.Rollback()

	// Single statement, per-row conditional on status: rows that left PENDING
	// between selection and write are skipped, not errored.
	result, err := tx.ExecContext(ctx, `
		UPDATE claims SET status = $1, updated_at = $2, version = version + 1
		WHERE id = ANY($3) AND status = $4`,
		string(target), now, pq.Array(raw), string(StatusPending),
	)
	if err != nil {
		return 0, fmt.Errorf("bulk transition: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk transition: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk transition: %w", err)
	}
	return int(affected), nil
}

func marshalFraudCheck(details *FraudCheckDetails) ([]byte, error) {
	if details == nil {
		return nil, nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal fraud check details: %w", err)
	}
	return data, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*Claim, error) {
	var (
		claim      Claim
		id         uuid.UUID
		patientID  uuid.UUID
		createdBy  uuid.UUID
		status     string
		procedures pq.StringArray
		diagnoses  pq.StringArray
		fraudJSON  []byte
	)
	err := row.Scan(&id, &patientID, &claim.Amount, &procedures, &diagnoses,
		&claim.Notes, &status, &claim.IsFraudulent, &fraudJSON, &createdBy,
		&claim.CreatedAt, &claim.UpdatedAt, &claim.Version)
	if err != nil {
		return nil, err
	}
	claim.ID = domain.ClaimID(id)
	claim.PatientID = domain.PatientID(patientID)
	claim.CreatedBy = domain.UserID(createdBy)
	claim.Status = ClaimStatus(status)
	claim.ProcedureCodes = []string(procedures)
	claim.DiagnosisCodes = []string(diagnoses)
	if len(fraudJSON) > 0 {
		var details FraudCheckDetails
		if err := json.Unmarshal(fraudJSON, &details); err != nil {
			return nil, fmt.Errorf("unmarshal fraud check details: %w", err)
		}
		claim.FraudCheck = &details
	}
	return &claim, nil
}
