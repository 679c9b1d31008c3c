package claims

import (
	"context"
	"time"

	"clearclaim/pkg/domain"
)

// Store persists claim records. Implementations return sentinel errors for
// infrastructure facts: ErrNotFound for missing rows, ErrConflict when a
// conditional write loses to a concurrent writer.
//
// The conditional-update primitive is the single point of mutual exclusion for
// claim state; no in-process locks exist above this interface.
type Store interface {
	Create(ctx context.Context, claim *Claim) error
	FindByID(ctx context.Context, id domain.ClaimID) (*Claim, error)

	// List returns one page of claims matching the filter, newest first,
	// along with the total match count.
	List(ctx context.Context, filter ListFilter, page Page) ([]*Claim, int, error)

	// ListByPatientSince returns the patient's claims created at or after the
	// cutoff, most recent first. The risk engine reads its 90-day window
	// through this.
	ListByPatientSince(ctx context.Context, patientID domain.PatientID, since time.Time) ([]*Claim, error)

	// UpdateIfVersion writes the claim only if the stored version still equals
	// expectedVersion, bumping Version on success. Returns sentinel.ErrConflict
	// when the record changed since it was read.
	UpdateIfVersion(ctx context.Context, claim *Claim, expectedVersion int) error

	// BulkUpdateStatusWherePending moves every listed claim that is still
	// PENDING at write time to the target status, atomically, and returns the
	// number of rows actually updated. Claims that left PENDING in the
	// meantime are silently excluded from the count.
	BulkUpdateStatusWherePending(ctx context.Context, ids []domain.ClaimID, target ClaimStatus, now time.Time) (int, error)
}
