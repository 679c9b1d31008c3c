package patients

import (
	"context"

	"clearclaim/pkg/domain"
)

// Store reads patient medical records. Implementations return
// sentinel.ErrNotFound when no record exists for the patient; that absence is
// a business outcome for the risk engine, not an infrastructure failure.
type Store interface {
	FindByPatient(ctx context.Context, patientID domain.PatientID) (*MedicalRecord, error)
}
