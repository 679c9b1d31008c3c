// Package patients exposes the read-only medical record collaborator. The
// record store itself is owned by an external system; this package defines the
// narrow interface the risk engine reads through, plus an in-memory
// implementation for wiring and tests.
package patients

import "clearclaim/pkg/domain"

// Condition is one entry in a patient's condition list.
type Condition struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// MedicalRecord is the slice of patient history the risk engine needs.
type MedicalRecord struct {
	PatientID  domain.PatientID `json:"patientId"`
	Conditions []Condition      `json:"conditions"`
}
