// Package domain holds the identifier and principal types shared by every
// layer. IDs are distinct UUID types so the compiler rejects cross-entity
// mix-ups; construct them via the Parse functions at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "clearclaim/pkg/domain-errors"
)

// ClaimID identifies a claim record.
type ClaimID uuid.UUID

// PatientID identifies the patient a claim is filed for.
type PatientID uuid.UUID

// UserID identifies an authenticated principal.
type UserID uuid.UUID

func (id ClaimID) String() string   { return uuid.UUID(id).String() }
func (id PatientID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string    { return uuid.UUID(id).String() }

func (id ClaimID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id PatientID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }

// The ID types implement encoding.TextMarshaler/TextUnmarshaler so they render
// as canonical UUID strings in JSON rather than raw byte arrays.

func (id ClaimID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id PatientID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }

func (id *ClaimID) UnmarshalText(data []byte) error {
	u, err := uuid.Parse(string(data))
	if err != nil {
		return err
	}
	*id = ClaimID(u)
	return nil
}

func (id *PatientID) UnmarshalText(data []byte) error {
	u, err := uuid.Parse(string(data))
	if err != nil {
		return err
	}
	*id = PatientID(u)
	return nil
}

func (id *UserID) UnmarshalText(data []byte) error {
	u, err := uuid.Parse(string(data))
	if err != nil {
		return err
	}
	*id = UserID(u)
	return nil
}

// NewClaimID mints a fresh claim identifier.
func NewClaimID() ClaimID { return ClaimID(uuid.New()) }

// ParseClaimID constructs a ClaimID from external input.
func ParseClaimID(raw string) (ClaimID, error) {
	u, err := parseUUID(raw)
	if err != nil {
		return ClaimID{}, err
	}
	return ClaimID(u), nil
}

// ParsePatientID constructs a PatientID from external input.
func ParsePatientID(raw string) (PatientID, error) {
	u, err := parseUUID(raw)
	if err != nil {
		return PatientID{}, err
	}
	return PatientID(u), nil
}

// ParseUserID constructs a UserID from external input.
func ParseUserID(raw string) (UserID, error) {
	u, err := parseUUID(raw)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs.
func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(dErrors.CodeInvalidInput, "id must be a valid UUID", err)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}
