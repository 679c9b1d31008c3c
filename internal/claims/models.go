// Package claims owns the claim record, its legal status transitions, and the
// inputs the lifecycle service accepts. Only the lifecycle service and the
// risk engine ever populate fraud fields; callers cannot set them directly.
package claims

import (
	"time"

	"clearclaim/pkg/domain"
)

// ClaimStatus is the adjudication state of a claim.
type ClaimStatus string

const (
	StatusPending  ClaimStatus = "PENDING"
	StatusApproved ClaimStatus = "APPROVED"
	StatusDenied   ClaimStatus = "DENIED"
	StatusPaid     ClaimStatus = "PAID"
)

// validStatuses is the allowlist for parsing external input.
var validStatuses = map[ClaimStatus]bool{
	StatusPending:  true,
	StatusApproved: true,
	StatusDenied:   true,
	StatusPaid:     true,
}

// ParseStatus validates a status string from external input.
func ParseStatus(raw string) (ClaimStatus, bool) {
	status := ClaimStatus(raw)
	return status, validStatuses[status]
}

// CanTransitionTo encodes the state machine: PENDING may move to APPROVED or
// DENIED; APPROVED may move to PAID (driven by an external billing event);
// nothing ever returns to PENDING and PAID is fully terminal.
func (s ClaimStatus) CanTransitionTo(target ClaimStatus) bool {
	switch s {
	case StatusPending:
		return target == StatusApproved || target == StatusDenied
	case StatusApproved:
		return target == StatusPaid
	default:
		return false
	}
}

// IsFinal reports whether the claim has left PENDING. Final claims reject all
// field mutation.
func (s ClaimStatus) IsFinal() bool { return s != StatusPending }

// FraudCheckDetails is the last risk engine output attached to a claim. It is
// an explicit tagged structure, not a loose map, so only the engine and the
// lifecycle service can populate it.
type FraudCheckDetails struct {
	IsFraudulent bool           `json:"isFraudulent"`
	Reasons      []string       `json:"reasons"`
	RiskScore    float64        `json:"riskScore"`
	EvaluatedAt  time.Time      `json:"evaluatedAt"`
	EvaluatedBy  domain.UserID  `json:"evaluatedBy"`
	ProcessedAt  *time.Time     `json:"processedAt,omitempty"`
	ProcessedBy  *domain.UserID `json:"processedBy,omitempty"`
	Notes        string         `json:"notes,omitempty"`
}

// Claim is a request for reimbursement tied to a patient, an amount, and
// clinical codes.
type Claim struct {
	ID             domain.ClaimID     `json:"id"`
	PatientID      domain.PatientID   `json:"patientId"`
	Amount         float64            `json:"amount"`
	ProcedureCodes []string           `json:"procedureCodes"`
	DiagnosisCodes []string           `json:"diagnosisCodes"`
	Notes          string             `json:"notes,omitempty"`
	Status         ClaimStatus        `json:"status"`
	IsFraudulent   bool               `json:"isFraudulent"`
	FraudCheck     *FraudCheckDetails `json:"fraudCheckDetails,omitempty"`
	CreatedBy      domain.UserID      `json:"createdBy"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`

	// Version supports the store's conditional update. Bumped on every write.
	Version int `json:"-"`
}

// Clone returns a deep copy so callers never share backing slices with a store.
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	copied := *c
	copied.ProcedureCodes = append([]string{}, c.ProcedureCodes...)
	copied.DiagnosisCodes = append([]string{}, c.DiagnosisCodes...)
	if c.FraudCheck != nil {
		fc := *c.FraudCheck
		fc.Reasons = append([]string{}, c.FraudCheck.Reasons...)
		copied.FraudCheck = &fc
	}
	return &copied
}

// CreateInput is the caller-supplied shape for new claims.
type CreateInput struct {
	PatientID      domain.PatientID
	Amount         float64
	ProcedureCodes []string
	DiagnosisCodes []string
	Notes          string
}

// UpdateInput is a partial edit of the mutable fields. Nil fields are left
// untouched. Status is never settable through an update.
type UpdateInput struct {
	Amount         *float64
	ProcedureCodes []string
	DiagnosisCodes []string
	Notes          *string
}

// ListFilter narrows a claim listing. Zero values mean "no constraint".
type ListFilter struct {
	PatientID domain.PatientID
	Status    ClaimStatus
	Search    string
}

// Page is 1-based pagination input.
type Page struct {
	Number int
	Size   int
}

// Normalize applies defaults and bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = 20
	}
	if p.Size > 100 {
		p.Size = 100
	}
	return p
}

// ClaimPage is one page of a listing plus totals.
type ClaimPage struct {
	Items      []*Claim `json:"items"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	TotalPages int      `json:"totalPages"`
}
