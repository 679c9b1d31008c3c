// Package audit records what happened to which claim, by whom. Recording is
// fire-and-forget: a failure here never changes the outcome of the operation
// being audited.
package audit

import (
	"time"

	"clearclaim/pkg/domain"
)

// Action labels the mutation being audited.
type Action string

const (
	ActionCreate         Action = "claim.create"
	ActionUpdate         Action = "claim.update"
	ActionTransition     Action = "claim.transition"
	ActionBulkTransition Action = "claim.bulk_transition"
)

// Event is emitted from domain logic after every mutation. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time        `json:"timestamp"`
	Actor     domain.UserID    `json:"actor"`
	ActorRole domain.Role      `json:"actorRole"`
	Action    Action           `json:"action"`
	ClaimID   domain.ClaimID   `json:"claimId,omitempty"`
	PatientID domain.PatientID `json:"patientId,omitempty"`
	Detail    string           `json:"detail,omitempty"`
}
