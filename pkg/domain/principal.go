package domain

import dErrors "clearclaim/pkg/domain-errors"

// Role labels what an authenticated principal is allowed to do. The core never
// authenticates; the identity provider hands us {id, role} and we authorize.
//
// Usage: construct via ParseRole at trust boundaries to enforce the allowlist;
// direct casting bypasses validation.
type Role string

const (
	// RoleAdmin may approve claims and perform every other operation.
	RoleAdmin Role = "admin"
	// RoleAdjuster reviews claims and may deny them, but not approve.
	RoleAdjuster Role = "adjuster"
	// RoleProvider submits and edits its own pending claims.
	RoleProvider Role = "provider"
)

// validRoles is the single source of truth for supported roles.
var validRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleAdjuster: true,
	RoleProvider: true,
}

// ParseRole constructs a Role from external input.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if !validRoles[role] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role: "+raw)
	}
	return role, nil
}

// CanApprove reports whether the role may move a claim to APPROVED.
// Denial is open to any authorized caller; approval is administrative.
func (r Role) CanApprove() bool { return r == RoleAdmin }

// Principal is the authenticated caller of every core operation.
type Principal struct {
	ID   UserID
	Role Role
}

// IsZero reports whether the principal was never set.
func (p Principal) IsZero() bool { return p.ID.IsZero() && p.Role == "" }
