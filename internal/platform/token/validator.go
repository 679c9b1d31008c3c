// Package token validates the bearer tokens minted by the external identity
// provider. Only HMAC-signed tokens carrying a subject and a role claim are
// accepted; anything else is an authentication failure, not a domain error.
package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"clearclaim/pkg/domain"
)

// Validator checks token signatures and extracts the principal.
type Validator struct {
	signingKey []byte
}

func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies a JWT, returning the embedded principal.
func (v *Validator) ValidateToken(tokenString string) (domain.Principal, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return domain.Principal{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return domain.Principal{}, fmt.Errorf("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return domain.Principal{}, fmt.Errorf("missing subject claim: %w", err)
	}
	userID, err := domain.ParseUserID(sub)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("subject is not a valid user id: %w", err)
	}

	rawRole, _ := claims["role"].(string)
	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("invalid role claim: %w", err)
	}

	return domain.Principal{ID: userID, Role: role}, nil
}

// Sign mints a token for the given principal. Exists for tests and local
// development; production tokens come from the identity provider.
func (v *Validator) Sign(principal domain.Principal) (string, error) {
	claims := jwt.MapClaims{
		"sub":  principal.ID.String(),
		"role": string(principal.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
}
