package models

import (
	"fmt"
	"strings"
)

// Callback token actions. Tokens are of the form "agree_<role>_<dealID>" or
// "claim_<dealID>", split on TokenSeparator. Deal IDs never contain the
// separator (they are "DEAL" plus a counter).
const (
	ActionAgree = "agree"
	ActionClaim = "claim"

	TokenSeparator = "_"
)

// AgreeToken encodes the dual-accept control token for a role and deal.
func AgreeToken(role Role, dealID string) string {
	return strings.Join([]string{ActionAgree, string(role), dealID}, TokenSeparator)
}

// ClaimToken encodes the arbiter claim control token for a deal.
func ClaimToken(dealID string) string {
	return strings.Join([]string{ActionClaim, dealID}, TokenSeparator)
}

// Token is a decoded callback token.
type Token struct {
	Action string
	Role   Role   // set only for agree tokens
	DealID string
}

// ParseToken decodes a callback token. It returns ErrInvalidToken for tokens
// that do not match either known shape.
func ParseToken(data string) (Token, error) {
	parts := strings.Split(data, TokenSeparator)
	switch {
	case len(parts) == 3 && parts[0] == ActionAgree:
		role := Role(parts[1])
		if !IsValidRole(role) {
			return Token{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, parts[1])
		}
		if parts[2] == "" {
			return Token{}, fmt.Errorf("%w: empty deal id", ErrInvalidToken)
		}
		return Token{Action: ActionAgree, Role: role, DealID: parts[2]}, nil
	case len(parts) == 2 && parts[0] == ActionClaim:
		if parts[1] == "" {
			return Token{}, fmt.Errorf("%w: empty deal id", ErrInvalidToken)
		}
		return Token{Action: ActionClaim, DealID: parts[1]}, nil
	default:
		return Token{}, fmt.Errorf("%w: %q", ErrInvalidToken, data)
	}
}
