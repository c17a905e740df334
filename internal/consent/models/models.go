package models

import (
	"time"

	id "othello/pkg/domain"
	dErrors "othello/pkg/domain-errors"
)

// Scope names a domain a consent tier applies to independently of the
// global tier. Scopes are free-form; these are the ones the upstream
// reasoner currently emits.
type Scope string

const (
	ScopeGlobal        Scope = "global"
	ScopeScheduling    Scope = "scheduling"
	ScopeCommunication Scope = "communication"
)

// IsValid rejects blank scopes; anything non-empty is a legal scope name.
func (s Scope) IsValid() bool {
	return s != ""
}

// TierGrant is the current consent tier for one (user, scope) pair.
//
// # Scoping Invariant
//
// The (UserID, Scope) combination is unique: each user has at most one
// active tier per scope. All queries MUST include UserID; a scope name alone
// never authorizes access to another user's grant. History is reconstructed
// from the audit trail, not stored here.
type TierGrant struct {
	UserID    id.UserID
	Scope     Scope
	Tier      id.ConsentTier
	Version   int
	UpdatedAt time.Time
}

// NewTierGrant creates a TierGrant with domain invariant checks.
func NewTierGrant(userID id.UserID, scope Scope, tier id.ConsentTier, now time.Time) (*TierGrant, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user ID required")
	}
	if !scope.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "scope required")
	}
	if !tier.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid consent tier")
	}
	return &TierGrant{
		UserID:    userID,
		Scope:     scope,
		Tier:      tier,
		Version:   1,
		UpdatedAt: now,
	}, nil
}
