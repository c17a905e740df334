package models

import (
	"strings"

	"othello/pkg/validation"
)

// SetTierRequest is the transport payload for changing a consent tier.
// Confirm must be true when raising to the autonomous tier so escalation is
// always an explicit act, never an accidental one.
type SetTierRequest struct {
	Scope   string `json:"scope" validate:"required,notblank,max=100"`
	Tier    string `json:"tier" validate:"required,oneof=passive suggestive active autonomous"`
	Confirm bool   `json:"confirm"`
}

func (r *SetTierRequest) Normalize() {
	r.Scope = strings.ToLower(strings.TrimSpace(r.Scope))
	r.Tier = strings.ToLower(strings.TrimSpace(r.Tier))
}

func (r *SetTierRequest) Validate() error {
	return validation.Validate(r)
}

// TierResponse is the transport view of one (scope, tier) grant.
type TierResponse struct {
	Scope     string `json:"scope"`
	Tier      string `json:"tier"`
	UpdatedAt string `json:"updated_at,omitempty"`
}
