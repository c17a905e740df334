package models

import (
	"strings"
	"time"

	"othello/pkg/validation"
)

// RespondRequest is the transport payload for answering a suggestion.
// Response is optional free text: feedback on approve, a reason on deny.
type RespondRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve deny"`
	Response string `json:"response" validate:"max=2000"`
}

func (r *RespondRequest) Normalize() {
	r.Decision = strings.ToLower(strings.TrimSpace(r.Decision))
	r.Response = strings.TrimSpace(r.Response)
}

func (r *RespondRequest) Validate() error {
	return validation.Validate(r)
}

// SuggestionResponse is the transport view of one suggestion. Reasoning is a
// mandatory field so no caller can present a suggestion without its
// explanation.
type SuggestionResponse struct {
	ID           string   `json:"id"`
	Scope        string   `json:"scope"`
	Description  string   `json:"description"`
	ActionType   string   `json:"action_type"`
	Outcome      string   `json:"outcome"`
	RequiredTier string   `json:"required_tier"`
	RuleIDs      []string `json:"rule_ids"`
	Reasoning    string   `json:"reasoning"`
	Confidence   float64  `json:"confidence"`
	Status       string   `json:"status"`
	Actionable   bool     `json:"actionable"`
	CreatedAt    string   `json:"created_at"`
	ExpiresAt    string   `json:"expires_at"`
	RespondedAt  string   `json:"responded_at,omitempty"`
	UserResponse string   `json:"user_response,omitempty"`
	Note         string   `json:"note,omitempty"`
}

// ToResponse converts a suggestion to its transport view.
func ToResponse(s *Suggestion) *SuggestionResponse {
	resp := &SuggestionResponse{
		ID:           s.ID.String(),
		Scope:        s.Scope,
		Description:  s.Action.Description,
		ActionType:   string(s.Action.Type),
		Outcome:      string(s.Result.Outcome),
		RequiredTier: s.Result.RequiredTier.String(),
		RuleIDs:      s.Result.RuleIDs,
		Reasoning:    s.Result.Reasoning,
		Confidence:   s.Result.Confidence,
		Status:       string(s.Status),
		Actionable:   s.Actionable,
		CreatedAt:    s.CreatedAt.Format(time.RFC3339),
		ExpiresAt:    s.ExpiresAt.Format(time.RFC3339),
		UserResponse: s.UserResponse,
		Note:         s.Note,
	}
	if s.RespondedAt != nil {
		resp.RespondedAt = s.RespondedAt.Format(time.RFC3339)
	}
	return resp
}
