package handler

import (
	"strings"

	"othello/internal/policy"
	sugmodels "othello/internal/suggestion/models"
	id "othello/pkg/domain"
	dErrors "othello/pkg/domain-errors"
	"othello/pkg/validation"
)

// SubmitBatchRequest is the upstream reasoner's payload: a batch of
// candidate actions for one user, evaluated independently.
type SubmitBatchRequest struct {
	Actions []ProposedActionRequest `json:"actions" validate:"required,min=1,max=50,dive"`
}

// ProposedActionRequest is one candidate action on the wire.
type ProposedActionRequest struct {
	Description    string            `json:"description" validate:"required,notblank,max=2000"`
	ActionType     string            `json:"action_type" validate:"required,oneof=reflection scheduling communication research habit goal"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Payload        map[string]string `json:"payload,omitempty"`
	SuggestedTier  string            `json:"suggested_tier,omitempty" validate:"omitempty,oneof=passive suggestive active autonomous"`
}

func (r *SubmitBatchRequest) Normalize() {
	for i := range r.Actions {
		r.Actions[i].Description = strings.TrimSpace(r.Actions[i].Description)
		r.Actions[i].ActionType = strings.ToLower(strings.TrimSpace(r.Actions[i].ActionType))
		r.Actions[i].SuggestedTier = strings.ToLower(strings.TrimSpace(r.Actions[i].SuggestedTier))
	}
}

func (r *SubmitBatchRequest) Validate() error {
	return validation.Validate(r)
}

// ToActions converts the wire batch into domain actions, assigning ids.
func (r *SubmitBatchRequest) ToActions() ([]policy.ProposedAction, error) {
	actions := make([]policy.ProposedAction, 0, len(r.Actions))
	for _, raw := range r.Actions {
		action := policy.ProposedAction{
			ID:          id.NewActionID(),
			Description: raw.Description,
			Type:        policy.ActionType(raw.ActionType),
			Payload:     raw.Payload,
		}
		if raw.ConversationID != "" {
			conversationID, err := id.ParseConversationID(raw.ConversationID)
			if err != nil {
				return nil, err
			}
			action.ConversationID = conversationID
		}
		if raw.SuggestedTier != "" {
			tier, err := id.ParseTier(raw.SuggestedTier)
			if err != nil {
				return nil, dErrors.New(dErrors.CodeBadRequest, "invalid suggested tier")
			}
			action.SuggestedTier = &tier
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// BatchItemResponse is the per-action result on the wire. Fate tells the
// caller whether the action was durably recorded; an unknown fate carries
// the failure code instead of a suggestion.
type BatchItemResponse struct {
	Fate       string                       `json:"fate"`
	Suggestion *sugmodels.SuggestionResponse `json:"suggestion,omitempty"`
	Error      string                       `json:"error,omitempty"`
}

// SubmitBatchResponse carries the index-aligned batch results.
type SubmitBatchResponse struct {
	Items []BatchItemResponse `json:"items"`
}
