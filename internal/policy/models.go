// Package policy evaluates proposed actions against a user's consent
// boundary. The evaluator is pure: all context is passed in, no I/O happens,
// and the same inputs always produce the same result.
package policy

import (
	"time"

	id "othello/pkg/domain"
)

// ActionType tags what kind of action the upstream reasoner proposes.
type ActionType string

const (
	ActionReflection    ActionType = "reflection"
	ActionScheduling    ActionType = "scheduling"
	ActionCommunication ActionType = "communication"
	ActionResearch      ActionType = "research"
	ActionHabit         ActionType = "habit"
	ActionGoal          ActionType = "goal"
)

func (t ActionType) IsValid() bool {
	switch t {
	case ActionReflection, ActionScheduling, ActionCommunication, ActionResearch, ActionHabit, ActionGoal:
		return true
	}
	return false
}

// ProposedAction is one candidate action from the upstream reasoner.
// Immutable once created; the reasoner's SuggestedTier is advisory and the
// evaluator may override it upward.
type ProposedAction struct {
	ID             id.ActionID
	ConversationID id.ConversationID
	Description    string
	Type           ActionType
	Payload        map[string]string
	SuggestedTier  *id.ConsentTier
}

// UserContext carries everything the evaluator needs about the user. It is
// assembled by the caller; the evaluator itself never reads storage.
type UserContext struct {
	UserID      id.UserID
	Scope       string
	GrantedTier id.ConsentTier

	// ScopeFloor is an optional configured minimum tier for the scope.
	// Zero value (passive) means no floor.
	ScopeFloor id.ConsentTier

	// PrivacyOverrides lists privacy categories the user has explicitly
	// allowed, keyed by category name (health, finance, third_party).
	PrivacyOverrides map[string]bool
}

// Outcome is the evaluator's verdict on one action.
type Outcome string

const (
	OutcomePassed    Outcome = "passed"
	OutcomeFlagged   Outcome = "flagged"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeEscalated Outcome = "escalated"
)

// ValidationResult is the full, explained verdict for one evaluation.
// Reasoning is always populated; a result with an empty reasoning string is
// a bug, not a valid output. Results are never edited, only superseded by a
// fresh evaluation.
type ValidationResult struct {
	Outcome      Outcome
	RequiredTier id.ConsentTier
	RuleIDs      []string
	Reasoning    string
	Confidence   float64
	EvaluatedAt  time.Time
}

// Actionable reports whether the evaluated action may be presented to the
// user as something they can approve, given their granted tier.
func (r ValidationResult) Actionable(granted id.ConsentTier) bool {
	return r.Outcome != OutcomeBlocked && granted.Covers(r.RequiredTier)
}
