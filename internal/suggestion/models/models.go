// Package models defines the suggestion lifecycle types. A suggestion wraps
// one proposed action plus its validation verdict and tracks the user's
// response through an explicit state machine.
package models

import (
	"time"

	"othello/internal/policy"
	id "othello/pkg/domain"
	dErrors "othello/pkg/domain-errors"
)

// Status is the lifecycle state of a suggestion.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusExpired  Status = "expired"
	StatusExecuted Status = "executed"
	StatusFailed   Status = "failed"
)

// legalTransitions is the full state machine. Anything absent is illegal;
// transitions are never skipped or inferred.
var legalTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusDenied, StatusExpired},
	StatusApproved: {StatusExecuted, StatusFailed},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDenied, StatusExpired, StatusExecuted, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from s.
func (s Status) IsTerminal() bool {
	return len(legalTransitions[s]) == 0
}

func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown suggestion status")
	}
	return status, nil
}

// Decision is a user's response to a pending suggestion.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionDeny
}

// Status returns the lifecycle state the decision moves a suggestion to.
func (d Decision) Status() Status {
	if d == DecisionApprove {
		return StatusApproved
	}
	return StatusDenied
}

func ParseDecision(s string) (Decision, error) {
	decision := Decision(s)
	if !decision.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "decision must be approve or deny")
	}
	return decision, nil
}

// Suggestion is the persistent, user-facing unit: one proposed action, the
// verdict it received, and its lifecycle state. The ledger is the only
// component allowed to change Status, Actionable, RespondedAt, UserResponse,
// and Note; everything else is immutable after creation.
//
// Result is owned by value. An audit record references the suggestion by
// correlation id, never the other way around, so there are no lifecycle
// cycles between the three.
type Suggestion struct {
	ID     id.SuggestionID
	UserID id.UserID
	Scope  string

	Action policy.ProposedAction
	Result policy.ValidationResult

	Status Status

	// Actionable marks whether the suggestion may be presented for approval
	// under the tier the user held at evaluation time. A later tier raise
	// flips it through an explicit recheck without touching Result.
	Actionable bool

	CreatedAt   time.Time
	ExpiresAt   time.Time
	RespondedAt *time.Time

	// UserResponse carries the user's optional free text with their
	// decision: feedback on approve, a reason on deny.
	UserResponse string

	// Note carries the execution result or failure detail once the
	// suggestion reaches executed or failed.
	Note string
}

// CorrelationID links audit records back to this suggestion.
func (s *Suggestion) CorrelationID() id.CorrelationID {
	return id.CorrelationID(s.ID)
}

// ExpiredAt reports whether the suggestion's approval window has closed.
// Only pending suggestions expire; responded ones keep their state.
func (s *Suggestion) ExpiredAt(now time.Time) bool {
	return s.Status == StatusPending && now.After(s.ExpiresAt)
}

// Presentable reports whether an actionable view may include the suggestion.
func (s *Suggestion) Presentable(now time.Time) bool {
	return s.Status == StatusPending && s.Actionable && !s.ExpiredAt(now)
}
