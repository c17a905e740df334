package audit

import (
	"time"

	id "othello/pkg/domain"
)

// Kind categorizes what an audit record documents.
type Kind string

const (
	KindTierChange           Kind = "tier_change"
	KindValidation           Kind = "validation"
	KindSuggestionTransition Kind = "suggestion_transition"
)

// Actor identifies who caused the recorded change.
type Actor string

const (
	ActorSystem Actor = "system"
	ActorUser   Actor = "user"
)

// Record is an append-only fact documenting one state change. Records are
// never updated or deleted under normal operation; the only removal path is
// an explicit user-driven erasure request. The per-user Seq is assigned by
// the store at append time and makes a total order reconstructable even
// under concurrent writers with equal timestamps.
type Record struct {
	UserID        id.UserID
	Seq           uint64
	Kind          Kind
	Before        string
	After         string
	Actor         Actor
	CorrelationID id.CorrelationID
	Timestamp     time.Time
}

// Filter narrows audit queries.
type Filter struct {
	Kind   *Kind
	Since  *time.Time
	Limit  int
	Offset int
}
