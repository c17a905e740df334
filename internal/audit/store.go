package audit

import (
	"context"

	id "othello/pkg/domain"
	pkgerrors "othello/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across implementations.
	ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "audit record not found")
)

// Store persists audit records. Append assigns the per-user sequence number
// and must never overwrite an existing record.
//
// Error Contract:
// - Append returns nil on success or a wrapped error on infrastructure failure
// - ListByUser returns records newest-first
type Store interface {
	Append(ctx context.Context, record *Record) error
	ListByUser(ctx context.Context, userID id.UserID, filter *Filter) ([]*Record, error)
	CountByUser(ctx context.Context, userID id.UserID) (int, error)
	// DeleteByUser serves explicit user-driven erasure requests only.
	DeleteByUser(ctx context.Context, userID id.UserID) error
}
