package store

import (
	"context"

	"othello/internal/consent/models"
	id "othello/pkg/domain"
	pkgerrors "othello/pkg/domain-errors"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested grant does not exist
// - Return ErrVersionConflict when a conditional write loses a race
// - Return wrapped errors with context for infrastructure failures
var (
	ErrNotFound        = pkgerrors.New(pkgerrors.CodeNotFound, "tier grant not found")
	ErrVersionConflict = pkgerrors.New(pkgerrors.CodeConflict, "tier grant version conflict")
)

// Store persists consent tier grants. Writes are conditional on the version
// the caller read (optimistic concurrency); no long-held locks.
type Store interface {
	Get(ctx context.Context, userID id.UserID, scope models.Scope) (*models.TierGrant, error)
	// Save inserts a new grant (Version must be 1) or replaces an existing
	// one when the stored version equals grant.Version-1.
	Save(ctx context.Context, grant *models.TierGrant) error
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.TierGrant, error)
	DeleteByUser(ctx context.Context, userID id.UserID) error
}
