// Package store persists suggestions and enforces conditional writes keyed
// on the current status, so concurrent responders race safely.
package store

//go:generate mockgen -source=store.go -destination=mocks/store_mock.go -package=mocks

import (
	"context"
	"time"

	"othello/internal/suggestion/models"
	id "othello/pkg/domain"
	dErrors "othello/pkg/domain-errors"
)

var (
	// ErrNotFound indicates no suggestion exists with the given id.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "suggestion not found")

	// ErrStatusConflict indicates a conditional update found the suggestion
	// in a different status than expected: another writer won the race.
	ErrStatusConflict = dErrors.New(dErrors.CodeConflict, "suggestion status changed concurrently")
)

// Filter narrows ListByUser results.
type Filter struct {
	Status         models.Status
	ActionableOnly bool
	Limit          int
	Offset         int
}

// Store is the persistence interface for suggestions.
//
// Update is conditional: it only writes when the stored status equals
// expectedStatus, returning ErrStatusConflict otherwise. This is the
// single-writer discipline for responses; callers re-read on conflict.
type Store interface {
	Create(ctx context.Context, suggestion *models.Suggestion) error
	Get(ctx context.Context, suggestionID id.SuggestionID) (*models.Suggestion, error)
	Update(ctx context.Context, suggestion *models.Suggestion, expectedStatus models.Status) error
	ListByUser(ctx context.Context, userID id.UserID, filter *Filter) ([]*models.Suggestion, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.Suggestion, error)
	DeleteByUser(ctx context.Context, userID id.UserID) error
}
