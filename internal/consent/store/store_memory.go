package store

import (
	"context"
	"sync"

	"othello/internal/consent/models"
	id "othello/pkg/domain"
)

// InMemoryStore stores tier grants in memory for tests and databaseless runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	grants map[id.UserID]map[models.Scope]*models.TierGrant
}

// New constructs an empty in-memory consent store.
func New() *InMemoryStore {
	return &InMemoryStore{grants: make(map[id.UserID]map[models.Scope]*models.TierGrant)}
}

func (s *InMemoryStore) Get(_ context.Context, userID id.UserID, scope models.Scope) (*models.TierGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grant, ok := s.grants[userID][scope]
	if !ok {
		return nil, ErrNotFound
	}
	copyGrant := *grant
	return &copyGrant, nil
}

func (s *InMemoryStore) Save(_ context.Context, grant *models.TierGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scopes, ok := s.grants[grant.UserID]
	if !ok {
		scopes = make(map[models.Scope]*models.TierGrant)
		s.grants[grant.UserID] = scopes
	}

	existing, exists := scopes[grant.Scope]
	if exists {
		if grant.Version != existing.Version+1 {
			return ErrVersionConflict
		}
	} else if grant.Version != 1 {
		return ErrVersionConflict
	}

	copyGrant := *grant
	scopes[grant.Scope] = &copyGrant
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.TierGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var grants []*models.TierGrant
	for _, grant := range s.grants[userID] {
		copyGrant := *grant
		grants = append(grants, &copyGrant)
	}
	return grants, nil
}

func (s *InMemoryStore) DeleteByUser(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, userID)
	return nil
}
