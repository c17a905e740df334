package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"othello/internal/suggestion/models"
	id "othello/pkg/domain"
)

// InMemoryStore keeps suggestions in memory for tests and databaseless runs.
type InMemoryStore struct {
	mu          sync.RWMutex
	suggestions map[id.SuggestionID]*models.Suggestion
}

func New() *InMemoryStore {
	return &InMemoryStore{suggestions: make(map[id.SuggestionID]*models.Suggestion)}
}

func (s *InMemoryStore) Create(_ context.Context, suggestion *models.Suggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copySuggestion := *suggestion
	s.suggestions[suggestion.ID] = &copySuggestion
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, suggestionID id.SuggestionID) (*models.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	suggestion, ok := s.suggestions[suggestionID]
	if !ok {
		return nil, ErrNotFound
	}
	copySuggestion := *suggestion
	return &copySuggestion, nil
}

func (s *InMemoryStore) Update(_ context.Context, suggestion *models.Suggestion, expectedStatus models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.suggestions[suggestion.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Status != expectedStatus {
		return ErrStatusConflict
	}
	copySuggestion := *suggestion
	s.suggestions[suggestion.ID] = &copySuggestion
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID, filter *Filter) ([]*models.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Suggestion
	for _, suggestion := range s.suggestions {
		if suggestion.UserID != userID {
			continue
		}
		if filter != nil {
			if filter.Status != "" && suggestion.Status != filter.Status {
				continue
			}
			if filter.ActionableOnly && !(suggestion.Status == models.StatusPending && suggestion.Actionable) {
				continue
			}
		}
		copySuggestion := *suggestion
		matched = append(matched, &copySuggestion)
	}

	// Newest-first, id tie-break for a stable order.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(matched) {
				return nil, nil
			}
			matched = matched[filter.Offset:]
		}
		if filter.Limit > 0 && filter.Limit < len(matched) {
			matched = matched[:filter.Limit]
		}
	}
	return matched, nil
}

func (s *InMemoryStore) ListExpired(_ context.Context, now time.Time, limit int) ([]*models.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []*models.Suggestion
	for _, suggestion := range s.suggestions {
		if suggestion.ExpiredAt(now) {
			copySuggestion := *suggestion
			expired = append(expired, &copySuggestion)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	if limit > 0 && limit < len(expired) {
		expired = expired[:limit]
	}
	return expired, nil
}

func (s *InMemoryStore) DeleteByUser(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for suggestionID, suggestion := range s.suggestions {
		if suggestion.UserID == userID {
			delete(s.suggestions, suggestionID)
		}
	}
	return nil
}
