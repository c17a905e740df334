//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"othello/internal/policy"
	"othello/internal/suggestion/models"
	"othello/internal/suggestion/store"
	id "othello/pkg/domain"
	"othello/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	userID   id.UserID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "suggestions")
	s.Require().NoError(err)
	s.userID = id.NewUserID()
}

func (s *PostgresStoreSuite) newSuggestion(createdAt time.Time) *models.Suggestion {
	return &models.Suggestion{
		ID:     id.NewSuggestionID(),
		UserID: s.userID,
		Scope:  "global",
		Action: policy.ProposedAction{
			ID:          id.NewActionID(),
			Description: "consider a short walk after lunch",
			Type:        policy.ActionHabit,
			Payload:     map[string]string{"duration": "15m"},
		},
		Result: policy.ValidationResult{
			Outcome:      policy.OutcomePassed,
			RequiredTier: id.TierSuggestive,
			RuleIDs:      []string{"harm_check", "privacy_check"},
			Reasoning:    "Suggestion within granted boundary.",
			Confidence:   0.4,
			EvaluatedAt:  createdAt,
		},
		Status:     models.StatusPending,
		Actionable: true,
		CreatedAt:  createdAt,
		ExpiresAt:  createdAt.Add(24 * time.Hour),
	}
}

func (s *PostgresStoreSuite) TestCreateAndGetRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	created := s.newSuggestion(now)
	tier := id.TierActive
	created.Action.SuggestedTier = &tier
	s.Require().NoError(s.store.Create(ctx, created))

	got, err := s.store.Get(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.ID, got.ID)
	s.Equal(created.UserID, got.UserID)
	s.Equal("global", got.Scope)
	s.Equal(created.Action.Description, got.Action.Description)
	s.Equal(map[string]string{"duration": "15m"}, got.Action.Payload)
	s.Require().NotNil(got.Action.SuggestedTier)
	s.Equal(id.TierActive, *got.Action.SuggestedTier)
	s.Equal(policy.OutcomePassed, got.Result.Outcome)
	s.Equal([]string{"harm_check", "privacy_check"}, got.Result.RuleIDs)
	s.Equal(models.StatusPending, got.Status)
	s.True(got.Actionable)
	s.Nil(got.RespondedAt)
	s.WithinDuration(created.ExpiresAt, got.ExpiresAt, time.Millisecond)
}

func (s *PostgresStoreSuite) TestGetMissingReturnsNotFound() {
	_, err := s.store.Get(context.Background(), id.NewSuggestionID())
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateIsConditionalOnStatus() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	suggestion := s.newSuggestion(now)
	s.Require().NoError(s.store.Create(ctx, suggestion))

	respondedAt := now.Add(time.Minute)
	suggestion.Status = models.StatusApproved
	suggestion.RespondedAt = &respondedAt
	suggestion.UserResponse = "fits my schedule"
	s.Require().NoError(s.store.Update(ctx, suggestion, models.StatusPending))

	// The same conditional write loses once the status moved on.
	suggestion.Status = models.StatusDenied
	err := s.store.Update(ctx, suggestion, models.StatusPending)
	s.ErrorIs(err, store.ErrStatusConflict)

	got, err := s.store.Get(ctx, suggestion.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, got.Status)
	s.Require().NotNil(got.RespondedAt)
	s.Equal("fits my schedule", got.UserResponse)
}

func (s *PostgresStoreSuite) TestUpdateMissingReturnsNotFound() {
	now := time.Now().UTC().Truncate(time.Microsecond)
	suggestion := s.newSuggestion(now)
	err := s.store.Update(context.Background(), suggestion, models.StatusPending)
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListByUserFiltersAndPaginates() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	oldest := s.newSuggestion(base.Add(-2 * time.Hour))
	middle := s.newSuggestion(base.Add(-time.Hour))
	newest := s.newSuggestion(base)
	newest.Actionable = false
	for _, suggestion := range []*models.Suggestion{oldest, middle, newest} {
		s.Require().NoError(s.store.Create(ctx, suggestion))
	}

	all, err := s.store.ListByUser(ctx, s.userID, nil)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(newest.ID, all[0].ID)
	s.Equal(oldest.ID, all[2].ID)

	actionable, err := s.store.ListByUser(ctx, s.userID, &store.Filter{ActionableOnly: true})
	s.Require().NoError(err)
	s.Len(actionable, 2)

	page, err := s.store.ListByUser(ctx, s.userID, &store.Filter{Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.Equal(middle.ID, page[0].ID)

	other, err := s.store.ListByUser(ctx, id.NewUserID(), nil)
	s.Require().NoError(err)
	s.Empty(other)
}

func (s *PostgresStoreSuite) TestListExpiredReturnsOnlyPendingPastHorizon() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	expired := s.newSuggestion(now.Add(-48 * time.Hour))
	fresh := s.newSuggestion(now)
	respondedExpired := s.newSuggestion(now.Add(-48 * time.Hour))
	s.Require().NoError(s.store.Create(ctx, expired))
	s.Require().NoError(s.store.Create(ctx, fresh))
	s.Require().NoError(s.store.Create(ctx, respondedExpired))

	respondedExpired.Status = models.StatusDenied
	s.Require().NoError(s.store.Update(ctx, respondedExpired, models.StatusPending))

	due, err := s.store.ListExpired(ctx, now, 100)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(expired.ID, due[0].ID)
}

func (s *PostgresStoreSuite) TestDeleteByUserRemovesOnlyThatUser() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	mine := s.newSuggestion(now)
	s.Require().NoError(s.store.Create(ctx, mine))

	otherUser := id.NewUserID()
	theirs := s.newSuggestion(now)
	theirs.ID = id.NewSuggestionID()
	theirs.UserID = otherUser
	s.Require().NoError(s.store.Create(ctx, theirs))

	s.Require().NoError(s.store.DeleteByUser(ctx, s.userID))

	_, err := s.store.Get(ctx, mine.ID)
	s.ErrorIs(err, store.ErrNotFound)
	_, err = s.store.Get(ctx, theirs.ID)
	s.NoError(err)
}
