package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"othello/internal/consent/models"
	id "othello/pkg/domain"
)

type InMemoryStoreSuite struct {
	suite.Suite
	ctx    context.Context
	store  *InMemoryStore
	userID id.UserID
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = New()
	s.userID = id.NewUserID()
}

func (s *InMemoryStoreSuite) grant(scope models.Scope, tier id.ConsentTier, version int) *models.TierGrant {
	return &models.TierGrant{
		UserID:    s.userID,
		Scope:     scope,
		Tier:      tier,
		Version:   version,
		UpdatedAt: time.Now().UTC(),
	}
}

func (s *InMemoryStoreSuite) TestGetMissingReturnsNotFound() {
	_, err := s.store.Get(s.ctx, s.userID, models.ScopeGlobal)
	s.ErrorIs(err, ErrNotFound)
}

func (s *InMemoryStoreSuite) TestSaveAndGet() {
	s.Require().NoError(s.store.Save(s.ctx, s.grant(models.ScopeGlobal, id.TierActive, 1)))

	got, err := s.store.Get(s.ctx, s.userID, models.ScopeGlobal)
	s.Require().NoError(err)
	s.Equal(id.TierActive, got.Tier)
	s.Equal(1, got.Version)
}

func (s *InMemoryStoreSuite) TestSaveRejectsStaleVersion() {
	s.Require().NoError(s.store.Save(s.ctx, s.grant(models.ScopeGlobal, id.TierActive, 1)))

	// Same version again: lost-update race.
	err := s.store.Save(s.ctx, s.grant(models.ScopeGlobal, id.TierPassive, 1))
	s.ErrorIs(err, ErrVersionConflict)

	// Skipped version: also a conflict.
	err = s.store.Save(s.ctx, s.grant(models.ScopeGlobal, id.TierPassive, 3))
	s.ErrorIs(err, ErrVersionConflict)

	s.Require().NoError(s.store.Save(s.ctx, s.grant(models.ScopeGlobal, id.TierPassive, 2)))
}

func (s *InMemoryStoreSuite) TestSaveRejectsNonInitialVersionForNewGrant() {
	err := s.store.Save(s.ctx, s.grant(models.ScopeGlobal, id.TierActive, 2))
	s.ErrorIs(err, ErrVersionConflict)
}

func (s *InMemoryStoreSuite) TestScopesAreIndependent() {
	s.Require().NoError(s.store.Save(s.ctx, s.grant(models.ScopeGlobal, id.TierActive, 1)))
	s.Require().NoError(s.store.Save(s.ctx, s.grant(models.ScopeScheduling, id.TierPassive, 1)))

	global, err := s.store.Get(s.ctx, s.userID, models.ScopeGlobal)
	s.Require().NoError(err)
	s.Equal(id.TierActive, global.Tier)

	scheduling, err := s.store.Get(s.ctx, s.userID, models.ScopeScheduling)
	s.Require().NoError(err)
	s.Equal(id.TierPassive, scheduling.Tier)
}

func (s *InMemoryStoreSuite) TestGetReturnsCopy() {
	s.Require().NoError(s.store.Save(s.ctx, s.grant(models.ScopeGlobal, id.TierActive, 1)))

	got, err := s.store.Get(s.ctx, s.userID, models.ScopeGlobal)
	s.Require().NoError(err)
	got.Tier = id.TierAutonomous

	again, err := s.store.Get(s.ctx, s.userID, models.ScopeGlobal)
	s.Require().NoError(err)
	s.Equal(id.TierActive, again.Tier)
}

func (s *InMemoryStoreSuite) TestDeleteByUser() {
	s.Require().NoError(s.store.Save(s.ctx, s.grant(models.ScopeGlobal, id.TierActive, 1)))
	other := id.NewUserID()
	otherGrant := &models.TierGrant{UserID: other, Scope: models.ScopeGlobal, Tier: id.TierPassive, Version: 1, UpdatedAt: time.Now().UTC()}
	s.Require().NoError(s.store.Save(s.ctx, otherGrant))

	s.Require().NoError(s.store.DeleteByUser(s.ctx, s.userID))

	_, err := s.store.Get(s.ctx, s.userID, models.ScopeGlobal)
	s.ErrorIs(err, ErrNotFound)

	_, err = s.store.Get(s.ctx, other, models.ScopeGlobal)
	s.NoError(err)
}
