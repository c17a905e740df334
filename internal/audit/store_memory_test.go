package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "othello/pkg/domain"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store  *InMemoryStore
	userID id.UserID
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	userID, err := id.ParseUserID("5f0c4bd6-6faf-4e78-9c3a-2c7a02b1a001")
	s.Require().NoError(err)
	s.userID = userID
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) appendRecord(kind Kind, after string) *Record {
	record := &Record{
		UserID:        s.userID,
		Kind:          kind,
		After:         after,
		Actor:         ActorSystem,
		CorrelationID: id.NewCorrelationID(),
		Timestamp:     time.Now().UTC(),
	}
	s.Require().NoError(s.store.Append(context.Background(), record))
	return record
}

func (s *InMemoryStoreSuite) TestAppendAssignsMonotonicSequence() {
	first := s.appendRecord(KindValidation, "passed")
	second := s.appendRecord(KindSuggestionTransition, "approved")
	third := s.appendRecord(KindTierChange, "active")

	s.Equal(uint64(1), first.Seq)
	s.Equal(uint64(2), second.Seq)
	s.Equal(uint64(3), third.Seq)
}

func (s *InMemoryStoreSuite) TestSequencesAreIndependentPerUser() {
	other, err := id.ParseUserID("5f0c4bd6-6faf-4e78-9c3a-2c7a02b1a002")
	s.Require().NoError(err)

	s.appendRecord(KindValidation, "passed")
	record := &Record{UserID: other, Kind: KindValidation, After: "blocked", Actor: ActorSystem, CorrelationID: id.NewCorrelationID()}
	s.Require().NoError(s.store.Append(context.Background(), record))

	s.Equal(uint64(1), record.Seq, "second user's trail starts at 1")
}

func (s *InMemoryStoreSuite) TestListNewestFirst() {
	s.appendRecord(KindValidation, "first")
	s.appendRecord(KindValidation, "second")
	s.appendRecord(KindValidation, "third")

	records, err := s.store.ListByUser(context.Background(), s.userID, nil)
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal("third", records[0].After)
	s.Equal("first", records[2].After)
}

func (s *InMemoryStoreSuite) TestListFiltersByKind() {
	s.appendRecord(KindValidation, "passed")
	s.appendRecord(KindTierChange, "active")
	s.appendRecord(KindValidation, "flagged")

	kind := KindTierChange
	records, err := s.store.ListByUser(context.Background(), s.userID, &Filter{Kind: &kind})
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal("active", records[0].After)
}

func (s *InMemoryStoreSuite) TestListPagination() {
	for i := 0; i < 5; i++ {
		s.appendRecord(KindValidation, "r")
	}

	records, err := s.store.ListByUser(context.Background(), s.userID, &Filter{Limit: 2, Offset: 1})
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(uint64(4), records[0].Seq)
	s.Equal(uint64(3), records[1].Seq)
}

func (s *InMemoryStoreSuite) TestDeleteByUserErasesTrail() {
	s.appendRecord(KindValidation, "passed")
	s.Require().NoError(s.store.DeleteByUser(context.Background(), s.userID))

	count, err := s.store.CountByUser(context.Background(), s.userID)
	s.Require().NoError(err)
	s.Zero(count)

	// A fresh trail starts over at seq 1.
	record := s.appendRecord(KindValidation, "fresh")
	s.Equal(uint64(1), record.Seq)
}

func TestConcurrentAppendsKeepTotalOrder(t *testing.T) {
	store := NewInMemoryStore()
	userID, err := id.ParseUserID("5f0c4bd6-6faf-4e78-9c3a-2c7a02b1a003")
	require.NoError(t, err)

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Append(context.Background(), &Record{
				UserID:        userID,
				Kind:          KindSuggestionTransition,
				After:         "approved",
				Actor:         ActorUser,
				CorrelationID: id.NewCorrelationID(),
				Timestamp:     time.Now().UTC(),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	records, err := store.ListByUser(context.Background(), userID, nil)
	require.NoError(t, err)
	require.Len(t, records, writers)

	seen := make(map[uint64]bool, writers)
	for _, record := range records {
		assert.False(t, seen[record.Seq], "sequence %d assigned twice", record.Seq)
		seen[record.Seq] = true
		assert.NotZero(t, record.CorrelationID)
	}
}
