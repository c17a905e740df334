package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"othello/internal/audit"
	"othello/internal/platform/logger"
	"othello/internal/policy"
	"othello/internal/suggestion/models"
	"othello/internal/suggestion/store"
	id "othello/pkg/domain"
	pkgerrors "othello/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	ctx        context.Context
	store      *store.InMemoryStore
	auditStore *audit.InMemoryStore
	svc        *Service
	userID     id.UserID
	clock      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.New()
	s.auditStore = audit.NewInMemoryStore()
	s.userID = id.NewUserID()
	s.clock = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.svc = NewService(s.store, audit.NewPublisher(s.auditStore), logger.NewNop(),
		WithClock(func() time.Time { return s.clock }))
}

func (s *ServiceSuite) action(description string) policy.ProposedAction {
	return policy.ProposedAction{
		ID:          id.NewActionID(),
		Description: description,
		Type:        policy.ActionReflection,
	}
}

func (s *ServiceSuite) result(outcome policy.Outcome, required id.ConsentTier) policy.ValidationResult {
	return policy.ValidationResult{
		Outcome:      outcome,
		RequiredTier: required,
		RuleIDs:      []string{"test_rule"},
		Reasoning:    "test reasoning",
		Confidence:   0.5,
		EvaluatedAt:  s.clock,
	}
}

func (s *ServiceSuite) create(outcome policy.Outcome, required, granted id.ConsentTier) *models.Suggestion {
	suggestion, err := s.svc.Create(s.ctx, s.userID, "global",
		s.action("take a short walk"), s.result(outcome, required), granted)
	s.Require().NoError(err)
	return suggestion
}

func (s *ServiceSuite) auditRecords() []*audit.Record {
	records, err := s.auditStore.ListByUser(s.ctx, s.userID, nil)
	s.Require().NoError(err)
	return records
}

func (s *ServiceSuite) TestCreatePassedStartsPendingAndActionable() {
	suggestion := s.create(policy.OutcomePassed, id.TierSuggestive, id.TierActive)

	s.Equal(models.StatusPending, suggestion.Status)
	s.True(suggestion.Actionable)
	s.Equal(s.clock.Add(DefaultTTL), suggestion.ExpiresAt)

	records := s.auditRecords()
	s.Require().Len(records, 1)
	s.Equal(audit.KindValidation, records[0].Kind)
	s.Equal("pending:passed", records[0].After)
	s.Equal(id.CorrelationID(suggestion.ID), records[0].CorrelationID)
}

func (s *ServiceSuite) TestCreateBlockedLandsTerminalDenied() {
	suggestion := s.create(policy.OutcomeBlocked, id.TierAutonomous, id.TierAutonomous)

	s.Equal(models.StatusDenied, suggestion.Status)
	s.False(suggestion.Actionable)

	// Terminal from birth: no response is ever legal.
	_, err := s.svc.Respond(s.ctx, suggestion.ID, models.DecisionApprove, "", audit.ActorUser)
	s.True(pkgerrors.HasCode(err, pkgerrors.CodeIllegalTransition))
}

func (s *ServiceSuite) TestCreateUncoveredTierIsPendingButNotActionable() {
	suggestion := s.create(policy.OutcomeFlagged, id.TierActive, id.TierPassive)

	s.Equal(models.StatusPending, suggestion.Status)
	s.False(suggestion.Actionable)

	actionable, err := s.svc.ListByUser(s.ctx, s.userID, &store.Filter{ActionableOnly: true})
	s.Require().NoError(err)
	s.Empty(actionable)

	// Still visible in the transparency view.
	all, err := s.svc.ListByUser(s.ctx, s.userID, nil)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *ServiceSuite) TestCreateRejectsEmptyReasoning() {
	result := s.result(policy.OutcomePassed, id.TierPassive)
	result.Reasoning = ""
	_, err := s.svc.Create(s.ctx, s.userID, "global", s.action("walk"), result, id.TierActive)
	s.True(pkgerrors.HasCode(err, pkgerrors.CodeInvariantViolation))
}

func (s *ServiceSuite) TestRespondApproveTransitionsAndAudits() {
	suggestion := s.create(policy.OutcomePassed, id.TierSuggestive, id.TierActive)

	responded, err := s.svc.Respond(s.ctx, suggestion.ID, models.DecisionApprove, "", audit.ActorUser)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, responded.Status)
	s.NotNil(responded.RespondedAt)

	records := s.auditRecords()
	s.Require().Len(records, 2)
	s.Equal(audit.KindSuggestionTransition, records[0].Kind)
	s.Equal("pending", records[0].Before)
	s.Equal("approved", records[0].After)
	s.Equal(audit.ActorUser, records[0].Actor)
}

func (s *ServiceSuite) TestRespondStoresUserResponseText() {
	approved := s.create(policy.OutcomePassed, id.TierSuggestive, id.TierActive)
	responded, err := s.svc.Respond(s.ctx, approved.ID, models.DecisionApprove, "works well with my mornings", audit.ActorUser)
	s.Require().NoError(err)
	s.Equal("works well with my mornings", responded.UserResponse)

	denied := s.create(policy.OutcomePassed, id.TierSuggestive, id.TierActive)
	responded, err = s.svc.Respond(s.ctx, denied.ID, models.DecisionDeny, "too early in the day", audit.ActorUser)
	s.Require().NoError(err)
	s.Equal("too early in the day", responded.UserResponse)

	// The text survives the round trip through the store.
	current, err := s.svc.Get(s.ctx, denied.ID)
	s.Require().NoError(err)
	s.Equal("too early in the day", current.UserResponse)
}

func (s *ServiceSuite) TestRespondRepeatSameDecisionIsIdempotent() {
	suggestion := s.create(policy.OutcomePassed, id.TierSuggestive, id.TierActive)

	first, err := s.svc.Respond(s.ctx, suggestion.ID, models.DecisionApprove, "looks good", audit.ActorUser)
	s.Require().NoError(err)
	second, err := s.svc.Respond(s.ctx, suggestion.ID, models.DecisionApprove, "changed my mind about the wording", audit.ActorUser)
	s.Require().NoError(err)

	s.Equal(first.Status, second.Status)
	// The repeat keeps the first response text.
	s.Equal("looks good", second.UserResponse)
	// Exactly one transition record, not two.
	s.Len(s.auditRecords(), 2)
}

func (s *ServiceSuite) TestRespondConflictingRepeatIsIllegal() {
	suggestion := s.create(policy.OutcomePassed, id.TierSuggestive, id.TierActive)

	_, err := s.svc.Respond(s.ctx, suggestion.ID, models.DecisionDeny, "", audit.ActorUser)
	s.Require().NoError(err)

	_, err = s.svc.Respond(s.ctx, suggestion.ID, models.DecisionApprove, "", audit.ActorUser)
	s.Require().Error(err)
	s.True(pkgerrors.HasCode(err, pkgerrors.CodeIllegalTransition))

	// State unchanged.
	current, err := s.svc.Get(s.ctx, suggestion.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDenied, current.Status)
}

func (s *ServiceSuite) TestRespondUnknownSuggestion() {
	_, err := s.svc.Respond(s.ctx, id.NewSuggestionID(), models.DecisionApprove, "", audit.ActorUser)
	s.True(pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func (s *ServiceSuite) TestConcurrentRespondsExactlyOneWins() {
	suggestion := s.create(policy.OutcomePassed, id.TierSuggestive, id.TierActive)

	const writers = 16
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decision := models.DecisionApprove
			if i%2 == 1 {
				decision = models.DecisionDeny
			}
			_, errs[i] = s.svc.Respond(s.ctx, suggestion.ID, decision, "", audit.ActorUser)
		}(i)
	}
	wg.Wait()

	current, err := s.svc.Get(s.ctx, suggestion.ID)
	s.Require().NoError(err)
	s.Contains([]models.Status{models.StatusApproved, models.StatusDenied}, current.Status)

	// Callers either observed the winning decision (idempotent) or got an
	// illegal transition; nothing silently overwrote the winner.
	for _, err := range errs {
		if err != nil {
			s.True(pkgerrors.HasCode(err, pkgerrors.CodeIllegalTransition))
		}
	}
}

func (s *ServiceSuite) TestMarkExecutedOnlyFromApproved() {
	suggestion := s.create(policy.OutcomePassed, id.TierSuggestive, id.TierActive)

	_, err := s.svc.MarkExecuted(s.ctx, suggestion.ID, "done")
	s.True(pkgerrors.HasCode(err, pkgerrors.CodeIllegalTransition))

	_, err = s.svc.Respond(s.ctx, suggestion.ID, models.DecisionApprove, "", audit.ActorUser)
	s.Require().NoError(err)

	executed, err := s.svc.MarkExecuted(s.ctx, suggestion.ID, "calendar event created")
	s.Require().NoError(err)
	s.Equal(models.StatusExecuted, executed.Status)
	s.Equal("calendar event created", executed.Note)
}

func (s *ServiceSuite) TestMarkFailedRecordsError() {
	suggestion := s.create(policy.OutcomePassed, id.TierSuggestive, id.TierActive)
	_, err := s.svc.Respond(s.ctx, suggestion.ID, models.DecisionApprove, "", audit.ActorUser)
	s.Require().NoError(err)

	failed, err := s.svc.MarkFailed(s.ctx, suggestion.ID, "calendar API timed out")
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, failed.Status)
	s.Equal("calendar API timed out", failed.Note)
}

func (s *ServiceSuite) TestSweepExpiresPendingExactlyOnce() {
	suggestion := s.create(policy.OutcomePassed, id.TierSuggestive, id.TierActive)

	s.clock = s.clock.Add(DefaultTTL + time.Minute)

	// Expired pending never shows in the actionable view even before a sweep.
	current, err := s.svc.Get(s.ctx, suggestion.ID)
	s.Require().NoError(err)
	s.False(current.Presentable(s.clock))

	swept, err := s.svc.SweepExpired(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, swept)

	current, err = s.svc.Get(s.ctx, suggestion.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, current.Status)

	// Second sweep is a no-op.
	swept, err = s.svc.SweepExpired(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, swept)

	// Create record plus exactly one expiry transition.
	s.Len(s.auditRecords(), 2)
}

func (s *ServiceSuite) TestSweepSkipsRespondedSuggestions() {
	suggestion := s.create(policy.OutcomePassed, id.TierSuggestive, id.TierActive)
	_, err := s.svc.Respond(s.ctx, suggestion.ID, models.DecisionApprove, "", audit.ActorUser)
	s.Require().NoError(err)

	s.clock = s.clock.Add(DefaultTTL + time.Minute)
	swept, err := s.svc.SweepExpired(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, swept)
}

func (s *ServiceSuite) TestRecheckFlipsActionableAfterTierRaise() {
	suggestion := s.create(policy.OutcomeFlagged, id.TierSuggestive, id.TierPassive)
	s.False(suggestion.Actionable)
	originalReasoning := suggestion.Result.Reasoning

	rechecked, err := s.svc.Recheck(s.ctx, suggestion.ID, id.TierSuggestive)
	s.Require().NoError(err)
	s.True(rechecked.Actionable)
	s.Equal(models.StatusPending, rechecked.Status)

	// The verdict itself is never altered by a recheck.
	s.Equal(originalReasoning, rechecked.Result.Reasoning)
}

func (s *ServiceSuite) TestRecheckNeverResurrectsExpired() {
	suggestion := s.create(policy.OutcomeFlagged, id.TierSuggestive, id.TierPassive)

	s.clock = s.clock.Add(DefaultTTL + time.Minute)
	rechecked, err := s.svc.Recheck(s.ctx, suggestion.ID, id.TierAutonomous)
	s.Require().NoError(err)
	s.False(rechecked.Actionable)
}

func (s *ServiceSuite) TestAuditCompleteness() {
	// Three suggestions, two transitions: exactly five records, each with a
	// correlation id linking back to its suggestion.
	first := s.create(policy.OutcomePassed, id.TierSuggestive, id.TierActive)
	second := s.create(policy.OutcomePassed, id.TierSuggestive, id.TierActive)
	s.create(policy.OutcomeBlocked, id.TierAutonomous, id.TierActive)

	_, err := s.svc.Respond(s.ctx, first.ID, models.DecisionApprove, "", audit.ActorUser)
	s.Require().NoError(err)
	_, err = s.svc.Respond(s.ctx, second.ID, models.DecisionDeny, "", audit.ActorUser)
	s.Require().NoError(err)

	records := s.auditRecords()
	s.Require().Len(records, 5)
	for _, record := range records {
		s.False(record.CorrelationID.IsNil())
	}
	// Seq gives a total order even with equal timestamps.
	for i := 1; i < len(records); i++ {
		s.Greater(records[i-1].Seq, records[i].Seq)
	}
}
