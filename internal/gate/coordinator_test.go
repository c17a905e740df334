package gate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"othello/internal/audit"
	consentmodels "othello/internal/consent/models"
	consentservice "othello/internal/consent/service"
	consentstore "othello/internal/consent/store"
	"othello/internal/platform/logger"
	"othello/internal/policy"
	sugmodels "othello/internal/suggestion/models"
	sugservice "othello/internal/suggestion/service"
	sugstore "othello/internal/suggestion/store"
	id "othello/pkg/domain"
	pkgerrors "othello/pkg/domain-errors"
)

type CoordinatorSuite struct {
	suite.Suite
	ctx         context.Context
	consent     *consentservice.Service
	ledger      *sugservice.Service
	auditStore  *audit.InMemoryStore
	coordinator *Coordinator
	userID      id.UserID
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.ctx = context.Background()
	s.auditStore = audit.NewInMemoryStore()
	auditor := audit.NewPublisher(s.auditStore)
	log := logger.NewNop()

	s.consent = consentservice.NewService(consentstore.New(), auditor, log)
	s.ledger = sugservice.NewService(sugstore.New(), auditor, log)
	s.coordinator = NewCoordinator(s.consent, policy.NewEngine(), s.ledger, log)
	s.userID = id.NewUserID()
}

func (s *CoordinatorSuite) setTier(scope string, tier id.ConsentTier) {
	_, err := s.consent.SetTier(s.ctx, s.userID, consentmodels.Scope(scope), tier, audit.ActorUser, tier == id.TierAutonomous)
	s.Require().NoError(err)
}

func (s *CoordinatorSuite) action(description string, actionType policy.ActionType) policy.ProposedAction {
	return policy.ProposedAction{
		ID:          id.NewActionID(),
		Description: description,
		Type:        actionType,
	}
}

func (s *CoordinatorSuite) TestSubmitBatchReturnsEverythingTagged() {
	s.setTier("global", id.TierSuggestive)

	items, err := s.coordinator.SubmitBatch(s.ctx, s.userID, []policy.ProposedAction{
		s.action("consider a short walk after lunch", policy.ActionHabit),
		s.action("i can draft the reply for you", policy.ActionResearch),
		s.action("you should plan revenge", policy.ActionReflection),
	})
	s.Require().NoError(err)
	s.Require().Len(items, 3)

	// Within the granted tier: pending and actionable.
	s.Equal(FateRecorded, items[0].Fate)
	s.Equal(sugmodels.StatusPending, items[0].Suggestion.Status)
	s.True(items[0].Suggestion.Actionable)

	// Requires a higher tier: pending, visible, but never actionable.
	s.Equal(FateRecorded, items[1].Fate)
	s.Equal(sugmodels.StatusPending, items[1].Suggestion.Status)
	s.False(items[1].Suggestion.Actionable)

	// Harm match: terminal denied, still recorded for transparency.
	s.Equal(FateRecorded, items[2].Fate)
	s.Equal(sugmodels.StatusDenied, items[2].Suggestion.Status)
	s.Equal(policy.OutcomeBlocked, items[2].Suggestion.Result.Outcome)
	s.NotEmpty(items[2].Suggestion.Result.Reasoning)
}

func (s *CoordinatorSuite) TestSubmitBatchResolvesScopePerActionType() {
	s.setTier("global", id.TierPassive)
	s.setTier("scheduling", id.TierActive)

	items, err := s.coordinator.SubmitBatch(s.ctx, s.userID, []policy.ProposedAction{
		s.action("i can set up the weekly review", policy.ActionScheduling),
		s.action("i can draft a note", policy.ActionResearch),
	})
	s.Require().NoError(err)

	// Scheduling scope grants active, so the scheduling action is actionable.
	s.True(items[0].Suggestion.Actionable)
	s.Equal("scheduling", items[0].Suggestion.Scope)

	// The research action falls back to the passive global tier.
	s.False(items[1].Suggestion.Actionable)
	s.Equal("global", items[1].Suggestion.Scope)
}

func (s *CoordinatorSuite) TestSubmitBatchEmitsOneAuditRecordPerAction() {
	s.setTier("global", id.TierActive)
	before, err := s.auditStore.CountByUser(s.ctx, s.userID)
	s.Require().NoError(err)

	_, err = s.coordinator.SubmitBatch(s.ctx, s.userID, []policy.ProposedAction{
		s.action("consider a short walk", policy.ActionHabit),
		s.action("note that water helps", policy.ActionReflection),
	})
	s.Require().NoError(err)

	after, err := s.auditStore.CountByUser(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(before+2, after)
}

func (s *CoordinatorSuite) TestSubmitBatchPersistFailureIsUnknownNotDropped() {
	s.setTier("global", id.TierActive)
	failing := &failingLedger{Ledger: s.ledger}
	coordinator := NewCoordinator(s.consent, policy.NewEngine(), failing, logger.NewNop())

	items, err := coordinator.SubmitBatch(s.ctx, s.userID, []policy.ProposedAction{
		s.action("consider a short walk", policy.ActionHabit),
	})
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal(FateUnknown, items[0].Fate)
	s.Nil(items[0].Suggestion)
	s.Error(items[0].Err)
}

func (s *CoordinatorSuite) TestSubmitBatchRetriesTransientPersistFailure() {
	s.setTier("global", id.TierActive)
	flaky := &flakyLedger{Ledger: s.ledger, failures: 1}
	coordinator := NewCoordinator(s.consent, policy.NewEngine(), flaky, logger.NewNop())

	items, err := coordinator.SubmitBatch(s.ctx, s.userID, []policy.ProposedAction{
		s.action("consider a short walk", policy.ActionHabit),
	})
	s.Require().NoError(err)
	s.Equal(FateRecorded, items[0].Fate)
	s.Equal(2, flaky.calls)
}

func (s *CoordinatorSuite) TestRecheckAfterTierRaise() {
	// Passive user submits an action requiring suggestive: pending but not
	// actionable, reasoning names the boundary.
	s.setTier("global", id.TierPassive)
	items, err := s.coordinator.SubmitBatch(s.ctx, s.userID, []policy.ProposedAction{
		s.action("consider a short walk after lunch", policy.ActionHabit),
	})
	s.Require().NoError(err)
	created := items[0].Suggestion
	s.False(created.Actionable)
	s.Contains(created.Result.Reasoning, "tier insufficient")

	// Raising the tier and rechecking flips actionable without altering the
	// stored verdict.
	s.setTier("global", id.TierSuggestive)
	rechecked, err := s.coordinator.Recheck(s.ctx, s.userID, created.ID)
	s.Require().NoError(err)
	s.True(rechecked.Actionable)
	s.Equal(created.Result, rechecked.Result)
}

func (s *CoordinatorSuite) TestRespondVerifiesOwnership() {
	s.setTier("global", id.TierActive)
	items, err := s.coordinator.SubmitBatch(s.ctx, s.userID, []policy.ProposedAction{
		s.action("consider a short walk", policy.ActionHabit),
	})
	s.Require().NoError(err)

	stranger := id.NewUserID()
	_, err = s.coordinator.Respond(s.ctx, stranger, items[0].Suggestion.ID, sugmodels.DecisionApprove, "")
	s.True(pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	responded, err := s.coordinator.Respond(s.ctx, s.userID, items[0].Suggestion.ID, sugmodels.DecisionApprove, "sounds right")
	s.Require().NoError(err)
	s.Equal(sugmodels.StatusApproved, responded.Status)
	s.Equal("sounds right", responded.UserResponse)
}

func (s *CoordinatorSuite) TestSubmitBatchCancelledContextStopsIssuing() {
	s.setTier("global", id.TierActive)
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	items, err := s.coordinator.SubmitBatch(ctx, s.userID, []policy.ProposedAction{
		s.action("consider a short walk", policy.ActionHabit),
		s.action("note that water helps", policy.ActionReflection),
	})
	s.Require().NoError(err)
	for _, item := range items {
		s.Equal(FateUnknown, item.Fate)
		s.Error(item.Err)
	}
}

type failingLedger struct {
	Ledger
}

func (f *failingLedger) Create(context.Context, id.UserID, string, policy.ProposedAction, policy.ValidationResult, id.ConsentTier) (*sugmodels.Suggestion, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger write rejected")
}

type flakyLedger struct {
	Ledger
	failures int
	calls    int
}

func (f *flakyLedger) Create(ctx context.Context, userID id.UserID, scope string, action policy.ProposedAction, result policy.ValidationResult, granted id.ConsentTier) (*sugmodels.Suggestion, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, pkgerrors.New(pkgerrors.CodeStorageUnavailable, "connection reset")
	}
	return f.Ledger.Create(ctx, userID, scope, action, result, granted)
}

