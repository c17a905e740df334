package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "othello/pkg/domain"
)

type EngineSuite struct {
	suite.Suite
	engine *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.engine = NewEngine(WithClock(func() time.Time { return fixed }))
}

func (s *EngineSuite) action(description string, actionType ActionType) ProposedAction {
	return ProposedAction{
		ID:          id.NewActionID(),
		Description: description,
		Type:        actionType,
		Payload:     map[string]string{},
	}
}

func (s *EngineSuite) context(granted id.ConsentTier) UserContext {
	return UserContext{
		UserID:      id.NewUserID(),
		Scope:       "global",
		GrantedTier: granted,
	}
}

func (s *EngineSuite) TestHarmMatchBlocksRegardlessOfEverythingElse() {
	suggested := id.TierPassive
	actions := []ProposedAction{
		s.action("note that revenge is an option here", ActionReflection),
		s.action("you could buy a weapon for protection", ActionResearch),
		{
			ID:            id.NewActionID(),
			Description:   "keep a journal",
			Type:          ActionHabit,
			Payload:       map[string]string{"note": "then stalk their profile"},
			SuggestedTier: &suggested,
		},
	}
	for _, action := range actions {
		for _, granted := range id.AllTiers() {
			result := s.engine.Evaluate(action, s.context(granted))
			s.Equal(OutcomeBlocked, result.Outcome, "description: %s granted: %s", action.Description, granted)
			s.Equal(id.TierAutonomous, result.RequiredTier)
			s.Contains(result.RuleIDs, RuleHarm)
			s.False(result.Actionable(granted))
		}
	}
}

func (s *EngineSuite) TestActionableExactlyWhenRequiredTierCovered() {
	// Descriptions chosen so the classifier assigns each tier without
	// triggering any other rule.
	byRequired := map[id.ConsentTier]string{
		id.TierPassive:    "note that journaling is popular",
		id.TierSuggestive: "consider a short walk after lunch",
		id.TierActive:     "i can draft a daily plan",
		id.TierAutonomous: "i've already drafted a daily plan",
	}
	for required, description := range byRequired {
		for _, granted := range id.AllTiers() {
			result := s.engine.Evaluate(s.action(description, ActionReflection), s.context(granted))
			s.Equal(required, result.RequiredTier, "description: %s", description)
			s.Equal(required <= granted, result.Actionable(granted),
				"required: %s granted: %s", required, granted)
		}
	}
}

func (s *EngineSuite) TestManipulationPatternFlagsAndNamesPattern() {
	action := s.action("only 2 spots left, act now", ActionGoal)
	result := s.engine.Evaluate(action, s.context(id.TierActive))

	s.Equal(OutcomeFlagged, result.Outcome)
	s.Contains(result.RuleIDs, RuleManipulation)
	s.Contains(result.Reasoning, "act now")
	// Manipulation flags without changing the required tier.
	s.Equal(id.TierSuggestive, result.RequiredTier)
}

func (s *EngineSuite) TestPrivacyRaisesRequiredTierByOneLevel() {
	action := s.action("consider asking your doctor about this", ActionReflection)
	result := s.engine.Evaluate(action, s.context(id.TierActive))

	s.Equal(OutcomeFlagged, result.Outcome)
	s.Contains(result.RuleIDs, RulePrivacy)
	s.Contains(result.Reasoning, "health")
	s.Equal(id.TierActive, result.RequiredTier) // suggestive raised by one
}

func (s *EngineSuite) TestPrivacyOverrideSuppressesRule() {
	action := s.action("consider asking your doctor about this", ActionReflection)
	ctx := s.context(id.TierActive)
	ctx.PrivacyOverrides = map[string]bool{"health": true}

	result := s.engine.Evaluate(action, ctx)
	s.NotContains(result.RuleIDs, RulePrivacy)
	s.Equal(OutcomePassed, result.Outcome)
	s.Equal(id.TierSuggestive, result.RequiredTier)
}

func (s *EngineSuite) TestCommitmentRequiresAtLeastActive() {
	byType := s.action("consider a recurring sync with your mentor", ActionScheduling)
	result := s.engine.Evaluate(byType, s.context(id.TierAutonomous))
	s.Contains(result.RuleIDs, RuleCommitment)
	s.Equal(id.TierActive, result.RequiredTier)

	byKeyword := s.action("you could order a standing desk", ActionResearch)
	result = s.engine.Evaluate(byKeyword, s.context(id.TierAutonomous))
	s.Contains(result.RuleIDs, RuleCommitment)
	s.Equal(id.TierActive, result.RequiredTier)
}

func (s *EngineSuite) TestInsufficientContextFailsClosed() {
	cases := []struct {
		name   string
		action ProposedAction
		ctx    UserContext
	}{
		{"empty description", s.action("  ", ActionReflection), s.context(id.TierActive)},
		{"unknown action type", s.action("take a walk", ActionType("teleport")), s.context(id.TierActive)},
		{"missing user", s.action("take a walk", ActionReflection), UserContext{GrantedTier: id.TierActive}},
		{"invalid granted tier", s.action("take a walk", ActionReflection), UserContext{UserID: id.NewUserID(), GrantedTier: id.ConsentTier(9)}},
	}
	for _, tc := range cases {
		result := s.engine.Evaluate(tc.action, tc.ctx)
		s.Equal(OutcomeBlocked, result.Outcome, tc.name)
		s.Equal([]string{RuleInsufficientContext}, result.RuleIDs, tc.name)
		s.Contains(result.Reasoning, "Insufficient context to validate", tc.name)
	}
}

func (s *EngineSuite) TestPassedButUncoveredTierIsFlagged() {
	action := s.action("consider a short walk after lunch", ActionReflection)
	result := s.engine.Evaluate(action, s.context(id.TierPassive))

	s.Equal(OutcomeFlagged, result.Outcome)
	s.Contains(result.RuleIDs, RuleTierInsufficient)
	s.Contains(result.Reasoning, "tier insufficient")
	s.False(result.Actionable(id.TierPassive))
}

func (s *EngineSuite) TestAutonomousRequirementEscalates() {
	action := s.action("i've already scheduled this for tomorrow", ActionScheduling)
	result := s.engine.Evaluate(action, s.context(id.TierAutonomous))

	s.Equal(OutcomeEscalated, result.Outcome)
	s.Equal(id.TierAutonomous, result.RequiredTier)
	s.True(result.Actionable(id.TierAutonomous))
	s.False(result.Actionable(id.TierActive))
}

func (s *EngineSuite) TestSuggestedTierOnlyEverRaises() {
	suggested := id.TierActive
	action := s.action("note that breaks improve focus", ActionReflection)
	action.SuggestedTier = &suggested

	result := s.engine.Evaluate(action, s.context(id.TierAutonomous))
	s.Equal(id.TierActive, result.RequiredTier)

	// A suggestion below the classified tier does not lower the requirement.
	lower := id.TierPassive
	action = s.action("i can draft a daily plan", ActionReflection)
	action.SuggestedTier = &lower
	result = s.engine.Evaluate(action, s.context(id.TierAutonomous))
	s.Equal(id.TierActive, result.RequiredTier)
}

func (s *EngineSuite) TestScopeFloorRaisesRequirement() {
	action := s.action("note that breaks improve focus", ActionReflection)
	ctx := s.context(id.TierAutonomous)
	ctx.ScopeFloor = id.TierActive

	result := s.engine.Evaluate(action, ctx)
	s.Equal(id.TierActive, result.RequiredTier)
}

func (s *EngineSuite) TestEvaluationIsDeterministic() {
	action := s.action("consider asking your doctor before you order supplements, act now", ActionHabit)
	ctx := s.context(id.TierSuggestive)

	first := s.engine.Evaluate(action, ctx)
	second := s.engine.Evaluate(action, ctx)
	s.Equal(first, second)
}

func (s *EngineSuite) TestReasoningAlwaysPopulatedAndConfidenceBounded() {
	descriptions := []string{
		"note that journaling is popular",
		"consider a short walk",
		"i can schedule this for you",
		"i've already sent the invite",
		"you should hurt yourself", // harm
		"only today, act now",
		"",
	}
	for _, description := range descriptions {
		result := s.engine.Evaluate(s.action(description, ActionReflection), s.context(id.TierSuggestive))
		s.NotEmpty(result.Reasoning, "description: %q", description)
		s.GreaterOrEqual(result.Confidence, 0.0)
		s.LessOrEqual(result.Confidence, 1.0)
	}
}

func (s *EngineSuite) TestCustomHarmDenyList() {
	engine := NewEngine(WithHarmDenyList([]string{"pineapple pizza"}))

	blocked := engine.Evaluate(s.action("you could try pineapple pizza", ActionHabit), s.context(id.TierAutonomous))
	s.Equal(OutcomeBlocked, blocked.Outcome)

	// Default list entries no longer apply.
	allowed := engine.Evaluate(s.action("research shows violence in media affects sleep", ActionResearch), s.context(id.TierPassive))
	s.NotEqual(OutcomeBlocked, allowed.Outcome)
}
