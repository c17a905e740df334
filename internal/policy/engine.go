package policy

import (
	"fmt"
	"strings"
	"time"

	id "othello/pkg/domain"
)

// classifierWeight is the pseudo-weight the tier classifier contributes to
// the confidence score: full weight on a keyword match, reduced weight when
// only the default heuristic applied.
const (
	classifierWeight        = 0.5
	classifierDefaultWeight = 0.2
	tierInsufficientWeight  = 0.5
)

type EngineOption func(*Engine)

// Engine evaluates proposed actions. It holds only immutable rule data, so a
// single instance is safe for concurrent use and every evaluation is
// deterministic.
type Engine struct {
	rules []rule
	now   func() time.Time
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		rules: defaultRules(defaultHarmDenyList),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithHarmDenyList replaces the default harmful-intent deny list.
func WithHarmDenyList(categories []string) EngineOption {
	return func(e *Engine) {
		e.rules = defaultRules(categories)
	}
}

// WithClock overrides the time source for deterministic tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// Evaluate runs one action through the rule table and returns the explained
// verdict. Pure: no I/O, no retained state, same inputs always give the same
// result. A context the engine cannot classify fails closed to Blocked, never
// to Passed.
func (e *Engine) Evaluate(action ProposedAction, ctx UserContext) ValidationResult {
	evaluatedAt := e.now().UTC()

	if reason, ok := missingContext(action, ctx); ok {
		return ValidationResult{
			Outcome:      OutcomeBlocked,
			RequiredTier: id.TierAutonomous,
			RuleIDs:      []string{RuleInsufficientContext},
			Reasoning:    "Insufficient context to validate: " + reason + ". The action is blocked because an unclassifiable action is never passed by default.",
			Confidence:   1,
			EvaluatedAt:  evaluatedAt,
		}
	}

	classified := classifyTier(action.Description)
	required := classified.tier
	if action.SuggestedTier != nil && action.SuggestedTier.IsValid() {
		required = required.Max(*action.SuggestedTier)
	}
	if ctx.ScopeFloor.IsValid() {
		required = required.Max(ctx.ScopeFloor)
	}

	// All rules run and every match is recorded, even after a blocking one:
	// the triggered-rules list is part of the transparency contract.
	outcome := OutcomePassed
	blocked := false
	var ruleIDs []string
	var reasons []string
	firedWeight := 0.0
	totalWeight := classifierWeight + tierInsufficientWeight

	for _, r := range e.rules {
		totalWeight += r.weight
		effect, matched := r.match(action, ctx)
		if !matched {
			continue
		}
		ruleIDs = append(ruleIDs, r.id)
		reasons = append(reasons, effect.reason)
		firedWeight += r.weight

		if effect.terminal {
			blocked = true
		}
		if effect.outcome == OutcomeFlagged && outcome == OutcomePassed {
			outcome = OutcomeFlagged
		}
		required = required.Max(effect.minTier)
		for i := 0; i < effect.raiseBy; i++ {
			required = required.Raise()
		}
	}

	if classified.matched {
		firedWeight += classifierWeight
	} else {
		firedWeight += classifierDefaultWeight
	}

	if blocked {
		outcome = OutcomeBlocked
		required = id.TierAutonomous
	} else if required == id.TierAutonomous {
		// Autonomy is never granted implicitly; the verdict is surfaced as an
		// escalation the user must resolve rather than a silent pass.
		outcome = OutcomeEscalated
	}

	// A passed action the user's tier does not cover is never presented as
	// actionable; it is downgraded to flagged with the boundary named.
	if !blocked && !ctx.GrantedTier.Covers(required) {
		ruleIDs = append(ruleIDs, RuleTierInsufficient)
		firedWeight += tierInsufficientWeight
		reasons = append(reasons, fmt.Sprintf(
			"Consent boundary: tier insufficient, the action requires '%s' (level %d) but the user's current consent tier for scope '%s' is '%s' (level %d).",
			required, tierLevel(required), ctx.Scope, ctx.GrantedTier, tierLevel(ctx.GrantedTier)))
		if outcome == OutcomePassed {
			outcome = OutcomeFlagged
		}
	}

	confidence := firedWeight / totalWeight
	if confidence > 1 {
		confidence = 1
	}

	return ValidationResult{
		Outcome:      outcome,
		RequiredTier: required,
		RuleIDs:      ruleIDs,
		Reasoning:    buildReasoning(classified, reasons, outcome, required, ctx),
		Confidence:   confidence,
		EvaluatedAt:  evaluatedAt,
	}
}

func missingContext(action ProposedAction, ctx UserContext) (string, bool) {
	switch {
	case strings.TrimSpace(action.Description) == "":
		return "the action has no description", true
	case !action.Type.IsValid():
		return fmt.Sprintf("unknown action type '%s'", action.Type), true
	case ctx.UserID.IsNil():
		return "the user context has no user identifier", true
	case !ctx.GrantedTier.IsValid():
		return "the user context has no valid granted tier", true
	}
	return "", false
}

// buildReasoning assembles the mandatory human-readable explanation: the
// tier classification, every triggered rule, and the final boundary verdict.
func buildReasoning(classified classification, ruleReasons []string, outcome Outcome, required id.ConsentTier, ctx UserContext) string {
	parts := []string{classified.reasoning()}
	parts = append(parts, ruleReasons...)

	switch {
	case outcome == OutcomeBlocked:
		parts = append(parts, "Verdict: blocked. This action is not permitted at any consent tier.")
	case ctx.GrantedTier.Covers(required):
		parts = append(parts, fmt.Sprintf(
			"Verdict: within authorized boundaries, required tier '%s' (level %d) is covered by the user's consent tier '%s' (level %d).",
			required, tierLevel(required), ctx.GrantedTier, tierLevel(ctx.GrantedTier)))
	default:
		parts = append(parts, fmt.Sprintf(
			"Verdict: outside authorized boundaries. To receive this type of suggestion the user may adjust their consent tier to '%s' or higher.",
			required))
	}
	return strings.Join(parts, " ")
}

// tierLevel reports the 1-based intrusiveness level used in user-facing
// reasoning text.
func tierLevel(t id.ConsentTier) int {
	return int(t) + 1
}
