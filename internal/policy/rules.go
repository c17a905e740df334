package policy

import (
	"strings"

	id "othello/pkg/domain"
)

// Rule identifiers recorded in ValidationResult.RuleIDs.
const (
	RuleInsufficientContext = "insufficient_context"
	RuleHarm                = "harm_check"
	RulePrivacy             = "privacy_check"
	RuleCommitment          = "commitment_magnitude"
	RuleManipulation        = "manipulation_pattern"
	RuleTierInsufficient    = "tier_insufficient"
)

// ruleEffect is what a matched rule demands of the final result. Effects
// compose: the strongest outcome wins, tier requirements only ever raise.
type ruleEffect struct {
	outcome  Outcome
	minTier  id.ConsentTier
	raiseBy  int
	terminal bool
	reason   string
}

// rule is one predicate plus its effect. Rules are data: evaluation order
// and composition live in the engine, so adding a rule never touches
// control flow.
type rule struct {
	id     string
	weight float64
	match  func(action ProposedAction, ctx UserContext) (ruleEffect, bool)
}

// defaultHarmDenyList holds intent categories that are never permitted
// regardless of tier. Matching any entry blocks the action outright.
var defaultHarmDenyList = []string{
	"self-harm",
	"suicide",
	"hurt yourself",
	"hurt them",
	"weapon",
	"violence",
	"revenge",
	"harass",
	"stalk",
	"threaten",
	"deceive them",
	"illegal",
}

// privacyCategories lists each privacy-sensitive category with the phrasing
// that indicates the action touches it. Ordered so evaluation stays
// deterministic when text matches more than one category. Overridable per
// user via UserContext.PrivacyOverrides.
var privacyCategories = []struct {
	name       string
	indicators []string
}{
	{"health", []string{
		"doctor", "medication", "therapy", "therapist", "diagnosis",
		"symptom", "medical", "mental health",
	}},
	{"finance", []string{
		"bank", "invest", "loan", "credit card", "payment",
		"transfer money", "your finances", "your salary",
	}},
	{"third_party", []string{
		"tell them", "message them", "contact them", "email them",
		"reach out to them", "on their behalf", "share with",
	}},
}

// commitmentKeywords indicate an irreversible or costly external effect.
var commitmentKeywords = []string{
	"send", "pay", "purchase", "buy", "order", "book", "subscribe",
	"sign up", "commit", "cancel the",
}

// manipulationPatterns are pressure and urgency framings. A match flags the
// action without changing its required tier.
var manipulationPatterns = []string{
	"act now",
	"last chance",
	"limited time",
	"don't miss",
	"spots left",
	"expires soon",
	"hurry",
	"before it's too late",
	"once in a lifetime",
	"only today",
	"everyone else is",
}

func defaultRules(harmDenyList []string) []rule {
	return []rule{
		{
			id:     RuleHarm,
			weight: 1.0,
			match: func(action ProposedAction, _ UserContext) (ruleEffect, bool) {
				text := actionText(action)
				for _, category := range harmDenyList {
					if strings.Contains(text, category) {
						return ruleEffect{
							outcome:  OutcomeBlocked,
							minTier:  id.TierAutonomous,
							terminal: true,
							reason: "Harm check: the action matches the denied intent " +
								"category '" + category + "' and cannot be suggested at any consent tier.",
						}, true
					}
				}
				return ruleEffect{}, false
			},
		},
		{
			id:     RulePrivacy,
			weight: 0.8,
			match: func(action ProposedAction, ctx UserContext) (ruleEffect, bool) {
				text := actionText(action)
				for _, category := range privacyCategories {
					if ctx.PrivacyOverrides[category.name] {
						continue
					}
					for _, indicator := range category.indicators {
						if strings.Contains(text, indicator) {
							return ruleEffect{
								outcome: OutcomeFlagged,
								raiseBy: 1,
								reason: "Privacy check: the action touches the " +
									"privacy-sensitive category '" + category.name + "' ('" + indicator +
									"') without an explicit user-granted override; the required " +
									"tier is raised by one level.",
							}, true
						}
					}
				}
				return ruleEffect{}, false
			},
		},
		{
			id:     RuleCommitment,
			weight: 0.6,
			match: func(action ProposedAction, _ UserContext) (ruleEffect, bool) {
				committing := action.Type == ActionScheduling || action.Type == ActionCommunication
				matched := ""
				if !committing {
					text := actionText(action)
					for _, keyword := range commitmentKeywords {
						if strings.Contains(text, keyword) {
							committing = true
							matched = keyword
							break
						}
					}
				}
				if !committing {
					return ruleEffect{}, false
				}
				reason := "Commitment check: the action implies an external effect that " +
					"is costly or hard to reverse"
				if matched != "" {
					reason += " ('" + matched + "')"
				}
				reason += "; it requires at least the active consent tier."
				return ruleEffect{minTier: id.TierActive, reason: reason}, true
			},
		},
		{
			id:     RuleManipulation,
			weight: 0.7,
			match: func(action ProposedAction, _ UserContext) (ruleEffect, bool) {
				text := actionText(action)
				for _, pattern := range manipulationPatterns {
					if strings.Contains(text, pattern) {
						return ruleEffect{
							outcome: OutcomeFlagged,
							reason: "Manipulation check: the framing matches the pressure " +
								"pattern '" + pattern + "'; the suggestion is flagged so the " +
								"user sees the detected pattern alongside it.",
						}, true
					}
				}
				return ruleEffect{}, false
			},
		},
	}
}

// actionText is the searchable surface of an action: its description plus
// every payload value, lowercased.
func actionText(action ProposedAction) string {
	var b strings.Builder
	b.WriteString(action.Description)
	for _, value := range action.Payload {
		b.WriteString(" ")
		b.WriteString(value)
	}
	return strings.ToLower(b.String())
}
