package policy

import (
	"strings"

	id "othello/pkg/domain"
)

// tierKeywords maps each tier to the phrasing patterns that indicate it.
// Checked from most to least intrusive so text matching several tiers lands
// on the most restrictive one.
var tierKeywords = []struct {
	tier        id.ConsentTier
	keywords    []string
	description string
}{
	{
		tier: id.TierAutonomous,
		keywords: []string{
			"i've already", "i have already", "done for you", "automatically",
			"i went ahead", "on your behalf", "i've scheduled", "i've sent",
			"i've booked", "i've ordered", "executed", "completed for you",
		},
		description: "actions taken or to be taken autonomously by the system",
	},
	{
		tier: id.TierActive,
		keywords: []string{
			"i can", "i'll", "i will", "let me", "shall i", "want me to",
			"i could", "would you like me to", "i'm able to", "allow me to",
			"i'll handle", "i'll set up", "i'll arrange", "i'll create",
			"schedule for you", "send for you", "book for you",
		},
		description: "system offers to perform actions on behalf of the user",
	},
	{
		tier: id.TierSuggestive,
		keywords: []string{
			"try", "consider", "you should", "you could", "you might want to",
			"recommend", "suggest", "it would help to", "a good approach",
			"one strategy", "you may want", "it's worth", "think about",
			"have you tried", "why not", "how about", "what if you",
			"an option is", "you can", "a tip",
		},
		description: "actionable recommendations requiring user initiative",
	},
	{
		tier: id.TierPassive,
		keywords: []string{
			"information", "note that", "keep in mind", "be aware",
			"for your reference", "fyi", "it's common", "research shows",
			"studies suggest", "generally", "typically", "often",
			"some people find", "it's worth noting", "interesting fact",
		},
		description: "information-only observations with no call to action",
	},
}

// classification is the outcome of heuristic tier analysis of one description.
type classification struct {
	tier        id.ConsentTier
	keyword     string
	description string
	matched     bool
}

// classifyTier assigns a consent tier to a description using keyword
// heuristics. Empty text is pure information (passive); text with no clear
// indicator defaults to suggestive, a safe middle ground that requires some
// consent without over-restricting.
func classifyTier(text string) classification {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return classification{tier: id.TierPassive}
	}

	for _, entry := range tierKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				return classification{
					tier:        entry.tier,
					keyword:     keyword,
					description: entry.description,
					matched:     true,
				}
			}
		}
	}
	return classification{tier: id.TierSuggestive}
}

// tierReasoning holds the per-tier explanation used in every result.
var tierReasoning = map[id.ConsentTier]string{
	id.TierPassive: "This suggestion provides informational context only and does not " +
		"prompt any specific action. It respects user autonomy by presenting " +
		"knowledge without directing behavior.",
	id.TierSuggestive: "This suggestion recommends a specific action but leaves execution " +
		"entirely to the user. It respects user agency by offering guidance " +
		"without assuming permission to act.",
	id.TierActive: "This suggestion offers for the system to perform an action on the " +
		"user's behalf. It requires explicit user consent before execution as " +
		"it involves the system taking a direct role.",
	id.TierAutonomous: "This suggestion describes an action the system would take or has " +
		"taken independently. This represents the highest level of intrusiveness " +
		"and requires pre-authorized autonomous consent.",
}

func (c classification) reasoning() string {
	base := tierReasoning[c.tier]
	if c.matched {
		return base + " Classification trigger: detected '" + c.keyword +
			"' pattern indicating " + c.description + "."
	}
	return base + " Classification based on default heuristic: no strong " +
		"tier-specific indicators detected."
}
