package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "othello/pkg/domain"
)

func TestClassifyTier(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		want    id.ConsentTier
		matched bool
	}{
		{"empty text is pure information", "", id.TierPassive, false},
		{"whitespace only", "   ", id.TierPassive, false},
		{"informational phrasing", "Note that most people sleep better with a routine", id.TierPassive, true},
		{"recommendation phrasing", "Consider blocking out an hour for deep work", id.TierSuggestive, true},
		{"offer to act", "I can set up a reminder for this", id.TierActive, true},
		{"already acted", "I've already sent the calendar invite", id.TierAutonomous, true},
		{"no indicator defaults to suggestive", "morning pages every day", id.TierSuggestive, false},
		{"case insensitive", "TRY a standing desk", id.TierSuggestive, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyTier(tc.text)
			assert.Equal(t, tc.want, got.tier)
			assert.Equal(t, tc.matched, got.matched)
		})
	}
}

func TestClassifyTierPrefersMostIntrusiveMatch(t *testing.T) {
	// Matches both autonomous ("i've already") and suggestive ("consider").
	got := classifyTier("I've already drafted it, but consider reviewing first")
	assert.Equal(t, id.TierAutonomous, got.tier)
}

func TestClassificationReasoningNamesTrigger(t *testing.T) {
	got := classifyTier("I can set up a reminder")
	assert.Contains(t, got.reasoning(), "'i can'")

	unmatched := classifyTier("morning pages every day")
	assert.Contains(t, unmatched.reasoning(), "default heuristic")
}
