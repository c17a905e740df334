package domain

import (
	dErrors "othello/pkg/domain-errors"
)

// ConsentTier is the ordered authorization level a user grants per scope.
// The ordering is load-bearing: an action is authorized when its required
// tier is less than or equal to the tier the user granted.
type ConsentTier int

const (
	TierPassive ConsentTier = iota
	TierSuggestive
	TierActive
	TierAutonomous
)

// DefaultTier applies when a user has no tier recorded for any scope.
const DefaultTier = TierPassive

var tierNames = map[ConsentTier]string{
	TierPassive:    "passive",
	TierSuggestive: "suggestive",
	TierActive:     "active",
	TierAutonomous: "autonomous",
}

var tiersByName = map[string]ConsentTier{
	"passive":    TierPassive,
	"suggestive": TierSuggestive,
	"active":     TierActive,
	"autonomous": TierAutonomous,
}

// AllTiers lists the valid tiers in ascending order of intrusiveness.
func AllTiers() []ConsentTier {
	return []ConsentTier{TierPassive, TierSuggestive, TierActive, TierAutonomous}
}

func (t ConsentTier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsValid reports whether the tier is one of the four defined levels.
func (t ConsentTier) IsValid() bool {
	_, ok := tierNames[t]
	return ok
}

// Covers reports whether a grant of tier t authorizes an action requiring
// the given tier. This comparison is the core authorization check.
func (t ConsentTier) Covers(required ConsentTier) bool {
	return required <= t
}

// Raise returns the tier one level above t, capped at Autonomous.
func (t ConsentTier) Raise() ConsentTier {
	if t >= TierAutonomous {
		return TierAutonomous
	}
	return t + 1
}

// Max returns the higher of two tiers.
func (t ConsentTier) Max(other ConsentTier) ConsentTier {
	if other > t {
		return other
	}
	return t
}

// ParseTier validates and parses a tier string.
//
// Usage: call at trust boundaries for external input.
func ParseTier(s string) (ConsentTier, error) {
	if tier, ok := tiersByName[s]; ok {
		return tier, nil
	}
	return 0, dErrors.New(dErrors.CodeInvalidInput, "unknown consent tier: must be passive, suggestive, active, or autonomous")
}
