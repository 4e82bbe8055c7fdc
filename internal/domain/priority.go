package domain

import (
	"math"
	"time"
)

// Tier buckets a priority score.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

const (
	highTierThreshold   = 72
	mediumTierThreshold = 42

	voteWeight  = 6
	maxVoteTerm = 40

	cleanBonus      = 6
	explicitPenalty = -10
	energyStep      = 4

	msPerDay = 24 * 60 * 60 * 1000
)

// PriorityInputs are the ranking signals of one entry.
type PriorityInputs struct {
	VoteCount  int
	Roles      []Role
	EventDate  *string
	Confidence ContentConfidence
	Moment     DanceMoment
	Energy     int
}

// TierFor buckets score.
func TierFor(score int) Tier {
	switch {
	case score >= highTierThreshold:
		return TierHigh
	case score >= mediumTierThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// ComputePriority returns the 0..100 priority score at time now.
func ComputePriority(in PriorityInputs, now time.Time) int {
	voteScore := Clamp(max(1, in.VoteCount)*voteWeight, 0, maxVoteTerm)

	roleScore := RoleGuest.Weight()
	for _, r := range in.Roles {
		roleScore = max(roleScore, r.Weight())
	}

	momentScore := in.Moment.Weight()
	if momentScore == 0 {
		momentScore = MomentAnytime.Weight()
	}

	energy := Clamp(in.Energy, MinEnergyLevel, MaxEnergyLevel)
	energyScore := (energy - DefaultEnergyLevel) * energyStep

	total := voteScore + roleScore + eventScore(in.EventDate, now) +
		confidenceScore(in.Confidence) + momentScore + energyScore

	return Clamp(total, 0, 100)
}

func confidenceScore(c ContentConfidence) int {
	switch c {
	case ConfidenceClean:
		return cleanBonus
	case ConfidenceExplicit:
		return explicitPenalty
	default:
		return 0
	}
}

// eventScore rewards events that are close. Days are counted from now to
// midnight UTC of the event date and rounded up.
func eventScore(date *string, now time.Time) int {
	if date == nil {
		return 0
	}
	eventAt, err := time.Parse(DateLayout, *date)
	if err != nil {
		return 0
	}

	days := int(math.Ceil(float64(eventAt.Sub(now).Milliseconds()) / msPerDay))

	switch {
	case days < 0:
		return 0
	case days <= 1:
		return 22
	case days <= 3:
		return 17
	case days <= 7:
		return 12
	case days <= 14:
		return 8
	case days <= 30:
		return 4
	default:
		return 0
	}
}
