package services

import (
	"time"
)

// StreakResult classifies one login against the previous login date.
type StreakResult struct {
	Streak  int
	Broken  bool
	SameDay bool
}

// DayOf truncates t to its calendar day in UTC. All streak math runs on
// server-side UTC days so device clocks and client time zones cannot
// manipulate streaks.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AdvanceStreak decides whether a login continues, resets or repeats a
// streak. Pure function of the two dates and the current streak count.
func AdvanceStreak(lastLogin *time.Time, today time.Time, current int) StreakResult {
	day := DayOf(today)

	if lastLogin == nil {
		return StreakResult{Streak: 1}
	}

	last := DayOf(*lastLogin)
	switch days := int(day.Sub(last).Hours() / 24); {
	case days <= 0:
		return StreakResult{Streak: current, SameDay: true}
	case days == 1:
		return StreakResult{Streak: current + 1}
	default:
		return StreakResult{Streak: 1, Broken: true}
	}
}

// StreakTier maps a minimum streak length to a daily credit bonus.
type StreakTier struct {
	MinStreak int
	Credits   int64
}

// RewardCurve is the configurable streak-to-bonus table. Tiers must be
// sorted by MinStreak ascending; the highest tier at or below the streak
// wins, so the curve is naturally capped by its last tier.
type RewardCurve []StreakTier

// CreditsFor returns the bonus for a given streak length.
func (c RewardCurve) CreditsFor(streak int) int64 {
	var credits int64
	for _, tier := range c {
		if streak >= tier.MinStreak {
			credits = tier.Credits
		}
	}
	return credits
}

// DefaultRewardCurve is the product default: growing daily bonus, capped
// from day seven onward.
func DefaultRewardCurve() RewardCurve {
	return RewardCurve{
		{MinStreak: 1, Credits: 5},
		{MinStreak: 2, Credits: 10},
		{MinStreak: 3, Credits: 15},
		{MinStreak: 5, Credits: 20},
		{MinStreak: 7, Credits: 25},
	}
}
