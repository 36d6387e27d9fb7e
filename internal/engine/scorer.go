package engine

import (
	"fmt"
	"time"

	"ticket-trader/internal/models"
)

// Decision is the scorer's verdict on a listing for one user.
type Decision struct {
	Eligible bool     `json:"eligible"`
	Score    float64  `json:"score"`
	Action   string   `json:"action"`
	Reasons  []string `json:"reasons"`
}

// Decision actions, in descending order of conviction.
const (
	ActionStrongBuy = "strong_buy"
	ActionBuy       = "buy"
	ActionConsider  = "consider"
	ActionAvoid     = "avoid"
)

// Hard-gate reason codes.
const (
	ReasonPriceExceedsMax    = "price_exceeds_max"
	ReasonDailySpendExceeded = "daily_spend_exceeded"
)

// neutralReliability is used when a platform has no calibration history yet,
// so new platforms are not penalized as if they always failed.
const neutralReliability = 50.0

// ScoreProfile is a named weighting of the decision features. Weights sum
// to 1.
type ScoreProfile struct {
	Name         string
	PriceW       float64
	DemandW      float64
	TimingW      float64
	ReliabilityW float64
	QuantityW    float64
	// MinScore overrides the user's threshold when higher.
	MinScore float64
}

var profiles = map[string]ScoreProfile{
	"balanced": {
		Name:   "balanced",
		PriceW: 0.30, DemandW: 0.20, TimingW: 0.20, ReliabilityW: 0.20, QuantityW: 0.10,
	},
	"conservative": {
		Name:   "conservative",
		PriceW: 0.40, DemandW: 0.10, TimingW: 0.15, ReliabilityW: 0.25, QuantityW: 0.10,
		MinScore: 75,
	},
	"aggressive": {
		Name:   "aggressive",
		PriceW: 0.20, DemandW: 0.30, TimingW: 0.30, ReliabilityW: 0.10, QuantityW: 0.10,
	},
}

// ProfileByName returns the named scoring profile, falling back to balanced.
func ProfileByName(name string) ScoreProfile {
	if p, ok := profiles[name]; ok {
		return p
	}
	return profiles["balanced"]
}

// ReliabilityView exposes calibration-derived platform reliability to the
// scorer without coupling it to the tracker's internals.
type ReliabilityView interface {
	// Reliability returns a 0-100 score; ok is false when the platform has
	// no history.
	Reliability(platform string) (score float64, ok bool)
}

// Scorer is the pure decision function. It holds only its profile; every
// call gets all varying state as arguments, so Evaluate has no side effects.
type Scorer struct {
	profile ScoreProfile
}

func NewScorer(profile ScoreProfile) *Scorer {
	return &Scorer{profile: profile}
}

// Evaluate scores a listing against the user's preferences and the current
// calibration state. spentToday is the user's settled spend for the current
// day, consulted by the daily-spend gate.
func (s *Scorer) Evaluate(listing models.ListingSnapshot, prefs models.UserPreferences, calibration ReliabilityView, spentToday float64, now time.Time) Decision {
	// Hard gates come before any scoring.
	if prefs.MaxPrice > 0 && listing.Price > prefs.MaxPrice {
		return Decision{
			Eligible: false,
			Action:   ActionAvoid,
			Reasons:  []string{ReasonPriceExceedsMax},
		}
	}
	if prefs.MaxDailySpend > 0 && spentToday+listing.Price > prefs.MaxDailySpend {
		return Decision{
			Eligible: false,
			Action:   ActionAvoid,
			Reasons:  []string{ReasonDailySpendExceeded},
		}
	}

	var reasons []string

	priceScore := s.priceScore(listing, prefs)
	demandScore := clamp(listing.DemandScore*10, 0, 100)
	timingScore := timingScore(listing.EventTime, now)
	quantityScore := 100.0
	if listing.Quantity <= 0 {
		quantityScore = 0
		reasons = append(reasons, "no_quantity_available")
	}

	reliability, ok := calibration.Reliability(listing.Platform)
	if !ok {
		reliability = neutralReliability
		reasons = append(reasons, "no_calibration_history")
	} else if reliability < 40 {
		reasons = append(reasons, fmt.Sprintf("platform_reliability_low_%.0f", reliability))
	}

	score := priceScore*s.profile.PriceW +
		demandScore*s.profile.DemandW +
		timingScore*s.profile.TimingW +
		reliability*s.profile.ReliabilityW +
		quantityScore*s.profile.QuantityW

	if prefs.PrefersPlatform(listing.Platform) {
		score = clamp(score+5, 0, 100)
		reasons = append(reasons, "preferred_platform")
	}

	threshold := prefs.MinScore
	if s.profile.MinScore > threshold {
		threshold = s.profile.MinScore
	}

	eligible := score >= threshold
	if !eligible {
		reasons = append(reasons, fmt.Sprintf("score_below_threshold_%.0f", threshold))
	}

	return Decision{
		Eligible: eligible,
		Score:    round1(score),
		Action:   actionFor(score),
		Reasons:  reasons,
	}
}

// priceScore rewards listings well under the user's budget.
func (s *Scorer) priceScore(listing models.ListingSnapshot, prefs models.UserPreferences) float64 {
	if prefs.MaxPrice <= 0 {
		return neutralReliability
	}
	return clamp(100-(listing.Price/prefs.MaxPrice)*100, 0, 100)
}

// timingScore buckets urgency by days until the event: last minute is
// maximum urgency, months out is too early.
func timingScore(eventTime time.Time, now time.Time) float64 {
	if eventTime.IsZero() {
		return neutralReliability
	}
	days := eventTime.Sub(now).Hours() / 24
	switch {
	case days <= 1:
		return 100
	case days <= 7:
		return 90
	case days <= 30:
		return 80
	case days <= 90:
		return 60
	default:
		return 40
	}
}

func actionFor(score float64) string {
	switch {
	case score >= 85:
		return ActionStrongBuy
	case score >= 70:
		return ActionBuy
	case score >= 50:
		return ActionConsider
	default:
		return ActionAvoid
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
