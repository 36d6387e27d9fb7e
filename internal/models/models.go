package models

import (
	"time"
)

// Intent priority levels, ordered from least to most urgent.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var priorityRank = map[string]int{
	PriorityLow:    0,
	PriorityNormal: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

// PriorityRank returns the admission rank for a priority name.
// Unknown priorities rank as normal.
func PriorityRank(priority string) int {
	if rank, ok := priorityRank[priority]; ok {
		return rank
	}
	return priorityRank[PriorityNormal]
}

// ValidPriority reports whether the given priority name is recognized.
func ValidPriority(priority string) bool {
	_, ok := priorityRank[priority]
	return ok
}

// PurchaseIntent statuses. Queued and Processing are the only active states;
// everything else is terminal and immutable.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
	StatusExpired    = "expired"
)

// TerminalStatus reports whether a status is terminal.
func TerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// PurchaseAttempt outcomes.
const (
	OutcomeSuccess       = "success"
	OutcomeTransientFail = "transient_fail"
	OutcomeFatalFail     = "fatal_fail"
	OutcomeTimeout       = "timeout"
)

// ListingSnapshot is an immutable point-in-time view of a resale listing on
// one platform, produced by the scraping pipeline.
type ListingSnapshot struct {
	ListingID  string    `json:"listing_id"`
	Platform   string    `json:"platform"`
	EventTitle string    `json:"event_title"`
	Price      float64   `json:"price"`
	Quantity   int       `json:"quantity"`
	EventTime  time.Time `json:"event_time"`
	// DemandScore is the scraper's demand indicator on a 0-10 scale.
	DemandScore float64   `json:"demand_score"`
	CapturedAt  time.Time `json:"captured_at"`
}

// PurchaseIntent is a queued decision to attempt purchasing a listing.
// At most one non-terminal intent may exist per listing at any time.
type PurchaseIntent struct {
	ID             string  `json:"id" gorm:"primaryKey;size:36"`
	ListingID      string  `json:"listing_id" gorm:"index;size:64;not null"`
	UserID         string  `json:"user_id" gorm:"index;size:64;not null"`
	Platform       string  `json:"platform" gorm:"size:32"`
	Quantity       int     `json:"quantity"`
	MaxPrice       float64 `json:"max_price"`
	EstimatedPrice float64 `json:"estimated_price"`
	Priority       string  `json:"priority" gorm:"size:16;default:'normal'"`
	Status         string  `json:"status" gorm:"index;size:16;default:'queued'"`
	AutoRetry      bool    `json:"auto_retry"`
	AttemptCount   int     `json:"attempt_count"`
	// Lineage counts explicit re-submissions of a previously failed intent
	// for the same listing. A fresh intent has lineage 0.
	Lineage       int        `json:"lineage"`
	FailureReason string     `json:"failure_reason,omitempty" gorm:"size:255"`
	FinalPrice    float64    `json:"final_price,omitempty"`
	FinalFees     float64    `json:"final_fees,omitempty"`
	ScheduledFor  time.Time  `json:"scheduled_for"`
	ExpiresAt     time.Time  `json:"expires_at"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Active reports whether the intent is in a non-terminal state.
func (i *PurchaseIntent) Active() bool {
	return !TerminalStatus(i.Status)
}

// Due reports whether the intent is eligible for admission at the given time.
func (i *PurchaseIntent) Due(now time.Time) bool {
	return i.Status == StatusQueued && !i.ScheduledFor.After(now) && i.ExpiresAt.After(now)
}

// PurchaseAttempt records one execution of an intent against a platform.
// An intent accumulates one attempt per try; attempts never outlive it.
type PurchaseAttempt struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	IntentID       string    `json:"intent_id" gorm:"index;size:36;not null"`
	ListingID      string    `json:"listing_id" gorm:"size:64"`
	Platform       string    `json:"platform" gorm:"index;size:32"`
	AttemptNumber  int       `json:"attempt_number"`
	Outcome        string    `json:"outcome" gorm:"size:16"`
	Reason         string    `json:"reason" gorm:"size:255"`
	EstimatedPrice float64   `json:"estimated_price"`
	FinalPrice     float64   `json:"final_price"`
	Fees           float64   `json:"fees"`
	Confirmation   string    `json:"confirmation,omitempty" gorm:"size:64"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
}

// Latency returns the wall-clock duration of the attempt.
func (a *PurchaseAttempt) Latency() time.Duration {
	return a.EndedAt.Sub(a.StartedAt)
}

// PlatformQuote is a platform's price/availability answer for an event query.
// Quotes are ephemeral; the engine never persists them.
type PlatformQuote struct {
	Platform  string    `json:"platform"`
	ListingID string    `json:"listing_id,omitempty"`
	Price     float64   `json:"price"`
	Fees      float64   `json:"fees"`
	Quantity  int       `json:"quantity"`
	FetchedAt time.Time `json:"fetched_at"`
	Err       string    `json:"error,omitempty"`
}

// EffectiveTotal is the ranking key for quotes: unit price plus fees.
func (q PlatformQuote) EffectiveTotal() float64 {
	return q.Price + q.Fees
}

// PlatformCalibration is the persisted rolling statistics row for one
// platform, maintained by the outcome tracker.
type PlatformCalibration struct {
	Platform      string    `json:"platform" gorm:"primaryKey;size:32"`
	Attempts      int64     `json:"attempts"`
	Successes     int64     `json:"successes"`
	SuccessRate   float64   `json:"success_rate"`
	AvgLatencyMs  float64   `json:"avg_latency_ms"`
	PriceVariance float64   `json:"price_variance"`
	LastUpdated   time.Time `json:"last_updated"`
}

// UserPreferences holds the per-user purchase limits consulted by the
// decision scorer. Supplied by the surrounding system.
type UserPreferences struct {
	UserID             string   `json:"user_id"`
	MinScore           float64  `json:"min_score"`
	MaxPrice           float64  `json:"max_price"`
	MaxDailySpend      float64  `json:"max_daily_spend"`
	PreferredPlatforms []string `json:"preferred_platforms"`
}

// PrefersPlatform reports whether the platform is in the user's preferred set.
func (p UserPreferences) PrefersPlatform(platform string) bool {
	for _, name := range p.PreferredPlatforms {
		if name == platform {
			return true
		}
	}
	return false
}
