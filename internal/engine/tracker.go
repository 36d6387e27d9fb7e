package engine

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"ticket-trader/internal/models"
)

// latencyEWMAAlpha weights recent attempts when smoothing latency and price
// variance.
const latencyEWMAAlpha = 0.2

// successRateTarget is the floor below which the tracker recommends raising
// the decision threshold for a platform.
const successRateTarget = 70.0

// CalibrationDelta reports how one recorded attempt moved a platform's
// statistics, with advisory recommendations for the decision layer.
type CalibrationDelta struct {
	Platform        string   `json:"platform"`
	SuccessRate     float64  `json:"success_rate"`
	AvgLatencyMs    float64  `json:"avg_latency_ms"`
	PriceVariance   float64  `json:"price_variance"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Tracker records attempt outcomes and maintains per-platform calibration
// state. It mutates nothing outside its own store and performs no purchasing.
type Tracker struct {
	mu    sync.Mutex
	state map[string]*models.PlatformCalibration
	store CalibrationStore
	// purchaseTimeout feeds the latency recommendation.
	purchaseTimeout time.Duration
}

// NewTracker builds a tracker, loading persisted calibration rows when a
// store is supplied.
func NewTracker(store CalibrationStore, purchaseTimeout time.Duration) *Tracker {
	t := &Tracker{
		state:           make(map[string]*models.PlatformCalibration),
		store:           store,
		purchaseTimeout: purchaseTimeout,
	}

	if store != nil {
		rows, err := store.LoadAll(context.Background())
		if err != nil {
			log.Printf("[tracker] loading calibration state failed: %v", err)
		}
		for i := range rows {
			row := rows[i]
			t.state[row.Platform] = &row
		}
	}

	return t
}

// Record folds one attempt into the platform's rolling statistics and
// returns the resulting delta.
func (t *Tracker) Record(attempt *models.PurchaseAttempt) CalibrationDelta {
	t.mu.Lock()
	defer t.mu.Unlock()

	row, ok := t.state[attempt.Platform]
	if !ok {
		row = &models.PlatformCalibration{Platform: attempt.Platform}
		t.state[attempt.Platform] = row
	}

	row.Attempts++
	if attempt.Outcome == models.OutcomeSuccess {
		row.Successes++
	}
	row.SuccessRate = float64(row.Successes) / float64(row.Attempts) * 100

	latencyMs := float64(attempt.Latency().Milliseconds())
	if row.AvgLatencyMs == 0 {
		row.AvgLatencyMs = latencyMs
	} else {
		row.AvgLatencyMs = latencyEWMAAlpha*latencyMs + (1-latencyEWMAAlpha)*row.AvgLatencyMs
	}

	// Price variance is the smoothed relative deviation of final vs
	// estimated price. Successful buys under the estimate pull it down.
	if attempt.Outcome == models.OutcomeSuccess && attempt.EstimatedPrice > 0 {
		deviation := math.Abs(attempt.FinalPrice-attempt.EstimatedPrice) / attempt.EstimatedPrice
		if row.PriceVariance == 0 {
			row.PriceVariance = deviation
		} else {
			row.PriceVariance = latencyEWMAAlpha*deviation + (1-latencyEWMAAlpha)*row.PriceVariance
		}
	}

	row.LastUpdated = time.Now()

	if t.store != nil {
		saved := *row
		if err := t.store.Save(context.Background(), &saved); err != nil {
			log.Printf("[tracker] persisting calibration for %s failed: %v", attempt.Platform, err)
		}
	}

	return CalibrationDelta{
		Platform:        row.Platform,
		SuccessRate:     row.SuccessRate,
		AvgLatencyMs:    row.AvgLatencyMs,
		PriceVariance:   row.PriceVariance,
		Recommendations: t.recommendations(row),
	}
}

func (t *Tracker) recommendations(row *models.PlatformCalibration) []string {
	var recs []string
	if row.Attempts >= 5 && row.SuccessRate < successRateTarget {
		recs = append(recs, "raise_score_threshold")
	}
	if t.purchaseTimeout > 0 && row.AvgLatencyMs > float64(t.purchaseTimeout.Milliseconds()) {
		recs = append(recs, "deprioritize_platform")
	}
	if row.PriceVariance > 0.15 {
		recs = append(recs, "widen_price_margin")
	}
	return recs
}

// Reliability implements ReliabilityView: success rate blended with a
// latency score.
func (t *Tracker) Reliability(platform string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	row, ok := t.state[platform]
	if !ok || row.Attempts == 0 {
		return 0, false
	}

	latencyScore := clamp(100-row.AvgLatencyMs/1000*5, 0, 100)
	return row.SuccessRate*0.7 + latencyScore*0.3, true
}

// Snapshot returns a copy of every platform's calibration row.
func (t *Tracker) Snapshot() []models.PlatformCalibration {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.PlatformCalibration, 0, len(t.state))
	for _, row := range t.state {
		out = append(out, *row)
	}
	return out
}
