package engine

import (
	"sync"
	"time"
)

// SpendLedger tracks settled purchase spend per user per calendar day (UTC),
// feeding the scorer's daily-spend gate. Entries older than two days are
// dropped lazily.
type SpendLedger struct {
	mu    sync.Mutex
	spend map[string]map[string]float64 // user -> day -> amount
}

func NewSpendLedger() *SpendLedger {
	return &SpendLedger{spend: make(map[string]map[string]float64)}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Add records a settled purchase amount for the user.
func (l *SpendLedger) Add(userID string, amount float64, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	days, ok := l.spend[userID]
	if !ok {
		days = make(map[string]float64)
		l.spend[userID] = days
	}
	days[dayKey(at)] += amount

	cutoff := dayKey(at.AddDate(0, 0, -2))
	for day := range days {
		if day < cutoff {
			delete(days, day)
		}
	}
}

// SpentToday returns the user's settled spend for the day containing now.
func (l *SpendLedger) SpentToday(userID string, now time.Time) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.spend[userID][dayKey(now)]
}
