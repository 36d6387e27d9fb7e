package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpendLedgerDayBoundary(t *testing.T) {
	l := NewSpendLedger()
	day1 := time.Date(2026, 6, 1, 23, 0, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Hour)

	l.Add("u-1", 150, day1)
	l.Add("u-1", 50, day1)

	require.Equal(t, 200.0, l.SpentToday("u-1", day1))
	require.Equal(t, 0.0, l.SpentToday("u-1", day2))

	l.Add("u-1", 75, day2)
	require.Equal(t, 75.0, l.SpentToday("u-1", day2))
}

func TestSpendLedgerUsersAreIsolated(t *testing.T) {
	l := NewSpendLedger()
	now := time.Now()

	l.Add("u-1", 100, now)

	require.Equal(t, 100.0, l.SpentToday("u-1", now))
	require.Equal(t, 0.0, l.SpentToday("u-2", now))
}

func TestSpendLedgerDropsStaleDays(t *testing.T) {
	l := NewSpendLedger()
	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	l.Add("u-1", 100, start)
	l.Add("u-1", 10, start.AddDate(0, 0, 5))

	require.Equal(t, 0.0, l.SpentToday("u-1", start))
}
