package engine

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"ticket-trader/internal/models"
	"ticket-trader/internal/services/platforms"
)

// ComparisonResult ranks quotes across platforms. An empty quote set with
// every platform failed is a valid answer, not a fault.
type ComparisonResult struct {
	Quotes          []models.PlatformQuote `json:"quotes"`
	FailedPlatforms []string               `json:"failed_platforms"`
	GeneratedAt     time.Time              `json:"generated_at"`
}

// Best returns the cheapest quote by effective total, or nil when there are
// no quotes.
func (r ComparisonResult) Best() *models.PlatformQuote {
	if len(r.Quotes) == 0 {
		return nil
	}
	return &r.Quotes[0]
}

// Comparator fans a quote request out to platform adapters concurrently.
// One slow or broken platform never blocks or fails the others.
type Comparator struct {
	timeout time.Duration
}

func NewComparator(timeout time.Duration) *Comparator {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Comparator{timeout: timeout}
}

// Compare queries every adapter with its own bounded timeout and merges the
// answers, ranked ascending by price plus fees.
func (c *Comparator) Compare(ctx context.Context, criteria platforms.EventCriteria, adapters []platforms.Adapter) ComparisonResult {
	type answer struct {
		platform string
		quotes   []models.PlatformQuote
		err      error
	}

	answers := make(chan answer, len(adapters))
	var wg sync.WaitGroup

	for _, adapter := range adapters {
		wg.Add(1)
		go func(a platforms.Adapter) {
			defer wg.Done()

			quoteCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			quotes, err := a.Quote(quoteCtx, criteria)
			answers <- answer{platform: a.Name(), quotes: quotes, err: err}
		}(adapter)
	}

	wg.Wait()
	close(answers)

	result := ComparisonResult{GeneratedAt: time.Now()}
	for ans := range answers {
		if ans.err != nil {
			log.Printf("[comparator] %s quote failed: %v", ans.platform, ans.err)
			result.FailedPlatforms = append(result.FailedPlatforms, ans.platform)
			continue
		}
		result.Quotes = append(result.Quotes, ans.quotes...)
	}

	sort.SliceStable(result.Quotes, func(i, j int) bool {
		return result.Quotes[i].EffectiveTotal() < result.Quotes[j].EffectiveTotal()
	})
	sort.Strings(result.FailedPlatforms)

	return result
}
