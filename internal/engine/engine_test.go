package engine

import (
	"context"
	"testing"
	"time"

	"ticket-trader/internal/config"
	"ticket-trader/internal/models"
	"ticket-trader/internal/notify"
	"ticket-trader/internal/services/platforms"

	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		EngineEnabled:          true,
		MaxConcurrentPurchases: 2,
		PurchaseTimeout:        time.Second,
		QuoteTimeout:           time.Second,
		RetryAttemptCap:        3,
		RetryBaseDelay:         time.Millisecond,
		RetryMaxDelay:          5 * time.Millisecond,
		DecisionAlgorithm:      "balanced",
	}
}

func testEngine(t *testing.T, cfg *config.Config, sink notify.Sink, adapters ...platforms.Adapter) (*Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	prefs := StaticPreferences{Prefs: models.UserPreferences{
		MinScore:      0,
		MaxPrice:      500,
		MaxDailySpend: 1000,
	}}
	eng := New(cfg, store, nil, prefs, platforms.NewRegistryWith(adapters...), sink)
	return eng, store
}

// waitTerminal polls until the intent reaches a terminal status.
func waitTerminal(t *testing.T, eng *Engine, intentID string) *models.PurchaseIntent {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		intent, err := eng.GetIntent(context.Background(), intentID)
		require.NoError(t, err)
		if models.TerminalStatus(intent.Status) {
			return intent
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("intent %s never settled", intentID)
	return nil
}

func TestProcessNextCompletesPurchase(t *testing.T) {
	stub := platforms.NewStub("stubhub")
	stub.AddListing("L-1", 150, 20, 4)

	sink := &recordingSink{}
	eng, _ := testEngine(t, testConfig(), sink, stub)
	ctx := context.Background()

	intent, err := eng.Enqueue(ctx, enqueueReq("L-1"))
	require.NoError(t, err)

	admitted, err := eng.ProcessNext(ctx)
	require.NoError(t, err)
	require.True(t, admitted)

	settled := waitTerminal(t, eng, intent.ID)
	require.Equal(t, models.StatusCompleted, settled.Status)
	require.Equal(t, 150.0, settled.FinalPrice)
	require.Equal(t, 20.0, settled.FinalFees)

	attempts, err := eng.Attempts(ctx, intent.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)

	// Calibration picked up the attempt.
	snap := eng.CalibrationSnapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "stubhub", snap[0].Platform)
	require.Equal(t, int64(1), snap[0].Successes)
}

func TestProcessNextEmptyQueue(t *testing.T) {
	eng, _ := testEngine(t, testConfig(), nil)

	admitted, err := eng.ProcessNext(context.Background())
	require.NoError(t, err)
	require.False(t, admitted)
	require.Zero(t, eng.InFlight())
}

func TestProcessNextRespectsGate(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentPurchases = 1

	stub := platforms.NewStub("stubhub")
	stub.AddListing("L-a", 100, 10, 2)
	stub.AddListing("L-b", 100, 10, 2)
	stub.Delay = 100 * time.Millisecond

	eng, _ := testEngine(t, cfg, nil, stub)
	ctx := context.Background()

	_, err := eng.Enqueue(ctx, enqueueReq("L-a"))
	require.NoError(t, err)
	second, err := eng.Enqueue(ctx, enqueueReq("L-b"))
	require.NoError(t, err)

	admitted, err := eng.ProcessNext(ctx)
	require.NoError(t, err)
	require.True(t, admitted)

	// Slot is taken; the second intent waits its turn without error.
	admitted, err = eng.ProcessNext(ctx)
	require.NoError(t, err)
	require.False(t, admitted)
	require.Equal(t, 1, eng.InFlight())

	// Once the first settles the gate frees up.
	deadline := time.Now().Add(5 * time.Second)
	for eng.InFlight() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Zero(t, eng.InFlight())

	admitted, err = eng.ProcessNext(ctx)
	require.NoError(t, err)
	require.True(t, admitted)
	waitTerminal(t, eng, second.ID)
}

func TestEngineDisabledRejectsWork(t *testing.T) {
	cfg := testConfig()
	cfg.EngineEnabled = false
	eng, _ := testEngine(t, cfg, nil)
	ctx := context.Background()

	_, err := eng.Enqueue(ctx, enqueueReq("L-off"))
	require.ErrorIs(t, err, ErrEngineDisabled)

	admitted, err := eng.ProcessNext(ctx)
	require.NoError(t, err)
	require.False(t, admitted)
}

func TestCompletedPurchaseCountsAgainstDailySpend(t *testing.T) {
	stub := platforms.NewStub("stubhub")
	stub.AddListing("L-spend", 400, 50, 2)

	prefs := StaticPreferences{Prefs: models.UserPreferences{
		MaxPrice:      800,
		MaxDailySpend: 1000,
	}}
	eng := New(testConfig(), NewMemoryStore(), nil, prefs, platforms.NewRegistryWith(stub), nil)
	ctx := context.Background()

	req := enqueueReq("L-spend")
	req.MaxPrice = 500
	intent, err := eng.Enqueue(ctx, req)
	require.NoError(t, err)

	_, err = eng.ProcessNext(ctx)
	require.NoError(t, err)
	waitTerminal(t, eng, intent.ID)

	// 450 settled against a 1000/day cap leaves no room for another 600.
	listing := models.ListingSnapshot{
		ListingID:   "L-next",
		Platform:    "stubhub",
		Price:       600,
		Quantity:    2,
		EventTime:   time.Now().Add(48 * time.Hour),
		DemandScore: 7,
	}
	decision, err := eng.EvaluateDecision(ctx, listing, "u-1")
	require.NoError(t, err)
	require.False(t, decision.Eligible)
	require.Contains(t, decision.Reasons, ReasonDailySpendExceeded)

	// A cheaper listing still fits.
	listing.Price = 300
	decision, err = eng.EvaluateDecision(ctx, listing, "u-1")
	require.NoError(t, err)
	require.NotContains(t, decision.Reasons, ReasonDailySpendExceeded)
}

func TestProcessNextSweepsExpiredIntents(t *testing.T) {
	sink := &recordingSink{}
	eng, store := testEngine(t, testConfig(), sink)
	ctx := context.Background()

	req := enqueueReq("L-exp")
	req.ExpiresAt = time.Now().Add(10 * time.Millisecond)
	intent, err := eng.Enqueue(ctx, req)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	admitted, err := eng.ProcessNext(ctx)
	require.NoError(t, err)
	require.False(t, admitted)

	got, err := store.Get(ctx, intent.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusExpired, got.Status)
	require.Contains(t, sink.typesSeen(), notify.EventExpired)
}

func TestCancelledIntentEmitsSingleEvent(t *testing.T) {
	sink := &recordingSink{}
	eng, _ := testEngine(t, testConfig(), sink)
	ctx := context.Background()

	intent, err := eng.Enqueue(ctx, enqueueReq("L-cx-ev"))
	require.NoError(t, err)

	admitted, err := eng.queue.Admit(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, intent.ID, admitted.ID)

	// Cancel lands while Processing; the executor goroutine then settles
	// the same intent. Only the cancel path may emit the terminal event.
	require.NoError(t, eng.Cancel(ctx, intent.ID))
	eng.settle(ctx, intent.ID)

	cancels := 0
	for _, typ := range sink.typesSeen() {
		if typ == notify.EventCancelled {
			cancels++
		}
	}
	require.Equal(t, 1, cancels)
}

func TestEngineEmitsLifecycleEvents(t *testing.T) {
	stub := platforms.NewStub("stubhub")
	stub.AddListing("L-ev", 150, 20, 4)

	sink := &recordingSink{}
	eng, _ := testEngine(t, testConfig(), sink, stub)
	ctx := context.Background()

	intent, err := eng.Enqueue(ctx, enqueueReq("L-ev"))
	require.NoError(t, err)
	_, err = eng.ProcessNext(ctx)
	require.NoError(t, err)
	waitTerminal(t, eng, intent.ID)

	// Give the settle goroutine a beat to emit the completion event.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if contains(sink.typesSeen(), notify.EventCompleted) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	types := sink.typesSeen()
	require.Contains(t, types, notify.EventEnqueued)
	require.Contains(t, types, notify.EventAdmitted)
	require.Contains(t, types, notify.EventAttempt)
	require.Contains(t, types, notify.EventCompleted)
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
