package engine

import (
	"context"
	"log"
	"time"

	"ticket-trader/internal/config"
	"ticket-trader/internal/models"
	"ticket-trader/internal/notify"
	"ticket-trader/internal/services/platforms"
)

// Engine wires the decision scorer, price comparator, purchase queue,
// concurrency gate, executor and outcome tracker into the exposed operation
// set. One Engine serves the whole process.
type Engine struct {
	cfg        *config.Config
	store      IntentStore
	prefs      PreferenceStore
	registry   *platforms.Registry
	scorer     *Scorer
	comparator *Comparator
	queue      *Queue
	gate       *Gate
	executor   *Executor
	tracker    *Tracker
	ledger     *SpendLedger
	sink       notify.Sink
	now        func() time.Time
}

// New assembles an engine. calibStore and sink may be nil; prefs must not.
func New(cfg *config.Config, store IntentStore, calibStore CalibrationStore, prefs PreferenceStore, registry *platforms.Registry, sink notify.Sink) *Engine {
	if sink == nil {
		sink = notify.LogSink{}
	}

	tracker := NewTracker(calibStore, cfg.PurchaseTimeout)

	e := &Engine{
		cfg:        cfg,
		store:      store,
		prefs:      prefs,
		registry:   registry,
		scorer:     NewScorer(ProfileByName(cfg.DecisionAlgorithm)),
		comparator: NewComparator(cfg.QuoteTimeout),
		queue:      NewQueue(store, sink),
		gate:       NewGate(cfg.MaxConcurrentPurchases),
		tracker:    tracker,
		ledger:     NewSpendLedger(),
		sink:       sink,
		now:        time.Now,
	}

	e.executor = NewExecutor(store, registry, ExecutorConfig{
		PurchaseTimeout: cfg.PurchaseTimeout,
		RetryAttemptCap: cfg.RetryAttemptCap,
		Backoff: BackoffConfig{
			BaseDelay: cfg.RetryBaseDelay,
			MaxDelay:  cfg.RetryMaxDelay,
		},
	}, func(ctx context.Context, attempt *models.PurchaseAttempt) {
		e.RecordOutcome(ctx, attempt)
	})

	return e
}

// EvaluateDecision scores a listing for a user. Pure with respect to engine
// state: no queue mutation, no network calls.
func (e *Engine) EvaluateDecision(ctx context.Context, listing models.ListingSnapshot, userID string) (Decision, error) {
	prefs, err := e.prefs.Get(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	spent := e.ledger.SpentToday(userID, e.now())
	return e.scorer.Evaluate(listing, prefs, e.tracker, spent, e.now()), nil
}

// CompareQuotes fans out to the requested platforms (all enabled ones when
// names is empty) and ranks the answers.
func (e *Engine) CompareQuotes(ctx context.Context, criteria platforms.EventCriteria, names []string) ComparisonResult {
	return e.comparator.Compare(ctx, criteria, e.registry.Subset(names))
}

// Enqueue creates a purchase intent. Rejected with ErrEngineDisabled while
// the kill switch is off.
func (e *Engine) Enqueue(ctx context.Context, req EnqueueRequest) (*models.PurchaseIntent, error) {
	if !e.cfg.EngineEnabled {
		return nil, ErrEngineDisabled
	}
	return e.queue.Enqueue(ctx, req)
}

// Cancel cancels an intent per the cooperative cancellation rules.
func (e *Engine) Cancel(ctx context.Context, intentID string) error {
	return e.queue.Cancel(ctx, intentID)
}

// GetIntent returns an intent by id.
func (e *Engine) GetIntent(ctx context.Context, intentID string) (*models.PurchaseIntent, error) {
	return e.store.Get(ctx, intentID)
}

// Attempts returns an intent's recorded attempts.
func (e *Engine) Attempts(ctx context.Context, intentID string) ([]models.PurchaseAttempt, error) {
	return e.store.AttemptsByIntent(ctx, intentID)
}

// ProcessNext admits and executes the next due intent if a gate slot is
// free. It returns true when an intent was admitted. A full gate or an empty
// queue both return (false, nil).
func (e *Engine) ProcessNext(ctx context.Context) (bool, error) {
	if !e.cfg.EngineEnabled {
		return false, nil
	}

	now := e.now()
	if err := e.queue.ExpireOverdue(ctx, now); err != nil {
		log.Printf("[engine] expiry sweep failed: %v", err)
	}

	if !e.gate.TryAcquire() {
		return false, nil
	}

	intent, err := e.queue.Admit(ctx, now)
	if err != nil || intent == nil {
		e.gate.Release()
		return false, err
	}

	// The execution outlives the caller's request context; only engine
	// shutdown or the purchase timeout should cut it short.
	execCtx := context.WithoutCancel(ctx)

	go func() {
		defer e.gate.Release()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[engine] executor panic on intent %s: %v", intent.ID, r)
				_, _ = e.store.Transition(context.Background(), intent.ID,
					models.StatusProcessing, models.StatusFailed,
					func(i *models.PurchaseIntent) error {
						i.FailureReason = "internal executor fault"
						return nil
					})
			}
		}()

		e.executor.Execute(execCtx, intent)
		e.settle(execCtx, intent.ID)
	}()

	return true, nil
}

// settle reads the intent's terminal state, updates the spend ledger and
// emits the terminal notification.
func (e *Engine) settle(ctx context.Context, intentID string) {
	intent, err := e.store.Get(ctx, intentID)
	if err != nil {
		log.Printf("[engine] settling intent %s: %v", intentID, err)
		return
	}

	event := notify.Event{
		IntentID:  intent.ID,
		ListingID: intent.ListingID,
		UserID:    intent.UserID,
		Platform:  intent.Platform,
		Status:    intent.Status,
		Reason:    intent.FailureReason,
		At:        e.now(),
	}

	switch intent.Status {
	case models.StatusCompleted:
		event.Type = notify.EventCompleted
		event.Amount = intent.FinalPrice + intent.FinalFees
		e.ledger.Add(intent.UserID, event.Amount, e.now())
	case models.StatusFailed:
		event.Type = notify.EventFailed
	case models.StatusCancelled:
		// The cancel path already emitted the terminal event.
		return
	default:
		// Still processing would be a bug; log and move on.
		log.Printf("[engine] intent %s settled in unexpected status %s", intent.ID, intent.Status)
		return
	}

	e.sink.Notify(event)
}

// RecordOutcome folds an attempt into calibration state and persists the
// attempt row. Exposed for replay and testing alongside internal use.
func (e *Engine) RecordOutcome(ctx context.Context, attempt *models.PurchaseAttempt) CalibrationDelta {
	if err := e.store.InsertAttempt(ctx, attempt); err != nil {
		log.Printf("[engine] persisting attempt %s failed: %v", attempt.ID, err)
	}

	delta := e.tracker.Record(attempt)

	e.sink.Notify(notify.Event{
		Type:      notify.EventAttempt,
		IntentID:  attempt.IntentID,
		ListingID: attempt.ListingID,
		Platform:  attempt.Platform,
		Status:    attempt.Outcome,
		Reason:    attempt.Reason,
		Amount:    attempt.FinalPrice,
		At:        e.now(),
	})

	return delta
}

// CalibrationSnapshot returns the current per-platform calibration rows.
func (e *Engine) CalibrationSnapshot() []models.PlatformCalibration {
	return e.tracker.Snapshot()
}

// InFlight returns the number of intents currently holding gate slots.
func (e *Engine) InFlight() int {
	return e.gate.InFlight()
}
