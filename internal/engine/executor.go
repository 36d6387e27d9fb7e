package engine

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"ticket-trader/internal/models"
	"ticket-trader/internal/services/platforms"

	"github.com/google/uuid"
)

// ExecutorConfig bounds a single intent's execution.
type ExecutorConfig struct {
	PurchaseTimeout time.Duration
	// RetryAttemptCap is the total attempts allowed when the intent has
	// auto_retry set. Without auto_retry an intent gets exactly one attempt.
	RetryAttemptCap int
	Backoff         BackoffConfig
}

// RecordFunc receives every finished attempt; the engine wires it to
// RecordOutcome.
type RecordFunc func(ctx context.Context, attempt *models.PurchaseAttempt)

// Executor drives one admitted intent against its platform adapter,
// retrying transient failures and classifying terminal outcomes.
type Executor struct {
	store    IntentStore
	registry *platforms.Registry
	cfg      ExecutorConfig
	record   RecordFunc
}

func NewExecutor(store IntentStore, registry *platforms.Registry, cfg ExecutorConfig, record RecordFunc) *Executor {
	if cfg.PurchaseTimeout <= 0 {
		cfg.PurchaseTimeout = 45 * time.Second
	}
	if cfg.Backoff.BaseDelay <= 0 {
		cfg.Backoff = DefaultBackoff()
	}
	return &Executor{
		store:    store,
		registry: registry,
		cfg:      cfg,
		record:   record,
	}
}

// Execute runs the intent to a terminal state and returns its last attempt.
// The intent must already be Processing. A nil return means the intent was
// cancelled before any attempt started.
func (e *Executor) Execute(ctx context.Context, intent *models.PurchaseIntent) *models.PurchaseAttempt {
	adapter, ok := e.registry.Get(intent.Platform)
	if !ok {
		e.failIntent(ctx, intent, fmt.Sprintf("platform %s is not enabled", intent.Platform))
		return nil
	}

	maxAttempts := 1
	if intent.AutoRetry && e.cfg.RetryAttemptCap > 1 {
		maxAttempts = e.cfg.RetryAttemptCap
	}

	// Each execution owns its jitter source; executions run on concurrent
	// goroutines and math/rand.Rand is not safe for shared use.
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var last *models.PurchaseAttempt
	for attemptNo := 1; attemptNo <= maxAttempts; attemptNo++ {
		// Bump the attempt counter; a false return means the intent was
		// cancelled while we were between attempts.
		active, err := e.store.Transition(ctx, intent.ID, models.StatusProcessing, models.StatusProcessing,
			func(i *models.PurchaseIntent) error {
				i.AttemptCount++
				return nil
			})
		if err != nil || !active {
			if err != nil {
				log.Printf("[executor] intent %s: attempt bump failed: %v", intent.ID, err)
			}
			return last
		}

		attempt := e.runAttempt(ctx, adapter, intent, attemptNo)
		if e.record != nil {
			e.record(ctx, attempt)
		}
		last = attempt

		switch attempt.Outcome {
		case models.OutcomeSuccess:
			e.completeIntent(ctx, intent, attempt)
			return attempt

		case models.OutcomeFatalFail:
			e.failIntent(ctx, intent, attempt.Reason)
			return attempt

		default: // transient or timeout
			if attemptNo >= maxAttempts {
				e.failIntent(ctx, intent,
					fmt.Sprintf("retries exhausted after %d attempts: %s", attemptNo, attempt.Reason))
				return attempt
			}
			delay := NextDelay(attemptNo, e.cfg.Backoff, rng)
			log.Printf("[executor] intent %s: attempt %d/%d failed (%s), retrying in %v",
				intent.ID, attemptNo, maxAttempts, attempt.Reason, delay)
			select {
			case <-ctx.Done():
				e.failIntent(ctx, intent, "execution context cancelled")
				return attempt
			case <-time.After(delay):
			}
		}
	}
	return last
}

// runAttempt performs one platform purchase call bounded by the purchase
// timeout. The OnSubmitted hook stamps submitted_at the instant the order
// becomes irreversible, closing the cancellation window atomically.
func (e *Executor) runAttempt(ctx context.Context, adapter platforms.Adapter, intent *models.PurchaseIntent, attemptNo int) *models.PurchaseAttempt {
	attempt := &models.PurchaseAttempt{
		ID:             uuid.NewString(),
		IntentID:       intent.ID,
		ListingID:      intent.ListingID,
		Platform:       intent.Platform,
		AttemptNumber:  attemptNo,
		EstimatedPrice: intent.EstimatedPrice,
		StartedAt:      time.Now(),
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.PurchaseTimeout)
	defer cancel()

	result, err := adapter.Purchase(callCtx, platforms.PurchaseRequest{
		ListingID: intent.ListingID,
		Quantity:  intent.Quantity,
		MaxPrice:  intent.MaxPrice,
		OnSubmitted: func() {
			at := time.Now()
			_, terr := e.store.Transition(ctx, intent.ID, models.StatusProcessing, models.StatusProcessing,
				func(i *models.PurchaseIntent) error {
					i.SubmittedAt = &at
					return nil
				})
			if terr != nil {
				log.Printf("[executor] intent %s: marking submitted failed: %v", intent.ID, terr)
			}
		},
	})

	attempt.EndedAt = time.Now()

	switch {
	case err == nil:
		attempt.Outcome = models.OutcomeSuccess
		attempt.FinalPrice = result.FinalPrice
		attempt.Fees = result.Fees
		attempt.Confirmation = result.Confirmation

	case callCtx.Err() == context.DeadlineExceeded:
		attempt.Outcome = models.OutcomeTimeout
		attempt.Reason = platforms.ReasonTimeout

	case platforms.IsFatal(err):
		attempt.Outcome = models.OutcomeFatalFail
		attempt.Reason = err.Error()

	case platforms.IsTransient(err):
		attempt.Outcome = models.OutcomeTransientFail
		attempt.Reason = err.Error()

	default:
		// Unclassified adapter errors count as transient, bounded by the
		// same attempt cap.
		attempt.Outcome = models.OutcomeTransientFail
		attempt.Reason = err.Error()
	}

	return attempt
}

func (e *Executor) completeIntent(ctx context.Context, intent *models.PurchaseIntent, attempt *models.PurchaseAttempt) {
	_, err := e.store.Transition(ctx, intent.ID, models.StatusProcessing, models.StatusCompleted,
		func(i *models.PurchaseIntent) error {
			i.FinalPrice = attempt.FinalPrice
			i.FinalFees = attempt.Fees
			return nil
		})
	if err != nil {
		log.Printf("[executor] intent %s: completion transition failed: %v", intent.ID, err)
	}
}

func (e *Executor) failIntent(ctx context.Context, intent *models.PurchaseIntent, reason string) {
	_, err := e.store.Transition(ctx, intent.ID, models.StatusProcessing, models.StatusFailed,
		func(i *models.PurchaseIntent) error {
			i.FailureReason = reason
			return nil
		})
	if err != nil {
		log.Printf("[executor] intent %s: failure transition failed: %v", intent.ID, err)
	}
}
