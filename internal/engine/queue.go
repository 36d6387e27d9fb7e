package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticket-trader/internal/models"
	"ticket-trader/internal/notify"

	"github.com/google/uuid"
)

// EnqueueRequest is the input to Queue.Enqueue.
type EnqueueRequest struct {
	ListingID      string    `json:"listing_id"`
	UserID         string    `json:"user_id"`
	Platform       string    `json:"platform"`
	Quantity       int       `json:"quantity"`
	MaxPrice       float64   `json:"max_price"`
	EstimatedPrice float64   `json:"estimated_price"`
	Priority       string    `json:"priority"`
	ScheduledFor   time.Time `json:"scheduled_for"`
	ExpiresAt      time.Time `json:"expires_at"`
	AutoRetry      bool      `json:"auto_retry"`
	// Lineage carries the predecessor's lineage + 1 on explicit
	// re-submission of a failed intent.
	Lineage int `json:"lineage"`
}

// Queue owns the purchase intent state machine on top of an IntentStore.
type Queue struct {
	store IntentStore
	sink  notify.Sink
	now   func() time.Time
}

func NewQueue(store IntentStore, sink notify.Sink) *Queue {
	if sink == nil {
		sink = notify.LogSink{}
	}
	return &Queue{store: store, sink: sink, now: time.Now}
}

// Enqueue validates the request and creates a Queued intent. It rejects
// requests for listings that already have an active intent.
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (*models.PurchaseIntent, error) {
	if err := q.validate(&req); err != nil {
		return nil, err
	}

	now := q.now()
	intent := &models.PurchaseIntent{
		ID:             uuid.NewString(),
		ListingID:      req.ListingID,
		UserID:         req.UserID,
		Platform:       req.Platform,
		Quantity:       req.Quantity,
		MaxPrice:       req.MaxPrice,
		EstimatedPrice: req.EstimatedPrice,
		Priority:       req.Priority,
		Status:         models.StatusQueued,
		AutoRetry:      req.AutoRetry,
		Lineage:        req.Lineage,
		ScheduledFor:   req.ScheduledFor,
		ExpiresAt:      req.ExpiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := q.store.Insert(ctx, intent); err != nil {
		return nil, err
	}

	q.sink.Notify(notify.Event{
		Type:      notify.EventEnqueued,
		IntentID:  intent.ID,
		ListingID: intent.ListingID,
		UserID:    intent.UserID,
		Platform:  intent.Platform,
		Status:    intent.Status,
		At:        now,
	})

	return intent, nil
}

func (q *Queue) validate(req *EnqueueRequest) error {
	if req.ListingID == "" {
		return &ValidationError{Field: "listing_id", Reason: "required"}
	}
	if req.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "required"}
	}
	if req.Quantity < 1 {
		return &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	if req.MaxPrice <= 0 {
		return &ValidationError{Field: "max_price", Reason: "must be positive"}
	}
	if req.Priority == "" {
		req.Priority = models.PriorityNormal
	}
	if !models.ValidPriority(req.Priority) {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", req.Priority)}
	}
	now := q.now()
	if req.ScheduledFor.IsZero() {
		req.ScheduledFor = now
	}
	if req.ExpiresAt.IsZero() {
		req.ExpiresAt = now.Add(24 * time.Hour)
	}
	if !req.ExpiresAt.After(req.ScheduledFor) {
		return &ValidationError{Field: "expires_at", Reason: "must be after scheduled_for"}
	}
	if req.Lineage < 0 {
		return &ValidationError{Field: "lineage", Reason: "must not be negative"}
	}
	return nil
}

// Cancel cancels an intent cooperatively. Queued intents cancel immediately;
// Processing intents cancel only while the cancellation still beats the
// point of no return.
func (q *Queue) Cancel(ctx context.Context, intentID string) error {
	intent, err := q.store.Get(ctx, intentID)
	if err != nil {
		return err
	}

	reason := "cancelled on request"

	// Queued -> Cancelled is always allowed.
	done, err := q.store.Transition(ctx, intentID, models.StatusQueued, models.StatusCancelled,
		func(i *models.PurchaseIntent) error {
			i.FailureReason = reason
			return nil
		})
	if err != nil {
		return err
	}
	if done {
		q.notifyTerminal(intent, models.StatusCancelled, reason)
		return nil
	}

	// Processing -> Cancelled only before irreversible submission; the
	// submitted check runs inside the store's per-listing critical section.
	done, err = q.store.Transition(ctx, intentID, models.StatusProcessing, models.StatusCancelled,
		func(i *models.PurchaseIntent) error {
			if i.SubmittedAt != nil {
				return &PastPointOfNoReturnError{IntentID: intentID}
			}
			i.FailureReason = reason
			return nil
		})
	if err != nil {
		return err
	}
	if done {
		q.notifyTerminal(intent, models.StatusCancelled, reason)
		return nil
	}

	// Neither queued nor processing anymore: already terminal.
	current, err := q.store.Get(ctx, intentID)
	if err != nil {
		return err
	}
	return fmt.Errorf("intent %s is already %s", intentID, current.Status)
}

// Admit picks the next due intent and moves it Queued -> Processing with a
// compare-and-set, so an intent cancelled in between is never admitted.
// It returns nil when nothing is due.
func (q *Queue) Admit(ctx context.Context, now time.Time) (*models.PurchaseIntent, error) {
	for {
		intent, err := q.store.NextDue(ctx, now)
		if err != nil {
			return nil, err
		}
		if intent == nil {
			return nil, nil
		}

		done, err := q.store.Transition(ctx, intent.ID, models.StatusQueued, models.StatusProcessing, nil)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if !done {
			// Lost a race with a cancel or another worker; try the next one.
			continue
		}

		intent.Status = models.StatusProcessing
		q.sink.Notify(notify.Event{
			Type:      notify.EventAdmitted,
			IntentID:  intent.ID,
			ListingID: intent.ListingID,
			UserID:    intent.UserID,
			Platform:  intent.Platform,
			Status:    intent.Status,
			At:        now,
		})
		return intent, nil
	}
}

// ExpireOverdue sweeps queued intents past their expiry.
func (q *Queue) ExpireOverdue(ctx context.Context, now time.Time) error {
	expired, err := q.store.ExpireOverdue(ctx, now)
	if err != nil {
		return err
	}
	for _, intent := range expired {
		q.notifyTerminal(intent, models.StatusExpired, intent.FailureReason)
	}
	return nil
}

func (q *Queue) notifyTerminal(intent *models.PurchaseIntent, status, reason string) {
	eventType := notify.EventCancelled
	if status == models.StatusExpired {
		eventType = notify.EventExpired
	}
	q.sink.Notify(notify.Event{
		Type:      eventType,
		IntentID:  intent.ID,
		ListingID: intent.ListingID,
		UserID:    intent.UserID,
		Platform:  intent.Platform,
		Status:    status,
		Reason:    reason,
		At:        q.now(),
	})
}
