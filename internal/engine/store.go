package engine

import (
	"context"
	"time"

	"ticket-trader/internal/models"
)

// IntentStore owns PurchaseIntent and PurchaseAttempt rows. All status
// mutations go through Transition, a compare-and-set serialized per listing,
// so two workers can never process the same listing at once.
type IntentStore interface {
	// Insert persists a new intent. It returns DuplicateIntentError when an
	// active intent for the same listing already exists.
	Insert(ctx context.Context, intent *models.PurchaseIntent) error

	// Get returns the intent by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.PurchaseIntent, error)

	// Transition atomically moves an intent from one status to another,
	// applying mutate to the row while the per-listing lock is held. It
	// returns false when the intent is no longer in the expected status.
	// A non-nil error from mutate vetoes the transition and is returned
	// unchanged; the cancellation path uses this to reject cancels that
	// lost the race against irreversible submission.
	Transition(ctx context.Context, id, from, to string, mutate func(*models.PurchaseIntent) error) (bool, error)

	// NextDue returns the highest-priority queued intent whose scheduled_for
	// has passed and expires_at has not, FIFO within a priority. nil when
	// nothing is due.
	NextDue(ctx context.Context, now time.Time) (*models.PurchaseIntent, error)

	// ExpireOverdue moves queued intents whose expiry has passed to Expired
	// and returns them.
	ExpireOverdue(ctx context.Context, now time.Time) ([]*models.PurchaseIntent, error)

	// InsertAttempt persists an attempt row.
	InsertAttempt(ctx context.Context, attempt *models.PurchaseAttempt) error

	// AttemptsByIntent returns an intent's attempts in creation order.
	AttemptsByIntent(ctx context.Context, intentID string) ([]models.PurchaseAttempt, error)
}

// CalibrationStore persists per-platform calibration rows. The tracker works
// from memory and writes through; a nil store is valid.
type CalibrationStore interface {
	LoadAll(ctx context.Context) ([]models.PlatformCalibration, error)
	Save(ctx context.Context, row *models.PlatformCalibration) error
}

// PreferenceStore supplies user purchase limits. Implemented by the
// surrounding system; a static implementation ships for single-user setups.
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (models.UserPreferences, error)
}

// StaticPreferences returns the same preferences for every user.
type StaticPreferences struct {
	Prefs models.UserPreferences
}

func (s StaticPreferences) Get(ctx context.Context, userID string) (models.UserPreferences, error) {
	prefs := s.Prefs
	prefs.UserID = userID
	return prefs, nil
}
