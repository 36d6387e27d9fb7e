package engine

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an intent id is unknown.
var ErrNotFound = errors.New("intent not found")

// ErrEngineDisabled is returned by mutating operations while the kill switch
// is off.
var ErrEngineDisabled = errors.New("purchase engine is disabled")

// ValidationError rejects a malformed enqueue request before any state is
// created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DuplicateIntentError rejects an enqueue when an active intent already
// exists for the listing.
type DuplicateIntentError struct {
	ListingID        string
	ExistingIntentID string
}

func (e *DuplicateIntentError) Error() string {
	return fmt.Sprintf("active intent %s already exists for listing %s", e.ExistingIntentID, e.ListingID)
}

// PastPointOfNoReturnError rejects a cancellation that arrived after the
// purchase was irreversibly submitted. The intent continues to its real
// outcome.
type PastPointOfNoReturnError struct {
	IntentID string
}

func (e *PastPointOfNoReturnError) Error() string {
	return fmt.Sprintf("intent %s already submitted to the platform, cancellation rejected", e.IntentID)
}
