package platforms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ticket-trader/internal/models"
)

// EventCriteria describes the event a quote request is about.
type EventCriteria struct {
	EventTitle  string    `json:"event_title"`
	EventTime   time.Time `json:"event_time,omitempty"`
	MaxPrice    float64   `json:"max_price,omitempty"`
	MinQuantity int       `json:"min_quantity,omitempty"`
}

// PurchaseRequest carries everything an adapter needs to buy a listing.
// OnSubmitted, when set, is invoked the moment the order becomes irreversible
// at the platform; cancellations arriving after that point are too late.
type PurchaseRequest struct {
	ListingID   string
	Quantity    int
	MaxPrice    float64
	OnSubmitted func()
}

// PurchaseResult is the adapter's answer to a purchase call.
type PurchaseResult struct {
	Confirmation string
	FinalPrice   float64
	Fees         float64
	PurchasedAt  time.Time
}

// Adapter is the contract every resale platform client implements. Quote is
// read-only; Purchase commits money and must respect ctx deadlines.
type Adapter interface {
	Name() string
	Quote(ctx context.Context, criteria EventCriteria) ([]models.PlatformQuote, error)
	Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error)
}

// TransientError marks a failure worth retrying: timeouts, rate limits,
// upstream 5xx. The executor retries these per the intent's auto_retry flag.
type TransientError struct {
	Platform string
	Reason   string
	Err      error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Platform, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Platform, e.Reason)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a failure that retrying cannot fix: sold out, price moved
// past the cap, rejected credentials.
type FatalError struct {
	Platform string
	Reason   string
	Err      error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Platform, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Platform, e.Reason)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Well-known failure reasons surfaced to users.
const (
	ReasonSoldOut      = "sold_out"
	ReasonPriceMoved   = "price_exceeds_max"
	ReasonAuthRejected = "authentication_rejected"
	ReasonRateLimited  = "rate_limited"
	ReasonTimeout      = "timeout"
	ReasonUpstream     = "upstream_error"
)

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsFatal reports whether err must never be retried.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// classifyStatus converts an HTTP status into the platform error taxonomy.
// nil means the status carries no error.
func classifyStatus(platform string, status int) error {
	switch {
	case status < 400:
		return nil
	case status == http.StatusTooManyRequests:
		return &TransientError{Platform: platform, Reason: ReasonRateLimited}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &FatalError{Platform: platform, Reason: ReasonAuthRejected}
	case status == http.StatusConflict || status == http.StatusGone:
		return &FatalError{Platform: platform, Reason: ReasonSoldOut}
	case status >= 500:
		return &TransientError{Platform: platform, Reason: ReasonUpstream, Err: fmt.Errorf("HTTP %d", status)}
	default:
		return &FatalError{Platform: platform, Reason: fmt.Sprintf("HTTP %d", status)}
	}
}
