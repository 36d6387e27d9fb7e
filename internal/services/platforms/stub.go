package platforms

import (
	"context"
	"sync"
	"time"

	"ticket-trader/internal/models"
)

// StubAdapter is a deterministic in-memory adapter used by dry runs and
// tests. Scripted listings are sold on a first-come basis; scripted errors
// are returned in order, one per call.
type StubAdapter struct {
	name string

	mu        sync.Mutex
	listings  map[string]*stubListing
	quoteErrs []error
	buyErrs   []error
	// Delay is applied to every call, for timeout scenarios.
	Delay time.Duration
}

type stubListing struct {
	quote models.PlatformQuote
	left  int
}

// NewStub returns an empty stub adapter for the given platform name.
func NewStub(name string) *StubAdapter {
	return &StubAdapter{
		name:     name,
		listings: make(map[string]*stubListing),
	}
}

func (s *StubAdapter) Name() string { return s.name }

// AddListing seeds a purchasable listing.
func (s *StubAdapter) AddListing(id string, price, fees float64, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[id] = &stubListing{
		quote: models.PlatformQuote{
			Platform:  s.name,
			ListingID: id,
			Price:     price,
			Fees:      fees,
			Quantity:  quantity,
		},
		left: quantity,
	}
}

// FailQuotesWith queues errors returned by subsequent Quote calls.
func (s *StubAdapter) FailQuotesWith(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quoteErrs = append(s.quoteErrs, errs...)
}

// FailPurchasesWith queues errors returned by subsequent Purchase calls.
func (s *StubAdapter) FailPurchasesWith(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buyErrs = append(s.buyErrs, errs...)
}

func (s *StubAdapter) wait(ctx context.Context) error {
	if s.Delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return &TransientError{Platform: s.name, Reason: ReasonTimeout, Err: ctx.Err()}
	case <-time.After(s.Delay):
		return nil
	}
}

func (s *StubAdapter) Quote(ctx context.Context, criteria EventCriteria) ([]models.PlatformQuote, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.quoteErrs) > 0 {
		err := s.quoteErrs[0]
		s.quoteErrs = s.quoteErrs[1:]
		return nil, err
	}

	now := time.Now()
	var quotes []models.PlatformQuote
	for _, l := range s.listings {
		if l.left <= 0 {
			continue
		}
		if criteria.MaxPrice > 0 && l.quote.Price > criteria.MaxPrice {
			continue
		}
		if criteria.MinQuantity > 0 && l.left < criteria.MinQuantity {
			continue
		}
		q := l.quote
		q.Quantity = l.left
		q.FetchedAt = now
		quotes = append(quotes, q)
	}
	return quotes, nil
}

func (s *StubAdapter) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buyErrs) > 0 {
		err := s.buyErrs[0]
		s.buyErrs = s.buyErrs[1:]
		return nil, err
	}

	l, ok := s.listings[req.ListingID]
	if !ok || l.left < req.Quantity {
		return nil, &FatalError{Platform: s.name, Reason: ReasonSoldOut}
	}
	if l.quote.Price > req.MaxPrice {
		return nil, &FatalError{Platform: s.name, Reason: ReasonPriceMoved}
	}

	if req.OnSubmitted != nil {
		req.OnSubmitted()
	}

	l.left -= req.Quantity
	return &PurchaseResult{
		Confirmation: "STUB-" + req.ListingID,
		FinalPrice:   l.quote.Price,
		Fees:         l.quote.Fees,
		PurchasedAt:  time.Now(),
	}, nil
}
