package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"ticket-trader/internal/config"
	"ticket-trader/internal/models"

	"github.com/go-resty/resty/v2"
)

// httpAdapter is a resty-backed client for platforms with a JSON checkout
// API. The per-platform constructors below differ only in name, endpoints
// and fee model.
type httpAdapter struct {
	name    string
	baseURL string
	apiKey  string
	feeRate float64
	client  *resty.Client
}

func newHTTPAdapter(name string, pc config.PlatformConfig) *httpAdapter {
	client := resty.New()
	client.SetTimeout(60 * time.Second)
	if pc.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+pc.APIKey)
	}

	return &httpAdapter{
		name:    name,
		baseURL: pc.BaseURL,
		apiKey:  pc.APIKey,
		feeRate: pc.FeeRate,
		client:  client,
	}
}

// NewStubHub returns the StubHub client.
func NewStubHub(pc config.PlatformConfig) Adapter { return newHTTPAdapter("stubhub", pc) }

// NewTickPick returns the TickPick client. TickPick quotes all-in prices, so
// its configured fee rate is zero.
func NewTickPick(pc config.PlatformConfig) Adapter { return newHTTPAdapter("tickpick", pc) }

// NewViagogo returns the Viagogo client.
func NewViagogo(pc config.PlatformConfig) Adapter { return newHTTPAdapter("viagogo", pc) }

// NewFunZone returns the FunZone client.
func NewFunZone(pc config.PlatformConfig) Adapter { return newHTTPAdapter("funzone", pc) }

func (a *httpAdapter) Name() string { return a.name }

type quoteResponse struct {
	Listings []struct {
		ID       string  `json:"id"`
		Price    float64 `json:"price"`
		Fees     float64 `json:"fees"`
		Quantity int     `json:"quantity"`
	} `json:"listings"`
}

func (a *httpAdapter) Quote(ctx context.Context, criteria EventCriteria) ([]models.PlatformQuote, error) {
	endpoint := fmt.Sprintf("%s/v1/listings?event=%s", a.baseURL, url.QueryEscape(criteria.EventTitle))
	if criteria.MaxPrice > 0 {
		endpoint += fmt.Sprintf("&max_price=%.2f", criteria.MaxPrice)
	}
	if criteria.MinQuantity > 0 {
		endpoint += fmt.Sprintf("&min_quantity=%d", criteria.MinQuantity)
	}

	resp, err := a.client.R().SetContext(ctx).Get(endpoint)
	if err != nil {
		return nil, &TransientError{Platform: a.name, Reason: ReasonTimeout, Err: err}
	}
	if err := classifyStatus(a.name, resp.StatusCode()); err != nil {
		return nil, err
	}

	var parsed quoteResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("%s: decode quote response: %w", a.name, err)
	}

	now := time.Now()
	quotes := make([]models.PlatformQuote, 0, len(parsed.Listings))
	for _, l := range parsed.Listings {
		fees := l.Fees
		if fees == 0 && a.feeRate > 0 {
			fees = l.Price * a.feeRate
		}
		quotes = append(quotes, models.PlatformQuote{
			Platform:  a.name,
			ListingID: l.ID,
			Price:     l.Price,
			Fees:      fees,
			Quantity:  l.Quantity,
			FetchedAt: now,
		})
	}
	return quotes, nil
}

type orderResponse struct {
	OrderID    string  `json:"order_id"`
	Status     string  `json:"status"`
	FinalPrice float64 `json:"final_price"`
	Fees       float64 `json:"fees"`
	Message    string  `json:"message"`
}

// Purchase submits an order and polls it to confirmation. The order POST is
// the point of no return: once the platform accepts it, OnSubmitted fires and
// the purchase can no longer be cancelled from our side.
func (a *httpAdapter) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	body := map[string]interface{}{
		"listing_id": req.ListingID,
		"quantity":   req.Quantity,
		"max_price":  req.MaxPrice,
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(a.baseURL + "/v1/orders")
	if err != nil {
		return nil, &TransientError{Platform: a.name, Reason: ReasonTimeout, Err: err}
	}
	if err := classifyStatus(a.name, resp.StatusCode()); err != nil {
		return nil, err
	}

	var order orderResponse
	if err := json.Unmarshal(resp.Body(), &order); err != nil {
		return nil, fmt.Errorf("%s: decode order response: %w", a.name, err)
	}

	switch order.Status {
	case "rejected":
		return nil, &FatalError{Platform: a.name, Reason: order.Message}
	case "sold_out":
		return nil, &FatalError{Platform: a.name, Reason: ReasonSoldOut}
	case "price_changed":
		if order.FinalPrice > req.MaxPrice {
			return nil, &FatalError{Platform: a.name, Reason: ReasonPriceMoved}
		}
	}

	// Order accepted: irreversible from here on.
	if req.OnSubmitted != nil {
		req.OnSubmitted()
	}

	if order.Status == "confirmed" {
		return a.result(&order), nil
	}
	return a.pollOrder(ctx, order.OrderID)
}

// pollOrder waits for a submitted order to reach a terminal status.
func (a *httpAdapter) pollOrder(ctx context.Context, orderID string) (*PurchaseResult, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, &TransientError{Platform: a.name, Reason: ReasonTimeout, Err: ctx.Err()}
		case <-ticker.C:
		}

		resp, err := a.client.R().SetContext(ctx).Get(a.baseURL + "/v1/orders/" + orderID)
		if err != nil {
			return nil, &TransientError{Platform: a.name, Reason: ReasonTimeout, Err: err}
		}
		if err := classifyStatus(a.name, resp.StatusCode()); err != nil {
			return nil, err
		}

		var order orderResponse
		if err := json.Unmarshal(resp.Body(), &order); err != nil {
			return nil, fmt.Errorf("%s: decode order response: %w", a.name, err)
		}

		switch order.Status {
		case "confirmed":
			return a.result(&order), nil
		case "failed", "rejected":
			return nil, &FatalError{Platform: a.name, Reason: order.Message}
		}
		// pending: keep polling until ctx expires
	}
}

func (a *httpAdapter) result(order *orderResponse) *PurchaseResult {
	fees := order.Fees
	if fees == 0 && a.feeRate > 0 {
		fees = order.FinalPrice * a.feeRate
	}
	return &PurchaseResult{
		Confirmation: order.OrderID,
		FinalPrice:   order.FinalPrice,
		Fees:         fees,
		PurchasedAt:  time.Now(),
	}
}
