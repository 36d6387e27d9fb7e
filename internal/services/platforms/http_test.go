package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ticket-trader/internal/config"

	"github.com/stretchr/testify/require"
)

func TestHTTPAdapterQuoteAppliesFeeRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/listings", r.URL.Path)
		require.Equal(t, "Taylor Tour", r.URL.Query().Get("event"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"listings": []map[string]interface{}{
				{"id": "SH-1", "price": 100.0, "fees": 0.0, "quantity": 2},
				{"id": "SH-2", "price": 150.0, "fees": 12.0, "quantity": 4},
			},
		})
	}))
	defer srv.Close()

	a := NewStubHub(config.PlatformConfig{BaseURL: srv.URL, FeeRate: 0.20})

	quotes, err := a.Quote(context.Background(), EventCriteria{EventTitle: "Taylor Tour"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	// Missing fees get estimated from the fee rate; quoted fees pass through.
	require.Equal(t, 20.0, quotes[0].Fees)
	require.Equal(t, 12.0, quotes[1].Fees)
	require.Equal(t, "stubhub", quotes[0].Platform)
}

func TestHTTPAdapterQuoteErrorTaxonomy(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	a := NewViagogo(config.PlatformConfig{BaseURL: srv.URL})

	_, err := a.Quote(context.Background(), EventCriteria{EventTitle: "x"})
	require.True(t, IsTransient(err))

	status = http.StatusForbidden
	_, err = a.Quote(context.Background(), EventCriteria{EventTitle: "x"})
	require.True(t, IsFatal(err))
}

func TestHTTPAdapterPurchaseConfirmedImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/orders", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "TP-9", body["listing_id"])

		json.NewEncoder(w).Encode(orderResponse{
			OrderID:    "ORD-123",
			Status:     "confirmed",
			FinalPrice: 180,
			Fees:       0,
		})
	}))
	defer srv.Close()

	a := NewTickPick(config.PlatformConfig{BaseURL: srv.URL})

	submitted := false
	result, err := a.Purchase(context.Background(), PurchaseRequest{
		ListingID:   "TP-9",
		Quantity:    2,
		MaxPrice:    200,
		OnSubmitted: func() { submitted = true },
	})
	require.NoError(t, err)
	require.True(t, submitted)
	require.Equal(t, "ORD-123", result.Confirmation)
	require.Equal(t, 180.0, result.FinalPrice)
}

func TestHTTPAdapterPurchasePollsPendingOrder(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(orderResponse{OrderID: "ORD-7", Status: "pending"})
		default:
			polls++
			status := "pending"
			if polls >= 2 {
				status = "confirmed"
			}
			json.NewEncoder(w).Encode(orderResponse{OrderID: "ORD-7", Status: status, FinalPrice: 95, Fees: 10})
		}
	}))
	defer srv.Close()

	a := NewFunZone(config.PlatformConfig{BaseURL: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := a.Purchase(ctx, PurchaseRequest{ListingID: "FZ-1", Quantity: 1, MaxPrice: 120})
	require.NoError(t, err)
	require.Equal(t, "ORD-7", result.Confirmation)
	require.GreaterOrEqual(t, polls, 2)
}

func TestHTTPAdapterPurchaseSoldOutBeforeSubmission(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(orderResponse{Status: "sold_out"})
	}))
	defer srv.Close()

	a := NewStubHub(config.PlatformConfig{BaseURL: srv.URL})

	submitted := false
	_, err := a.Purchase(context.Background(), PurchaseRequest{
		ListingID:   "SH-1",
		Quantity:    1,
		MaxPrice:    100,
		OnSubmitted: func() { submitted = true },
	})
	require.True(t, IsFatal(err))
	require.False(t, submitted)
}
