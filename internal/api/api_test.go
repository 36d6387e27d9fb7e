package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ticket-trader/internal/config"
	"ticket-trader/internal/engine"
	"ticket-trader/internal/models"
	"ticket-trader/internal/services/platforms"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, adapters ...platforms.Adapter) (*gin.Engine, *engine.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		EngineEnabled:          true,
		MaxConcurrentPurchases: 2,
		PurchaseTimeout:        time.Second,
		QuoteTimeout:           time.Second,
		RetryAttemptCap:        3,
		RetryBaseDelay:         time.Millisecond,
		RetryMaxDelay:          5 * time.Millisecond,
		DecisionAlgorithm:      "balanced",
	}
	prefs := engine.StaticPreferences{Prefs: models.UserPreferences{
		MaxPrice:      500,
		MaxDailySpend: 2000,
	}}
	eng := engine.New(cfg, engine.NewMemoryStore(), nil, prefs, platforms.NewRegistryWith(adapters...), nil)

	r := gin.New()
	SetupRoutes(r.Group("/api/v1"), eng)
	return r, eng
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func intentBody(listingID string) map[string]interface{} {
	return map[string]interface{}{
		"listing_id": listingID,
		"user_id":    "u-1",
		"platform":   "stubhub",
		"quantity":   2,
		"max_price":  200,
	}
}

func TestCreateAndFetchIntent(t *testing.T) {
	r, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/intents", intentBody("L-1"))
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.PurchaseIntent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, models.StatusQueued, created.Status)

	w = doJSON(t, r, http.MethodGet, "/api/v1/intents/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCreateIntentValidationError(t *testing.T) {
	r, _ := newTestServer(t)

	body := intentBody("L-bad")
	body["quantity"] = 0
	w := doJSON(t, r, http.MethodPost, "/api/v1/intents", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "quantity")
}

func TestCreateIntentDuplicateConflict(t *testing.T) {
	r, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/intents", intentBody("L-dup"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/intents", intentBody("L-dup"))
	require.Equal(t, http.StatusConflict, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["existing_intent_id"])
}

func TestGetUnknownIntent(t *testing.T) {
	r, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/intents/no-such-id", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelIntent(t *testing.T) {
	r, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/intents", intentBody("L-c"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.PurchaseIntent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(t, r, http.MethodDelete, "/api/v1/intents/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Second cancel finds a terminal intent.
	w = doJSON(t, r, http.MethodDelete, "/api/v1/intents/"+created.ID, nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestProcessEndpointDrivesQueue(t *testing.T) {
	stub := platforms.NewStub("stubhub")
	stub.AddListing("L-go", 150, 20, 4)
	r, eng := newTestServer(t, stub)

	w := doJSON(t, r, http.MethodPost, "/api/v1/intents", intentBody("L-go"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.PurchaseIntent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(t, r, http.MethodPost, "/api/v1/queue/process", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"admitted":true`)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		intent, err := eng.GetIntent(context.Background(), created.ID)
		require.NoError(t, err)
		if models.TerminalStatus(intent.Status) {
			require.Equal(t, models.StatusCompleted, intent.Status)

			w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/intents/%s/attempts", created.ID), nil)
			require.Equal(t, http.StatusOK, w.Code)

			w = doJSON(t, r, http.MethodGet, "/api/v1/calibration", nil)
			require.Equal(t, http.StatusOK, w.Code)
			require.Contains(t, w.Body.String(), "stubhub")
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("intent never settled")
}

func TestEvaluateEndpoint(t *testing.T) {
	r, _ := newTestServer(t)

	body := map[string]interface{}{
		"user_id": "u-1",
		"listing": map[string]interface{}{
			"listing_id":   "L-e",
			"platform":     "stubhub",
			"price":        120,
			"quantity":     2,
			"event_time":   time.Now().Add(72 * time.Hour).Format(time.RFC3339),
			"demand_score": 8,
		},
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/decisions/evaluate", body)
	require.Equal(t, http.StatusOK, w.Code)

	var decision engine.Decision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
	require.Greater(t, decision.Score, 0.0)
	require.NotEmpty(t, decision.Action)
}

func TestCompareEndpoint(t *testing.T) {
	stub := platforms.NewStub("stubhub")
	stub.AddListing("SH-1", 100, 15, 2)
	other := platforms.NewStub("tickpick")
	other.AddListing("TP-1", 105, 0, 2)
	r, _ := newTestServer(t, stub, other)

	body := map[string]interface{}{
		"criteria": map[string]interface{}{"event_title": "any"},
	}
	w := doJSON(t, r, http.MethodPost, "/api/v1/quotes/compare", body)
	require.Equal(t, http.StatusOK, w.Code)

	var result engine.ComparisonResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Quotes, 2)
	require.Equal(t, "tickpick", result.Quotes[0].Platform)
}
