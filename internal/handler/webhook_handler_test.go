package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibkr-relay/internal/gateway/sim"
	"github.com/ibkr-relay/internal/handler"
	"github.com/ibkr-relay/internal/models"
	"github.com/ibkr-relay/internal/repository"
	"github.com/ibkr-relay/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newWebhookRouter(t *testing.T) (*gin.Engine, *service.SignalService, *sim.Gateway) {
	t.Helper()
	journal := repository.NewMemoryJournal()
	gw := sim.New()
	signals := service.NewSignalService(journal, gw, nil)

	r := gin.New()
	handler.NewWebhookHandler(signals).RegisterRoutes(r)
	return r, signals, gw
}

func postSignal(t *testing.T, r *gin.Engine, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWebhookOpenSignal(t *testing.T) {
	r, _, gw := newWebhookRouter(t)

	w := postSignal(t, r, map[string]interface{}{
		"action":     "open",
		"symbol":     "EUR/USD",
		"side":       "buy",
		"quantity":   1000,
		"takeProfit": 1.10,
		"stopLoss":   1.08,
	})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "success", body["message"])

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "opened", data["status"])
	assert.Equal(t, false, data["reversed"])

	assert.Len(t, gw.Orders(), 3)
}

func TestWebhookDuplicateOpen(t *testing.T) {
	r, _, _ := newWebhookRouter(t)

	open := map[string]interface{}{
		"action": "open", "symbol": "EUR/USD", "side": "buy", "quantity": 1000,
	}
	w := postSignal(t, r, open)
	require.Equal(t, http.StatusOK, w.Code)

	w = postSignal(t, r, open)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "duplicate", data["status"])
}

func TestWebhookReversal(t *testing.T) {
	r, _, _ := newWebhookRouter(t)

	w := postSignal(t, r, map[string]interface{}{
		"action": "open", "symbol": "EUR/USD", "side": "buy", "quantity": 1000,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = postSignal(t, r, map[string]interface{}{
		"action": "open", "symbol": "EUR/USD", "side": "sell", "quantity": 500,
	})
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "opened", data["status"])
	assert.Equal(t, true, data["reversed"])
}

func TestWebhookCloseWithoutActiveTrade(t *testing.T) {
	r, _, gw := newWebhookRouter(t)

	w := postSignal(t, r, map[string]interface{}{
		"action": "close", "symbol": "EUR/USD",
	})

	// Informational, not an error.
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "no active trade for EUR/USD", body["message"])
	assert.Empty(t, gw.Orders())
}

func TestWebhookCloseSignal(t *testing.T) {
	r, _, _ := newWebhookRouter(t)

	w := postSignal(t, r, map[string]interface{}{
		"action": "open", "symbol": "EUR/USD", "side": "buy", "quantity": 1000,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = postSignal(t, r, map[string]interface{}{
		"action": "close", "symbol": "EUR/USD",
	})
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["closed"])
}

func TestWebhookReentryRejected(t *testing.T) {
	r, signals, gw := newWebhookRouter(t)

	w := postSignal(t, r, map[string]interface{}{
		"action": "open", "symbol": "EUR/USD", "side": "buy", "quantity": 1000,
		"takeProfit": 1.10,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Fill the take-profit, then retry the same signal.
	orders := gw.Orders()
	require.Len(t, orders, 2)
	result, err := signals.ApplyFill(orders[1].ID, 1.10)
	require.NoError(t, err)
	require.Equal(t, models.FillMatchedTakeProfit, result)

	w = postSignal(t, r, map[string]interface{}{
		"action": "open", "symbol": "EUR/USD", "side": "buy", "quantity": 1000,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(-1004), body["code"])
}

func TestWebhookMalformedRequests(t *testing.T) {
	r, _, gw := newWebhookRouter(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing action", map[string]interface{}{"symbol": "EUR/USD"}},
		{"missing symbol", map[string]interface{}{"action": "open", "side": "buy", "quantity": 100}},
		{"unknown action", map[string]interface{}{"action": "hedge", "symbol": "EUR/USD"}},
		{"bad side", map[string]interface{}{"action": "open", "symbol": "EUR/USD", "side": "long", "quantity": 100}},
		{"zero quantity", map[string]interface{}{"action": "open", "symbol": "EUR/USD", "side": "buy", "quantity": 0}},
		{"negative quantity", map[string]interface{}{"action": "open", "symbol": "EUR/USD", "side": "buy", "quantity": -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postSignal(t, r, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, gw.Orders(), "rejected signals must not place orders")
}
