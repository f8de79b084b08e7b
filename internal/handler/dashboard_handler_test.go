package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibkr-relay/internal/config"
	"github.com/ibkr-relay/internal/gateway/sim"
	"github.com/ibkr-relay/internal/handler"
	"github.com/ibkr-relay/internal/middleware"
	"github.com/ibkr-relay/internal/models"
	"github.com/ibkr-relay/internal/repository"
	"github.com/ibkr-relay/internal/service"
)

func newDashboardRouter(t *testing.T) (*gin.Engine, *service.SignalService, *service.AuthService) {
	t.Helper()
	journal := repository.NewMemoryJournal()
	gw := sim.New()
	gw.SetAccountSummary(models.AccountSummary{NetLiquidation: 100000})

	dashboard := service.NewDashboardService(gw, nil)
	signals := service.NewSignalService(journal, gw, dashboard)
	auth := service.NewAuthService(config.AuthConfig{
		JWTSecret:       "test-jwt-secret",
		DashboardSecret: "test-dashboard-secret",
	})
	require.NoError(t, dashboard.Refresh(context.Background()))

	r := gin.New()
	api := r.Group("/api/v1")
	handler.NewAuthHandler(auth).RegisterRoutes(api)
	handler.NewDashboardHandler(dashboard, signals).RegisterRoutes(api, middleware.AuthMiddleware(auth))
	return r, signals, auth
}

func bearerToken(t *testing.T, auth *service.AuthService) string {
	t.Helper()
	resp, err := auth.IssueToken("test-dashboard-secret")
	require.NoError(t, err)
	return resp.AccessToken
}

func getAuthed(t *testing.T, r *gin.Engine, token, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDashboardRequiresToken(t *testing.T) {
	r, _, auth := newDashboardRouter(t)

	w := getAuthed(t, r, "", "/api/v1/dashboard")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.Header.Set("Authorization", "Token abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = getAuthed(t, r, "garbage", "/api/v1/dashboard")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = getAuthed(t, r, bearerToken(t, auth), "/api/v1/dashboard")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTokenEndpoint(t *testing.T) {
	r, _, _ := newDashboardRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token",
		strings.NewReader(`{"secret":"test-dashboard-secret"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	data := body["data"].(map[string]interface{})
	assert.NotEmpty(t, data["access_token"])
	assert.Equal(t, "Bearer", data["token_type"])

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/token",
		strings.NewReader(`{"secret":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDashboardSnapshotAndActivity(t *testing.T) {
	r, signals, auth := newDashboardRouter(t)
	token := bearerToken(t, auth)

	_, err := signals.OpenPosition(context.Background(), service.OpenRequest{
		Symbol: "EUR/USD", Side: models.SideBuy, Quantity: 1000,
	})
	require.NoError(t, err)

	w := getAuthed(t, r, token, "/api/v1/dashboard")
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeBody(t, w)["data"].(map[string]interface{})
	snapshot := data["snapshot"].(map[string]interface{})
	assert.Contains(t, snapshot["status"], "Data successfully updated")

	activity := data["activity"].([]interface{})
	require.NotEmpty(t, activity)
	first := activity[0].(map[string]interface{})
	assert.Equal(t, "EURUSD", first["symbol"])
}

func TestDashboardRecentTrades(t *testing.T) {
	r, signals, auth := newDashboardRouter(t)
	token := bearerToken(t, auth)

	for _, sym := range []string{"EUR/USD", "GBP/USD"} {
		_, err := signals.OpenPosition(context.Background(), service.OpenRequest{
			Symbol: sym, Side: models.SideBuy, Quantity: 100,
		})
		require.NoError(t, err)
	}

	w := getAuthed(t, r, token, "/api/v1/dashboard/trades")
	require.Equal(t, http.StatusOK, w.Code)
	trades := decodeBody(t, w)["data"].([]interface{})
	require.Len(t, trades, 2)
	// Newest first.
	assert.Equal(t, "GBPUSD", trades[0].(map[string]interface{})["symbol"])
}

func TestDashboardTradesBySymbol(t *testing.T) {
	r, signals, auth := newDashboardRouter(t)
	token := bearerToken(t, auth)

	ctx := context.Background()
	_, err := signals.OpenPosition(ctx, service.OpenRequest{
		Symbol: "EUR/USD", Side: models.SideBuy, Quantity: 100,
	})
	require.NoError(t, err)
	_, err = signals.ClosePosition(ctx, "EUR/USD")
	require.NoError(t, err)
	_, err = signals.OpenPosition(ctx, service.OpenRequest{
		Symbol: "EUR/USD", Side: models.SideSell, Quantity: 200,
	})
	require.NoError(t, err)

	// The raw alert form of the symbol resolves to the same journal rows.
	w := getAuthed(t, r, token, "/api/v1/dashboard/trades/EURUSD?page=1&page_size=10")
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["total"])
	items := data["items"].([]interface{})
	require.Len(t, items, 2)
	assert.Equal(t, "sell", items[0].(map[string]interface{})["side"])
}
