package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ibkr-relay/internal/service"
	"github.com/ibkr-relay/pkg/response"
)

// DashboardHandler serves the read-only dashboard API: account snapshot,
// activity log and trade journal listings.
type DashboardHandler struct {
	dashboard *service.DashboardService
	signals   *service.SignalService
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(dashboard *service.DashboardService, signals *service.SignalService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, signals: signals}
}

// RegisterRoutes registers dashboard routes behind the given middleware
func (h *DashboardHandler) RegisterRoutes(r *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	dash := r.Group("/dashboard", authMiddleware)
	{
		dash.GET("", h.GetDashboard)
		dash.GET("/trades", h.GetRecentTrades)
		dash.GET("/trades/:symbol", h.GetTradesBySymbol)
	}
}

// GetDashboard returns the current snapshot and activity log
// GET /api/v1/dashboard
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	response.Success(c, gin.H{
		"snapshot": h.dashboard.Snapshot(),
		"activity": h.dashboard.Activity(50),
	})
}

// GetRecentTrades returns the newest journal rows
// GET /api/v1/dashboard/trades
func (h *DashboardHandler) GetRecentTrades(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	trades, err := h.signals.RecentTrades(limit)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, trades)
}

// GetTradesBySymbol returns one symbol's journal page
// GET /api/v1/dashboard/trades/:symbol
func (h *DashboardHandler) GetTradesBySymbol(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 20
	}

	trades, total, err := h.signals.TradesBySymbol(c.Param("symbol"), page, pageSize)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.SuccessPaginated(c, trades, total, page, pageSize)
}
