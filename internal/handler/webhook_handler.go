package handler

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/ibkr-relay/internal/metrics"
	"github.com/ibkr-relay/internal/models"
	"github.com/ibkr-relay/internal/service"
	"github.com/ibkr-relay/pkg/response"
)

// WebhookHandler receives trading signals from the external alerting
// transport and forwards them to the signal processor.
type WebhookHandler struct {
	signals *service.SignalService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(signals *service.SignalService) *WebhookHandler {
	return &WebhookHandler{signals: signals}
}

// RegisterRoutes registers the webhook route
func (h *WebhookHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/webhook", h.HandleSignal)
}

// SignalRequest is the inbound signal message. action=open requires side and
// quantity; action=close requires only the symbol.
type SignalRequest struct {
	Action     string   `json:"action" binding:"required"`
	Symbol     string   `json:"symbol" binding:"required"`
	Side       string   `json:"side"`
	Quantity   float64  `json:"quantity"`
	TakeProfit *float64 `json:"takeProfit"`
	StopLoss   *float64 `json:"stopLoss"`
}

// HandleSignal processes one signal intent
// POST /webhook
func (h *WebhookHandler) HandleSignal(c *gin.Context) {
	var req SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.Signals.WithLabelValues("unknown", "malformed").Inc()
		response.BadRequest(c, err.Error())
		return
	}

	switch req.Action {
	case "open":
		h.handleOpen(c, req)
	case "close":
		h.handleClose(c, req)
	default:
		metrics.Signals.WithLabelValues(req.Action, "malformed").Inc()
		response.BadRequest(c, fmt.Sprintf("unknown action %q", req.Action))
	}
}

func (h *WebhookHandler) handleOpen(c *gin.Context, req SignalRequest) {
	side := models.Side(req.Side)
	if !side.Valid() {
		metrics.Signals.WithLabelValues("open", "malformed").Inc()
		response.BadRequest(c, "side must be \"buy\" or \"sell\"")
		return
	}
	if req.Quantity <= 0 {
		metrics.Signals.WithLabelValues("open", "malformed").Inc()
		response.BadRequest(c, "quantity must be positive")
		return
	}

	result, err := h.signals.OpenPosition(c.Request.Context(), service.OpenRequest{
		Symbol:     req.Symbol,
		Side:       side,
		Quantity:   req.Quantity,
		TakeProfit: req.TakeProfit,
		StopLoss:   req.StopLoss,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReentryBlocked):
			metrics.Signals.WithLabelValues("open", "rejected").Inc()
			response.Conflict(c, err.Error())
		case errors.Is(err, service.ErrInvalidSide), errors.Is(err, service.ErrInvalidQuantity):
			metrics.Signals.WithLabelValues("open", "malformed").Inc()
			response.BadRequest(c, err.Error())
		default:
			metrics.Signals.WithLabelValues("open", "failed").Inc()
			response.BadGateway(c, err.Error())
		}
		return
	}

	metrics.Signals.WithLabelValues("open", string(result.Status)).Inc()
	response.Success(c, result)
}

func (h *WebhookHandler) handleClose(c *gin.Context, req SignalRequest) {
	trade, err := h.signals.ClosePosition(c.Request.Context(), req.Symbol)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveTrade) {
			// Informational, not a failure: there was nothing to close.
			metrics.Signals.WithLabelValues("close", "no_active_trade").Inc()
			response.Info(c, fmt.Sprintf("no active trade for %s", req.Symbol))
			return
		}
		metrics.Signals.WithLabelValues("close", "failed").Inc()
		response.BadGateway(c, err.Error())
		return
	}

	metrics.Signals.WithLabelValues("close", "closed").Inc()
	response.Success(c, trade)
}
