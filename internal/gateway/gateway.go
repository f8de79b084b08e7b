package gateway

import (
	"context"
	"time"

	"github.com/ibkr-relay/internal/models"
	"github.com/ibkr-relay/pkg/instrument"
)

// OrderKind represents the broker order type
type OrderKind string

const (
	KindMarket OrderKind = "MARKET"
	KindLimit  OrderKind = "LIMIT"
)

// OrderRequest describes a single order submission
type OrderRequest struct {
	Instrument instrument.Instrument `json:"instrument"`
	Direction  models.Side           `json:"direction"`
	Quantity   float64               `json:"quantity"`
	Kind       OrderKind             `json:"kind"`
	// LimitPrice applies to KindLimit orders only
	LimitPrice float64 `json:"limit_price,omitempty"`
}

// EventType discriminates gateway events
type EventType string

const (
	EventFill         EventType = "fill"
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
)

// Event is one notification from the gateway's event stream. Fill events
// carry the broker order identifier and execution price; connectivity events
// carry neither.
type Event struct {
	Type    EventType `json:"type"`
	OrderID string    `json:"order_id,omitempty"`
	Price   float64   `json:"price,omitempty"`
	At      time.Time `json:"at"`
}

// OrderGateway is the capability surface the signal processor and the
// dashboard feed need from broker connectivity. Implementations own session
// management, contract resolution and reconnects; callers never see them.
type OrderGateway interface {
	// PlaceOrder submits an order and returns the broker order identifier.
	PlaceOrder(ctx context.Context, req OrderRequest) (string, error)

	// CancelOrder cancels a resting order by its broker identifier.
	CancelOrder(ctx context.Context, orderID string) error

	// Events yields fill and connectivity notifications. Fill events for the
	// same order identifier are delivered in order.
	Events() <-chan Event

	// AccountSummary and Positions are read-only snapshot accessors used by
	// the dashboard feed only.
	AccountSummary(ctx context.Context) (models.AccountSummary, error)
	Positions(ctx context.Context) ([]models.BrokerPosition, error)
}
