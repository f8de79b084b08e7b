package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ibkr-relay/internal/gateway"
	"github.com/ibkr-relay/internal/models"
)

// Order is a record of one order accepted by the simulated gateway
type Order struct {
	ID       string
	Request  gateway.OrderRequest
	PlacedAt time.Time
	Canceled bool
}

// Gateway is an in-process OrderGateway. It accepts every order, remembers
// it, and emits fills only when told to via Fill. Used for paper runs and
// throughout the tests; there is no price engine behind it.
type Gateway struct {
	mu       sync.Mutex
	orders   map[string]*Order
	sequence []string

	events chan gateway.Event

	account   models.AccountSummary
	positions []models.BrokerPosition
}

// New creates a simulated gateway
func New() *Gateway {
	return &Gateway{
		orders: make(map[string]*Order),
		events: make(chan gateway.Event, 64),
	}
}

// PlaceOrder accepts the order unconditionally and returns a fresh id
func (g *Gateway) PlaceOrder(_ context.Context, req gateway.OrderRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := uuid.New().String()
	g.orders[id] = &Order{ID: id, Request: req, PlacedAt: time.Now()}
	g.sequence = append(g.sequence, id)
	return id, nil
}

// CancelOrder marks a resting order canceled
func (g *Gateway) CancelOrder(_ context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ord, ok := g.orders[orderID]
	if !ok {
		return fmt.Errorf("unknown order %s", orderID)
	}
	ord.Canceled = true
	return nil
}

// Events yields the simulated event stream
func (g *Gateway) Events() <-chan gateway.Event {
	return g.events
}

// AccountSummary returns the configured account snapshot
func (g *Gateway) AccountSummary(_ context.Context) (models.AccountSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.account, nil
}

// Positions returns the configured position report
func (g *Gateway) Positions(_ context.Context) ([]models.BrokerPosition, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.BrokerPosition, len(g.positions))
	copy(out, g.positions)
	return out, nil
}

// SetAccountSummary replaces the snapshot returned by AccountSummary
func (g *Gateway) SetAccountSummary(summary models.AccountSummary) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.account = summary
}

// SetPositions replaces the report returned by Positions
func (g *Gateway) SetPositions(positions []models.BrokerPosition) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.positions = positions
}

// Fill emits a fill event for the given order id at the given price. The id
// does not have to belong to a known order; the journal treats unknown fills
// as no-ops and callers test exactly that.
func (g *Gateway) Fill(orderID string, price float64) {
	g.events <- gateway.Event{
		Type:    gateway.EventFill,
		OrderID: orderID,
		Price:   price,
		At:      time.Now(),
	}
}

// EmitConnectivity emits a connected or disconnected event
func (g *Gateway) EmitConnectivity(up bool) {
	typ := gateway.EventConnected
	if !up {
		typ = gateway.EventDisconnected
	}
	g.events <- gateway.Event{Type: typ, At: time.Now()}
}

// Orders returns all accepted orders in placement sequence
func (g *Gateway) Orders() []Order {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Order, 0, len(g.sequence))
	for _, id := range g.sequence {
		out = append(out, *g.orders[id])
	}
	return out
}

// Order looks up one accepted order by id
func (g *Gateway) Order(id string) (Order, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ord, ok := g.orders[id]
	if !ok {
		return Order{}, false
	}
	return *ord, true
}

// Close closes the event stream
func (g *Gateway) Close() error {
	close(g.events)
	return nil
}

var _ gateway.OrderGateway = (*Gateway)(nil)
