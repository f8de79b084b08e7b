package ibgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ibkr-relay/internal/config"
	"github.com/ibkr-relay/internal/gateway"
	"github.com/ibkr-relay/internal/models"
)

const (
	pingInterval         = 30 * time.Second
	reconnectDelay       = 5 * time.Second
	maxReconnectAttempts = 10
	eventBuffer          = 256
)

// Client talks to the IB gateway bridge: order placement, cancellation and
// account snapshots over REST, execution and connectivity events over a
// websocket stream.
type Client struct {
	restURL string
	wsURL   string
	http    *http.Client

	conn        *websocket.Conn
	connMux     sync.RWMutex
	isConnected bool

	events chan gateway.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	reconnectAttempts int
}

// NewClient creates a gateway client from config. Connect must be called
// before Events yields anything.
func NewClient(cfg config.GatewayConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		restURL: cfg.RestURL,
		wsURL:   cfg.WSURL,
		http:    &http.Client{Timeout: timeout},
		events:  make(chan gateway.Event, eventBuffer),
	}
}

// IsConnected returns whether the event stream is connected
func (c *Client) IsConnected() bool {
	c.connMux.RLock()
	defer c.connMux.RUnlock()
	return c.isConnected
}

// Connect establishes the event stream and starts its keepalive loops
func (c *Client) Connect(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		return err
	}

	c.wg.Add(1)
	go c.messageLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return nil
}

func (c *Client) connect() error {
	c.connMux.Lock()
	defer c.connMux.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to gateway event stream: %w", err)
	}

	c.conn = conn
	c.isConnected = true
	c.reconnectAttempts = 0

	log.Printf("[ibgw] event stream connected")
	c.emit(gateway.Event{Type: gateway.EventConnected, At: time.Now()})

	return nil
}

// Events yields fill and connectivity notifications
func (c *Client) Events() <-chan gateway.Event {
	return c.events
}

// wireEvent is the bridge's event frame
type wireEvent struct {
	Type    string  `json:"type"`
	OrderID string  `json:"orderId"`
	Price   float64 `json:"price"`
}

func (c *Client) messageLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.connMux.RLock()
		conn := c.conn
		c.connMux.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[ibgw] read error: %v", err)
			c.handleDisconnect()
			return
		}

		var ev wireEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			log.Printf("[ibgw] malformed event frame: %v", err)
			continue
		}
		if ev.Type != "execution" || ev.OrderID == "" {
			continue
		}
		c.emit(gateway.Event{
			Type:    gateway.EventFill,
			OrderID: ev.OrderID,
			Price:   ev.Price,
			At:      time.Now(),
		})
	}
}

func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.connMux.RLock()
			conn := c.conn
			connected := c.isConnected
			c.connMux.RUnlock()
			if !connected || conn == nil {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Printf("[ibgw] ping failed: %v", err)
			}
		}
	}
}

func (c *Client) handleDisconnect() {
	c.connMux.Lock()
	c.isConnected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMux.Unlock()

	c.emit(gateway.Event{Type: gateway.EventDisconnected, At: time.Now()})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.connMux.Lock()
		attempts := c.reconnectAttempts
		c.reconnectAttempts++
		c.connMux.Unlock()

		if attempts >= maxReconnectAttempts {
			log.Printf("[ibgw] giving up after %d reconnect attempts", attempts)
			return
		}

		time.Sleep(reconnectDelay)
		log.Printf("[ibgw] reconnecting (attempt %d)", attempts+1)
		if err := c.connect(); err != nil {
			log.Printf("[ibgw] reconnect failed: %v", err)
			continue
		}

		c.wg.Add(1)
		go c.messageLoop()
		return
	}
}

// emit drops events when the consumer falls far behind rather than blocking
// the read loop.
func (c *Client) emit(ev gateway.Event) {
	select {
	case c.events <- ev:
	default:
		log.Printf("[ibgw] event buffer full, dropping %s event", ev.Type)
	}
}

// Close tears down the connection and stops the loops
func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}

	c.connMux.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
		c.conn = nil
	}
	c.isConnected = false
	c.connMux.Unlock()

	c.wg.Wait()
	close(c.events)
	return nil
}

// placeOrderRequest is the bridge's order submission payload
type placeOrderRequest struct {
	ClientOrderID string  `json:"clientOrderId"`
	Symbol        string  `json:"symbol"`
	Class         string  `json:"class"`
	Direction     string  `json:"direction"`
	Quantity      float64 `json:"quantity"`
	Kind          string  `json:"kind"`
	LimitPrice    float64 `json:"limitPrice,omitempty"`
}

type placeOrderResponse struct {
	OrderID string `json:"orderId"`
}

// PlaceOrder submits an order via the bridge and returns the broker order id
func (c *Client) PlaceOrder(ctx context.Context, req gateway.OrderRequest) (string, error) {
	payload := placeOrderRequest{
		ClientOrderID: uuid.New().String(),
		Symbol:        req.Instrument.Symbol,
		Class:         string(req.Instrument.Class),
		Direction:     string(req.Direction),
		Quantity:      req.Quantity,
		Kind:          string(req.Kind),
		LimitPrice:    req.LimitPrice,
	}

	var resp placeOrderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/orders", payload, &resp); err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}
	if resp.OrderID == "" {
		return "", fmt.Errorf("place order: bridge returned no order id")
	}
	return resp.OrderID, nil
}

// CancelOrder cancels a resting order by broker order id
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/v1/orders/"+orderID, nil, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// AccountSummary fetches the broker account snapshot
func (c *Client) AccountSummary(ctx context.Context) (models.AccountSummary, error) {
	var summary models.AccountSummary
	if err := c.doJSON(ctx, http.MethodGet, "/v1/account", nil, &summary); err != nil {
		return models.AccountSummary{}, fmt.Errorf("account summary: %w", err)
	}
	return summary, nil
}

// Positions fetches the broker position report
func (c *Client) Positions(ctx context.Context) ([]models.BrokerPosition, error) {
	var positions []models.BrokerPosition
	if err := c.doJSON(ctx, http.MethodGet, "/v1/positions", nil, &positions); err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	return positions, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.restURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("bridge returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
