package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ibkr-relay/internal/gateway"
	"github.com/ibkr-relay/internal/metrics"
	"github.com/ibkr-relay/internal/models"
	"github.com/ibkr-relay/internal/repository"
	"github.com/ibkr-relay/pkg/instrument"
)

var (
	ErrReentryBlocked  = errors.New("re-entry blocked by recent take-profit")
	ErrNoActiveTrade   = errors.New("no active trade for symbol")
	ErrInvalidSide     = errors.New("side must be buy or sell")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// ActivityLog receives one line per notable trading event for display.
// DashboardService implements it; a nil log disables recording.
type ActivityLog interface {
	Record(symbol, action, details string)
}

// SignalService is the signal-to-order state machine. Each symbol is either
// flat or holding one active trade; open and close intents move it between
// the two, and every order the service places is journaled so fills can be
// reconciled later. All journal reads and writes for a symbol happen under
// that symbol's lock.
type SignalService struct {
	journal  TradeJournal
	gateway  gateway.OrderGateway
	locks    *symbolLocks
	activity ActivityLog
}

// NewSignalService creates a new SignalService. activity may be nil.
func NewSignalService(journal TradeJournal, gw gateway.OrderGateway, activity ActivityLog) *SignalService {
	return &SignalService{
		journal:  journal,
		gateway:  gw,
		locks:    newSymbolLocks(),
		activity: activity,
	}
}

// OpenRequest is an open intent after transport-level validation
type OpenRequest struct {
	Symbol     string
	Side       models.Side
	Quantity   float64
	TakeProfit *float64
	StopLoss   *float64
}

// OpenStatus reports what an open intent actually did
type OpenStatus string

const (
	StatusOpened    OpenStatus = "opened"
	StatusDuplicate OpenStatus = "duplicate"
)

// OpenResult is the outcome of an open intent
type OpenResult struct {
	Status   OpenStatus    `json:"status"`
	Reversed bool          `json:"reversed"`
	Trade    *models.Trade `json:"trade,omitempty"`
}

// OpenPosition runs the open path of the state machine:
//
//  1. re-entry guard: if the symbol's last closed trade hit its take-profit
//     in the same direction, the intent is rejected outright;
//  2. same-side active trade: duplicate signal, no-op;
//  3. opposite-side active trade: reversal — the active trade is closed
//     first, then the new entry proceeds. The close leg and the entry leg
//     are submitted back to back without waiting for fills, so both
//     positions can briefly be outstanding at the broker;
//  4. market entry, then optional resting take-profit and stop exits, then
//     one journal row capturing every identifier that was placed.
//
// If the entry order was placed but a later exit placement fails, the row is
// journaled with whatever was captured before the error is returned: the
// journal must never lose track of a live entry order.
func (s *SignalService) OpenPosition(ctx context.Context, req OpenRequest) (*OpenResult, error) {
	if !req.Side.Valid() {
		return nil, ErrInvalidSide
	}
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	inst := instrument.Parse(req.Symbol)
	sym := inst.Symbol

	lock := s.locks.get(sym)
	lock.Lock()
	defer lock.Unlock()

	last, err := s.journal.LastClosedTrade(sym)
	if err != nil && !errors.Is(err, repository.ErrTradeNotFound) {
		return nil, fmt.Errorf("journal lookup for %s: %w", sym, err)
	}
	if last != nil && last.TakeProfitHit && last.Side == req.Side {
		log.Printf("[signal] re-entry for %s on %s blocked by recent take-profit", req.Side, sym)
		s.record(sym, "RE-ENTRY BLOCKED",
			fmt.Sprintf("%s signal rejected, last %s trade hit its take-profit", req.Side, last.Side))
		return nil, ErrReentryBlocked
	}

	reversed := false
	active, err := s.journal.ActiveTrade(sym)
	if err != nil && !errors.Is(err, repository.ErrTradeNotFound) {
		return nil, fmt.Errorf("journal lookup for %s: %w", sym, err)
	}
	if active != nil {
		if active.Side == req.Side {
			log.Printf("[signal] %s signal matches active trade on %s, no action", req.Side, sym)
			return &OpenResult{Status: StatusDuplicate, Trade: active}, nil
		}

		log.Printf("[signal] %s signal opposes active %s trade on %s, reversing", req.Side, active.Side, sym)
		metrics.Reversals.Inc()
		if err := s.closeActive(ctx, active, inst); err != nil {
			return nil, fmt.Errorf("reversal close on %s: %w", sym, err)
		}
		reversed = true
	}

	entryID, err := s.placeOrder(ctx, gateway.OrderRequest{
		Instrument: inst,
		Direction:  req.Side,
		Quantity:   req.Quantity,
		Kind:       gateway.KindMarket,
	})
	if err != nil {
		return nil, fmt.Errorf("entry order on %s: %w", sym, err)
	}
	s.record(sym, fmt.Sprintf("Market Order (%s)", req.Side),
		fmt.Sprintf("qty %v, order %s", req.Quantity, entryID))

	trade := &models.Trade{
		Symbol:       sym,
		Side:         req.Side,
		Size:         req.Quantity,
		EntryOrderID: entryID,
	}

	exitSide := req.Side.Opposite()

	if req.TakeProfit != nil {
		tpID, err := s.placeOrder(ctx, gateway.OrderRequest{
			Instrument: inst,
			Direction:  exitSide,
			Quantity:   req.Quantity,
			Kind:       gateway.KindLimit,
			LimitPrice: *req.TakeProfit,
		})
		if err != nil {
			return nil, s.journalPartial(trade, fmt.Errorf("take-profit order on %s: %w", sym, err))
		}
		trade.TakeProfitOrderID = tpID
		trade.TakeProfitTarget = req.TakeProfit
		s.record(sym, fmt.Sprintf("Take Profit (%s)", exitSide),
			fmt.Sprintf("limit %v, order %s", *req.TakeProfit, tpID))
	}

	if req.StopLoss != nil {
		// The stop exit rests as a price-limit order, same as the source
		// system placed it; its fills are not matched by the reconciler.
		slID, err := s.placeOrder(ctx, gateway.OrderRequest{
			Instrument: inst,
			Direction:  exitSide,
			Quantity:   req.Quantity,
			Kind:       gateway.KindLimit,
			LimitPrice: *req.StopLoss,
		})
		if err != nil {
			return nil, s.journalPartial(trade, fmt.Errorf("stop-loss order on %s: %w", sym, err))
		}
		trade.StopLossOrderID = slID
		trade.StopLossTarget = req.StopLoss
		s.record(sym, fmt.Sprintf("Stop Loss (%s)", exitSide),
			fmt.Sprintf("limit %v, order %s", *req.StopLoss, slID))
	}

	if err := s.journal.CreateTrade(trade); err != nil {
		return nil, fmt.Errorf("journal create for %s: %w", sym, err)
	}

	return &OpenResult{Status: StatusOpened, Reversed: reversed, Trade: trade}, nil
}

// ClosePosition runs the close path: cancel the resting take-profit if one
// exists (failures are logged and swallowed), submit an opposite market
// order, and mark the row closed. Closure is optimistic — the row is marked
// as soon as the closing order is submitted, not when its fill arrives.
func (s *SignalService) ClosePosition(ctx context.Context, symbol string) (*models.Trade, error) {
	inst := instrument.Parse(symbol)
	sym := inst.Symbol

	lock := s.locks.get(sym)
	lock.Lock()
	defer lock.Unlock()

	active, err := s.journal.ActiveTrade(sym)
	if err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			log.Printf("[signal] no active trade on %s to close", sym)
			return nil, ErrNoActiveTrade
		}
		return nil, fmt.Errorf("journal lookup for %s: %w", sym, err)
	}

	if err := s.closeActive(ctx, active, inst); err != nil {
		return nil, err
	}
	active.Closed = true
	return active, nil
}

// closeActive closes a specific active trade. Callers hold the symbol lock.
func (s *SignalService) closeActive(ctx context.Context, trade *models.Trade, inst instrument.Instrument) error {
	if trade.TakeProfitOrderID != "" {
		if err := s.gateway.CancelOrder(ctx, trade.TakeProfitOrderID); err != nil {
			// The close proceeds regardless; the resting order either fills
			// against the flat book or is cleaned up by the broker session.
			log.Printf("[signal] failed to cancel take-profit order %s on %s: %v",
				trade.TakeProfitOrderID, trade.Symbol, err)
		} else {
			log.Printf("[signal] cancelled take-profit order %s on %s", trade.TakeProfitOrderID, trade.Symbol)
		}
	}

	closeSide := trade.Side.Opposite()
	orderID, err := s.placeOrder(ctx, gateway.OrderRequest{
		Instrument: inst,
		Direction:  closeSide,
		Quantity:   trade.Size,
		Kind:       gateway.KindMarket,
	})
	if err != nil {
		return fmt.Errorf("close order on %s: %w", trade.Symbol, err)
	}

	if err := s.journal.CloseTrade(trade.ID); err != nil {
		return fmt.Errorf("journal close for %s: %w", trade.Symbol, err)
	}

	s.record(trade.Symbol, fmt.Sprintf("Close by Signal (%s)", closeSide),
		fmt.Sprintf("qty %v, order %s", trade.Size, orderID))
	return nil
}

// ApplyFill reconciles one gateway fill event into the journal. The order id
// is resolved to a symbol first so the update runs under the same lock as
// the signal paths; an id the journal does not reference is a no-op.
func (s *SignalService) ApplyFill(orderID string, price float64) (models.FillResult, error) {
	open, err := s.journal.FindOpenByOrderID(orderID)
	if err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			metrics.Fills.WithLabelValues(string(models.FillUnmatched)).Inc()
			return models.FillUnmatched, nil
		}
		return models.FillUnmatched, fmt.Errorf("journal lookup for order %s: %w", orderID, err)
	}

	lock := s.locks.get(open.Symbol)
	lock.Lock()
	defer lock.Unlock()

	result, matched, err := s.journal.RecordFill(orderID, price)
	if err != nil {
		return models.FillUnmatched, fmt.Errorf("record fill for order %s: %w", orderID, err)
	}
	metrics.Fills.WithLabelValues(string(result)).Inc()

	switch result {
	case models.FillMatchedEntry:
		log.Printf("[reconcile] entry fill for %s trade %d at %v", matched.Symbol, matched.ID, price)
		s.record(matched.Symbol, "Entry Fill", fmt.Sprintf("order %s at %v", orderID, price))
	case models.FillMatchedTakeProfit:
		log.Printf("[reconcile] take-profit fill for %s trade %d at %v", matched.Symbol, matched.ID, price)
		s.record(matched.Symbol, "Take Profit Hit", fmt.Sprintf("order %s at %v", orderID, price))
	}
	return result, nil
}

// RecentTrades exposes the journal to the dashboard API
func (s *SignalService) RecentTrades(limit int) ([]models.Trade, error) {
	return s.journal.RecentTrades(limit)
}

// TradesBySymbol exposes a symbol's journal page to the dashboard API
func (s *SignalService) TradesBySymbol(symbol string, page, pageSize int) ([]models.Trade, int64, error) {
	return s.journal.TradesBySymbolPaginated(instrument.Normalize(symbol), page, pageSize)
}

func (s *SignalService) placeOrder(ctx context.Context, req gateway.OrderRequest) (string, error) {
	id, err := s.gateway.PlaceOrder(ctx, req)
	if err != nil {
		return "", err
	}
	metrics.OrdersPlaced.WithLabelValues(string(req.Kind), string(req.Direction)).Inc()
	return id, nil
}

// journalPartial journals a trade whose entry leg is live after a later
// placement failed, then returns the placement error. Losing the row would
// orphan the entry order at the broker.
func (s *SignalService) journalPartial(trade *models.Trade, cause error) error {
	if err := s.journal.CreateTrade(trade); err != nil {
		return fmt.Errorf("journal create after placement failure (%v): %w", cause, err)
	}
	s.record(trade.Symbol, "PARTIAL PLACEMENT", cause.Error())
	return cause
}

func (s *SignalService) record(symbol, action, details string) {
	if s.activity != nil {
		s.activity.Record(symbol, action, details)
	}
}
