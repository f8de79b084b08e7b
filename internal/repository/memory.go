package repository

import (
	"sync"
	"time"

	"github.com/ibkr-relay/internal/models"
)

// MemoryJournal is an in-memory trade journal with the same contract as
// TradeRepository. It backs paper runs with no database and the test suite.
type MemoryJournal struct {
	mu     sync.Mutex
	nextID uint
	trades []*models.Trade
}

// NewMemoryJournal creates an empty in-memory journal
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{nextID: 1}
}

// CreateTrade inserts a new journal row and assigns its id
func (m *MemoryJournal) CreateTrade(trade *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	trade.ID = m.nextID
	m.nextID++
	now := time.Now()
	trade.CreatedAt = now
	trade.UpdatedAt = now

	stored := *trade
	m.trades = append(m.trades, &stored)
	return nil
}

// RecordFill applies a fill notification; see TradeRepository.RecordFill for
// the matching contract.
func (m *MemoryJournal) RecordFill(orderID string, price float64) (models.FillResult, *models.Trade, error) {
	if orderID == "" {
		return models.FillUnmatched, nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.trades) - 1; i >= 0; i-- {
		t := m.trades[i]
		if t.Closed {
			continue
		}
		if t.EntryOrderID == orderID {
			p := price
			t.EntryPrice = &p
			t.UpdatedAt = time.Now()
			cp := *t
			return models.FillMatchedEntry, &cp, nil
		}
		if t.TakeProfitOrderID == orderID {
			p := price
			t.ExitPrice = &p
			t.Closed = true
			t.TakeProfitHit = true
			t.UpdatedAt = time.Now()
			cp := *t
			return models.FillMatchedTakeProfit, &cp, nil
		}
	}
	return models.FillUnmatched, nil, nil
}

// CloseTrade marks a row closed; idempotent
func (m *MemoryJournal) CloseTrade(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.trades {
		if t.ID == id {
			t.Closed = true
			t.UpdatedAt = time.Now()
			return nil
		}
	}
	return nil
}

// ActiveTrade returns the open row for a symbol, or ErrTradeNotFound
func (m *MemoryJournal) ActiveTrade(symbol string) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.trades) - 1; i >= 0; i-- {
		t := m.trades[i]
		if t.Symbol == symbol && !t.Closed {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTradeNotFound
}

// LastClosedTrade returns the most recently created closed row for a symbol,
// or ErrTradeNotFound
func (m *MemoryJournal) LastClosedTrade(symbol string) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.trades) - 1; i >= 0; i-- {
		t := m.trades[i]
		if t.Symbol == symbol && t.Closed {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTradeNotFound
}

// FindOpenByOrderID resolves the open row referencing an order id
func (m *MemoryJournal) FindOpenByOrderID(orderID string) (*models.Trade, error) {
	if orderID == "" {
		return nil, ErrTradeNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.trades) - 1; i >= 0; i-- {
		t := m.trades[i]
		if t.Closed {
			continue
		}
		if t.EntryOrderID == orderID || t.TakeProfitOrderID == orderID || t.StopLossOrderID == orderID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTradeNotFound
}

// RecentTrades returns the newest rows, newest first
func (m *MemoryJournal) RecentTrades(limit int) ([]models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Trade, 0, limit)
	for i := len(m.trades) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.trades[i])
	}
	return out, nil
}

// TradesBySymbolPaginated returns a symbol's journal page plus total count
func (m *MemoryJournal) TradesBySymbolPaginated(symbol string, page, pageSize int) ([]models.Trade, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []models.Trade
	for i := len(m.trades) - 1; i >= 0; i-- {
		if m.trades[i].Symbol == symbol {
			all = append(all, *m.trades[i])
		}
	}

	total := int64(len(all))
	start := (page - 1) * pageSize
	if start < 0 || start >= len(all) {
		return []models.Trade{}, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}
