package service

import (
	"github.com/ibkr-relay/internal/models"
)

// TradeJournal is the durable record of trade lifecycle per symbol. Two
// implementations exist: repository.TradeRepository (postgres) and
// repository.MemoryJournal (paper mode, tests). A lookup that finds nothing
// returns repository.ErrTradeNotFound.
type TradeJournal interface {
	// CreateTrade inserts a row and assigns its id; the new row is the
	// active trade for its symbol.
	CreateTrade(trade *models.Trade) error

	// RecordFill matches an order fill against open rows: an entry-order
	// match sets the entry price, a take-profit match sets the exit price
	// and closes the row with take_profit_hit. At most one match fires;
	// anything else is an unmatched no-op.
	RecordFill(orderID string, price float64) (models.FillResult, *models.Trade, error)

	// CloseTrade marks a row closed; idempotent, never reopens.
	CloseTrade(id uint) error

	// ActiveTrade returns the single open row for a symbol.
	ActiveTrade(symbol string) (*models.Trade, error)

	// LastClosedTrade returns the most recently created closed row for a
	// symbol; it drives the re-entry guard.
	LastClosedTrade(symbol string) (*models.Trade, error)

	// FindOpenByOrderID resolves the open row referencing an order id in
	// any of its identifier columns.
	FindOpenByOrderID(orderID string) (*models.Trade, error)

	// Dashboard reads.
	RecentTrades(limit int) ([]models.Trade, error)
	TradesBySymbolPaginated(symbol string, page, pageSize int) ([]models.Trade, int64, error)
}
