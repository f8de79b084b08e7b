package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/ibkr-relay/internal/models"
)

var (
	ErrTradeNotFound = errors.New("trade not found")
)

// TradeRepository is the durable trade journal, backed by postgres. The
// "one active trade per symbol" invariant is maintained by the signal
// processor, which serializes all writes for a symbol; the repository only
// promises that each operation is atomic.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new TradeRepository
func NewTradeRepository(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// CreateTrade inserts a new journal row and assigns its id
func (r *TradeRepository) CreateTrade(trade *models.Trade) error {
	return r.db.Create(trade).Error
}

// RecordFill applies a fill notification to the journal. An open row whose
// entry order matches gets its entry price; an open row whose take-profit
// order matches gets its exit price and is closed with take_profit_hit set.
// The two identifier spaces are disjoint by construction, so at most one
// match fires. An unmatched order id is a no-op, not an error: stop-loss
// fills and orders from other sessions land here.
func (r *TradeRepository) RecordFill(orderID string, price float64) (models.FillResult, *models.Trade, error) {
	if orderID == "" {
		return models.FillUnmatched, nil, nil
	}

	result := models.FillUnmatched
	var matched *models.Trade

	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Trade{}).
			Where("entry_order_id = ? AND closed = ?", orderID, false).
			Update("entry_price", price)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			result = models.FillMatchedEntry
		} else {
			res = tx.Model(&models.Trade{}).
				Where("take_profit_order_id = ? AND closed = ?", orderID, false).
				Updates(map[string]interface{}{
					"exit_price":      price,
					"closed":          true,
					"take_profit_hit": true,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				result = models.FillMatchedTakeProfit
			}
		}

		if result == models.FillUnmatched {
			return nil
		}

		column := "entry_order_id"
		if result == models.FillMatchedTakeProfit {
			column = "take_profit_order_id"
		}
		var trade models.Trade
		if err := tx.Where(column+" = ?", orderID).Order("id DESC").First(&trade).Error; err != nil {
			return err
		}
		matched = &trade
		return nil
	})
	if err != nil {
		return models.FillUnmatched, nil, err
	}
	return result, matched, nil
}

// CloseTrade marks a journal row closed. Idempotent; closing an already
// closed row changes nothing.
func (r *TradeRepository) CloseTrade(id uint) error {
	return r.db.Model(&models.Trade{}).
		Where("id = ?", id).
		Update("closed", true).Error
}

// ActiveTrade returns the open row for a symbol, or ErrTradeNotFound
func (r *TradeRepository) ActiveTrade(symbol string) (*models.Trade, error) {
	var trade models.Trade
	result := r.db.Where("symbol = ? AND closed = ?", symbol, false).
		Order("id DESC").
		First(&trade)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, result.Error
	}
	return &trade, nil
}

// LastClosedTrade returns the most recently created closed row for a symbol,
// or ErrTradeNotFound. It drives the re-entry guard.
func (r *TradeRepository) LastClosedTrade(symbol string) (*models.Trade, error) {
	var trade models.Trade
	result := r.db.Where("symbol = ? AND closed = ?", symbol, true).
		Order("id DESC").
		First(&trade)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, result.Error
	}
	return &trade, nil
}

// FindOpenByOrderID resolves the open row that references an order id in any
// of its three identifier columns. The reconciler uses it to learn which
// symbol a fill belongs to before taking that symbol's lock.
func (r *TradeRepository) FindOpenByOrderID(orderID string) (*models.Trade, error) {
	if orderID == "" {
		return nil, ErrTradeNotFound
	}
	var trade models.Trade
	result := r.db.
		Where("closed = ? AND (entry_order_id = ? OR take_profit_order_id = ? OR stop_loss_order_id = ?)",
			false, orderID, orderID, orderID).
		Order("id DESC").
		First(&trade)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, result.Error
	}
	return &trade, nil
}

// RecentTrades returns the newest journal rows for the dashboard
func (r *TradeRepository) RecentTrades(limit int) ([]models.Trade, error) {
	var trades []models.Trade
	result := r.db.Order("id DESC").Limit(limit).Find(&trades)
	return trades, result.Error
}

// TradesBySymbolPaginated returns a symbol's journal page plus total count
func (r *TradeRepository) TradesBySymbolPaginated(symbol string, page, pageSize int) ([]models.Trade, int64, error) {
	var trades []models.Trade
	var total int64

	if err := r.db.Model(&models.Trade{}).Where("symbol = ?", symbol).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	result := r.db.Where("symbol = ?", symbol).
		Order("id DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&trades)

	return trades, total, result.Error
}
