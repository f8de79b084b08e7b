package models

import (
	"time"
)

// Side represents the directional intent of a trade entry
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether the side is one of the two known values
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the other direction, used for exit orders and reversals
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Trade is one row of the trade journal: a single position attempt on a
// symbol. A row with Closed=false is the active trade for its symbol; the
// store guarantees at most one such row per symbol. Rows are never deleted,
// the most recent closed row drives the re-entry guard.
type Trade struct {
	ID     uint    `gorm:"primaryKey" json:"id"`
	Symbol string  `gorm:"size:20;not null;index:idx_trades_symbol_closed" json:"symbol"`
	Side   Side    `gorm:"size:4;not null" json:"side"`
	Size   float64 `gorm:"type:decimal(20,8);not null" json:"size"`

	// External order identifiers captured at placement time; the fill
	// reconciler matches on them. Empty means the order was never placed.
	// EntryOrderID is set at creation and never reassigned.
	EntryOrderID      string `gorm:"size:50;index" json:"entry_order_id"`
	TakeProfitOrderID string `gorm:"size:50;index" json:"take_profit_order_id,omitempty"`
	StopLossOrderID   string `gorm:"size:50" json:"stop_loss_order_id,omitempty"`

	EntryPrice       *float64 `gorm:"type:decimal(20,8)" json:"entry_price,omitempty"`
	ExitPrice        *float64 `gorm:"type:decimal(20,8)" json:"exit_price,omitempty"`
	TakeProfitTarget *float64 `gorm:"type:decimal(20,8)" json:"take_profit_target,omitempty"`
	StopLossTarget   *float64 `gorm:"type:decimal(20,8)" json:"stop_loss_target,omitempty"`

	TakeProfitHit bool `gorm:"default:false" json:"take_profit_hit"`
	Closed        bool `gorm:"default:false;index:idx_trades_symbol_closed" json:"closed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Trade model
func (Trade) TableName() string {
	return "trades"
}

// FillResult says which journal match a fill notification fired, if any
type FillResult string

const (
	FillMatchedEntry      FillResult = "entry"
	FillMatchedTakeProfit FillResult = "take_profit"
	FillUnmatched         FillResult = "unmatched"
)
