package models

import "time"

// AccountSummary is the broker-reported account state shown on the dashboard.
// Values are display-only and never feed the signal path.
type AccountSummary struct {
	NetLiquidation float64 `json:"net_liquidation"`
	TotalCash      float64 `json:"total_cash"`
	BuyingPower    float64 `json:"buying_power"`
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
	RealizedPnL    float64 `json:"realized_pnl"`
}

// BrokerPosition is one row of the broker's position report
type BrokerPosition struct {
	Symbol   string  `json:"symbol"`
	Position float64 `json:"position"`
	AvgCost  float64 `json:"avg_cost"`
}

// DashboardSnapshot is the read-mostly state behind the dashboard API. It is
// rebuilt wholesale on every refresh cycle and never mutated in place.
type DashboardSnapshot struct {
	Status    string           `json:"status"`
	Account   AccountSummary   `json:"account"`
	Positions []BrokerPosition `json:"positions"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ActivityEntry is one line of the dashboard activity log: an order placed,
// a signal rejected, a fill reconciled.
type ActivityEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}
