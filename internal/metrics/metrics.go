// Package metrics holds the Prometheus collectors the relay updates while
// processing signals and reconciling fills:
//   - relay_signals_total{action,outcome}     – webhook intents by outcome
//   - relay_orders_placed_total{kind,direction} – gateway order placements
//   - relay_fills_total{result}               – fill events by journal match
//   - relay_reversals_total                   – opposite-direction reversals
//   - relay_gateway_connected                 – event stream connectivity (0/1)
//   - relay_snapshot_refresh_timestamp        – last dashboard refresh (unix)
//
// All collectors register in init() and are served at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_signals_total",
			Help: "Webhook intents processed, by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_orders_placed_total",
			Help: "Orders submitted to the gateway, by kind and direction",
		},
		[]string{"kind", "direction"},
	)

	Fills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_fills_total",
			Help: "Fill events reconciled against the journal, by match result",
		},
		[]string{"result"},
	)

	Reversals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_reversals_total",
			Help: "Opposite-direction signals that closed an active trade first",
		},
	)

	GatewayConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_gateway_connected",
			Help: "Whether the gateway event stream is connected (0/1)",
		},
	)

	SnapshotRefresh = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_snapshot_refresh_timestamp",
			Help: "Unix time of the last successful dashboard snapshot refresh",
		},
	)
)

func init() {
	prometheus.MustRegister(
		Signals,
		OrdersPlaced,
		Fills,
		Reversals,
		GatewayConnected,
		SnapshotRefresh,
	)
}
