// Package metrics exposes engine counters over Prometheus.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RepaymentsProcessed counts repayments by result (success/failed).
	RepaymentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kredia",
		Name:      "repayments_processed_total",
		Help:      "Repayments processed by the engine, by result.",
	}, []string{"result"})

	// Disbursements counts disbursement attempts by result
	// (committed/compensated).
	Disbursements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kredia",
		Name:      "disbursements_total",
		Help:      "Disbursement attempts, by result.",
	}, []string{"result"})

	// Refunds counts refund attempts by flavor and result.
	Refunds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kredia",
		Name:      "refunds_total",
		Help:      "Refund attempts, by flavor and result.",
	}, []string{"flavor", "result"})

	// IdempotentReplays counts transport-level idempotency cache hits.
	IdempotentReplays = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kredia",
		Name:      "idempotent_replays_total",
		Help:      "Responses replayed from the idempotency cache.",
	})

	// WebsocketClients gauges live notification subscribers.
	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kredia",
		Name:      "websocket_clients",
		Help:      "Currently connected notification subscribers.",
	})
)

// Handler returns the /metrics echo handler.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
