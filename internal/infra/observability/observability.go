// Package observability exposes Prometheus metrics for the negotiation
// engine: discovery churn, trade lifecycle outcomes, and ledger growth.
// Metrics register on the default registry and are served on /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Discovery Metrics ──────────────────────────────────────────────────────

// PeersKnown tracks the number of peers currently in the directory.
var PeersKnown = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "boomtrade",
	Subsystem: "discovery",
	Name:      "peers_known",
	Help:      "Number of peers currently in the directory.",
})

// DiscoveryEvents tracks discovery events consumed by the engine loop.
var DiscoveryEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "boomtrade",
	Subsystem: "discovery",
	Name:      "events_total",
	Help:      "Total discovery events consumed, by kind.",
}, []string{"kind"})

// ─── Trade Metrics ──────────────────────────────────────────────────────────

// TradesProposed tracks locally initiated trade sessions.
var TradesProposed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "boomtrade",
	Subsystem: "trade",
	Name:      "proposed_total",
	Help:      "Total trade sessions proposed by this device.",
})

// TradesSettled tracks sessions reaching a terminal state, by outcome.
var TradesSettled = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "boomtrade",
	Subsystem: "trade",
	Name:      "settled_total",
	Help:      "Total trade sessions reaching a terminal state, by outcome.",
}, []string{"outcome"})

// ActiveSessions tracks non-terminal trade sessions.
var ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "boomtrade",
	Subsystem: "trade",
	Name:      "active_sessions",
	Help:      "Number of trade sessions not yet in a terminal state.",
})

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// HistoryEntries tracks settled trades appended to the ledger.
var HistoryEntries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "boomtrade",
	Subsystem: "ledger",
	Name:      "history_entries_total",
	Help:      "Total history entries recorded from completed trades.",
})

// TrustAdjustments tracks trust deltas applied by settlement outcome.
var TrustAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "boomtrade",
	Subsystem: "ledger",
	Name:      "trust_adjustments_total",
	Help:      "Total peer trust adjustments applied, by outcome.",
}, []string{"outcome"})
