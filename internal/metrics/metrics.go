package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coordinator_queue_depth",
			Help: "Entrants currently waiting in the open queue",
		},
	)
	ActiveMatches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coordinator_active_matches",
			Help: "Matches currently in play",
		},
	)
	Enqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_enqueued_total",
			Help: "Total successful queue joins",
		},
	)
	MatchesStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_matches_started_total",
			Help: "Total matches created, by mode",
		},
		[]string{"mode"},
	)
	TurnsPlayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_turns_total",
			Help: "Total turns concluded",
		},
	)
	TimeoutFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_timeout_fallbacks_total",
			Help: "Turns where at least one move was synthesized",
		},
	)
	RelayDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_relay_dropped_total",
			Help: "Negotiation messages dropped, by reason",
		},
		[]string{"reason"},
	)
	WSConnections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_ws_connections_total",
			Help: "Accepted control connections",
		},
	)
	WSAuthFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_ws_auth_failures_total",
			Help: "Control connections refused at the ticket gate",
		},
	)
)

func init() {
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(ActiveMatches)
	prometheus.MustRegister(Enqueued)
	prometheus.MustRegister(MatchesStarted)
	prometheus.MustRegister(TurnsPlayed)
	prometheus.MustRegister(TimeoutFallbacks)
	prometheus.MustRegister(RelayDropped)
	prometheus.MustRegister(WSConnections)
	prometheus.MustRegister(WSAuthFailures)
}
