package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// roundsTotal counts committed rounds.
	roundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "misinfo_rounds_total",
		Help: "Total rounds committed across runs",
	})

	// decisionsTotal counts decisions by outcome (ok, failed, timeout).
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "misinfo_decisions_total",
		Help: "Total agent decisions by outcome",
	}, []string{"outcome"})

	// decisionDuration tracks how long policies take to decide.
	decisionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "misinfo_decision_duration_seconds",
		Help:    "Policy decision latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
	})

	// roundDuration tracks wall time per round including the barrier.
	roundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "misinfo_round_duration_seconds",
		Help:    "Round duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	// convergenceFraction is the modal choice share of the latest round.
	convergenceFraction = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "misinfo_convergence_fraction",
		Help: "Share of agents holding the modal choice in the latest round",
	})

	// runsTotal counts finished runs by terminal status.
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "misinfo_runs_total",
		Help: "Total runs by terminal status",
	}, []string{"status"})
)
