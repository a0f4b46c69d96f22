package watcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_cycles_total",
			Help: "Total number of watcher cycles, by outcome",
		},
		[]string{"outcome"}, // "ok", "skipped", "error"
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watcher_cycle_duration_seconds",
			Help:    "Duration of watcher cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_price_cache_lookups_total",
			Help: "Price cache lookups per asset, by result",
		},
		[]string{"result"}, // "hit", "miss"
	)

	upstreamFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_upstream_fetches_total",
			Help: "Upstream price API fetches, by outcome",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	alertsTriggered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watcher_alerts_triggered_total",
			Help: "Total number of alerts that fired",
		},
	)
)
