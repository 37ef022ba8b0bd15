package historycache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// refreshTotal counts refreshes by result (success, unchanged, error)
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taxhist_refresh_total",
		Help: "Total history refreshes by result",
	}, []string{"result"})

	// refreshDuration tracks how long a refresh spends building history
	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "taxhist_refresh_duration_seconds",
		Help:    "History refresh duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
	})

	// requestsTotal counts reads by the state of the held record
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taxhist_history_requests_total",
		Help: "History reads by cache state",
	}, []string{"state"})

	cacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taxhist_cache_entries",
		Help: "History entries held in memory",
	})

	persistErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taxhist_cache_persist_errors_total",
		Help: "Failed writes of the history record to durable storage",
	})
)
