package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the price-fetch and outcome pipeline.
var (
	ProviderFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outcome_tracker_provider_fetches_total",
		Help: "Provider fetch attempts by provider and result (success, empty, error).",
	}, []string{"provider", "result"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outcome_tracker_provider_latency_seconds",
		Help:    "Provider fetch latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	PriceCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outcome_tracker_price_cache_hits_total",
		Help: "Price history requests served from persisted data without a network call.",
	})

	PriceCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outcome_tracker_price_cache_misses_total",
		Help: "Price history requests that went to the provider chain.",
	})

	FetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outcome_tracker_fetch_retries_total",
		Help: "Retry attempts after a provider-chain failure.",
	})

	OutcomesComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outcome_tracker_outcomes_computed_total",
		Help: "Prediction outcomes computed or recomputed.",
	})

	AlertsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outcome_tracker_alerts_sent_total",
		Help: "Alerts dispatched to the notification sink.",
	})
)
