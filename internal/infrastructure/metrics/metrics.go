// Package metrics exposes Prometheus collectors for the pricing core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fx_provider_requests_total",
		Help: "Rate provider attempts by provider and outcome.",
	}, []string{"provider", "outcome"})

	BreakerOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fx_breaker_open",
		Help: "1 when the provider's circuit breaker is open.",
	}, []string{"provider"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fx_cache_lookups_total",
		Help: "Rate cache lookups by result (fresh, stale, miss).",
	}, []string{"result"})

	Conversions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fx_conversions_total",
		Help: "Priced conversions by pair.",
	}, []string{"pair"})

	StaleRateServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fx_stale_rate_served_total",
		Help: "Quotes served from an expired cache entry after total provider failure.",
	})

	ConvlogFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fx_convlog_flushes_total",
		Help: "Conversion log batch flushes by outcome.",
	}, []string{"outcome"})

	ConvlogQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fx_convlog_queue_depth",
		Help: "Conversion records waiting to be flushed.",
	})
)
