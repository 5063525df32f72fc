package filter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoutedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_routed_requests_total",
			Help: "Requests handled, by matched route and response status",
		},
		[]string{"route", "code"},
	)

	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Time taken to answer a request, by matched route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	FallbackResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_fallback_responses_total",
			Help: "Requests answered by a breaker fallback instead of the upstream",
		},
		[]string{"command", "reason"},
	)

	OpenCircuits = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_circuit_open",
			Help: "1 while a breaker command is short-circuiting to its fallback",
		},
		[]string{"command"},
	)

	RateLimitedRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_rate_limited_requests_total",
			Help: "Requests rejected by the per-client token bucket",
		},
	)
)
