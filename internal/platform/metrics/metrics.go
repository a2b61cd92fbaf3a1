package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uteshop_http_requests_total",
		Help: "HTTP requests by method, route pattern and status code",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "uteshop_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uteshop_orders_created_total",
		Help: "Orders placed by customers",
	})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uteshop_order_transitions_total",
		Help: "Order status transitions",
	}, []string{"from", "to"})

	OTPSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uteshop_otp_sent_total",
		Help: "One-time codes sent by purpose",
	}, []string{"purpose"})

	SearchFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uteshop_search_fallbacks_total",
		Help: "Searches served from the database because the search index was unavailable",
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uteshop_events_published_total",
		Help: "Domain events published by type and bus",
	}, []string{"type", "bus"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uteshop_events_dropped_total",
		Help: "Domain events dropped because the in-process buffer was full",
	}, []string{"type"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uteshop_cache_lookups_total",
		Help: "Product list cache lookups by result",
	}, []string{"result"})

	WorkerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uteshop_worker_runs_total",
		Help: "Background worker passes by worker and outcome",
	}, []string{"worker", "outcome"})
)
