package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CatalogSyncsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_syncs_total",
		Help: "Total number of catalog delta syncs applied",
	})

	CatalogSyncFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_sync_failures_total",
		Help: "Total number of failed catalog delta syncs",
	})

	CatalogRevision = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_revision",
		Help: "Highest catalog revision fully applied to the mirror",
	})

	CatalogSyncLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_sync_latency_seconds",
		Help:    "Latency of catalog delta sync passes",
		Buckets: prometheus.DefBuckets,
	})

	CartStaleLinesPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_stale_lines_purged_total",
		Help: "Total number of cart lines dropped for stale revisions",
	})

	CheckoutSessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_sessions_started_total",
		Help: "Total number of checkout sessions started",
	})

	CheckoutSessionsAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_aborted_total",
		Help: "Total number of checkout sessions aborted",
	}, []string{"reason"})

	CheckoutNotServiceable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_not_serviceable_total",
		Help: "Total number of serviceability rejections",
	})

	OrdersFinalizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_finalized_total",
		Help: "Total number of orders finalized",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed finalize attempts",
	}, []string{"reason"})

	OrderSubmissionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_submission_failures_total",
		Help: "Total number of failed POS order submissions",
	})

	PaymentIntentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_intents_total",
		Help: "Total number of payment intents created",
	})

	PaymentConfirmFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_confirm_failures_total",
		Help: "Total number of rejected payment confirmations",
	}, []string{"reason"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
