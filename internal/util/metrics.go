package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_paid_total",
		Help: "Total number of orders marked paid",
	})

	OrdersExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_expired_total",
		Help: "Total number of orders expired by overdue invoices",
	})

	CheckoutSavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_saves_total",
		Help: "Total number of checkout save calls",
	}, []string{"kind"}) // partial | final

	CheckoutCustomerFoundTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_customer_found_total",
		Help: "Total number of partial saves short-circuited by a CPF match",
	})

	PlaceholderCleanupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "placeholder_cleanup_failures_total",
		Help: "Total number of failed best-effort placeholder customer deletions",
	})

	InvoicesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoices_created_total",
		Help: "Total number of hosted payment links created at the provider",
	})

	PaymentAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of direct payment attempts",
	}, []string{"method"})

	PaymentDeclinedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_declined_total",
		Help: "Total number of gateway-declined payments",
	}, []string{"method", "step"})

	PaymentConfirmedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_confirmed_total",
		Help: "Total number of confirmed payments",
	}, []string{"method"})

	ManualReconciliationTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_manual_reconciliation_total",
		Help: "Charges that failed after consumer registration and card tokenization succeeded",
	})

	GatewayRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_latency_seconds",
		Help:    "Latency of outbound payment gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway", "operation"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Total number of webhook events received",
	}, []string{"event", "result"}) // result: applied | duplicate | ignored | failed

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
