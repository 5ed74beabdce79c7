package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_http_requests_total",
		Help: "HTTP requests by method, path and status code",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "library_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	LoansBorrowedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_loans_borrowed_total",
		Help: "Loans created",
	})

	LoansReturnedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_loans_returned_total",
		Help: "Loans returned",
	})

	PaymentsCapturedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_payments_captured_total",
		Help: "Settlements captured (duplicate confirmations excluded)",
	})

	FinesAssessedKES = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_fines_assessed_kes_total",
		Help: "Fine amounts included in captured payments, in KES",
	})

	CheckoutFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_checkout_failures_total",
		Help: "Gateway checkout session creation failures",
	})
)
