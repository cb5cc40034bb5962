// Package monitoring exposes the service's Prometheus metrics.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fastpay_payments_total",
			Help: "Payments by terminal status",
		},
		[]string{"status"},
	)

	settlementAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fastpay_settlement_attempts_total",
			Help: "Rail settlement attempts by rail and outcome",
		},
		[]string{"rail", "outcome"},
	)

	settlementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fastpay_settlement_duration_seconds",
			Help:    "Duration of rail settlement attempts",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"rail"},
	)

	qrConsumes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fastpay_qr_consumes_total",
			Help: "QR token consumption attempts by outcome",
		},
		[]string{"outcome"},
	)
)

func PaymentFinished(status string) {
	paymentsTotal.WithLabelValues(status).Inc()
}

func SettlementAttempt(rail, outcome string, elapsed time.Duration) {
	settlementAttempts.WithLabelValues(rail, outcome).Inc()
	settlementDuration.WithLabelValues(rail).Observe(elapsed.Seconds())
}

func QRConsume(outcome string) {
	qrConsumes.WithLabelValues(outcome).Inc()
}
