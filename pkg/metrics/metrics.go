package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docstore", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docstore", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docstore", Name: "operations_total", Help: "Document store operations by name and result."},
		[]string{"op", "result"},
	)
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "docstore", Name: "operation_duration_seconds", Help: "Latency of document store operations.", Buckets: prometheus.DefBuckets},
		[]string{"op"},
	)
	Documents = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "docstore", Name: "documents", Help: "Number of documents currently held."},
	)
	RecoverySkipped = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "docstore", Name: "recovery_skipped_total", Help: "Records skipped during recovery because they could not be decoded."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(Operations)
	reg.MustRegister(OperationDuration)
	reg.MustRegister(Documents)
	reg.MustRegister(RecoverySkipped)
}

// ObserveOperation records one finished store operation. A nil err counts as
// "ok", anything else as "error".
func ObserveOperation(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Operations.WithLabelValues(op, result).Inc()
	OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
