package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "econetd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "econetd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	deviceTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "econetd",
			Subsystem: "device",
			Name:      "transactions_total",
			Help:      "Device wire transactions by function and outcome.",
		},
		[]string{"function", "outcome"},
	)
	deviceTransactionTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "econetd",
			Subsystem: "device",
			Name:      "transaction_duration_seconds",
			Help:      "Device wire transaction duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"function", "outcome"},
	)
	pollCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "econetd",
			Subsystem: "poll",
			Name:      "cycles_total",
			Help:      "Completed poll cycles.",
		},
		[]string{},
	)
	pollRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "econetd",
			Subsystem: "poll",
			Name:      "rejections_total",
			Help:      "Readings rejected by validation, by reason.",
		},
		[]string{"slug", "reason"},
	)
	pollCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "econetd",
			Subsystem: "poll",
			Name:      "cache_hits_total",
			Help:      "Reads served from the TTL cache without device I/O.",
		},
		[]string{"slug"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			deviceTransactions, deviceTransactionTime,
			pollCycles, pollRejections, pollCacheHits,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordTransaction(function string, err error, duration time.Duration) {
	RegisterMetrics()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	deviceTransactions.WithLabelValues(function, outcome).Inc()
	deviceTransactionTime.WithLabelValues(function, outcome).Observe(duration.Seconds())
}

func RecordPollCycle() {
	RegisterMetrics()
	pollCycles.WithLabelValues().Inc()
}

func RecordRejection(slug, reason string) {
	RegisterMetrics()
	pollRejections.WithLabelValues(slug, reason).Inc()
}

func RecordCacheHit(slug string) {
	RegisterMetrics()
	pollCacheHits.WithLabelValues(slug).Inc()
}
