package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "servicehub",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "servicehub",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "servicehub",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	walletMovements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "servicehub",
			Subsystem: "wallet",
			Name:      "movements_total",
			Help:      "Wallet movements by ledger type.",
		},
		[]string{"type"},
	)

	walletAmount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "servicehub",
			Subsystem: "wallet",
			Name:      "amount_inr_total",
			Help:      "Sum of wallet movement amounts by ledger type.",
		},
		[]string{"type"},
	)

	providerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "servicehub",
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Third-party provider calls by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	providerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "servicehub",
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Duration of third-party provider calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"operation"},
	)

	llrTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "servicehub",
			Subsystem: "llr",
			Name:      "status_transitions_total",
			Help:      "LLR token status transitions.",
		},
		[]string{"from", "to"},
	)

	pollerTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "servicehub",
			Subsystem: "poller",
			Name:      "ticks_total",
			Help:      "Background poller ticks by poller and result.",
		},
		[]string{"poller", "result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		walletMovements,
		walletAmount,
		providerCalls,
		providerDuration,
		llrTransitions,
		pollerTicks,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IncInFlight and DecInFlight track concurrently served requests.
func IncInFlight() { httpInFlight.Inc() }

func DecInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records a completed request. path should be a route
// template, not the raw URL, to keep label cardinality bounded.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	method = strings.ToUpper(method)
	if path == "" {
		path = "unmatched"
	}
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWalletMovement records a ledger movement.
func RecordWalletMovement(entryType string, amount float64) {
	if entryType == "" {
		entryType = "unknown"
	}
	walletMovements.WithLabelValues(entryType).Inc()
	if amount > 0 {
		walletAmount.WithLabelValues(entryType).Add(amount)
	}
}

// RecordProviderCall records an upstream call and its outcome.
func RecordProviderCall(operation, outcome string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	providerCalls.WithLabelValues(operation, outcome).Inc()
	providerDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordLLRTransition records a token moving between statuses.
func RecordLLRTransition(from, to string) {
	llrTransitions.WithLabelValues(from, to).Inc()
}

// RecordPollerTick records one background poller iteration.
func RecordPollerTick(poller string, success bool) {
	result := "ok"
	if !success {
		result = "error"
	}
	pollerTicks.WithLabelValues(poller, result).Inc()
}
