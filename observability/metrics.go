package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type opsMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	opsMetricsOnce sync.Once
	opsRegistry    *opsMetrics

	handleMetricsOnce sync.Once
	handleRegistry    *HandleMetrics
)

// Ops returns the lazily-initialised registry recording operator HTTP
// endpoint activity.
func Ops() *opsMetrics {
	opsMetricsOnce.Do(func() {
		opsRegistry = &opsMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "ops",
				Name:      "requests_total",
				Help:      "Total operator HTTP requests segmented by route and outcome.",
			}, []string{"route", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "ops",
				Name:      "errors_total",
				Help:      "Total operator HTTP errors segmented by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "ledger",
				Subsystem: "ops",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for operator HTTP handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
		}
		prometheus.MustRegister(opsRegistry.requests, opsRegistry.errors, opsRegistry.latency)
	})
	return opsRegistry
}

// Observe records the outcome of an operator request. The status code should
// be the HTTP status that was ultimately written to the response writer.
func (m *opsMetrics) Observe(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(route, fmt.Sprintf("%d", status)).Inc()
	}
	m.requests.WithLabelValues(route, outcome).Inc()
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

// HandleMetrics captures the transaction handling workflow.
type HandleMetrics struct {
	records       *prometheus.CounterVec
	fees          *prometheus.CounterVec
	recomputed    *prometheus.CounterVec
	verifications *prometheus.CounterVec
	dispatch      *prometheus.CounterVec
	throttled     *prometheus.CounterVec
	roundDuration prometheus.Histogram
	roundTxs      prometheus.Histogram
}

// Handle returns the singleton metrics registry for round handling.
func Handle() *HandleMetrics {
	handleMetricsOnce.Do(func() {
		handleRegistry = &HandleMetrics{
			records: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "handle",
				Name:      "records_total",
				Help:      "Count of transaction records emitted segmented by response code.",
			}, []string{"status"}),
			fees: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "handle",
				Name:      "fees_charged_tinybars_total",
				Help:      "Tinybars charged segmented by fee component and charging path.",
			}, []string{"component", "path"}),
			recomputed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "handle",
				Name:      "prehandle_recomputed_total",
				Help:      "Count of pre-handle results recomputed during handling segmented by reason.",
			}, []string{"reason"}),
			verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "handle",
				Name:      "signature_verifications_total",
				Help:      "Count of resolved signature verifications segmented by outcome.",
			}, []string{"outcome"}),
			dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "handle",
				Name:      "dispatch_total",
				Help:      "Count of dispatched transactions segmented by functionality and outcome.",
			}, []string{"functionality", "outcome"}),
			throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "handle",
				Name:      "throttle_exceeded_total",
				Help:      "Count of transactions that exceeded their throughput bucket.",
			}, []string{"functionality"}),
			roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "ledger",
				Subsystem: "handle",
				Name:      "round_duration_seconds",
				Help:      "Wall-clock time spent handling a consensus round.",
				Buckets:   prometheus.DefBuckets,
			}),
			roundTxs: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "ledger",
				Subsystem: "handle",
				Name:      "round_user_transactions",
				Help:      "Number of user transactions handled per round.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			}),
		}
		prometheus.MustRegister(
			handleRegistry.records,
			handleRegistry.fees,
			handleRegistry.recomputed,
			handleRegistry.verifications,
			handleRegistry.dispatch,
			handleRegistry.throttled,
			handleRegistry.roundDuration,
			handleRegistry.roundTxs,
		)
	})
	return handleRegistry
}

// RecordStatus increments the record counter for the response code name.
func (m *HandleMetrics) RecordStatus(status string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(label(status)).Inc()
}

// RecordFee adds a charged fee component.
func (m *HandleMetrics) RecordFee(component, path string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.fees.WithLabelValues(label(component), label(path)).Add(float64(amount))
}

// RecordRecompute counts a synchronous pre-handle recomputation.
func (m *HandleMetrics) RecordRecompute(reason string) {
	if m == nil {
		return
	}
	m.recomputed.WithLabelValues(label(reason)).Inc()
}

// RecordVerification counts a resolved verification. Outcome is one of
// "passed", "failed" or "timeout".
func (m *HandleMetrics) RecordVerification(outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(label(outcome)).Inc()
}

// RecordDispatch counts a dispatch outcome.
func (m *HandleMetrics) RecordDispatch(functionality, outcome string) {
	if m == nil {
		return
	}
	m.dispatch.WithLabelValues(label(functionality), label(outcome)).Inc()
}

// RecordThrottled counts a transaction over its throughput bucket.
func (m *HandleMetrics) RecordThrottled(functionality string) {
	if m == nil {
		return
	}
	m.throttled.WithLabelValues(label(functionality)).Inc()
}

// ObserveRound records the duration and size of a handled round.
func (m *HandleMetrics) ObserveRound(duration time.Duration, userTxs int) {
	if m == nil {
		return
	}
	m.roundDuration.Observe(duration.Seconds())
	m.roundTxs.Observe(float64(userTxs))
}

func label(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
