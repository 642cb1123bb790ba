package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	queueDepth     prometheus.Gauge
	enqueuedTotal  prometheus.Counter
	deliveredTotal prometheus.Counter
	failedTotal    prometheus.Counter
	droppedTotal   *prometheus.CounterVec
	recoveredTotal prometheus.Counter

	sendTotal    *prometheus.CounterVec
	sendDuration prometheus.Histogram
	backoffDelay prometheus.Histogram

	trackingEnabled prometheus.Gauge
	trackerState    *prometheus.GaugeVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			queueDepth: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "tapakasih_queue_depth",
					Help: "Events currently held by the event store.",
				},
			),
			enqueuedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "tapakasih_events_enqueued_total",
					Help: "Total page events accepted into the event store.",
				},
			),
			deliveredTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "tapakasih_events_delivered_total",
					Help: "Total events acknowledged by the collector.",
				},
			),
			failedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "tapakasih_events_failed_attempts_total",
					Help: "Total failed delivery attempts counted against events.",
				},
			),
			droppedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tapakasih_events_dropped_total",
					Help: "Total events dropped without delivery by reason.",
				},
				[]string{"reason"},
			),
			recoveredTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "tapakasih_events_recovered_total",
					Help: "Total events restored from the durable queue at startup.",
				},
			),
			sendTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tapakasih_batch_send_total",
					Help: "Total batch sends by status.",
				},
				[]string{"status"},
			),
			sendDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "tapakasih_batch_send_duration_seconds",
					Help:    "Batch send duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			backoffDelay: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "tapakasih_backoff_delay_seconds",
					Help:    "Backoff delay scheduled after a failed batch.",
					Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
				},
			),
			trackingEnabled: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "tapakasih_tracking_enabled",
					Help: "Collector demand state (1 ON_DEMAND, 0 NO_DEMAND).",
				},
			),
			trackerState: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "tapakasih_tracker_state",
					Help: "Tracker lifecycle state (1 for the current state).",
				},
				[]string{"state"},
			),
		}

		prometheus.MustRegister(
			m.queueDepth,
			m.enqueuedTotal,
			m.deliveredTotal,
			m.failedTotal,
			m.droppedTotal,
			m.recoveredTotal,
			m.sendTotal,
			m.sendDuration,
			m.backoffDelay,
			m.trackingEnabled,
			m.trackerState,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetQueueDepth(depth int) {
	getMetrics().queueDepth.Set(float64(depth))
}

func RecordEnqueue(depth int) {
	m := getMetrics()
	m.enqueuedTotal.Inc()
	m.queueDepth.Set(float64(depth))
}

func RecordDelivered(count, depth int) {
	m := getMetrics()
	m.deliveredTotal.Add(float64(count))
	m.queueDepth.Set(float64(depth))
}

func RecordFailedAttempts(count int) {
	getMetrics().failedTotal.Add(float64(count))
}

// RecordDropped counts events removed without delivery. Reasons in use:
// "retries_exhausted" and "capacity".
func RecordDropped(reason string, count int) {
	getMetrics().droppedTotal.WithLabelValues(reason).Add(float64(count))
}

func RecordRecovered(count int) {
	getMetrics().recoveredTotal.Add(float64(count))
}

func RecordSend(duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.sendTotal.WithLabelValues(status).Inc()
	m.sendDuration.Observe(duration.Seconds())
}

func RecordBackoff(delay time.Duration) {
	getMetrics().backoffDelay.Observe(delay.Seconds())
}

func SetTrackingEnabled(enabled bool) {
	v := 0.0
	if enabled {
		v = 1
	}
	getMetrics().trackingEnabled.Set(v)
}

// SetTrackerState marks state as the active lifecycle state.
func SetTrackerState(state string, all []string) {
	m := getMetrics()
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.trackerState.WithLabelValues(s).Set(v)
	}
}
