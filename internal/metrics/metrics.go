package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "theta_pulse"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	fetchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "fetch_attempts_total",
			Help:      "Upstream HTTP attempts by endpoint and status code (0 = transport failure).",
		},
		[]string{"endpoint", "code"},
	)

	rateLimitRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "rate_limit_retries_total",
			Help:      "Retries scheduled after a 429 response.",
		},
		[]string{"endpoint"},
	)

	pollCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycles_total",
			Help:      "Completed poll invocations by result.",
		},
		[]string{"poller", "result"},
	)

	pollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of poll invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"poller"},
	)

	feedReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reads_total",
			Help:      "Pool price reads by result.",
		},
		[]string{"feed", "result"},
	)

	feedSubscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Active subscription handles per feed.",
		},
		[]string{"feed"},
	)

	feedPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "price",
			Help:      "Last derived pool price per feed.",
		},
		[]string{"feed"},
	)

	feedState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "state",
			Help:      "Feed state (0 idle, 1 connecting, 2 streaming, 3 error, 4 disconnected).",
		},
		[]string{"feed"},
	)

	historyLength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "samples",
			Help:      "Samples held in the bounded history buffer.",
		},
		[]string{"key"},
	)

	historyPersistFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "persist_failures_total",
			Help:      "Best-effort history writes that failed.",
		},
		[]string{"key"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)
)

func init() {
	Registry.MustRegister(
		fetchAttempts,
		rateLimitRetries,
		pollCycles,
		pollDuration,
		feedReads,
		feedSubscribers,
		feedPrice,
		feedState,
		historyLength,
		historyPersistFailures,
		httpRequests,
		httpDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordFetchAttempt counts one upstream attempt. code 0 means the request never got a response.
func RecordFetchAttempt(endpoint string, code int) {
	fetchAttempts.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
}

// RecordRateLimitRetry counts a retry scheduled after HTTP 429.
func RecordRateLimitRetry(endpoint string) {
	rateLimitRetries.WithLabelValues(endpoint).Inc()
}

// RecordPollCycle records one completed poll invocation.
func RecordPollCycle(poller string, duration time.Duration, err error) {
	pollCycles.WithLabelValues(poller, result(err)).Inc()
	pollDuration.WithLabelValues(poller).Observe(duration.Seconds())
}

// RecordFeedRead records one pool read.
func RecordFeedRead(feed string, err error) {
	feedReads.WithLabelValues(feed, result(err)).Inc()
}

// SetFeedSubscribers sets the live subscriber count for a feed.
func SetFeedSubscribers(feed string, n int) {
	feedSubscribers.WithLabelValues(feed).Set(float64(n))
}

// SetFeedPrice sets the last derived price for a feed.
func SetFeedPrice(feed string, price float64) {
	feedPrice.WithLabelValues(feed).Set(price)
}

// SetFeedState sets the numeric feed state.
func SetFeedState(feed string, state int) {
	feedState.WithLabelValues(feed).Set(float64(state))
}

// SetHistoryLength sets the buffer length for a history key.
func SetHistoryLength(key string, n int) {
	historyLength.WithLabelValues(key).Set(float64(n))
}

// RecordHistoryPersistFailure counts a failed best-effort history write.
func RecordHistoryPersistFailure(key string) {
	historyPersistFailures.WithLabelValues(key).Inc()
}

// RecordHTTPRequest records one served API request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
