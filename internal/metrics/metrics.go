package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "meetslot"

var (
	once sync.Once

	pollsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_created_total",
			Help:      "Count of polls created.",
		},
	)

	responsesSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_submitted_total",
			Help:      "Count of availability responses submitted.",
		},
	)

	rowsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows skipped while decoding responses, by reason.",
		},
		[]string{"reason"},
	)

	resultsCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_cache_total",
			Help:      "Results cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	computeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_duration_seconds",
			Help:      "Time spent aggregating availability and searching windows.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Watch notifications by status.",
		},
		[]string{"status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			pollsCreated,
			responsesSubmitted,
			rowsDropped,
			resultsCache,
			computeDuration,
			httpRequests,
			notificationsSent,
		)
	})
}

func IncPollCreated() {
	pollsCreated.Inc()
}

func IncResponseSubmitted() {
	responsesSubmitted.Inc()
}

func AddRowsDropped(reason string, n int) {
	if n > 0 {
		rowsDropped.WithLabelValues(reason).Add(float64(n))
	}
}

func IncResultsCache(outcome string) {
	resultsCache.WithLabelValues(outcome).Inc()
}

func ObserveCompute(d time.Duration) {
	computeDuration.Observe(d.Seconds())
}

func IncHTTPRequest(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}

func IncNotification(status string) {
	notificationsSent.WithLabelValues(status).Inc()
}
