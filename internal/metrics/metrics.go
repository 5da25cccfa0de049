// Package metrics registers the Prometheus collectors for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vetly_http_requests_total",
		Help: "HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vetly_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	AppointmentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vetly_appointments_created_total",
		Help: "Appointments successfully booked.",
	})

	SlotConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vetly_slot_conflicts_total",
		Help: "Bookings rejected because the slot was taken.",
	})

	RemindersGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vetly_reminders_generated_total",
		Help: "Reminder notifications produced by the generator.",
	})

	NotificationsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vetly_notifications_enqueued_total",
		Help: "Notifications accepted into the queue by channel.",
	}, []string{"channel"})

	NotificationsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vetly_notifications_processed_total",
		Help: "Dispatch attempts by channel and outcome.",
	}, []string{"channel", "outcome"})

	DispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vetly_dispatch_duration_seconds",
		Help:    "Per-notification send latency.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"channel"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vetly_queue_batch_size",
		Help: "Items claimed by the most recent dispatcher batch.",
	})
)

// Handler exposes the scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency. Path is the route
// pattern supplied by the router, not the raw URL, to keep cardinality
// bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.URL.Path
		HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
