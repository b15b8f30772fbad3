package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce       sync.Once
	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	examsStartedTotal   prometheus.Counter
	examsFinalizedTotal *prometheus.CounterVec

	recordingLatencySeconds prometheus.Histogram
	recordingRejectedTotal  *prometheus.CounterVec
	recordingUploadsTotal   *prometheus.CounterVec

	eventsDroppedTotal prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors shared across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exam_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		examsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_sessions_started_total",
			Help: "Total number of exam sessions started.",
		})

		examsFinalizedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_sessions_finalized_total",
			Help: "Total number of exam sessions that reached a terminal state.",
		}, []string{"status"})

		recordingLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "exam_recording_upload_duration_seconds",
			Help:    "Time spent validating and storing proctoring recordings.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		})

		recordingRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_recording_rejected_total",
			Help: "Total number of rejected recording uploads by reason.",
		}, []string{"reason"})

		recordingUploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_recording_uploads_total",
			Help: "Total number of stored recordings by MIME type.",
		}, []string{"mime"})

		eventsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_events_dropped_total",
			Help: "Total number of lifecycle events dropped for slow monitor subscribers.",
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			examsStartedTotal, examsFinalizedTotal,
			recordingLatencySeconds, recordingRejectedTotal, recordingUploadsTotal,
			eventsDroppedTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ExamsStarted exposes the counter for started exam sessions.
func ExamsStarted() prometheus.Counter {
	RegisterMetrics()
	return examsStartedTotal
}

// ExamsFinalized exposes the counter for finalised exam sessions.
func ExamsFinalized() *prometheus.CounterVec {
	RegisterMetrics()
	return examsFinalizedTotal
}

// RecordingLatency exposes the histogram for recording upload duration.
func RecordingLatency() prometheus.Histogram {
	RegisterMetrics()
	return recordingLatencySeconds
}

// RecordingRejected exposes the counter for rejected recording uploads.
func RecordingRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return recordingRejectedTotal
}

// RecordingUploads exposes the counter for stored recordings.
func RecordingUploads() *prometheus.CounterVec {
	RegisterMetrics()
	return recordingUploadsTotal
}

// EventsDropped exposes the counter for lifecycle events dropped on fan-out.
func EventsDropped() prometheus.Counter {
	RegisterMetrics()
	return eventsDroppedTotal
}
