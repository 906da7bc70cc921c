package historycache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics mirrors the promauto style used by friggdb/pool. Each Cache
// builds its own collectors in newMetrics and registers them with the
// Registerer it was given (none when that is nil).
type metrics struct {
	searchesStarted  prometheus.Counter
	searchesFailed   prometheus.Counter
	searchesRetried  prometheus.Counter
	jobsEnqueued     *prometheus.CounterVec
	queueLength      prometheus.Gauge
	historyIntervals prometheus.Gauge
	getRecordingsDur prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		searchesStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "historycache",
			Name:      "device_searches_started_total",
			Help:      "Number of device searches dispatched.",
		}),
		searchesFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "historycache",
			Name:      "device_searches_failed_total",
			Help:      "Number of device searches that finished with a non-OK, non-cancelled code.",
		}),
		searchesRetried: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "historycache",
			Name:      "device_searches_retried_total",
			Help:      "Number of in-place job retries after a failed search.",
		}),
		jobsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "historycache",
			Name:      "jobs_enqueued_total",
			Help:      "Number of search jobs enqueued, by kind.",
		}, []string{"kind"}),
		queueLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "historycache",
			Name:      "queue_length",
			Help:      "Current number of queued search jobs.",
		}),
		historyIntervals: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "historycache",
			Name:      "history_intervals",
			Help:      "Current number of disjoint intervals known in history.",
		}),
		getRecordingsDur: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "historycache",
			Name:      "get_recordings_duration_seconds",
			Help:      "Latency of the non-blocking getRecordings call.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
