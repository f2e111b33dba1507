package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamhub",
		Name:      "active_streams",
		Help:      "Number of currently running transcoder processes",
	})

	StreamsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamhub",
		Name:      "streams_started_total",
		Help:      "Total streams started, by trigger source",
	}, []string{"source"})

	StreamCrashes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "streamhub",
		Name:      "stream_crashes_total",
		Help:      "Total streams declared crashed by the health check",
	})

	LoopIterations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "streamhub",
		Name:      "loop_iterations_total",
		Help:      "Total playlist wraps recorded across loop sessions",
	})

	ScheduleRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamhub",
		Name:      "schedule_runs_total",
		Help:      "Total scheduled executions, by result",
	}, []string{"result"})

	ConflictsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "streamhub",
		Name:      "conflicts_resolved_total",
		Help:      "Total active streams force-stopped to free a destination for a schedule",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "streamhub",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamhub",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
