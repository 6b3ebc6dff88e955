package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FacesRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fs",
		Name:      "faces_registered_total",
		Help:      "Total number of face records registered or re-embedded",
	})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fs",
		Name:      "inference_duration_seconds",
		Help:      "Duration of vision pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	FallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fs",
		Name:      "fallback_total",
		Help:      "Number of times a non-primary strategy produced the result",
	}, []string{"component", "strategy"})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fs",
		Name:      "verifications_total",
		Help:      "Face verifications by method and outcome",
	}, []string{"method", "result"})

	Searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fs",
		Name:      "searches_total",
		Help:      "Searches by kind",
	}, []string{"kind"})

	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fs",
		Name:      "downloads_total",
		Help:      "Reference image downloads by strategy and result",
	}, []string{"strategy", "result"})

	DelegateCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fs",
		Name:      "delegate_calls_total",
		Help:      "Calls to the external verification delegate",
	}, []string{"result"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fs",
		Name:      "queue_depth",
		Help:      "Number of pending re-embed tasks in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fs",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fs",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
