package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textra_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "textra_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	DetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textra_detections_total",
			Help: "Total number of completed detection requests.",
		},
		[]string{"source", "result"},
	)

	DetectionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "textra_detection_duration_seconds",
			Help:    "End-to-end detection pipeline duration in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	QuotaRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textra_quota_rejections_total",
			Help: "Requests rejected by the durable quota gate.",
		},
		[]string{"window"},
	)

	RateLimitRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textra_rate_limit_rejections_total",
			Help: "Requests rejected by the ephemeral throttle.",
		},
		[]string{"period"},
	)

	InferenceErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "textra_inference_errors_total",
			Help: "Failed calls to the inference service.",
		},
	)

	BotMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textra_bot_messages_total",
			Help: "Chat messages handled by the detection bot.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DetectionsTotal,
		DetectionDuration,
		QuotaRejectionsTotal,
		RateLimitRejectionsTotal,
		InferenceErrorsTotal,
		BotMessagesTotal,
	)
}
