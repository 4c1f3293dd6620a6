package metrics

import (
	"strconv"
	"time"

	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scribble_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		},
		[]string{"route", "method", "status"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scribble_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	predictionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scribble_predictions_created_total",
			Help: "Predictions created on Replicate.",
		},
	)
	predictionUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scribble_prediction_updates_total",
			Help: "Prediction status updates by source and status.",
		},
		[]string{"source", "status"},
	)
	predictionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scribble_prediction_duration_seconds",
			Help:    "Time from prediction creation to a terminal status.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
	)
	uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scribble_uploads_total",
			Help: "Scribble uploads by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		requestCount,
		requestDuration,
		predictionsCreated,
		predictionUpdates,
		predictionDuration,
		uploads,
	)
}

// Middleware records count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		requestCount.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func PredictionCreated() {
	predictionsCreated.Inc()
}

// PredictionUpdated is called once per accepted cache change.
func PredictionUpdated(source string, p *entity.Prediction) {
	predictionUpdates.WithLabelValues(source, string(p.Status)).Inc()

	if p.Status.IsTerminal() && p.CreatedAt != nil && p.CompletedAt != nil {
		predictionDuration.Observe(p.CompletedAt.Sub(*p.CreatedAt).Seconds())
	}
}

func UploadSucceeded() {
	uploads.WithLabelValues("ok").Inc()
}

func UploadFailed() {
	uploads.WithLabelValues("error").Inc()
}
