package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "limlam_http_requests_total",
			Help: "Total number of HTTP requests to the run status endpoint.",
		},
		[]string{"path", "method", "code"},
	)

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "limlam_stage_duration_seconds",
			Help:    "Wall time of each pipeline stage in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"stage"},
	)

	halosGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "limlam_halos",
			Help: "Number of halos in the catalog after each stage.",
		},
		[]string{"stage"},
	)

	modelEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "limlam_model_evaluations_total",
			Help: "Luminosity model evaluations by tracer and model.",
		},
		[]string{"tracer", "model"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "limlam_streams_active",
			Help: "Number of open progress streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "limlam_stream_messages_total",
			Help: "Progress messages sent to stream clients.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "limlam_stream_bytes_total",
			Help: "Bytes written to stream clients.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "limlam_stream_errors_total",
			Help: "Progress stream errors by type.",
		},
		[]string{"type"},
	)

	scatterSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "limlam_scatter_skipped_total",
			Help: "Joint scatter requests skipped because a width was non-positive.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(stageDurationSeconds)
	prometheus.MustRegister(halosGauge)
	prometheus.MustRegister(modelEvaluationsTotal)
	prometheus.MustRegister(scatterSkippedTotal)
	prometheus.MustRegister(streamsActive)
	prometheus.MustRegister(streamMessagesTotal)
	prometheus.MustRegister(streamBytesTotal)
	prometheus.MustRegister(streamErrorsTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordStage observes the duration of a named pipeline stage.
func RecordStage(stage string, d time.Duration) {
	stageDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// SetHalos records the catalog size after a stage.
func SetHalos(stage string, n int) {
	halosGauge.WithLabelValues(stage).Set(float64(n))
}

// RecordModel counts one evaluation of a luminosity model.
func RecordModel(tracer, model string) {
	modelEvaluationsTotal.WithLabelValues(tracer, model).Inc()
}

// RecordScatterSkipped counts a joint scatter request that was a no-op.
func RecordScatterSkipped() {
	scatterSkippedTotal.Inc()
}

// IncStreamsActive increments the open stream gauge.
func IncStreamsActive() {
	streamsActive.Inc()
}

// DecStreamsActive decrements the open stream gauge.
func DecStreamsActive() {
	streamsActive.Dec()
}

// IncStreamMessages counts one message sent to a stream client.
func IncStreamMessages() {
	streamMessagesTotal.Inc()
}

// AddStreamBytes adds n bytes written to stream clients.
func AddStreamBytes(n int64) {
	streamBytesTotal.Add(float64(n))
}

// IncStreamErrors counts a stream error of the given type.
func IncStreamErrors(errType string) {
	streamErrorsTotal.WithLabelValues(errType).Inc()
}

// normalizeRoute collapses unknown paths into one label to bound cardinality.
func normalizeRoute(path string) string {
	switch path {
	case "/healthz", "/readyz", "/metrics", "/status", "/events":
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through so streaming handlers work behind the middleware.
func (rw *responseWriter) Flush() {
	if fl, ok := rw.ResponseWriter.(http.Flusher); ok {
		fl.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records the request count for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		code := strconv.Itoa(rw.statusCode)
		httpRequestsTotal.WithLabelValues(normalizeRoute(r.URL.Path), r.Method, code).Inc()
	})
}
