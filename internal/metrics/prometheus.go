package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Metrics against client_golang, realizing
// the NoOp implementation's own doc comment that it "can be extended
// with Prometheus".
type PrometheusMetrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	alertsProcessed  *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	dbConnsActive    prometheus.Gauge
	dbQueries        *prometheus.CounterVec
}

// NewPrometheusMetrics registers the pipeline's metric families against
// reg and returns a Metrics implementation backed by them.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_http_requests_total",
			Help: "Total HTTP requests served by the introspection API.",
		}, []string{"method", "path", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentinel_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		alertsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_alerts_processed_total",
			Help: "Alert dispatch attempts by source cluster kind and outcome.",
		}, []string{"source", "status"}),
		pipelineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentinel_pipeline_run_duration_seconds",
			Help:    "Duration of a single adapter poll.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		dbConnsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_db_connections_active",
			Help: "Active pgxpool connections.",
		}),
		dbQueries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_db_queries_total",
			Help: "Database operations by kind and outcome.",
		}, []string{"operation", "status"}),
	}
}

func (m *PrometheusMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := http.StatusText(statusCode)
	if status == "" {
		status = "unknown"
	}
	m.httpRequests.WithLabelValues(method, endpoint, status).Inc()
	m.httpDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordAlertProcessed(source, status string) {
	m.alertsProcessed.WithLabelValues(source, status).Inc()
}

func (m *PrometheusMetrics) RecordPipelineRun(source string, duration time.Duration) {
	m.pipelineDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) SetDBConnectionsActive(count float64) {
	m.dbConnsActive.Set(count)
}

func (m *PrometheusMetrics) RecordDBQuery(operation, status string) {
	m.dbQueries.WithLabelValues(operation, status).Inc()
}

func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.Handler()
}

// InitPrometheus swaps the global metrics instance for a Prometheus-backed
// one registered against prometheus.DefaultRegisterer.
func InitPrometheus() {
	globalMetrics = NewPrometheusMetrics(prometheus.DefaultRegisterer)
}
