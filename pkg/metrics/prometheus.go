package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Prometheus struct {
	radarComputations *prometheus.CounterVec
	nearbySize        prometheus.Histogram
	fixFailures       *prometheus.CounterVec
	locationPublished *prometheus.CounterVec
	useCaseTotal      *prometheus.CounterVec
	useCaseDuration   *prometheus.HistogramVec
	httpDuration      *prometheus.HistogramVec
	activeSessions    prometheus.Gauge
	eventsConsumed    *prometheus.CounterVec
}

func NewPrometheusMetrics(reg prometheus.Registerer, serviceName string) *Prometheus {
	constLabels := prometheus.Labels{"service": serviceName}
	m := &Prometheus{
		radarComputations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "zoned_radar_computations_total",
			Help:        "Total radar recomputations.",
			ConstLabels: constLabels,
		}, []string{"trigger"}),
		nearbySize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "zoned_radar_nearby_users",
			Help:        "Number of users inside the radar box per computation.",
			Buckets:     []float64{0, 1, 2, 5, 10, 25, 50, 100},
			ConstLabels: constLabels,
		}),
		fixFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "zoned_geolocation_failures_total",
			Help:        "Failed geolocation fixes by reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		locationPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "zoned_location_published_total",
			Help:        "Own-position pushes to the directory.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		useCaseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "app_usecase_total",
			Help:        "Total number of Use Case executions.",
			ConstLabels: constLabels,
		}, []string{"use_case", "status"}),
		useCaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "app_usecase_duration_seconds",
			Help:        "Use Case execution latency.",
			Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			ConstLabels: constLabels,
		}, []string{"use_case", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "app_http_duration_seconds",
			Help:        "Duration of HTTP requests.",
			Buckets:     []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}, []string{"method", "path", "status_code"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "zoned_radar_sessions_active",
			Help:        "Open WebSocket radar sessions.",
			ConstLabels: constLabels,
		}),
		eventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "app_events_consumed_total",
			Help:        "Total broker events consumed.",
			ConstLabels: constLabels,
		}, []string{"handler", "status"}),
	}

	reg.MustRegister(
		m.radarComputations,
		m.nearbySize,
		m.fixFailures,
		m.locationPublished,
		m.useCaseTotal,
		m.useCaseDuration,
		m.httpDuration,
		m.activeSessions,
		m.eventsConsumed,
	)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

func (p *Prometheus) RecordRadarComputation(trigger string, nearby int) {
	p.radarComputations.WithLabelValues(trigger).Inc()
	p.nearbySize.Observe(float64(nearby))
}

func (p *Prometheus) RecordFixFailure(reason string) {
	p.fixFailures.WithLabelValues(reason).Inc()
}

func (p *Prometheus) RecordLocationPublished(status string) {
	p.locationPublished.WithLabelValues(status).Inc()
}

func (p *Prometheus) RecordUseCaseExecution(useCase string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	p.useCaseTotal.WithLabelValues(useCase, status).Inc()
	p.useCaseDuration.WithLabelValues(useCase, status).Observe(duration.Seconds())
}

func (p *Prometheus) ObserveHTTPRequestDuration(method, path, code string, duration float64) {
	p.httpDuration.WithLabelValues(method, path, code).Observe(duration)
}

func (p *Prometheus) SetActiveSessions(n int) {
	p.activeSessions.Set(float64(n))
}

func (p *Prometheus) IncEventsConsumed(handler, status string) {
	p.eventsConsumed.WithLabelValues(handler, status).Inc()
}
