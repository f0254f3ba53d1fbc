package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bill_estimator"

// Metrics holds the collectors exported on /metrics
type Metrics struct {
	gatherer prometheus.Gatherer

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	upstreamDuration *prometheus.HistogramVec
	upstreamErrors   *prometheus.CounterVec
	predictionsTotal *prometheus.CounterVec
	monthlyBill      prometheus.Gauge
	uniqueDays       prometheus.Gauge
	sinkErrors       *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves them from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: g,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Total pipeline runs by final phase.",
		}, []string{"phase"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Histogram of pipeline run durations.",
			Buckets:   prometheus.DefBuckets,
		}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Histogram of upstream API request durations by target.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Total failed upstream API requests by target.",
		}, []string{"target"}),
		predictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total predictions by method and confidence.",
		}, []string{"method", "confidence"}),
		monthlyBill: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "predicted_monthly_bill",
			Help:      "Most recent predicted monthly bill.",
		}),
		uniqueDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_unique_days",
			Help:      "Days of data in the most recent report.",
		}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Total failed outcome deliveries by sink.",
		}, []string{"sink"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.upstreamDuration,
		m.upstreamErrors,
		m.predictionsTotal,
		m.monthlyBill,
		m.uniqueDays,
		m.sinkErrors,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveUpstream records one ThingSpeak or Gemini request
func (m *Metrics) ObserveUpstream(target string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(target).Observe(duration.Seconds())
	if err != nil {
		m.upstreamErrors.WithLabelValues(target).Inc()
	}
}

// ObserveRun records a finished pipeline run
func (m *Metrics) ObserveRun(phase string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(phase).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// ObservePrediction records the latest published estimate
func (m *Metrics) ObservePrediction(method, confidence string, monthlyBill float64, uniqueDays int) {
	if m == nil {
		return
	}
	m.predictionsTotal.WithLabelValues(method, confidence).Inc()
	m.monthlyBill.Set(monthlyBill)
	m.uniqueDays.Set(float64(uniqueDays))
}

// ObserveSinkError counts a failed delivery to sink
func (m *Metrics) ObserveSinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

// ObserveHTTP records one served API request
func (m *Metrics) ObserveHTTP(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}
