// Package metrics exposes Prometheus instrumentation for extraction and the
// HTTP API on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Extraction outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	Extractions      *prometheus.CounterVec
	ExtractDuration  *prometheus.HistogramVec
	ValuesPerReport  *prometheus.HistogramVec
	Confidence       *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	DetectionMatches *prometheus.CounterVec
}

// New registers every metric on a fresh registry, plus the Go and process
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Extractions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labextract_extractions_total",
			Help: "Documents processed, by engine and outcome",
		}, []string{"engine", "outcome"}),
		ExtractDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "labextract_extraction_duration_seconds",
			Help:    "Time spent running an engine on one document",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"engine"}),
		ValuesPerReport: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "labextract_values_per_document",
			Help:    "Lab values extracted from one document",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"engine"}),
		Confidence: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "labextract_overall_confidence",
			Help:    "Overall confidence of extraction results",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"engine"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labextract_cache_lookups_total",
			Help: "Result cache lookups, by result (hit, miss, error)",
		}, []string{"result"}),
		DetectionMatches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labextract_detections_total",
			Help: "Engines chosen by auto-detection",
		}, []string{"engine"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labextract_http_requests_total",
			Help: "HTTP requests, by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "labextract_http_request_duration_seconds",
			Help:    "HTTP request latency, by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry exposes the private registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveExtraction records one engine run.
func (m *Metrics) ObserveExtraction(engine, outcome string, d time.Duration, values int, confidence float64) {
	m.Extractions.WithLabelValues(engine, outcome).Inc()
	if outcome == OutcomeError {
		return
	}
	m.ExtractDuration.WithLabelValues(engine).Observe(d.Seconds())
	m.ValuesPerReport.WithLabelValues(engine).Observe(float64(values))
	m.Confidence.WithLabelValues(engine).Observe(confidence)
}

func (m *Metrics) CacheLookup(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) Detected(engine string) {
	m.DetectionMatches.WithLabelValues(engine).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts requests by registered route, so path parameters do not
// explode the label space.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
