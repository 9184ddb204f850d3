package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/searchktools/fast-host/core"
	"github.com/searchktools/fast-host/core/http"
	"github.com/searchktools/fast-host/core/pipeline"
	"github.com/searchktools/fast-host/core/router"
)

const metricsKey = "middleware.metrics"

// MetricsConfig configures the Prometheus hooks.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "fasthost").
	Namespace string

	// Subsystem is the metrics subsystem (default: "http").
	Subsystem string

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry receives the collectors and is rendered by the metrics module.
	// Default: a new private registry.
	Registry *prometheus.Registry
}

// MetricsOption configures the Prometheus hooks.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics collects request metrics through the hook pipelines
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	faults   *prometheus.CounterVec
	inFlight prometheus.Gauge
}

// requestMetrics is the per-request state shared by the metrics hooks
type requestMetrics struct {
	start time.Time
	done  bool
}

// NewMetrics registers the request collectors
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "fasthost",
		Subsystem: "http",
		Buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(config.Registry)
	return &Metrics{
		registry: config.Registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "requests_total",
			Help:      "Total number of requests by method, route and status",
		}, []string{"method", "route", "status"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "Request processing duration in seconds",
			Buckets:   config.Buckets,
		}, []string{"method", "route"}),

		faults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "faults_total",
			Help:      "Total number of faulted requests by dispatcher state",
		}, []string{"state"}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "requests_in_flight",
			Help:      "Number of requests currently being dispatched",
		}),
	}
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Before starts tracking a request
func (m *Metrics) Before(_ context.Context, c *http.Context) (*http.Response, error) {
	c.Set(metricsKey, &requestMetrics{start: time.Now()})
	m.inFlight.Inc()
	return nil, nil
}

// After records the completed request
func (m *Metrics) After(_ context.Context, c *http.Context) error {
	rm := m.finish(c)
	if rm == nil {
		return nil
	}
	route := routeLabel(c)
	status := 0
	if c.Response != nil {
		status = c.Response.StatusCode
	}
	m.requests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(c.Method(), route).Observe(time.Since(rm.start).Seconds())
	return nil
}

// OnError counts a fault; the final response is recorded as a 500
func (m *Metrics) OnError(c *http.Context, err error) any {
	state := "unknown"
	var fault *core.FaultError
	if errors.As(err, &fault) {
		state = fault.State.String()
	}
	m.faults.WithLabelValues(state).Inc()

	if rm := m.finish(c); rm != nil && !canceled(err) {
		route := routeLabel(c)
		m.requests.WithLabelValues(c.Method(), route, "500").Inc()
		m.duration.WithLabelValues(c.Method(), route).Observe(time.Since(rm.start).Seconds())
	}
	return nil
}

// finish marks the request done once and releases the in-flight slot
func (m *Metrics) finish(c *http.Context) *requestMetrics {
	v, ok := c.Get(metricsKey)
	if !ok {
		return nil
	}
	rm, ok := v.(*requestMetrics)
	if !ok || rm.done {
		return nil
	}
	rm.done = true
	m.inFlight.Dec()
	return rm
}

func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func routeLabel(c *http.Context) string {
	if c.Route == nil {
		return ""
	}
	// fallback routes carry the raw request path
	switch name := c.Route.Name(); name {
	case router.NotFoundName, router.MethodNotAllowedName:
		return name
	}
	return c.Route.Path()
}

// Install registers the metrics hooks in all three pipelines
func (m *Metrics) Install(set *pipeline.Set) {
	set.Before.AddToStart(pipeline.Item[pipeline.BeforeFunc]{Name: NameMetrics, Delegate: m.Before}, true)
	set.After.AddToEnd(pipeline.Item[pipeline.AfterFunc]{Name: NameMetrics, Delegate: m.After}, true)
	set.OnError.AddToStart(pipeline.Item[pipeline.ErrorFunc]{Name: NameMetrics, Delegate: m.OnError}, true)
}

// Render writes the registry in the Prometheus text exposition format
func (m *Metrics) Render(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// Module serves the registry at path
func (m *Metrics) Module(path string) *router.Module {
	return router.NewModule("Metrics", "/").Get(path, func(context.Context, *http.Context) (any, error) {
		var buf bytes.Buffer
		if err := m.Render(&buf); err != nil {
			return nil, err
		}
		return http.NewBytes(200, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes()), nil
	}, router.WithName("metrics"))
}
