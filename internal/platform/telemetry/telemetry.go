// Package telemetry wires request tracing and Prometheus metrics for the
// clinic server. Spans are produced with the OpenTelemetry SDK and, unless a
// caller supplies its own processor, written to the structured log.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/clinic/clinic/internal/platform/db"
)

// TelemetryConfig holds all configuration for the telemetry provider.
type TelemetryConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	MetricsEnabled *bool   // nil = use default (true)
	TracingEnabled *bool   // nil = use default (true)
	SampleRate     float64 // 0.0 to 1.0
}

func (c *TelemetryConfig) metricsOn() bool {
	return c.MetricsEnabled == nil || *c.MetricsEnabled
}

func (c *TelemetryConfig) tracingOn() bool {
	return c.TracingEnabled == nil || *c.TracingEnabled
}

func (c *TelemetryConfig) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "clinic-server"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.SampleRate <= 0 || c.SampleRate > 1 {
		c.SampleRate = 1.0
	}
}

// BoolPtr is a helper to create a *bool for TelemetryConfig fields.
func BoolPtr(b bool) *bool {
	return &b
}

// defaultDurationBuckets are the request duration buckets in seconds.
var defaultDurationBuckets = []float64{
	0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0,
}

// TelemetryProvider owns the metrics registry and the tracer provider.
type TelemetryProvider struct {
	cfg      TelemetryConfig
	registry *prometheus.Registry
	tp       *sdktrace.TracerProvider
	tracer   trace.Tracer
	prop     propagation.TextMapPropagator

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	active   prometheus.Gauge
}

// NewTelemetryProvider builds the provider. Spans go to a batching log
// exporter unless opts install other span processors.
func NewTelemetryProvider(cfg TelemetryConfig, logger zerolog.Logger, opts ...sdktrace.TracerProviderOption) *TelemetryProvider {
	cfg.applyDefaults()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p := &TelemetryProvider{
		cfg:      cfg,
		registry: reg,
		prop:     propagation.TraceContext{},
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   defaultDurationBuckets,
		}, []string{"method", "route"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "active_requests",
			Help:      "Requests currently being served.",
		}),
	}
	reg.MustRegister(p.requests, p.duration, p.active)

	if !cfg.tracingOn() {
		p.tracer = noop.NewTracerProvider().Tracer(cfg.ServiceName)
		return p
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)
	base := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}
	if len(opts) == 0 {
		base = append(base, sdktrace.WithBatcher(NewLogExporter(logger)))
	}
	p.tp = sdktrace.NewTracerProvider(append(base, opts...)...)
	p.tracer = p.tp.Tracer(cfg.ServiceName)
	return p
}

// Shutdown flushes pending spans.
func (p *TelemetryProvider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Registry is where other packages register their collectors.
func (p *TelemetryProvider) Registry() *prometheus.Registry {
	return p.registry
}

// Tracer returns a tracer for instrumenting code outside the HTTP layer.
func (p *TelemetryProvider) Tracer() trace.Tracer {
	return p.tracer
}

// ObservePool exports database pool statistics as gauges read at scrape time.
func (p *TelemetryProvider) ObservePool(stats db.StatsFunc) {
	gauge := func(name, help string, read func(db.PoolStats) int32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "clinic",
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(stats())) })
	}
	p.registry.MustRegister(
		gauge("total_connections", "Open connections.", func(s db.PoolStats) int32 { return s.TotalConns }),
		gauge("idle_connections", "Idle connections.", func(s db.PoolStats) int32 { return s.IdleConns }),
		gauge("acquired_connections", "Connections in use.", func(s db.PoolStats) int32 { return s.AcquiredConns }),
	)
}

// TracingMiddleware starts a server span named "HTTP {method} {route}" for
// every request and continues any trace passed in a traceparent header.
func (p *TelemetryProvider) TracingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !p.cfg.tracingOn() {
				return next(c)
			}

			req := c.Request()
			ctx := p.prop.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
			route := routeOf(c)

			ctx, span := p.tracer.Start(ctx, "HTTP "+req.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", req.Method),
					attribute.String("http.route", route),
					attribute.String("url.path", req.URL.Path),
				))
			defer span.End()
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			status := statusOf(c, err)
			span.SetAttributes(attribute.Int("http.response.status_code", status))
			if status >= http.StatusInternalServerError {
				if err != nil {
					span.RecordError(err)
				}
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			return err
		}
	}
}

// MetricsMiddleware counts and times every request by route pattern.
func (p *TelemetryProvider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !p.cfg.metricsOn() {
				return next(c)
			}

			p.active.Inc()
			start := time.Now()
			err := next(c)
			p.active.Dec()

			route := routeOf(c)
			method := c.Request().Method
			p.requests.WithLabelValues(method, route, strconv.Itoa(statusOf(c, err))).Inc()
			p.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// PrometheusHandler serves the registry in the Prometheus text format.
func (p *TelemetryProvider) PrometheusHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
}

// routeOf prefers the matched route pattern so ids do not explode label
// cardinality.
func routeOf(c echo.Context) string {
	if route := c.Path(); route != "" {
		return route
	}
	return c.Request().URL.Path
}

// statusOf returns the status the error handler will write for err, or the
// status already written when the handler succeeded.
func statusOf(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
