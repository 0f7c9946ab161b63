package recordstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Metrics holds the Prometheus collectors for store operations.
type Metrics struct {
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "recordstore",
			Name:      "operations_total",
			Help:      "Record store operations by operation, table and result.",
		}, []string{"op", "table", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "recordstore",
			Name:      "operation_duration_seconds",
			Help:      "Record store operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "table"}),
	}
	reg.MustRegister(m.ops, m.latency)
	return m
}

type instrumented struct {
	next    Store
	metrics *Metrics
	tracer  trace.Tracer
}

// Instrument wraps next so that every operation is counted, timed and traced.
func Instrument(next Store, metrics *Metrics, tracer trace.Tracer) Store {
	return &instrumented{next: next, metrics: metrics, tracer: tracer}
}

func (s *instrumented) observe(ctx context.Context, op string, table Table) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "recordstore."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("recordstore.table", string(table))))
	start := time.Now()

	return ctx, func(err error) {
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.metrics.ops.WithLabelValues(op, string(table), result).Inc()
		s.metrics.latency.WithLabelValues(op, string(table)).Observe(time.Since(start).Seconds())
		span.End()
	}
}

func (s *instrumented) Header(ctx context.Context, table Table) ([]string, error) {
	ctx, done := s.observe(ctx, "header", table)
	h, err := s.next.Header(ctx, table)
	done(err)
	return h, err
}

func (s *instrumented) FetchAll(ctx context.Context, table Table) ([]Row, error) {
	ctx, done := s.observe(ctx, "fetch_all", table)
	rows, err := s.next.FetchAll(ctx, table)
	done(err)
	return rows, err
}

func (s *instrumented) AppendRow(ctx context.Context, table Table, values []string) (Row, error) {
	ctx, done := s.observe(ctx, "append_row", table)
	row, err := s.next.AppendRow(ctx, table, values)
	done(err)
	return row, err
}

func (s *instrumented) UpdateCell(ctx context.Context, table Table, id uuid.UUID, column, value string) error {
	ctx, done := s.observe(ctx, "update_cell", table)
	err := s.next.UpdateCell(ctx, table, id, column, value)
	done(err)
	return err
}

func (s *instrumented) NextID(ctx context.Context, table Table) (int, error) {
	ctx, done := s.observe(ctx, "next_id", table)
	id, err := s.next.NextID(ctx, table)
	done(err)
	return id, err
}
