package index

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("softdev.index")
	meter  = otel.Meter("softdev.index")
)

var (
	opLatency metric.Float64Histogram
	opTotal   metric.Int64Counter
	opRows    metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		opLatency, err = meter.Float64Histogram(
			"index_operation_duration_seconds",
			metric.WithDescription("Duration of index operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		opTotal, err = meter.Int64Counter(
			"index_operation_total",
			metric.WithDescription("Total number of index operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		opRows, err = meter.Int64Histogram(
			"index_operation_rows",
			metric.WithDescription("Nodes or links touched per index operation"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// observe starts a span for op and returns a func that ends it and records
// latency, outcome and the number of rows involved.
func (x *Index) observe(ctx context.Context, op string) (context.Context, func(rows int, err error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Index."+op,
		trace.WithAttributes(
			attribute.String("index.project_id", x.projectID),
			attribute.String("index.operation", op),
		),
	)
	return ctx, func(rows int, err error) {
		defer span.End()
		span.SetAttributes(attribute.Int("index.rows", rows))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if initMetrics() != nil {
			return
		}
		attrs := metric.WithAttributes(
			attribute.String("operation", op),
			attribute.Bool("success", err == nil),
		)
		opLatency.Record(ctx, time.Since(start).Seconds(), attrs)
		opTotal.Add(ctx, 1, attrs)
		opRows.Record(ctx, int64(rows), metric.WithAttributes(attribute.String("operation", op)))
	}
}
