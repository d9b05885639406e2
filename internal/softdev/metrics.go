package softdev

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
	tracer = otel.Tracer("softdev.service")
	meter  = otel.Meter("softdev.service")
)

var (
	opLatency    metric.Float64Histogram
	opTotal      metric.Int64Counter
	nodesIndexed metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		opLatency, err = meter.Float64Histogram(
			"softdev_operation_duration_seconds",
			metric.WithDescription("Duration of analysis and query operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		opTotal, err = meter.Int64Counter(
			"softdev_operation_total",
			metric.WithDescription("Total number of operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesIndexed, err = meter.Int64Counter(
			"softdev_nodes_indexed_total",
			metric.WithDescription("Functions and structs written by analyses"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// observe starts a span for op on a project and returns a func that ends
// it and records latency and outcome.
func observe(ctx context.Context, op, projectID string) (context.Context, func(err error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Service."+op,
		trace.WithAttributes(
			attribute.String("softdev.project_id", projectID),
			attribute.String("softdev.operation", op),
		),
	)
	return ctx, func(err error) {
		defer span.End()
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
	}
}

// recordAnalysis annotates the current span with the counts of a finished
// analysis.
func recordAnalysis(ctx context.Context, res *AnalysisResult) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("softdev.run_id", res.RunID),
		attribute.String("softdev.depth", res.Depth),
		attribute.Int("softdev.files", res.Files),
		attribute.Int("softdev.functions", res.Functions),
		attribute.Int("softdev.structs", res.Structs),
		attribute.Int("softdev.errors", res.ErrorsEncountered),
	)
	if initMetrics() != nil {
		return
	}
	nodesIndexed.Add(ctx, int64(res.Functions+res.Structs),
		metric.WithAttributes(attribute.String("depth", res.Depth)))
}
