package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricOperations = "bahn.operations.total"
	metricDuration   = "bahn.operation.duration.seconds"
	metricErrors     = "bahn.errors.total"
	metricInflight   = "bahn.inflight.operations"

	attrOp     = "op"
	attrStatus = "status"
)

// Operation outcomes.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// durationBuckets covers millisecond plans up to commit runs that wait on
// slow message generation.
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300}

// REDMetrics counts engine phases and MCP tool calls: how many ran, how
// many failed, how long they took and how many are running.
type REDMetrics struct {
	operations metric.Int64Counter
	errors     metric.Int64Counter
	duration   metric.Float64Histogram
	inflight   metric.Int64UpDownCounter
}

// NewREDMetrics creates the instruments on mt.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	var (
		rm   REDMetrics
		errs []error
	)

	collect := func(name string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("create %s: %w", name, err))
		}
	}

	var err error

	rm.operations, err = mt.Int64Counter(metricOperations,
		metric.WithDescription("Operations started"), metric.WithUnit("{operation}"))
	collect(metricOperations, err)

	rm.errors, err = mt.Int64Counter(metricErrors,
		metric.WithDescription("Operations that failed"), metric.WithUnit("{error}"))
	collect(metricErrors, err)

	rm.duration, err = mt.Float64Histogram(metricDuration,
		metric.WithDescription("Operation duration"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...))
	collect(metricDuration, err)

	rm.inflight, err = mt.Int64UpDownCounter(metricInflight,
		metric.WithDescription("Operations currently running"), metric.WithUnit("{operation}"))
	collect(metricInflight, err)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &rm, nil
}

// Start marks op as running and returns the function that finishes it with
// one of StatusOK or StatusError. A nil receiver records nothing.
func (rm *REDMetrics) Start(ctx context.Context, op string) func(status string) {
	if rm == nil {
		return func(string) {}
	}

	started := time.Now()
	opAttr := attribute.String(attrOp, op)

	rm.inflight.Add(ctx, 1, metric.WithAttributes(opAttr))

	return func(status string) {
		rm.inflight.Add(ctx, -1, metric.WithAttributes(opAttr))

		attrs := metric.WithAttributes(opAttr, attribute.String(attrStatus, status))
		rm.operations.Add(ctx, 1, attrs)
		rm.duration.Record(ctx, time.Since(started).Seconds(), attrs)

		if status == StatusError {
			rm.errors.Add(ctx, 1, metric.WithAttributes(opAttr))
		}
	}
}
