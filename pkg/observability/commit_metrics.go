package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCommitsTotal  = "bahn.commits.total"
	metricCommitLines   = "bahn.commit.lines"
	metricWarningsTotal = "bahn.plan.warnings.total"
	metricUndoneTotal   = "bahn.commits.undone.total"

	attrSplitMode = "split_mode"
)

// lineBucketBoundaries spans one-line fixes to large generated files.
var lineBucketBoundaries = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}

// CommitMetrics holds the instruments describing created and undone commits.
type CommitMetrics struct {
	commitsTotal  metric.Int64Counter
	commitLines   metric.Int64Histogram
	warningsTotal metric.Int64Counter
	undoneTotal   metric.Int64Counter
}

// CommitStats summarizes one executed plan.
type CommitStats struct {
	Mode     string
	Lines    []int
	Warnings int
}

// NewCommitMetrics creates commit metric instruments from the given meter.
func NewCommitMetrics(mt metric.Meter) (*CommitMetrics, error) {
	commits, err := mt.Int64Counter(metricCommitsTotal,
		metric.WithDescription("Commits created"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommitsTotal, err)
	}

	lines, err := mt.Int64Histogram(metricCommitLines,
		metric.WithDescription("Changed lines per created commit"),
		metric.WithUnit("{line}"),
		metric.WithExplicitBucketBoundaries(lineBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommitLines, err)
	}

	warnings, err := mt.Int64Counter(metricWarningsTotal,
		metric.WithDescription("Non-fatal planning warnings"),
		metric.WithUnit("{warning}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricWarningsTotal, err)
	}

	undone, err := mt.Int64Counter(metricUndoneTotal,
		metric.WithDescription("Commits removed by undo"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricUndoneTotal, err)
	}

	return &CommitMetrics{
		commitsTotal:  commits,
		commitLines:   lines,
		warningsTotal: warnings,
		undoneTotal:   undone,
	}, nil
}

// RecordRun records the commits of one executed plan.
// Safe to call on a nil receiver (no-op).
func (cm *CommitMetrics) RecordRun(ctx context.Context, stats CommitStats) {
	if cm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrSplitMode, stats.Mode))

	cm.commitsTotal.Add(ctx, int64(len(stats.Lines)), attrs)

	for _, n := range stats.Lines {
		cm.commitLines.Record(ctx, int64(n), attrs)
	}

	cm.warningsTotal.Add(ctx, int64(stats.Warnings))
}

// RecordUndo records n undone commits. Safe to call on a nil receiver.
func (cm *CommitMetrics) RecordUndo(ctx context.Context, n int) {
	if cm == nil {
		return
	}

	cm.undoneTotal.Add(ctx, int64(n))
}
