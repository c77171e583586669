// Package engine wires the analysis pipeline (ingest, chunk, tag, order,
// assemble, schedule) and hands the resulting plan to the orchestrator.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/bahn/pkg/assemble"
	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
	"github.com/Sumatoshi-tech/bahn/pkg/chunk"
	"github.com/Sumatoshi-tech/bahn/pkg/hunkgroup"
	"github.com/Sumatoshi-tech/bahn/pkg/observability"
	"github.com/Sumatoshi-tech/bahn/pkg/orchestrator"
	"github.com/Sumatoshi-tech/bahn/pkg/ordering"
	"github.com/Sumatoshi-tech/bahn/pkg/schedule"
)

const (
	opPlan    = "plan"
	opExecute = "execute"
)

// ErrStagedChanges is returned when a plan of unstaged changes is executed
// while the index holds staged changes. Its hunks are relative to the index,
// so committing them on top of HEAD would carry the staged lines along.
var ErrStagedChanges = errors.New("staged changes present: commit them first or use scope both")

// Repository is everything the engine needs from version control.
type Repository interface {
	changeset.Source
	orchestrator.Backend
}

// PlanOptions controls how a changeset is decomposed and scheduled.
type PlanOptions struct {
	Scope     changeset.Scope
	Mode      assemble.Mode
	Target    int
	Threshold int
	// Spread is the scheduling window. Zero draws a window of 2 to 4 hours.
	Spread time.Duration
	// MinGap overrides the scheduler's minimum gap when positive.
	MinGap time.Duration
	// Start is the first commit time. Zero means now.
	Start time.Time
	// Rand drives every random choice of the plan. Nil uses a random seed.
	Rand *rand.Rand
	// Rules classifies paths into buckets. Nil uses the default rules.
	Rules *ordering.Rules
}

// Engine plans and executes commit decompositions against one repository.
type Engine struct {
	repo     Repository
	chunker  *chunk.Chunker
	messages orchestrator.MessageGenerator
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.REDMetrics
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMessages sets the commit message generator.
func WithMessages(gen orchestrator.MessageGenerator) Option {
	return func(e *Engine) { e.messages = gen }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTracer sets the tracer used for phase spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// WithMetrics records plan and execute durations.
func WithMetrics(metrics *observability.REDMetrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithClock replaces time.Now for the default start time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine over repo.
func New(repo Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		logger: slog.Default(),
		tracer: nooptrace.NewTracerProvider().Tracer(""),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.chunker = chunk.NewChunker(chunk.WithLogger(e.logger))

	return e
}

// Plan reads the changeset of opts.Scope and decomposes it into scheduled
// commits. It does not touch the repository.
func (e *Engine) Plan(ctx context.Context, opts PlanOptions) (plan *Plan, err error) {
	ctx, finish := e.phase(ctx, opPlan)
	defer func() { finish(err) }()

	cs, err := changeset.Ingest(ctx, e.repo, opts.Scope)
	if err != nil {
		return nil, err
	}

	return e.Analyze(ctx, cs, opts)
}

// Analyze decomposes an already ingested changeset.
func (e *Engine) Analyze(ctx context.Context, cs *changeset.Changeset, opts PlanOptions) (*Plan, error) {
	rules := opts.Rules
	if rules == nil {
		rules = ordering.MustDefaultRules()
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // timing jitter, not security.
	}

	plan := &Plan{Scope: cs.Scope, Mode: opts.Mode, Changeset: cs}

	chunked, err := e.chunk(ctx, cs)
	if err != nil {
		return nil, err
	}

	files := make([]*hunkgroup.File, len(cs.Files))
	for i, fc := range cs.Files {
		if chunked[i].ParseErr != nil {
			plan.Warnings = append(plan.Warnings, chunked[i].ParseErr)
		}

		files[i] = hunkgroup.Tag(fc, chunked[i])
	}

	plan.Entries = ordering.Order(files, rules)

	assembled, err := assemble.Assemble(plan.Entries, assemble.Options{
		Mode:      opts.Mode,
		Target:    opts.Target,
		Threshold: opts.Threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("assemble groups: %w", err)
	}

	plan.Warnings = append(plan.Warnings, assembled.Warnings...)

	plan.Start = opts.Start
	if plan.Start.IsZero() {
		plan.Start = e.now()
	}

	plan.Spread = opts.Spread
	if plan.Spread <= 0 {
		plan.Spread = schedule.DefaultSpread(rng)
	}

	var schedOpts []schedule.Option
	if opts.MinGap > 0 {
		schedOpts = append(schedOpts, schedule.WithMinGap(opts.MinGap))
	}

	times, err := schedule.NewScheduler(rng, schedOpts...).Generate(len(assembled.Groups), plan.Start, plan.Spread)
	if err != nil {
		return nil, fmt.Errorf("schedule %d commits: %w", len(assembled.Groups), err)
	}

	plan.Spread = times.Spread
	plan.Warnings = append(plan.Warnings, times.Warnings...)

	plan.Commits = make([]orchestrator.ScheduledCommit, len(assembled.Groups))
	for i, g := range assembled.Groups {
		plan.Commits[i] = orchestrator.ScheduledCommit{Group: g, Label: g.Label(), Time: times.Times[i]}
	}

	for _, w := range plan.Warnings {
		e.logger.WarnContext(ctx, "plan warning", "error", w)
	}

	e.logger.InfoContext(ctx, "planned commits",
		"files", len(cs.Files), "commits", len(plan.Commits), "mode", opts.Mode.String(), "spread", plan.Spread)

	return plan, nil
}

func (e *Engine) chunk(ctx context.Context, cs *changeset.Changeset) ([]chunk.File, error) {
	inputs := make([]chunk.Input, 0, len(cs.Files))
	index := make([]int, 0, len(cs.Files))

	for i, fc := range cs.Files {
		if fc.Opaque() {
			continue
		}

		inputs = append(inputs, chunk.Input{Path: fc.Path, Content: fc.NewContent})
		index = append(index, i)
	}

	chunked, err := e.chunker.ChunkAll(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("chunk files: %w", err)
	}

	out := make([]chunk.File, len(cs.Files))
	for i, fc := range cs.Files {
		out[i] = chunk.File{Path: fc.Path}
	}

	for j, i := range index {
		out[i] = chunked[j]
	}

	return out, nil
}

// Execute commits the plan. It returns the records of the commits created,
// also when it fails part way.
func (e *Engine) Execute(ctx context.Context, plan *Plan) (records []orchestrator.CommitRecord, err error) {
	ctx, finish := e.phase(ctx, opExecute)
	defer func() { finish(err) }()

	if plan.Scope == changeset.ScopeUnstaged {
		if err = e.requireCleanIndex(ctx); err != nil {
			return nil, err
		}
	}

	orch := orchestrator.New(e.repo, e.messages,
		orchestrator.WithLogger(e.logger),
		orchestrator.WithTracer(e.tracer),
		orchestrator.WithScope(plan.Scope),
	)

	records, err = orch.Run(ctx, plan.Commits)
	if err != nil {
		return records, fmt.Errorf("execute plan: %w", err)
	}

	return records, nil
}

// requireCleanIndex fails with ErrStagedChanges when the index differs from
// HEAD.
func (e *Engine) requireCleanIndex(ctx context.Context) error {
	_, err := changeset.Ingest(ctx, e.repo, changeset.ScopeStaged)

	switch {
	case errors.Is(err, changeset.ErrNoChanges):
		return nil
	case err != nil:
		return fmt.Errorf("check index: %w", err)
	default:
		return ErrStagedChanges
	}
}

// phase opens a span for op and returns a function that ends it and records
// its duration.
func (e *Engine) phase(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := e.tracer.Start(ctx, "bahn.engine."+op, trace.WithAttributes(attribute.String("engine.op", op)))

	finish := e.metrics.Start(ctx, op)

	return ctx, func(err error) {
		status := observability.StatusOK
		if err != nil {
			status = observability.StatusError

			span.RecordError(err)
			span.SetStatus(codes.Error, op)
		}

		span.End()
		finish(status)
	}
}
