// Package orchestrator materializes scheduled commit groups one at a time:
// it stages each group's lines, asks for a message and commits with the
// scheduled author and committer time.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/bahn/pkg/assemble"
	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
)

// ErrBackend is the sentinel matched by BackendError.
var ErrBackend = errors.New("version control backend failed")

// Backend is the version control surface the orchestrator drives.
type Backend interface {
	UnstageAll(ctx context.Context) error
	Stage(ctx context.Context, files []changeset.StagedFile) error
	Commit(ctx context.Context, message string, authorTime, committerTime time.Time) (string, error)
}

// MessageGenerator turns a group's diff into a commit message. It may fail
// or return an empty message, in which case the group's label is used.
type MessageGenerator interface {
	Generate(ctx context.Context, diff string) (string, error)
}

// ScheduledCommit is a group with its fallback label and commit time.
type ScheduledCommit struct {
	Group assemble.Group
	Label string
	Time  time.Time
}

// CommitRecord is a commit created by Run.
type CommitRecord struct {
	ID      string
	Time    time.Time
	Message string
	Files   []string
}

// BackendError reports a failed backend step. Commits created before the
// failure stay in history.
type BackendError struct {
	Op        string
	Group     int
	Completed []CommitRecord
	Pending   []ScheduledCommit
	Err       error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s group %d of %d: %v", e.Op, e.Group+1, len(e.Completed)+len(e.Pending), e.Err)
}

// Unwrap returns ErrBackend and the underlying cause.
func (e *BackendError) Unwrap() []error { return []error{ErrBackend, e.Err} }

// Orchestrator commits scheduled groups sequentially.
type Orchestrator struct {
	backend  Backend
	messages MessageGenerator
	logger   *slog.Logger
	tracer   trace.Tracer
	scope    changeset.Scope
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithTracer sets the tracer used for per-group spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = tracer }
}

// WithScope tells the orchestrator which scope the changeset came from. In
// the staged scope, lines of groups not committed are staged again when a
// run aborts, so index-only content is not lost.
func WithScope(scope changeset.Scope) Option {
	return func(o *Orchestrator) { o.scope = scope }
}

// New creates an Orchestrator. A nil messages generator always uses labels.
func New(backend Backend, messages MessageGenerator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:  backend,
		messages: messages,
		logger:   slog.Default(),
		tracer:   nooptrace.NewTracerProvider().Tracer(""),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Run commits the groups in order. It returns the records of the commits
// it created, also when it stops early. A backend failure yields a
// BackendError; cancellation restores the index to its state before the
// in-flight group and returns the context error.
func (o *Orchestrator) Run(ctx context.Context, commits []ScheduledCommit) ([]CommitRecord, error) {
	state := newStagingState()
	records := make([]CommitRecord, 0, len(commits))

	for i, sc := range commits {
		record, op, err := o.commitGroup(ctx, i, sc, state)
		if err == nil {
			records = append(records, record)

			continue
		}

		o.abort(ctx, commits[i:], state)

		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			o.logger.WarnContext(ctx, "commit run interrupted", "completed", len(records), "pending", len(commits)-i)

			return records, fmt.Errorf("commit group %d: %w", i+1, ctxErr)
		}

		return records, &BackendError{
			Op:        op,
			Group:     i,
			Completed: records,
			Pending:   commits[i:],
			Err:       err,
		}
	}

	return records, nil
}

func (o *Orchestrator) commitGroup(
	ctx context.Context, i int, sc ScheduledCommit, state *stagingState,
) (record CommitRecord, op string, err error) {
	ctx, span := o.tracer.Start(ctx, "bahn.commit_group",
		trace.WithAttributes(
			attribute.Int("group.index", i),
			attribute.Int("group.files", len(sc.Group.Parts)),
			attribute.Int("group.lines", sc.Group.Size()),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, op)
		}

		span.End()
	}()

	if err := ctx.Err(); err != nil {
		return CommitRecord{}, "start", err
	}

	if err := o.backend.UnstageAll(ctx); err != nil {
		return CommitRecord{}, "reset index for", err
	}

	files, err := state.advance(sc.Group)
	if err != nil {
		return CommitRecord{}, "prepare", err
	}

	if err := o.backend.Stage(ctx, files); err != nil {
		return CommitRecord{}, "stage", err
	}

	message := o.message(ctx, sc)

	if err := ctx.Err(); err != nil {
		return CommitRecord{}, "commit", err
	}

	id, err := o.backend.Commit(ctx, message, sc.Time, sc.Time)
	if err != nil {
		return CommitRecord{}, "commit", err
	}

	state.commit()

	o.logger.InfoContext(ctx, "created commit", "id", id, "time", sc.Time, "files", len(files), "summary", firstLine(message))

	return CommitRecord{ID: id, Time: sc.Time, Message: message, Files: sc.Group.Paths()}, "", nil
}

// message asks the generator for a message and falls back to the label.
func (o *Orchestrator) message(ctx context.Context, sc ScheduledCommit) string {
	label := sc.Label
	if label == "" {
		label = sc.Group.Label()
	}

	if o.messages == nil {
		return label
	}

	message, err := o.messages.Generate(ctx, Patch(sc.Group))
	if err != nil {
		o.logger.WarnContext(ctx, "message generation failed, using label", "label", label, "error", err)

		return label
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return label
	}

	return message
}

// abort restores the index after a failed or interrupted group.
func (o *Orchestrator) abort(ctx context.Context, pending []ScheduledCommit, state *stagingState) {
	ctx = context.WithoutCancel(ctx)

	if err := o.backend.UnstageAll(ctx); err != nil {
		o.logger.ErrorContext(ctx, "restore index", "error", err)

		return
	}

	state.rollback()

	if o.scope != changeset.ScopeStaged {
		return
	}

	files, err := state.restage(pending)
	if err == nil {
		err = o.backend.Stage(ctx, files)
	}

	if err != nil {
		o.logger.ErrorContext(ctx, "re-stage pending groups", "error", err)
	}
}

// Patch renders the unified diff of every part of the group.
func Patch(g assemble.Group) string {
	var b strings.Builder

	for _, p := range g.Parts {
		b.WriteString(changeset.FormatPatch(p.File.Change, p.Hunks))
	}

	return b.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")

	return line
}
