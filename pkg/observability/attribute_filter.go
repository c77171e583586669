package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// attributePolicy decides which span attributes may leave the process.
// Diffs, commit messages and author identities never do.
type attributePolicy struct {
	allow []string
	deny  []string
}

// spanPolicy allows bahn's own namespaces plus the error and http keys of
// the semantic conventions.
var spanPolicy = attributePolicy{
	allow: []string{
		"bahn.", "engine.", "group.", "plan.", "push.", "undo.", "mcp.",
		"http.", "error",
	},
	deny: []string{
		"user.", "commit.message", "email", "author", "diff",
		"request.body", "response.body",
	},
}

// permits reports whether key may be exported. Deny entries win; an entry
// ending in a dot matches a namespace, any other entry the exact key or
// its dotted children.
func (p attributePolicy) permits(key string) bool {
	return !matchAny(p.deny, key) && matchAny(p.allow, key)
}

func matchAny(entries []string, key string) bool {
	for _, e := range entries {
		if strings.HasSuffix(e, ".") {
			if strings.HasPrefix(key, e) {
				return true
			}

			continue
		}

		if key == e || strings.HasPrefix(key, e+".") {
			return true
		}
	}

	return false
}

// attributeFilter is a SpanProcessor that drops attributes the policy does
// not permit before the delegate sees the span.
type attributeFilter struct {
	delegate sdktrace.SpanProcessor
	policy   attributePolicy
	logger   *slog.Logger
	reported sync.Map
}

// NewAttributeFilter wraps delegate so exported spans carry only permitted
// attributes. A non-nil logger reports each dropped key once.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &attributeFilter{delegate: delegate, policy: spanPolicy, logger: logger}
}

func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.delegate.OnStart(parent, s)
}

// OnEnd hands the delegate a filtered view; ended spans are read only.
func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.delegate.OnEnd(&filteredSpan{ReadOnlySpan: s, keep: f.keep})
}

func (f *attributeFilter) Shutdown(ctx context.Context) error {
	if err := f.delegate.Shutdown(ctx); err != nil {
		return fmt.Errorf("attribute filter shutdown: %w", err)
	}

	return nil
}

func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	if err := f.delegate.ForceFlush(ctx); err != nil {
		return fmt.Errorf("attribute filter flush: %w", err)
	}

	return nil
}

func (f *attributeFilter) keep(key string) bool {
	if f.policy.permits(key) {
		return true
	}

	if f.logger != nil {
		if _, seen := f.reported.LoadOrStore(key, struct{}{}); !seen {
			f.logger.Warn("span attribute dropped", "key", key)
		}
	}

	return false
}

// filteredSpan is a ReadOnlySpan whose attributes pass through keep.
type filteredSpan struct {
	sdktrace.ReadOnlySpan

	keep func(key string) bool
}

func (s *filteredSpan) Attributes() []attribute.KeyValue {
	all := s.ReadOnlySpan.Attributes()
	kept := make([]attribute.KeyValue, 0, len(all))

	for _, kv := range all {
		if s.keep(string(kv.Key)) {
			kept = append(kept, kv)
		}
	}

	return kept
}
