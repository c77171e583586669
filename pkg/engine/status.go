package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
	"github.com/Sumatoshi-tech/bahn/pkg/gitlib"
	"github.com/Sumatoshi-tech/bahn/pkg/ordering"
)

const shortIDLen = 7

// Inspector reports where a repository's branch stands.
type Inspector interface {
	CurrentBranch(ctx context.Context) (string, error)
	HeadID(ctx context.Context) (string, error)
	UnpushedIDs(ctx context.Context) ([]string, error)
}

// StatusSource is a repository that can be inspected and diffed.
type StatusSource interface {
	changeset.Source
	Inspector
}

// StatusFile is one pending file change.
type StatusFile struct {
	Path    string `json:"path"    yaml:"path"`
	Status  string `json:"status"  yaml:"status"`
	Bucket  string `json:"bucket"  yaml:"bucket"`
	Added   int    `json:"added"   yaml:"added"`
	Removed int    `json:"removed" yaml:"removed"`
}

// BucketCount is the number of pending files in one bucket.
type BucketCount struct {
	Bucket string `json:"bucket" yaml:"bucket"`
	Files  int    `json:"files"  yaml:"files"`
}

// StatusReport summarizes the branch and its pending changes.
type StatusReport struct {
	Branch string `json:"branch" yaml:"branch"`
	Head   string `json:"head"   yaml:"head"`
	Scope  string `json:"scope"  yaml:"scope"`
	// Unpushed is the number of commits missing upstream, or -1 when the
	// branch tracks no upstream.
	Unpushed int           `json:"unpushed" yaml:"unpushed"`
	Files    []StatusFile  `json:"files"    yaml:"files"`
	Buckets  []BucketCount `json:"buckets"  yaml:"buckets"`
}

// Status inspects repo and classifies the changes of scope. A repository
// without pending changes yields an empty file list, not an error.
func Status(ctx context.Context, repo StatusSource, scope changeset.Scope, rules *ordering.Rules) (*StatusReport, error) {
	if rules == nil {
		rules = ordering.MustDefaultRules()
	}

	report := &StatusReport{Scope: scope.String(), Unpushed: -1}

	branch, err := repo.CurrentBranch(ctx)

	switch {
	case errors.Is(err, gitlib.ErrDetachedHead):
		report.Branch = "(detached)"
	case err != nil:
		return nil, fmt.Errorf("read branch: %w", err)
	default:
		report.Branch = branch
	}

	head, err := repo.HeadID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read HEAD: %w", err)
	}

	report.Head = shortID(head)

	var unpushed []string
	if head != "" {
		unpushed, err = repo.UnpushedIDs(ctx)
	} else {
		err = gitlib.ErrNoUpstream
	}

	switch {
	case err == nil:
		report.Unpushed = len(unpushed)
	case errors.Is(err, gitlib.ErrNoUpstream), errors.Is(err, gitlib.ErrDetachedHead):
	default:
		return nil, fmt.Errorf("count unpushed commits: %w", err)
	}

	cs, err := changeset.Ingest(ctx, repo, scope)
	if errors.Is(err, changeset.ErrNoChanges) {
		return report, nil
	}

	if err != nil {
		return nil, err
	}

	counts := make(map[ordering.Bucket]int)

	for _, fc := range cs.Files {
		bucket := rules.Classify(fc.Path)
		counts[bucket]++

		sf := StatusFile{Path: fc.Path, Status: fc.Status.String(), Bucket: bucket.String()}
		for _, h := range fc.Hunks {
			sf.Added += len(h.Added)
			sf.Removed += len(h.Removed)
		}

		report.Files = append(report.Files, sf)
	}

	for _, b := range ordering.Buckets() {
		if counts[b] > 0 {
			report.Buckets = append(report.Buckets, BucketCount{Bucket: b.String(), Files: counts[b]})
		}
	}

	return report, nil
}

func shortID(id string) string {
	if id == "" {
		return "(unborn)"
	}

	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}

	return id
}
