package engine

import (
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/bahn/pkg/assemble"
	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
	"github.com/Sumatoshi-tech/bahn/pkg/observability"
	"github.com/Sumatoshi-tech/bahn/pkg/orchestrator"
	"github.com/Sumatoshi-tech/bahn/pkg/ordering"
)

// Plan is the immutable result of analysis, ready to be executed.
type Plan struct {
	Scope     changeset.Scope
	Mode      assemble.Mode
	Changeset *changeset.Changeset
	Entries   []ordering.Entry
	Commits   []orchestrator.ScheduledCommit
	Start     time.Time
	Spread    time.Duration
	// Warnings holds non-fatal problems found while planning.
	Warnings []error
}

// PreviewCommit describes one planned commit for display.
type PreviewCommit struct {
	Index  int           `json:"index"  yaml:"index"`
	Label  string        `json:"label"  yaml:"label"`
	Bucket string        `json:"bucket" yaml:"bucket"`
	Time   time.Time     `json:"time"   yaml:"time"`
	Files  []PreviewFile `json:"files"  yaml:"files"`
}

// PreviewFile is one file's share of a planned commit.
type PreviewFile struct {
	Path    string   `json:"path"              yaml:"path"`
	Status  string   `json:"status"            yaml:"status"`
	Chunks  []string `json:"chunks,omitempty"  yaml:"chunks,omitempty"`
	Ranges  []string `json:"ranges,omitempty"  yaml:"ranges,omitempty"`
	Added   int      `json:"added"             yaml:"added"`
	Removed int      `json:"removed"           yaml:"removed"`
}

// Preview lists the planned commits in order.
func (p *Plan) Preview() []PreviewCommit {
	out := make([]PreviewCommit, len(p.Commits))

	for i, sc := range p.Commits {
		pc := PreviewCommit{
			Index:  i + 1,
			Label:  sc.Label,
			Bucket: sc.Group.Bucket().String(),
			Time:   sc.Time,
		}

		for _, part := range sc.Group.Parts {
			pf := PreviewFile{
				Path:   part.Path(),
				Status: part.File.Change.Status.String(),
				Chunks: part.Chunks,
			}

			for _, h := range part.Hunks {
				pf.Added += len(h.Added)
				pf.Removed += len(h.Removed)

				if h.Opaque {
					continue
				}

				pf.Ranges = append(pf.Ranges, lineRange(h))
			}

			pc.Files = append(pc.Files, pf)
		}

		out[i] = pc
	}

	return out
}

// End returns the last scheduled time, or Start for an empty plan.
func (p *Plan) End() time.Time {
	if len(p.Commits) == 0 {
		return p.Start
	}

	return p.Commits[len(p.Commits)-1].Time
}

func lineRange(h changeset.Hunk) string {
	first, last := h.NewRange()

	switch {
	case h.IsPureDeletion():
		return fmt.Sprintf("-%d", h.OldStart)
	case first == last:
		return fmt.Sprintf("%d", first)
	default:
		return fmt.Sprintf("%d-%d", first, last)
	}
}

// Stats summarizes the first created commits of the plan for metrics.
func (p *Plan) Stats(created int) observability.CommitStats {
	stats := observability.CommitStats{
		Mode:     p.Mode.String(),
		Warnings: len(p.Warnings),
	}

	for i := 0; i < created && i < len(p.Commits); i++ {
		stats.Lines = append(stats.Lines, p.Commits[i].Group.Size())
	}

	return stats
}
