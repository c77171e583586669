// Package render formats plans, results and repository status for the
// terminal, as YAML, and as an HTML schedule chart.
package render

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/bahn/pkg/alg/stats"
	"github.com/Sumatoshi-tech/bahn/pkg/engine"
	"github.com/Sumatoshi-tech/bahn/pkg/orchestrator"
)

const (
	timeLayout    = "2006-01-02 15:04:05"
	shortIDLength = 7
	maxRanges     = 4
)

// Output formats.
const (
	FormatTable = "table"
	FormatYAML  = "yaml"
	FormatJSON  = "json"
)

// ErrUnknownFormat is returned for an output format other than the known ones.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat validates an output format name.
func ParseFormat(name string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(name)); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatYAML, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// PlanView is the display form of a plan.
type PlanView struct {
	Start    time.Time              `json:"start"              yaml:"start"`
	End      time.Time              `json:"end"                yaml:"end"`
	Spread   string                 `json:"spread"             yaml:"spread"`
	Commits  []engine.PreviewCommit `json:"commits"            yaml:"commits"`
	Warnings []string               `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewPlanView captures what a plan will do.
func NewPlanView(p *engine.Plan) PlanView {
	v := PlanView{
		Start:   p.Start,
		End:     p.End(),
		Spread:  p.Spread.String(),
		Commits: p.Preview(),
	}

	for _, w := range p.Warnings {
		v.Warnings = append(v.Warnings, w.Error())
	}

	return v
}

// Options controls terminal rendering.
type Options struct {
	// Color enables ANSI colors.
	Color bool
	// Now anchors relative times. Zero means time.Now.
	Now time.Time
}

// Renderer writes human readable output.
type Renderer struct {
	now     time.Time
	header  *color.Color
	warn    *color.Color
	ok      *color.Color
	added   *color.Color
	removed *color.Color
	muted   *color.Color
	buckets map[string]*color.Color
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	r := &Renderer{
		now:     opts.Now,
		header:  color.New(color.Bold),
		warn:    color.New(color.FgYellow),
		ok:      color.New(color.FgGreen),
		added:   color.New(color.FgGreen),
		removed: color.New(color.FgRed),
		muted:   color.New(color.Faint),
		buckets: map[string]*color.Color{
			"config":  color.New(color.FgMagenta),
			"utils":   color.New(color.FgCyan),
			"core":    color.New(color.FgBlue),
			"feature": color.New(color.FgGreen),
			"test":    color.New(color.FgYellow),
			"docs":    color.New(color.FgWhite),
		},
	}

	if r.now.IsZero() {
		r.now = time.Now()
	}

	if !opts.Color {
		for _, c := range r.all() {
			c.DisableColor()
		}
	} else {
		for _, c := range r.all() {
			c.EnableColor()
		}
	}

	return r
}

func (r *Renderer) all() []*color.Color {
	out := []*color.Color{r.header, r.warn, r.ok, r.added, r.removed, r.muted}
	for _, c := range r.buckets {
		out = append(out, c)
	}

	return out
}

func (r *Renderer) bucket(name string) string {
	if c, ok := r.buckets[name]; ok {
		return c.Sprint(name)
	}

	return name
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.SeparateRows = false

	return tbl
}

// Plan writes the preview table with the schedule summary and warnings.
func (r *Renderer) Plan(w io.Writer, v PlanView) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %d commits from %s to %s (%s window, starts %s)\n\n",
		r.header.Sprint("Plan:"),
		len(v.Commits),
		v.Start.Format(timeLayout),
		v.End.Format(timeLayout),
		v.Spread,
		humanize.RelTime(v.Start, r.now, "ago", "from now"),
	)

	tbl := newTable()
	tbl.AppendHeader(table.Row{"#", "Time", "Bucket", "Label", "Files", "+", "-"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})

	totalAdded, totalRemoved := 0, 0

	for _, c := range v.Commits {
		added, removed := 0, 0
		files := make([]string, 0, len(c.Files))

		for _, f := range c.Files {
			added += f.Added
			removed += f.Removed
			files = append(files, describeFile(f))
		}

		totalAdded += added
		totalRemoved += removed

		tbl.AppendRow(table.Row{
			c.Index,
			c.Time.Format(timeLayout),
			r.bucket(c.Bucket),
			c.Label,
			strings.Join(files, "\n"),
			r.added.Sprint(added),
			r.removed.Sprint(removed),
		})
	}

	tbl.AppendFooter(table.Row{"", "", "", "", "Total", totalAdded, totalRemoved})

	b.WriteString(tbl.Render())
	b.WriteString("\n")

	if gaps := commitGaps(v.Commits); len(gaps) > 0 {
		shortest, longest := stats.Bounds(gaps)
		fmt.Fprintf(&b, "%s median %s, shortest %s, longest %s\n",
			r.header.Sprint("Gaps:"), stats.Median(gaps), shortest, longest)
	}

	r.writeWarnings(&b, v.Warnings)

	return writeString(w, b.String())
}

// commitGaps returns the time between consecutive commits.
func commitGaps(commits []engine.PreviewCommit) []time.Duration {
	if len(commits) < 2 {
		return nil
	}

	gaps := make([]time.Duration, 0, len(commits)-1)
	for i := 1; i < len(commits); i++ {
		gaps = append(gaps, commits[i].Time.Sub(commits[i-1].Time))
	}

	return gaps
}

func describeFile(f engine.PreviewFile) string {
	var b strings.Builder

	b.WriteString(f.Path)

	if f.Status != "modified" {
		fmt.Fprintf(&b, " (%s)", f.Status)
	}

	switch {
	case len(f.Chunks) > 0:
		fmt.Fprintf(&b, " [%s]", strings.Join(f.Chunks, ", "))
	case len(f.Ranges) > maxRanges:
		fmt.Fprintf(&b, " :%s +%d more", strings.Join(f.Ranges[:maxRanges], ","), len(f.Ranges)-maxRanges)
	case len(f.Ranges) > 0:
		fmt.Fprintf(&b, " :%s", strings.Join(f.Ranges, ","))
	}

	return b.String()
}

func (r *Renderer) writeWarnings(b *strings.Builder, warnings []string) {
	if len(warnings) == 0 {
		return
	}

	b.WriteString("\n")

	for _, w := range warnings {
		fmt.Fprintf(b, "%s %s\n", r.warn.Sprint("warning:"), w)
	}
}

// Records writes the commits a run created.
func (r *Renderer) Records(w io.Writer, records []orchestrator.CommitRecord) error {
	var b strings.Builder

	if len(records) == 0 {
		b.WriteString("No commits created.\n")
	} else {
		tbl := newTable()
		tbl.AppendHeader(table.Row{"Commit", "Time", "Message", "Files"})

		for _, rec := range records {
			tbl.AppendRow(table.Row{
				r.ok.Sprint(shortID(rec.ID)),
				rec.Time.Format(timeLayout),
				firstLine(rec.Message),
				humanize.Comma(int64(len(rec.Files))),
			})
		}

		b.WriteString(tbl.Render())
		fmt.Fprintf(&b, "\n\n%s %d commits\n", r.ok.Sprint("Created"), len(records))
	}

	return writeString(w, b.String())
}

// Status writes a repository status report.
func (r *Renderer) Status(w io.Writer, s *engine.StatusReport) error {
	var b strings.Builder

	unpushed := "no upstream"
	if s.Unpushed >= 0 {
		unpushed = strconv.Itoa(s.Unpushed) + " unpushed"
	}

	fmt.Fprintf(&b, "%s %s at %s (%s)\n", r.header.Sprint("Branch:"), s.Branch, s.Head, unpushed)

	if len(s.Files) == 0 {
		fmt.Fprintf(&b, "No %s changes.\n", s.Scope)

		return writeString(w, b.String())
	}

	counts := make([]string, 0, len(s.Buckets))
	for _, bc := range s.Buckets {
		counts = append(counts, fmt.Sprintf("%s %d", r.bucket(bc.Bucket), bc.Files))
	}

	fmt.Fprintf(&b, "%s %d files (%s)\n\n", r.header.Sprint("Changes:"), len(s.Files), strings.Join(counts, ", "))

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Path", "Status", "Bucket", "+", "-"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	for _, f := range s.Files {
		tbl.AppendRow(table.Row{f.Path, f.Status, r.bucket(f.Bucket), r.added.Sprint(f.Added), r.removed.Sprint(f.Removed)})
	}

	b.WriteString(tbl.Render())
	b.WriteString("\n")

	return writeString(w, b.String())
}

// Undone writes the ids removed by an undo, newest first.
func (r *Renderer) Undone(w io.Writer, ids []string, hard bool) error {
	var b strings.Builder

	kept := "changes kept in the index"
	if hard {
		kept = "changes discarded"
	}

	fmt.Fprintf(&b, "%s %d commits (%s)\n", r.ok.Sprint("Undid"), len(ids), kept)

	for _, id := range ids {
		fmt.Fprintf(&b, "  %s\n", r.muted.Sprint(shortID(id)))
	}

	return writeString(w, b.String())
}

// UndoEntry is a commit an undo would remove.
type UndoEntry struct {
	ID      string    `json:"id"      yaml:"id"`
	Time    time.Time `json:"time"    yaml:"time"`
	Summary string    `json:"summary" yaml:"summary"`
}

// UndoPreview lists the commits an undo would remove, newest first.
func (r *Renderer) UndoPreview(w io.Writer, entries []UndoEntry, hard bool) error {
	var b strings.Builder

	kept := "their changes would stay in the index"
	if hard {
		kept = "their changes would be discarded"
	}

	fmt.Fprintf(&b, "%s %d commits would be removed, %s\n", r.header.Sprint("Undo preview:"), len(entries), kept)

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Commit", "Time", "Summary"})

	for _, e := range entries {
		tbl.AppendRow(table.Row{r.muted.Sprint(shortID(e.ID)), e.Time.Format(timeLayout), e.Summary})
	}

	b.WriteString(tbl.Render())
	b.WriteString("\n")

	return writeString(w, b.String())
}

func writeString(w io.Writer, s string) error {
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return nil
}

func shortID(id string) string {
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}

	return id
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")

	return line
}
