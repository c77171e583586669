package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	chartLabelLayout = "01-02 15:04"
	chartHeight      = "480px"
	fullZoomPct      = 100
)

// ScheduleChart builds a bar chart of lines added and removed per planned
// commit, placed at the commit's time.
func ScheduleChart(v PlanView) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Commit schedule",
			Subtitle: fmt.Sprintf("%d commits over %s", len(v.Commits), v.Spread),
			Left:     "center",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "10%", Left: "center"}),
		charts.WithGridOpts(opts.Grid{Top: "20%", Bottom: "15%", Left: "5%", Right: "5%", ContainLabel: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: fullZoomPct}, opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Commit time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Lines"}),
	)

	labels := make([]string, len(v.Commits))
	added := make([]opts.BarData, len(v.Commits))
	removed := make([]opts.BarData, len(v.Commits))

	for i, c := range v.Commits {
		labels[i] = fmt.Sprintf("#%d %s", c.Index, c.Time.Format(chartLabelLayout))

		a, r := 0, 0
		for _, f := range c.Files {
			a += f.Added
			r += f.Removed
		}

		added[i] = opts.BarData{Name: c.Label, Value: a}
		removed[i] = opts.BarData{Name: c.Label, Value: -r}
	}

	bar.SetXAxis(labels)
	bar.AddSeries("Added", added, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#22c55e"}))
	bar.AddSeries("Removed", removed, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ef4444"}))

	return bar
}

// WriteScheduleChart renders the schedule chart as a standalone HTML page.
func WriteScheduleChart(w io.Writer, v PlanView) error {
	if err := ScheduleChart(v).Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}
