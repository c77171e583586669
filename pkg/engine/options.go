package engine

import (
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/bahn/pkg/assemble"
	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
	"github.com/Sumatoshi-tech/bahn/pkg/config"
	"github.com/Sumatoshi-tech/bahn/pkg/schedule"
)

// Overrides are plan settings given on the command line or by a tool call.
// Zero fields fall back to the configuration.
type Overrides struct {
	Mode   string
	Target int
	Spread string
	Start  string
	Scope  string
	Seed   *uint64
	// Location interprets Start values without a zone. Nil means time.Local.
	Location *time.Location
}

// ResolveOptions layers o over cfg.
func ResolveOptions(cfg *config.Config, o Overrides) (PlanOptions, error) {
	opts := PlanOptions{
		Target:    cfg.Split.TargetCommits,
		Threshold: cfg.Split.MergeThreshold,
		MinGap:    cfg.Schedule.MinGap,
	}

	var err error

	opts.Mode, err = cfg.SplitMode()
	if o.Mode != "" {
		opts.Mode, err = assemble.ParseMode(o.Mode)
	}

	if err != nil {
		return opts, err
	}

	if o.Target < 0 {
		return opts, fmt.Errorf("%w: %d", config.ErrInvalidTarget, o.Target)
	}

	if o.Target > 0 {
		opts.Target = o.Target
	}

	opts.Spread, err = cfg.Spread()
	if o.Spread != "" {
		opts.Spread, err = schedule.ParseSpread(o.Spread)
	}

	if err != nil {
		return opts, err
	}

	if o.Start != "" {
		loc := o.Location
		if loc == nil {
			loc = time.Local
		}

		opts.Start, err = schedule.ParseStart(o.Start, loc)
		if err != nil {
			return opts, err
		}
	}

	opts.Scope, err = changeset.ParseScope(o.Scope)
	if err != nil {
		return opts, err
	}

	if o.Seed != nil {
		opts.Rand = schedule.NewSeeded(*o.Seed)
	}

	opts.Rules, err = cfg.Rules()
	if err != nil {
		return opts, err
	}

	return opts, nil
}
