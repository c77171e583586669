package orchestrator

import (
	"maps"
	"slices"

	"github.com/Sumatoshi-tech/bahn/pkg/assemble"
	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
)

// stagingState tracks, per file, the hunks committed so far and the hunks of
// the in-flight group.
type stagingState struct {
	committed map[string][]changeset.Hunk
	inflight  map[string][]changeset.Hunk
	files     map[string]*changeset.FileChange
}

func newStagingState() *stagingState {
	return &stagingState{
		committed: make(map[string][]changeset.Hunk),
		inflight:  make(map[string][]changeset.Hunk),
		files:     make(map[string]*changeset.FileChange),
	}
}

// advance adds the group's hunks on top of the committed ones and returns
// the index entries for the touched files.
func (s *stagingState) advance(g assemble.Group) ([]changeset.StagedFile, error) {
	s.inflight = make(map[string][]changeset.Hunk, len(g.Parts))

	for _, p := range g.Parts {
		fc := p.File.Change
		s.files[fc.Path] = fc

		base := s.inflight[fc.Path]
		if base == nil {
			base = slices.Clone(s.committed[fc.Path])
		}

		s.inflight[fc.Path] = append(base, p.Hunks...)
	}

	return s.staged(s.inflight)
}

func (s *stagingState) commit() {
	maps.Copy(s.committed, s.inflight)
	s.inflight = nil
}

func (s *stagingState) rollback() {
	s.inflight = nil
}

// restage returns the index entries holding the committed hunks plus every
// hunk of the pending groups.
func (s *stagingState) restage(pending []ScheduledCommit) ([]changeset.StagedFile, error) {
	applied := make(map[string][]changeset.Hunk)

	for _, sc := range pending {
		for _, p := range sc.Group.Parts {
			fc := p.File.Change
			s.files[fc.Path] = fc

			if _, ok := applied[fc.Path]; !ok {
				applied[fc.Path] = slices.Clone(s.committed[fc.Path])
			}

			applied[fc.Path] = append(applied[fc.Path], p.Hunks...)
		}
	}

	return s.staged(applied)
}

func (s *stagingState) staged(applied map[string][]changeset.Hunk) ([]changeset.StagedFile, error) {
	paths := slices.Sorted(maps.Keys(applied))
	out := make([]changeset.StagedFile, 0, len(paths))

	for _, path := range paths {
		fc := s.files[path]
		hunks := applied[path]

		file := changeset.StagedFile{Path: fc.Path, Mode: fc.Mode}
		if fc.Status == changeset.StatusRenamed {
			file.OldPath = fc.OldPath
		}

		if fc.Status == changeset.StatusDeleted && complete(fc, hunks) {
			file.Delete = true
			out = append(out, file)

			continue
		}

		content, err := fc.Content(hunks)
		if err != nil {
			return nil, err
		}

		file.Content = content
		out = append(out, file)
	}

	return out, nil
}

// complete reports whether hunks cover every changed line of fc.
func complete(fc *changeset.FileChange, hunks []changeset.Hunk) bool {
	total := 0
	for _, h := range hunks {
		total += h.Size()
	}

	return total >= fc.ChangedLines()
}
