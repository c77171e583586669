// Package undo removes the most recent commits of a session while keeping
// their changes in the working tree.
package undo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Sentinel errors.
var (
	ErrUndoRange = errors.New("undo count out of range")
	ErrHeadMoved = errors.New("HEAD no longer points at the last session commit")
)

// UndoRangeError reports an undo count outside 1..Available. Nothing is changed.
type UndoRangeError struct {
	Requested int
	Available int
}

func (e *UndoRangeError) Error() string {
	return fmt.Sprintf("cannot undo %d commits: the session made %d", e.Requested, e.Available)
}

// Unwrap returns ErrUndoRange.
func (e *UndoRangeError) Unwrap() error { return ErrUndoRange }

// Backend moves the current branch back.
type Backend interface {
	HeadID(ctx context.Context) (string, error)
	ResetSoft(ctx context.Context, n int) error
	ResetHard(ctx context.Context, n int) error
}

// Session holds the ids of the commits made in the current session, oldest first.
type Session struct {
	mu  sync.Mutex
	ids []string
}

// NewSession creates a session that already owns ids, oldest first.
func NewSession(ids ...string) *Session {
	return &Session{ids: slices.Clone(ids)}
}

// Record adds a commit made in this session.
func (s *Session) Record(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids = append(s.ids, ids...)
}

// IDs returns the session's commit ids, oldest first.
func (s *Session) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.ids)
}

// Len returns the number of commits in the session.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.ids)
}

// Options configures an undo.
type Options struct {
	// Hard discards the removed changes instead of leaving them staged.
	Hard bool
}

// Manager undoes session commits.
type Manager struct {
	backend Backend
	session *Session
	logger  *slog.Logger
}

// NewManager creates a Manager for session.
func NewManager(backend Backend, session *Session, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{backend: backend, session: session, logger: logger}
}

// Undo removes the last n session commits and returns their ids, newest
// first. n must be between 1 and the session length, and HEAD must still be
// the last session commit.
func (m *Manager) Undo(ctx context.Context, n int, opts Options) ([]string, error) {
	m.session.mu.Lock()
	defer m.session.mu.Unlock()

	removed, err := m.pending(ctx, n)
	if err != nil {
		return nil, err
	}

	if opts.Hard {
		err = m.backend.ResetHard(ctx, n)
	} else {
		err = m.backend.ResetSoft(ctx, n)
	}

	if err != nil {
		return nil, fmt.Errorf("reset %d commits: %w", n, err)
	}

	m.session.ids = m.session.ids[:len(m.session.ids)-n]

	m.logger.InfoContext(ctx, "undid commits", "count", n, "hard", opts.Hard, "remaining", len(m.session.ids))

	return removed, nil
}

// Preview returns the ids Undo(n) would remove, newest first, after the same
// checks, without touching the repository or the session.
func (m *Manager) Preview(ctx context.Context, n int) ([]string, error) {
	m.session.mu.Lock()
	defer m.session.mu.Unlock()

	return m.pending(ctx, n)
}

// pending validates n against the session and HEAD. The session lock must be
// held.
func (m *Manager) pending(ctx context.Context, n int) ([]string, error) {
	available := len(m.session.ids)
	if n < 1 || n > available {
		return nil, &UndoRangeError{Requested: n, Available: available}
	}

	head, err := m.backend.HeadID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read HEAD: %w", err)
	}

	last := m.session.ids[available-1]
	if head != last {
		return nil, fmt.Errorf("%w: HEAD is %s, expected %s", ErrHeadMoved, short(head), short(last))
	}

	ids := slices.Clone(m.session.ids[available-n:])
	slices.Reverse(ids)

	return ids, nil
}

func short(id string) string {
	const shortLen = 7
	if len(id) > shortLen {
		return id[:shortLen]
	}

	if id == "" {
		return "(unborn)"
	}

	return id
}
