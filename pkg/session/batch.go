// Package session accumulates working tree activity during watch mode and
// flushes it into the commit pipeline.
package session

import (
	"errors"
	"slices"
	"sync"
	"time"
)

// Sentinel errors.
var (
	ErrNotStarted     = errors.New("batch session not started")
	ErrAlreadyStarted = errors.New("batch session already started")
	ErrEmptyBatch     = errors.New("batch session has nothing pending")
)

// Batch is the content of one flush: the paths touched since the previous
// flush and the window they were touched in.
type Batch struct {
	Paths   []string
	Started time.Time
	Ended   time.Time
}

// Window returns the batch start and its length.
func (b Batch) Window() (time.Time, time.Duration) {
	return b.Started, b.Ended.Sub(b.Started)
}

// BatchSession holds pending changes between flushes. The zero value is
// idle; a session accepts changes only between Start and Cancel.
type BatchSession struct {
	mu      sync.Mutex
	now     func() time.Time
	active  bool
	started time.Time
	pending map[string]struct{}
}

// NewBatchSession creates an idle session. A nil clock means time.Now.
func NewBatchSession(now func() time.Time) *BatchSession {
	if now == nil {
		now = time.Now
	}

	return &BatchSession{now: now, pending: make(map[string]struct{})}
}

// Start opens the session window.
func (s *BatchSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return ErrAlreadyStarted
	}

	s.active = true
	s.started = s.now()

	return nil
}

// Append records touched paths. Repeated paths are kept once.
func (s *BatchSession) Append(paths ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return ErrNotStarted
	}

	for _, p := range paths {
		s.pending[p] = struct{}{}
	}

	return nil
}

// Pending returns the number of distinct paths waiting for a flush.
func (s *BatchSession) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pending)
}

// Active reports whether the session is between Start and Cancel.
func (s *BatchSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active
}

// Flush takes the pending paths out of the session and opens the next
// window at the current time. It returns ErrEmptyBatch when nothing is
// pending, leaving the window untouched.
func (s *BatchSession) Flush() (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return Batch{}, ErrNotStarted
	}

	if len(s.pending) == 0 {
		return Batch{}, ErrEmptyBatch
	}

	now := s.now()

	b := Batch{Started: s.started, Ended: now, Paths: make([]string, 0, len(s.pending))}
	for p := range s.pending {
		b.Paths = append(b.Paths, p)
	}

	slices.Sort(b.Paths)

	s.pending = make(map[string]struct{})
	s.started = now

	return b, nil
}

// Restore puts a failed batch back so the next flush retries it. The
// restored window starts at the earlier of the two starts.
func (s *BatchSession) Restore(b Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}

	for _, p := range b.Paths {
		s.pending[p] = struct{}{}
	}

	if !b.Started.IsZero() && b.Started.Before(s.started) {
		s.started = b.Started
	}
}

// Cancel drops everything pending and closes the session. It returns the
// number of paths dropped.
func (s *BatchSession) Cancel() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := len(s.pending)

	s.active = false
	s.pending = make(map[string]struct{})
	s.started = time.Time{}

	return dropped
}
