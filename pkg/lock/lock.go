// Package lock keeps two bahn processes from rewriting one repository at the
// same time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// FileName is the lock file created in the repository's git directory.
const FileName = ".bahn.lock"

// ErrLocked is the sentinel matched by LockedError.
var ErrLocked = errors.New("repository is locked by another bahn process")

// LockedError names the process holding the lock.
type LockedError struct {
	PID  int
	Path string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s (pid %d); remove %s if that process is gone", ErrLocked, e.PID, e.Path)
}

func (e *LockedError) Unwrap() error { return ErrLocked }

// Lock is a held lock file.
type Lock struct {
	path string
}

// Acquire creates the lock file in dir. A lock left by a process that no
// longer runs is taken over.
func Acquire(ctx context.Context, dir string) (*Lock, error) {
	path := filepath.Join(dir, FileName)

	for attempt := 0; ; attempt++ {
		err := create(path)
		if err == nil {
			return &Lock{path: path}, nil
		}

		if !errors.Is(err, fs.ErrExist) || attempt > 0 {
			return nil, fmt.Errorf("create lock %s: %w", path, err)
		}

		pid, alive, err := holder(ctx, path)
		if err != nil {
			return nil, err
		}

		if alive {
			return nil, &LockedError{PID: pid, Path: path}
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock %s: %w", path, err)
		}
	}
}

func create(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err //nolint:wrapcheck // wrapped by Acquire.
	}

	_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
	cerr := f.Close()

	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(path)

		return err
	}

	return nil
}

// holder reads the pid in the lock file and reports whether it still runs.
// An unreadable or empty lock counts as stale.
func holder(ctx context.Context, path string) (int, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("read lock %s: %w", path, err)
	}

	first, _, _ := strings.Cut(string(data), "\n")

	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || pid <= 0 {
		return 0, false, nil
	}

	if pid == os.Getpid() {
		return pid, true, nil
	}

	alive, err := process.PidExistsWithContext(ctx, int32(pid)) //nolint:gosec // pids fit in int32.
	if err != nil {
		return pid, false, fmt.Errorf("check lock holder %d: %w", pid, err)
	}

	return pid, alive, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock file. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}

	err := os.Remove(l.path)
	l.path = ""

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}

	return nil
}
