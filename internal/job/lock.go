package job

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked indicates another holder owns the job's work-directory lock.
var ErrLocked = errors.New("job work directory is locked")

// WorkLock guards a job's work directory across processes.
type WorkLock struct {
	path string
	lock *flock.Flock
}

// LockPath is the lock file guarding the work directory of job id. It lives
// beside the directory so removing the directory keeps the lock intact.
func LockPath(workRoot, id string) string {
	return filepath.Join(workRoot, id+".lock")
}

// TryLock acquires the lock for job id without blocking.
func TryLock(workRoot, id string) (*WorkLock, error) {
	if err := os.MkdirAll(workRoot, 0o755); err != nil {
		return nil, fmt.Errorf("ensure work root: %w", err)
	}
	path := LockPath(workRoot, id)
	l := &WorkLock{path: path, lock: flock.New(path)}
	ok, err := l.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, id)
	}
	return l, nil
}

// Path returns the lock file path.
func (l *WorkLock) Path() string {
	return l.path
}

// Unlock releases the lock. Pass remove to delete the lock file as well.
func (l *WorkLock) Unlock(remove bool) error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	if remove {
		if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove lock %s: %w", l.path, err)
		}
	}
	return nil
}
