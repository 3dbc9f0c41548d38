package workflow

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"shelver/internal/config"
	"shelver/internal/services"
)

// ErrLocked reports that another run holds the lock.
var ErrLocked = errors.New("another shelver run is in progress")

type runLock struct {
	lock *flock.Flock
}

// acquireLock takes the single-writer lock for the state directory. A dry
// run against a state directory that does not exist yet has nothing to
// protect and runs unlocked.
func acquireLock(cfg *config.Config) (*runLock, error) {
	path := cfg.LockPath()
	if cfg.DryRun {
		if _, err := os.Stat(filepath.Dir(path)); errors.Is(err, os.ErrNotExist) {
			return &runLock{}, nil
		}
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrFatal, "workflow", "acquire lock", path, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrFatal, "workflow", "acquire lock", path, ErrLocked)
	}
	return &runLock{lock: lock}, nil
}

func (l *runLock) release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
