package shmregion

import (
	"errors"
	"fmt"

	"github.com/calvinalkan/greenbox/pkg/fs"
)

// WriterAlive reports whether a writer currently holds region name in dir.
//
// It probes the lock file with a shared, non-blocking lock and never waits.
// A missing lock file means no writer. The probe briefly holds the lock
// file, so a writer calling [Create] at that instant without a LockTimeout
// may see [ErrBusy].
func WriterAlive(dir, name string) (bool, error) {
	err := validateName(name)
	if err != nil {
		return false, err
	}

	fsys := fs.NewReal()
	path := lockPath(RegionPath(dir, name))

	exists, err := fsys.Exists(path)
	if err != nil {
		return false, fmt.Errorf("stat lock file: %w", err)
	}

	if !exists {
		return false, nil
	}

	lock, err := fs.NewLocker(fsys).TryRLock(path)
	if err != nil {
		if errors.Is(err, fs.ErrWouldBlock) {
			return true, nil
		}

		return false, fmt.Errorf("probe writer lock: %w", err)
	}

	err = lock.Close()
	if err != nil {
		return false, fmt.Errorf("release probe lock: %w", err)
	}

	return false, nil
}
