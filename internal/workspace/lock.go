// Package workspace locates and serializes writers of patched files.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"
)

const (
	lockSuffix       = ".lock"
	lockPollInterval = 25 * time.Millisecond
)

// ErrLockTimeout is returned when the lock could not be acquired before the
// context expired.
var ErrLockTimeout = errors.New("workspace: timed out waiting for file lock")

// Lock represents an acquired exclusive lock on a target file.
type Lock struct {
	file     *os.File
	lockPath string
	mu       sync.Mutex
}

// LockPath returns the sidecar path used to lock target.
func LockPath(target string) string {
	return target + lockSuffix
}

// AcquireFileLock takes an exclusive flock on the sidecar of target, polling
// until it is free or ctx is done. The lock must be held for the whole
// read-apply-write cycle and released with Release.
func AcquireFileLock(ctx context.Context, target string) (*Lock, error) {
	lockPath := LockPath(target)
	for {
		lock, busy, err := tryLock(lockPath)
		if err != nil {
			return nil, err
		}
		if !busy {
			return lock, nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", ErrLockTimeout, target)
			}
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

func tryLock(lockPath string) (*Lock, bool, error) {
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create file lock: %w", err)
	}

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		lockFile.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("failed to lock %s: %w", lockPath, err)
	}

	// A previous holder may have unlinked the sidecar between our open and
	// flock; only the inode still reachable by name counts.
	held, err := lockFile.Stat()
	if err != nil {
		syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
		lockFile.Close()
		return nil, false, fmt.Errorf("failed to stat file lock: %w", err)
	}
	current, err := os.Stat(lockPath)
	if err != nil || !os.SameFile(held, current) {
		syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
		lockFile.Close()
		return nil, true, nil
	}

	// Write PID to lock file for debugging
	lockFile.Truncate(0)
	lockFile.Seek(0, 0)
	fmt.Fprintf(lockFile, "%d\n", os.Getpid())

	return &Lock{file: lockFile, lockPath: lockPath}, false, nil
}

// Release unlocks and removes the sidecar. It is safe to call more than once.
func (l *Lock) Release() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	os.Remove(l.lockPath)
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	l.file = nil
}
