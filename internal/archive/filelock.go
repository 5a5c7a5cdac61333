//go:build unix

package archive

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// FileLock provides advisory file locking for cross-process synchronization
// using flock(2). The lock lives in a sibling file named path + ".lock".
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a file lock. The lock is not acquired until Lock is called.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path + ".lock"}
}

// Lock acquires an exclusive lock, polling until timeout elapses.
// Returns ErrLockTimeout if the lock cannot be acquired in time.
func (l *FileLock) Lock(timeout time.Duration) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err == nil {
			l.file = f
			return nil
		}
		if time.Now().After(deadline) {
			f.Close()
			return ErrLockTimeout
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Unlock releases the lock. The lock file is left in place; removing it
// would let a waiting process lock an unlinked inode.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	return err
}
