//go:build windows

package archive

import (
	"os"
	"time"

	"golang.org/x/sys/windows"
)

// FileLock provides advisory file locking for cross-process synchronization
// using LockFileEx. The lock lives in a sibling file named path + ".lock".
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
		var overlapped windows.Overlapped
		err := windows.LockFileEx(windows.Handle(f.Fd()),
			windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
			0, 1, 0, &overlapped)
		if err == nil {
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

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	var overlapped windows.Overlapped
	windows.UnlockFileEx(windows.Handle(l.file.Fd()), 0, 1, 0, &overlapped)
	err := l.file.Close()
	l.file = nil
	return err
}
