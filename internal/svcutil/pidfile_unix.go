//go:build unix

package svcutil

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockExclusive takes a non-blocking advisory-exclusive flock on f. It
// fails immediately, rather than blocking, if another process already
// holds the lock.
func lockExclusive(f *os.File) (err error) {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

// unlockAndClose releases the flock and closes f.
func unlockAndClose(f *os.File) (err error) {
	err = unix.Flock(int(f.Fd()), unix.LOCK_UN)

	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	return err
}
