//go:build windows

package svcutil

import "os"

// lockExclusive is a no-op on Windows: no lock is taken, and the plain
// [os.OpenFile] call done in Acquire opens the file with shared access,
// so a second Acquire of the same path is not refused. The PID file is
// advisory-only on this platform.
func lockExclusive(f *os.File) (err error) {
	return nil
}

// unlockAndClose closes f; there is no separate unlock step on this
// platform, see [lockExclusive].
func unlockAndClose(f *os.File) (err error) {
	return f.Close()
}
