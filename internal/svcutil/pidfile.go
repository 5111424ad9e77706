// Package svcutil contains the daemonization and PID-file bookkeeping
// spec.md §6.4 and §9 ask for: a conventional fork+setsid daemonize
// step and the advisory-locked PID file that guarantees one instance
// per interface, in the same vein as atomicfile's crash-safe writes.
package svcutil

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// ErrAlreadyRunning is returned by [Acquire] when path names a PID file
// still held by a live instance.
const ErrAlreadyRunning errors.Error = "another instance is already running"

// DefaultPermFile matches aghos.DefaultPermFile, the mode used for every
// other state file this client writes.
const DefaultPermFile = 0o600

// PIDFile is an open, advisory-exclusively-locked PID file, per spec.md
// §6.4. A stale unlocked file is not unlinked: [Acquire] takes it over
// and overwrites its content. The lock is held for the lifetime of the
// process; Release both unlocks and unlinks it.
type PIDFile struct {
	f    *os.File
	path string
}

// Acquire opens (creating if absent) the PID file at path, takes a
// non-blocking advisory-exclusive lock on it, and, once held, writes
// the calling process's PID, truncating whatever was there before. A
// file left over by a process that died without releasing it is
// unlocked, so the lock attempt below succeeds and the stale content
// is overwritten; a file held by a live instance fails the lock
// attempt and Acquire returns [ErrAlreadyRunning].
func Acquire(path string) (pf *PIDFile, err error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, DefaultPermFile)
	if err != nil {
		return nil, errors.Annotate(err, "opening pid file: %w")
	}

	if err = lockExclusive(f); err != nil {
		_ = f.Close()

		return nil, ErrAlreadyRunning
	}

	if err = writePID(f); err != nil {
		_ = unlockAndClose(f)

		return nil, errors.Annotate(err, "writing pid file: %w")
	}

	return &PIDFile{f: f, path: path}, nil
}

// writePID truncates f and writes the calling process's PID to it.
func writePID(f *os.File) (err error) {
	if err = f.Truncate(0); err != nil {
		return err
	}

	if _, err = f.Seek(0, 0); err != nil {
		return err
	}

	if _, err = fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return err
	}

	return f.Sync()
}

// Release unlocks, closes, and unlinks the PID file. It is safe to
// call once, at shutdown.
func (pf *PIDFile) Release() (err error) {
	err = unlockAndClose(pf.f)

	rmErr := os.Remove(pf.path)
	if rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = errors.WithDeferred(err, rmErr)
	}

	return err
}

// ReadPIDFile reads and parses the PID stored at path, for the
// "status"/"stop" CLI paths that need to signal an already-running
// instance rather than acquire the lock themselves.
func ReadPIDFile(path string) (pid int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Annotate(err, "reading pid file: %w")
	}

	pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %q: not a valid pid", path)
	}

	return pid, nil
}
