//go:build unix

package svcutil

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/AdguardTeam/golibs/errors"
)

// Daemonize detaches the running process into the background: it
// re-execs the current binary with args as a new session leader
// (setsid), redirecting its standard streams to the OS null device, and
// returns the child's PID once it has started. extraEnv is appended to
// the child's inherited environment, typically a sentinel the caller
// checks on startup so the child does not re-daemonize itself. The
// caller is expected to exit immediately afterward, leaving the child
// to continue as the daemon, per spec.md §9's note to replace the
// original's vfork/re-exec workaround with conventional fork+setsid: a
// Go process cannot safely call fork(2) on itself once its runtime has
// started goroutines, so re-exec stands in for the fork half of that
// pair.
func Daemonize(args []string, extraEnv ...string) (pid int, err error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, errors.Annotate(err, "locating executable: %w")
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, errors.Annotate(err, "opening null device: %w")
	}
	defer func() { _ = devNull.Close() }()

	cmd := exec.Command(exe, args...)
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err = cmd.Start(); err != nil {
		return 0, errors.Annotate(err, "starting daemon: %w")
	}

	return cmd.Process.Pid, nil
}
