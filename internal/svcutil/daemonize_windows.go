//go:build windows

package svcutil

import "github.com/AdguardTeam/golibs/errors"

// errNoDaemonize is returned by [Daemonize] on Windows, which has no
// setsid(2)/controlling-terminal concept to detach from; a Windows
// service manager is the platform-native equivalent, outside this
// function's scope.
const errNoDaemonize errors.Error = "svcutil: daemonize is not supported on windows"

// Daemonize always fails on Windows; see [errNoDaemonize].
func Daemonize(args []string, extraEnv ...string) (pid int, err error) {
	return 0, errNoDaemonize
}
