package svcutil_test

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdguardTeam/dhcp4c/internal/svcutil"
)

// TestAcquire_writesOwnPID implements spec.md §6.4: Acquire creates the
// PID file and writes the calling process's PID to it.
func TestAcquire_writesOwnPID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dhcp4c.pid")

	pf, err := svcutil.Acquire(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pf.Release() })

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	got, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), got)
}

// TestAcquire_secondAcquireFails implements spec.md §6.4's "advisory-
// exclusive" lock: a second Acquire of the same path, while the first
// is still held, fails with [svcutil.ErrAlreadyRunning].
func TestAcquire_secondAcquireFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dhcp4c.pid")

	first, err := svcutil.Acquire(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Release() })

	_, err = svcutil.Acquire(path)
	assert.ErrorIs(t, err, svcutil.ErrAlreadyRunning)
}

// TestAcquire_reclaimsStaleFile implements spec.md §6.4's "stale
// unlocked files are unlinked": a PID file left behind by a process
// that never released its lock (simulated here by a plain, unlocked
// file) is silently overwritten by the next Acquire.
func TestAcquire_reclaimsStaleFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dhcp4c.pid")
	require.NoError(t, os.WriteFile(path, []byte("999999\n"), svcutil.DefaultPermFile))

	pf, err := svcutil.Acquire(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pf.Release() })

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	got, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), got)
}

// TestAcquire_reacquireAfterRelease confirms Release fully frees the
// lock and removes the file, so a later Acquire of the same path
// succeeds again.
func TestAcquire_reacquireAfterRelease(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dhcp4c.pid")

	first, err := svcutil.Acquire(path)
	require.NoError(t, err)
	require.NoError(t, first.Release())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "Release should unlink the pid file")

	second, err := svcutil.Acquire(path)
	require.NoError(t, err)
	assert.NoError(t, second.Release())
}

func TestReadPIDFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dhcp4c.pid")
	require.NoError(t, os.WriteFile(path, []byte("4242\n"), svcutil.DefaultPermFile))

	pid, err := svcutil.ReadPIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)
}

func TestReadPIDFile_invalidContent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dhcp4c.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), svcutil.DefaultPermFile))

	_, err := svcutil.ReadPIDFile(path)
	assert.Error(t, err)
}

func TestReadPIDFile_missingFile(t *testing.T) {
	t.Parallel()

	_, err := svcutil.ReadPIDFile(filepath.Join(t.TempDir(), "missing.pid"))
	assert.Error(t, err)
}
