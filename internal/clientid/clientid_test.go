package clientid_test

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdguardTeam/dhcp4c/internal/clientid"
)

func TestDUID_encodeDecode_roundTrip(t *testing.T) {
	t.Parallel()

	d := clientid.NewDUID(net.HardwareAddr{2, 0, 0, 0, 0, 1}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	got, err := clientid.DecodeDUID(d.Encode())
	require.NoError(t, err)

	assert.Equal(t, d.HWType, got.HWType)
	assert.Equal(t, d.Seconds, got.Seconds)
	assert.Equal(t, []byte(d.HWAddr), []byte(got.HWAddr))
}

func TestLoadOrCreateDUID_createsThenPersists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "dhcp4c.duid")
	hwaddr := net.HardwareAddr{2, 0, 0, 0, 0, 1}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	d1, err := clientid.LoadOrCreateDUID(path, hwaddr, now)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	// A second load must return the same DUID, not mint a new one, per
	// spec.md §6.3 "never rotated".
	d2, err := clientid.LoadOrCreateDUID(path, hwaddr, now.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, d1.Seconds, d2.Seconds)
	assert.Equal(t, []byte(d1.HWAddr), []byte(d2.HWAddr))
}

func TestRFC4361ClientID(t *testing.T) {
	t.Parallel()

	d := clientid.NewDUID(net.HardwareAddr{2, 0, 0, 0, 0, 1}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	iaid := clientid.IAIDFromIndex(2)

	got := clientid.RFC4361ClientID(iaid, d)

	require.NotEmpty(t, got)
	assert.Equal(t, byte(0xff), got[0])
	assert.Equal(t, iaid[:], got[1:5])
	assert.Equal(t, d.Encode(), got[5:])
}

func TestLegacyClientID(t *testing.T) {
	t.Parallel()

	hwaddr := net.HardwareAddr{2, 0, 0, 0, 0, 1}
	got := clientid.LegacyClientID(1, hwaddr)

	assert.Equal(t, byte(1), got[0])
	assert.Equal(t, []byte(hwaddr), got[1:])
}
