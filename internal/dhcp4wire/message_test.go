package dhcp4wire_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdguardTeam/dhcp4c/internal/dhcp4wire"
)

func TestMessage_encodeDecode_roundTrip(t *testing.T) {
	t.Parallel()

	m := dhcp4wire.NewMessage()
	m.Op = dhcp4wire.OpBootRequest
	m.HType = 1
	m.HLen = 6
	m.XID = 0x12345678
	m.Secs = 42
	m.CHAddr = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	m.YIAddr = net.IPv4(192, 0, 2, 10)

	m.Options.SetByte(dhcp4wire.OptionDHCPMessageType, byte(dhcp4wire.Discover))
	m.Options.SetUint32(dhcp4wire.OptionIPAddressLeaseTime, 3600)
	m.Options.SetString(dhcp4wire.OptionHostName, "host1")

	encoded := m.Encode()
	require.GreaterOrEqual(t, len(encoded), dhcp4wire.MinMessageLen)

	got, err := dhcp4wire.Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, m.Op, got.Op)
	assert.Equal(t, m.XID, got.XID)
	assert.Equal(t, m.Secs, got.Secs)
	assert.True(t, m.YIAddr.Equal(got.YIAddr))
	assert.Equal(t, m.CHAddr[:m.HLen], got.CHAddr)
	assert.Equal(t, dhcp4wire.Discover, got.MessageType())

	leaseTime, ok := got.Options.GetUint32(dhcp4wire.OptionIPAddressLeaseTime)
	require.True(t, ok)
	assert.EqualValues(t, 3600, leaseTime)

	hostname, ok := got.Options.GetString(dhcp4wire.OptionHostName)
	require.True(t, ok)
	assert.Equal(t, "host1", hostname)
}

func TestDecode_badCookie(t *testing.T) {
	t.Parallel()

	buf := make([]byte, dhcp4wire.MinMessageLen)
	_, err := dhcp4wire.Decode(buf)
	assert.Error(t, err)
}

func TestDecode_tooShort(t *testing.T) {
	t.Parallel()

	_, err := dhcp4wire.Decode(make([]byte, 10))
	assert.Error(t, err)
}

func TestMessage_overload(t *testing.T) {
	t.Parallel()

	m := dhcp4wire.NewMessage()
	m.Op = dhcp4wire.OpBootRequest
	m.HLen = 6
	m.CHAddr = net.HardwareAddr{1, 2, 3, 4, 5, 6}

	m.Options.SetByte(dhcp4wire.OptionDHCPMessageType, byte(dhcp4wire.Offer))
	m.Options.SetByte(dhcp4wire.OptionOverload, 3)

	encoded := m.Encode()

	// Overwrite the sname/file areas with additional options, as a
	// server using option overload would.
	fileOpts := dhcp4wire.Options{}
	fileOpts.SetString(dhcp4wire.OptionHostName, "fromfile")
	copy(encoded[108:108+128], fileOpts.Encode())
	encoded[108+len(fileOpts.Encode())] = dhcp4wire.OptionEnd

	snameOpts := dhcp4wire.Options{}
	snameOpts.SetUint32(dhcp4wire.OptionIPAddressLeaseTime, 120)
	copy(encoded[44:44+64], snameOpts.Encode())
	encoded[44+len(snameOpts.Encode())] = dhcp4wire.OptionEnd

	got, err := dhcp4wire.Decode(encoded)
	require.NoError(t, err)

	hostname, ok := got.Options.GetString(dhcp4wire.OptionHostName)
	require.True(t, ok)
	assert.Equal(t, "fromfile", hostname)

	lease, ok := got.Options.GetUint32(dhcp4wire.OptionIPAddressLeaseTime)
	require.True(t, ok)
	assert.EqualValues(t, 120, lease)
}

func TestMessage_allOnesYIAddrRejectedByCaller(t *testing.T) {
	t.Parallel()

	// spec.md §8: "An OFFER with an all-ones yiaddr is rejected" is a
	// state-machine acceptance rule (C5), not a codec rule; the codec
	// must still decode it faithfully so the caller can inspect and
	// reject it.
	m := dhcp4wire.NewMessage()
	m.HLen = 6
	m.YIAddr = net.IPv4bcast
	m.Options.SetByte(dhcp4wire.OptionDHCPMessageType, byte(dhcp4wire.Offer))

	got, err := dhcp4wire.Decode(m.Encode())
	require.NoError(t, err)

	assert.True(t, got.YIAddr.Equal(net.IPv4bcast))
}
