package dhcp4wire_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdguardTeam/dhcp4c/internal/dhcp4wire"
)

func TestBuildUDPIP_parseUDPIP_roundTrip(t *testing.T) {
	t.Parallel()

	m := dhcp4wire.NewMessage()
	m.Op = dhcp4wire.OpBootRequest
	m.HLen = 6
	m.CHAddr = net.HardwareAddr{1, 2, 3, 4, 5, 6}
	m.Options.SetByte(dhcp4wire.OptionDHCPMessageType, byte(dhcp4wire.Discover))
	payload := m.Encode()

	frame := dhcp4wire.BuildUDPIP(net.IPv4zero, nil, payload)

	got, src, dst, err := dhcp4wire.ParseUDPIP(frame)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.True(t, src.Equal(net.IPv4zero))
	assert.True(t, dst.Equal(net.IPv4bcast))
}

func TestBuildUDPIP_unicast(t *testing.T) {
	t.Parallel()

	payload := []byte("hello-dhcp")
	src := net.IPv4(192, 0, 2, 10)
	dst := net.IPv4(192, 0, 2, 1)

	frame := dhcp4wire.BuildUDPIP(src, dst, payload)

	got, gotSrc, gotDst, err := dhcp4wire.ParseUDPIP(frame)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.True(t, gotSrc.Equal(src))
	assert.True(t, gotDst.Equal(dst))
}

// TestParseUDPIP_bitFlipRejected implements the spec.md §8 invariant:
// "flipping any single bit in the IP header causes rejection".
func TestParseUDPIP_bitFlipRejected(t *testing.T) {
	t.Parallel()

	frame := dhcp4wire.BuildUDPIP(net.IPv4(192, 0, 2, 10), net.IPv4(192, 0, 2, 1), []byte("x"))

	frame[8] ^= 0x01 // flip a bit in the TTL field, part of the IP checksum

	_, _, _, err := dhcp4wire.ParseUDPIP(frame)
	assert.Error(t, err)
}

func TestParseUDPIP_wrongDestPortRejected(t *testing.T) {
	t.Parallel()

	frame := dhcp4wire.BuildUDPIP(net.IPv4(192, 0, 2, 10), net.IPv4(192, 0, 2, 1), []byte("x"))

	// Corrupt the UDP destination port (bytes 22:24 of the frame) away
	// from 68, then zero the UDP checksum so only the port check fires.
	frame[22], frame[23] = 0, 80
	frame[26], frame[27] = 0, 0

	_, _, _, err := dhcp4wire.ParseUDPIP(frame)
	assert.Error(t, err)
}
