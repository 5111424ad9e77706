package arpprobe_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdguardTeam/dhcp4c/internal/arpprobe"
)

func TestFrame_encodeDecode_roundTrip(t *testing.T) {
	t.Parallel()

	f := &arpprobe.Frame{
		Operation: arpprobe.OperationRequest,
		SenderHW:  net.HardwareAddr{2, 0, 0, 0, 0, 1},
		SenderIP:  [4]byte{0, 0, 0, 0},
		TargetHW:  net.HardwareAddr{0, 0, 0, 0, 0, 0},
		TargetIP:  [4]byte{192, 0, 2, 10},
	}

	got, err := arpprobe.DecodeFrame(f.Encode())
	require.NoError(t, err)

	assert.Equal(t, f.Operation, got.Operation)
	assert.Equal(t, []byte(f.SenderHW), []byte(got.SenderHW))
	assert.Equal(t, f.SenderIP, got.SenderIP)
	assert.Equal(t, f.TargetIP, got.TargetIP)
}

func TestDecodeFrame_tooShort(t *testing.T) {
	t.Parallel()

	_, err := arpprobe.DecodeFrame(make([]byte, 10))
	assert.Error(t, err)
}

func TestEthernet_encodeDecode_roundTrip(t *testing.T) {
	t.Parallel()

	src := net.HardwareAddr{2, 0, 0, 0, 0, 1}
	f := &arpprobe.Frame{
		Operation: arpprobe.OperationReply,
		SenderHW:  src,
		SenderIP:  [4]byte{192, 0, 2, 10},
		TargetHW:  src,
		TargetIP:  [4]byte{192, 0, 2, 10},
	}

	raw, err := arpprobe.EncodeEthernet(src, f)
	require.NoError(t, err)

	got, err := arpprobe.DecodeEthernet(raw)
	require.NoError(t, err)
	assert.Equal(t, f.SenderIP, got.SenderIP)
}

func TestDecodeEthernet_nonARP(t *testing.T) {
	t.Parallel()

	// A minimal non-ARP Ethernet frame (EtherType IPv4) must be
	// rejected rather than mis-parsed as ARP.
	raw := make([]byte, 14+28)
	raw[12], raw[13] = 0x08, 0x00 // EtherType IPv4

	_, err := arpprobe.DecodeEthernet(raw)
	assert.Error(t, err)
}
