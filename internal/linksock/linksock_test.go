package linksock

import (
	"context"
	"io"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdguardTeam/dhcp4c/internal/dhcpeloop"
)

func TestBuildDecodeUDPFrame_roundTrip(t *testing.T) {
	t.Parallel()

	srcMAC := net.HardwareAddr{2, 0, 0, 0, 0, 1}
	payload := []byte{0xde, 0xad, 0xbe, 0xef}

	frame, err := buildUDPFrame(
		srcMAC, broadcastMAC,
		netip.IPv4Unspecified(), netip.AddrFrom4([4]byte{255, 255, 255, 255}),
		dhcpClientPort, dhcpServerPort,
		payload,
	)
	require.NoError(t, err)

	got, ok := decodeUDPFrame(frame, dhcpServerPort)
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestDecodeUDPFrame_wrongDestPort(t *testing.T) {
	t.Parallel()

	srcMAC := net.HardwareAddr{2, 0, 0, 0, 0, 1}
	frame, err := buildUDPFrame(
		srcMAC, broadcastMAC,
		netip.IPv4Unspecified(), netip.AddrFrom4([4]byte{255, 255, 255, 255}),
		dhcpClientPort, dhcpServerPort,
		[]byte("x"),
	)
	require.NoError(t, err)

	_, ok := decodeUDPFrame(frame, dhcpClientPort)
	assert.False(t, ok, "frame addressed to dhcpServerPort should not decode for dhcpClientPort")
}

func TestDecodeUDPFrame_notEthernet(t *testing.T) {
	t.Parallel()

	_, ok := decodeUDPFrame([]byte{0x01, 0x02, 0x03}, dhcpServerPort)
	assert.False(t, ok)
}

func TestIsARPFrame(t *testing.T) {
	t.Parallel()

	arp := make([]byte, 14)
	arp[12] = 0x08
	arp[13] = 0x06
	assert.True(t, isARPFrame(arp))

	ip := make([]byte, 14)
	ip[12] = 0x08
	ip[13] = 0x00
	assert.False(t, isARPFrame(ip))

	assert.False(t, isARPFrame([]byte{0x01}), "too short to hold an EtherType field")
}

func TestEmptyDevice(t *testing.T) {
	t.Parallel()

	var d Device = EmptyDevice{HW: []byte{2, 0, 0, 0, 0, 1}}

	assert.Equal(t, []byte{2, 0, 0, 0, 0, 1}, d.HardwareAddr())
	assert.NoError(t, d.WritePacketData([]byte("anything")))
	assert.NoError(t, d.Close())

	_, _, err := d.ReadPacketData()
	assert.Error(t, err)
}

// recordingDevice is a [Device] that records every written frame and
// replays a fixed queue of frames to ReadPacketData, for exercising
// [Transport] and [ReadLoop] without a real NIC.
type recordingDevice struct {
	hw []byte

	mu      sync.Mutex
	written [][]byte
	toRead  [][]byte
}

func (d *recordingDevice) ReadPacketData() (data []byte, ci gopacket.CaptureInfo, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.toRead) == 0 {
		return nil, gopacket.CaptureInfo{}, io.EOF
	}

	data, d.toRead = d.toRead[0], d.toRead[1:]

	return data, gopacket.CaptureInfo{}, nil
}

func (d *recordingDevice) Close() error { return nil }

func (d *recordingDevice) WritePacketData(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.written = append(d.written, append([]byte(nil), data...))

	return nil
}

func (d *recordingDevice) HardwareAddr() []byte { return d.hw }

func (d *recordingDevice) lastWritten(t *testing.T) []byte {
	t.Helper()

	d.mu.Lock()
	defer d.mu.Unlock()

	require.NotEmpty(t, d.written)

	return d.written[len(d.written)-1]
}

func TestTransport_SendBroadcast(t *testing.T) {
	t.Parallel()

	dev := &recordingDevice{hw: []byte{2, 0, 0, 0, 0, 1}}
	tr := NewTransport(dev, net.HardwareAddr(dev.hw))

	require.NoError(t, tr.SendBroadcast([]byte("discover")))

	payload, ok := decodeUDPFrame(dev.lastWritten(t), dhcpServerPort)
	require.True(t, ok)
	assert.Equal(t, []byte("discover"), payload)
}

func TestTransport_SendUnicast(t *testing.T) {
	t.Parallel()

	dev := &recordingDevice{hw: []byte{2, 0, 0, 0, 0, 1}}
	tr := NewTransport(dev, net.HardwareAddr(dev.hw))

	require.NoError(t, tr.SendUnicast([]byte("renew"), netip.MustParseAddr("192.0.2.1")))

	payload, ok := decodeUDPFrame(dev.lastWritten(t), dhcpServerPort)
	require.True(t, ok)
	assert.Equal(t, []byte("renew"), payload)
}

func TestTransport_SendARP(t *testing.T) {
	t.Parallel()

	dev := &recordingDevice{hw: []byte{2, 0, 0, 0, 0, 1}}
	tr := NewTransport(dev, net.HardwareAddr(dev.hw))

	require.NoError(t, tr.SendARP([]byte("raw-arp-frame")))
	assert.Equal(t, []byte("raw-arp-frame"), dev.lastWritten(t))
}

// TestReadLoop_demultiplexesDHCPAndARP feeds a DHCP-framed packet and an
// ARP-shaped frame through ReadLoop and asserts each lands on its own
// handler via the readiness-event channel, per spec.md §4.4's one-event-
// per-iteration contract.
func TestReadLoop_demultiplexesDHCPAndARP(t *testing.T) {
	t.Parallel()

	srcMAC := net.HardwareAddr{2, 0, 0, 0, 0, 1}
	dhcpFrame, err := buildUDPFrame(
		srcMAC, broadcastMAC,
		netip.IPv4Unspecified(), netip.AddrFrom4([4]byte{255, 255, 255, 255}),
		dhcpServerPort, dhcpClientPort,
		[]byte("offer"),
	)
	require.NoError(t, err)

	arpFrame := make([]byte, 14)
	arpFrame[12], arpFrame[13] = 0x08, 0x06

	dev := &recordingDevice{hw: []byte(srcMAC), toRead: [][]byte{dhcpFrame, arpFrame}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan dhcpeloop.ReadinessEvent, 2)
	done := make(chan struct{})
	go func() {
		ReadLoop(ctx, dev, func([]byte) {}, func([]byte) {}, events)
		close(done)
	}()

	var gotDHCP, gotARP bool
	for i := 0; i < 2; i++ {
		select {
		case ev := <-events:
			switch ev.Source {
			case "dhcp":
				gotDHCP = true
			case "arp":
				gotARP = true
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for readiness events")
		}
	}

	assert.True(t, gotDHCP)
	assert.True(t, gotARP)

	cancel()
	<-done
}
