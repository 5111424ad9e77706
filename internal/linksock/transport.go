package linksock

import (
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/google/gopacket/layers"

	"github.com/AdguardTeam/dhcp4c/internal/dhcp4c"
	"github.com/AdguardTeam/dhcp4c/internal/dhcpeloop"
)

// Transport implements [dhcp4c.Transport] over a [Device], framing
// every send as a raw Ethernet packet since the client has no
// configured address to route a regular socket through until BOUND.
type Transport struct {
	dev    Device
	srcMAC net.HardwareAddr
}

// NewTransport wraps dev, whose interface hardware address is srcMAC.
func NewTransport(dev Device, srcMAC net.HardwareAddr) *Transport {
	return &Transport{dev: dev, srcMAC: srcMAC}
}

// SendBroadcast implements the dhcp4c.Transport interface for
// *Transport.
func (t *Transport) SendBroadcast(payload []byte) (err error) {
	frame, err := buildUDPFrame(
		t.srcMAC, broadcastMAC,
		netip.IPv4Unspecified(), netip.AddrFrom4([4]byte{255, 255, 255, 255}),
		dhcpClientPort, dhcpServerPort,
		payload,
	)
	if err != nil {
		return errors.Annotate(err, "framing broadcast: %w")
	}

	return t.dev.WritePacketData(frame)
}

// SendUnicast implements the dhcp4c.Transport interface for
// *Transport. Since the destination's MAC is unknown without ARP
// resolution (a DHCP unicast goes to an already-known server, not a
// freshly-probed peer), it is sent link-layer broadcast with an
// IP-layer unicast destination; conformant servers and relays accept
// this per RFC 2131 §4.1.
func (t *Transport) SendUnicast(payload []byte, dst netip.Addr) (err error) {
	frame, err := buildUDPFrame(
		t.srcMAC, broadcastMAC,
		netip.IPv4Unspecified(), dst,
		dhcpClientPort, dhcpServerPort,
		payload,
	)
	if err != nil {
		return errors.Annotate(err, "framing unicast: %w")
	}

	return t.dev.WritePacketData(frame)
}

// SendARP implements the dhcp4c.Transport interface for *Transport.
// frame is already a complete Ethernet frame, built by
// [arpprobe.EncodeEthernet].
func (t *Transport) SendARP(frame []byte) (err error) {
	return t.dev.WritePacketData(frame)
}

// type check
var _ dhcp4c.Transport = (*Transport)(nil)

// DHCPHandler receives a decoded DHCP UDP payload.
type DHCPHandler func(raw []byte)

// ARPHandler receives a decoded ARP frame's raw Ethernet bytes.
type ARPHandler func(raw []byte)

// ReadLoop reads frames off dev until ctx is done or dev returns an
// error, demultiplexing IPv4/UDP:68 datagrams to onDHCP and ARP frames
// to onARP, and feeding a [dhcpeloop.ReadinessEvent] per frame so the
// caller's [dhcpeloop.Loop] processes at most one per iteration — the
// same starvation guarantee spec.md §4.4 requires of fd callbacks.
func ReadLoop(
	ctx context.Context,
	dev Device,
	onDHCP DHCPHandler,
	onARP ARPHandler,
	events chan<- dhcpeloop.ReadinessEvent,
) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, _, err := dev.ReadPacketData()
		if err != nil {
			return
		}

		if payload, ok := decodeUDPFrame(raw, dhcpClientPort); ok {
			select {
			case events <- dhcpeloop.ReadinessEvent{Source: "dhcp", Recv: func(_ time.Time) { onDHCP(payload) }}:
			case <-ctx.Done():
				return
			}

			continue
		}

		if isARPFrame(raw) {
			arpRaw := append([]byte(nil), raw...)
			select {
			case events <- dhcpeloop.ReadinessEvent{Source: "arp", Recv: func(_ time.Time) { onARP(arpRaw) }}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// isARPFrame reports whether raw's EtherType field is ARP.
func isARPFrame(raw []byte) bool {
	if len(raw) < 14 {
		return false
	}

	etherType := uint16(raw[12])<<8 | uint16(raw[13])

	return etherType == uint16(layers.EthernetTypeARP)
}
