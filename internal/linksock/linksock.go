// Package linksock implements the link-layer transport a DHCPv4 client
// sends and receives on: a raw Ethernet device abstraction plus the
// IPv4/UDP/Ethernet framing spec.md §6.1 requires, since the client
// runs before the interface has any configured address to bind a
// regular UDP socket to.
//
// The [Device] abstraction and its Empty test double are grounded on
// dhcpsvc.NetworkDevice; the concrete raw-socket wiring in
// linksock_linux.go is grounded on dhcpd's conn_unix.go use of
// mdlayher/packet and gopacket/layers.
package linksock

import (
	"io"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Device provides raw Ethernet frame I/O on one network interface. It
// generalizes the platform raw-socket implementation so the rest of
// this package, and dhcp4c, can be tested without root or a real NIC.
type Device interface {
	gopacket.PacketDataSource

	io.Closer

	// WritePacketData writes a fully-framed Ethernet frame.
	WritePacketData(data []byte) (err error)

	// HardwareAddr returns the interface's link-layer address.
	HardwareAddr() (hw []byte)
}

// EmptyDevice is a no-op [Device], useful in tests that never expect a
// frame to cross the wire.
type EmptyDevice struct {
	HW []byte
}

// type check
var _ Device = EmptyDevice{}

// ReadPacketData implements the [Device] interface for EmptyDevice. It
// always blocks-free returns no data.
func (EmptyDevice) ReadPacketData() (data []byte, ci gopacket.CaptureInfo, err error) {
	return nil, gopacket.CaptureInfo{}, io.EOF
}

// Close implements the [Device] interface for EmptyDevice.
func (EmptyDevice) Close() (err error) { return nil }

// WritePacketData implements the [Device] interface for EmptyDevice.
func (EmptyDevice) WritePacketData(_ []byte) (err error) { return nil }

// HardwareAddr implements the [Device] interface for EmptyDevice.
func (d EmptyDevice) HardwareAddr() (hw []byte) { return d.HW }

// broadcastMAC is the Ethernet broadcast address.
var broadcastMAC = []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ipv4DefaultTTL matches the value dhcpd's conn_unix.go uses for
// client-originated datagrams, per RFC 1700.
const ipv4DefaultTTL = 64

// dhcpClientPort and dhcpServerPort are the well-known BOOTP/DHCP UDP
// ports, per RFC 2131 §4.1.
const (
	dhcpClientPort = 68
	dhcpServerPort = 67
)

// buildUDPFrame wraps payload in an Ethernet/IPv4/UDP frame from
// (srcMAC, srcIP, srcPort) to (dstMAC, dstIP, dstPort), using gopacket
// layer serialization the same way dhcpd's buildEtherPkt does.
func buildUDPFrame(
	srcMAC, dstMAC []byte,
	srcIP, dstIP netip.Addr,
	srcPort, dstPort uint16,
	payload []byte,
) (frame []byte, err error) {
	udpLayer := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}

	ipv4Layer := &layers.IPv4{
		Version:  4,
		TTL:      ipv4DefaultTTL,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    srcIP.AsSlice(),
		DstIP:    dstIP.AsSlice(),
		Flags:    layers.IPv4DontFragment,
	}

	_ = udpLayer.SetNetworkLayerForChecksum(ipv4Layer)

	ethLayer := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	err = gopacket.SerializeLayers(buf, opts, ethLayer, ipv4Layer, udpLayer, gopacket.Payload(payload))
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// decodeUDPFrame extracts the UDP payload from a raw Ethernet frame, if
// it is an IPv4/UDP datagram addressed to dstPort; ok is false
// otherwise (a different EtherType, a non-UDP IPv4 payload, or a
// different destination port).
func decodeUDPFrame(raw []byte, dstPort uint16) (payload []byte, ok bool) {
	pkt := gopacket.NewPacket(raw, layers.LayerTypeEthernet, gopacket.NoCopy)

	udpLayer, isUDP := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	if !isUDP {
		return nil, false
	}

	if uint16(udpLayer.DstPort) != dstPort {
		return nil, false
	}

	return udpLayer.Payload, true
}
