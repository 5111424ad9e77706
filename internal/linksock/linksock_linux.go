//go:build linux

package linksock

import (
	"net"

	"github.com/google/gopacket"
	"github.com/mdlayher/packet"
)

// ethPAll is ETH_P_ALL: every EtherType, so one raw socket serves both
// the ARP and IPv4 paths a DHCPv4 client needs.
const ethPAll = 0x0003

// RawDevice is a [Device] backed by an AF_PACKET socket on one
// interface, grounded on dhcpd's conn_unix.go use of
// github.com/mdlayher/packet.
type RawDevice struct {
	conn *packet.Conn
	ifi  *net.Interface
}

// type check
var _ Device = (*RawDevice)(nil)

// OpenRawDevice opens a raw AF_PACKET socket on ifi, receiving every
// EtherType.
func OpenRawDevice(ifi *net.Interface) (d *RawDevice, err error) {
	conn, err := packet.Listen(ifi, packet.Raw, ethPAll, nil)
	if err != nil {
		return nil, err
	}

	return &RawDevice{conn: conn, ifi: ifi}, nil
}

// ReadPacketData implements the [Device] interface for *RawDevice.
func (d *RawDevice) ReadPacketData() (data []byte, ci gopacket.CaptureInfo, err error) {
	buf := make([]byte, d.ifi.MTU+14)

	n, _, err := d.conn.ReadFrom(buf)
	if err != nil {
		return nil, gopacket.CaptureInfo{}, err
	}

	return buf[:n], gopacket.CaptureInfo{CaptureLength: n, Length: n}, nil
}

// WritePacketData implements the [Device] interface for *RawDevice. The
// socket address is the destination MAC already in the frame's Ethernet
// header (see [broadcastHW]).
func (d *RawDevice) WritePacketData(data []byte) (err error) {
	_, err = d.conn.WriteTo(data, &packet.Addr{HardwareAddr: broadcastHW(data)})

	return err
}

// broadcastHW extracts the destination MAC already encoded in an
// Ethernet frame's first six bytes, so WritePacketData addresses the
// socket call itself consistently with the frame's own header
// (AF_PACKET sendto still needs a destination sockaddr even though the
// frame already carries one).
func broadcastHW(frame []byte) net.HardwareAddr {
	if len(frame) < 6 {
		return net.HardwareAddr(broadcastMAC)
	}

	return net.HardwareAddr(frame[:6])
}

// Close implements the [Device] interface for *RawDevice.
func (d *RawDevice) Close() (err error) {
	return d.conn.Close()
}

// HardwareAddr implements the [Device] interface for *RawDevice.
func (d *RawDevice) HardwareAddr() (hw []byte) {
	return d.ifi.HardwareAddr
}
