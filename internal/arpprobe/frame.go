// Package arpprobe implements RFC 5227 IPv4 address-conflict detection:
// probing a candidate address with gratuitous ARP before use, announcing
// it once claimed, and defending it while bound. Grounded on the ARP
// frame layout conventions of the soypat-lneto/arp package (RFC 826
// field offsets) and wrapped in the mdlayher/ethernet framing the
// teacher's raw-socket code ([dhcpd.conn_linux.go]) uses for DHCP.
package arpprobe

import (
	"encoding/binary"
	"net"

	"github.com/mdlayher/ethernet"

	"github.com/AdguardTeam/golibs/errors"
)

// Operation is the ARP opcode.
type Operation uint16

// Defined [Operation] values, per RFC 826.
const (
	OperationRequest Operation = 1
	OperationReply   Operation = 2
)

// Fixed field sizes for an Ethernet/IPv4 ARP packet.
const (
	hwTypeEthernet = 1
	protoTypeIPv4  = 0x0800
	hwAddrLen      = 6
	protoAddrLen   = 4

	frameLen = 8 + 2*hwAddrLen + 2*protoAddrLen // 28
)

// errShortARPFrame is returned by [DecodeFrame] when the buffer is
// shorter than the fixed 28-byte Ethernet/IPv4 ARP packet.
const errShortARPFrame errors.Error = "arp frame too short"

// Frame is a decoded Ethernet/IPv4 ARP packet: the subset of RFC 826
// that RFC 5227 probing and announcing requires.
type Frame struct {
	Operation Operation
	SenderHW  net.HardwareAddr
	SenderIP  [4]byte
	TargetHW  net.HardwareAddr
	TargetIP  [4]byte
}

// Encode serializes f as a standalone ARP packet (no Ethernet header).
func (f *Frame) Encode() []byte {
	buf := make([]byte, frameLen)

	binary.BigEndian.PutUint16(buf[0:2], hwTypeEthernet)
	binary.BigEndian.PutUint16(buf[2:4], protoTypeIPv4)
	buf[4] = hwAddrLen
	buf[5] = protoAddrLen
	binary.BigEndian.PutUint16(buf[6:8], uint16(f.Operation))

	copy(buf[8:14], padHW(f.SenderHW))
	copy(buf[14:18], f.SenderIP[:])
	copy(buf[18:24], padHW(f.TargetHW))
	copy(buf[24:28], f.TargetIP[:])

	return buf
}

// DecodeFrame parses a standalone ARP packet. Packets whose hardware or
// protocol type/length do not match Ethernet/IPv4 are rejected, since
// RFC 5227 conflict detection only concerns IPv4-over-Ethernet.
func DecodeFrame(b []byte) (f *Frame, err error) {
	if len(b) < frameLen {
		return nil, errShortARPFrame
	}

	htype := binary.BigEndian.Uint16(b[0:2])
	ptype := binary.BigEndian.Uint16(b[2:4])
	hlen, plen := b[4], b[5]
	if htype != hwTypeEthernet || ptype != protoTypeIPv4 || hlen != hwAddrLen || plen != protoAddrLen {
		return nil, errors.Error("arp frame: not an ethernet/ipv4 packet")
	}

	f = &Frame{
		Operation: Operation(binary.BigEndian.Uint16(b[6:8])),
		SenderHW:  net.HardwareAddr(append([]byte(nil), b[8:14]...)),
		TargetHW:  net.HardwareAddr(append([]byte(nil), b[18:24]...)),
	}
	copy(f.SenderIP[:], b[14:18])
	copy(f.TargetIP[:], b[24:28])

	return f, nil
}

// padHW returns hw, zero-padded or truncated to exactly 6 bytes.
func padHW(hw net.HardwareAddr) []byte {
	out := make([]byte, hwAddrLen)
	copy(out, hw)

	return out
}

// broadcastHW is the Ethernet broadcast address, the destination of
// every ARP frame this package sends (RFC 5227 probes and announcements
// are always link-layer broadcast).
var broadcastHW = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// EncodeEthernet wraps an ARP packet in an Ethernet II frame with
// EtherType ARP, ready for a raw AF_PACKET socket write.
func EncodeEthernet(src net.HardwareAddr, arp *Frame) ([]byte, error) {
	eth := &ethernet.Frame{
		Destination: broadcastHW,
		Source:      src,
		EtherType:   ethernet.EtherTypeARP,
		Payload:     arp.Encode(),
	}

	return eth.MarshalBinary()
}

// DecodeEthernet unwraps an Ethernet II frame and parses its payload as
// an ARP packet. It returns [errNotARP] for any non-ARP EtherType so
// callers can cheaply filter a shared raw socket's traffic.
func DecodeEthernet(b []byte) (f *Frame, err error) {
	var eth ethernet.Frame
	if err = (&eth).UnmarshalBinary(b); err != nil {
		return nil, errors.Annotate(err, "unmarshaling ethernet frame: %w")
	}

	if eth.EtherType != ethernet.EtherTypeARP {
		return nil, errNotARP
	}

	return DecodeFrame(eth.Payload)
}

// errNotARP is returned by [DecodeEthernet] for a non-ARP EtherType.
const errNotARP errors.Error = "not an arp frame"
