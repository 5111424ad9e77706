// Package dhcp4wire implements the DHCPv4/BOOTP wire codec: message
// encoding and decoding, option TLV handling, and the IPv4/UDP framing
// needed to send a message over a raw link-layer socket.
//
// Field names and semantics follow RFC 2131 §2 and RFC 2132.
package dhcp4wire

import (
	"encoding/binary"
	"net"
	"net/netip"

	"github.com/AdguardTeam/golibs/errors"
)

// Op values for the BOOTP op field.
const (
	OpBootRequest byte = 1
	OpBootReply   byte = 2
)

// MagicCookie marks the start of the options area, per RFC 2131 §3.
const MagicCookie uint32 = 0x63825363

// HeaderLen is the length, in bytes, of the fixed BOOTP/DHCP header that
// precedes the options area.
const HeaderLen = 236

// MinMessageLen is the BOOTP-mandated minimum total message length,
// including the magic cookie, per spec.md §4.1 "Pad to BOOTP minimum 300
// octets".
const MinMessageLen = 300

// Flag bits for the Flags header field.
const (
	// FlagBroadcast is bit 15 of the flags field: request a broadcast
	// reply.
	FlagBroadcast uint16 = 1 << 15
)

// chaddrLen, snameLen, fileLen are the fixed lengths of the corresponding
// header fields.
const (
	chaddrLen = 16
	snameLen  = 64
	fileLen   = 128
)

// errBufferTooShort is returned by Decode when the input is shorter than
// [HeaderLen] plus the 4-byte magic cookie.
const errBufferTooShort errors.Error = "buffer too short for a dhcp message"

// errBadCookie is returned by Decode when the magic cookie does not match.
const errBadCookie errors.Error = "bad dhcp magic cookie"

// Message is a parsed DHCP/BOOTP message: the fixed header plus the
// decoded options area, including options recovered from the BOOTP
// sname/file fields via option 52 (overload).
//
// Integers are host-endian after parsing; address lists keep server
// order, per spec.md §3.
type Message struct {
	Options Options

	CIAddr net.IP
	YIAddr net.IP
	SIAddr net.IP
	GIAddr net.IP

	CHAddr net.HardwareAddr

	// SName and File carry the BOOTP server-name and boot-file fields.
	// When Options contains [OptionOverload], part or all of these two
	// fields hold additional options instead of (or in addition to)
	// their BOOTP meaning; Decode always extracts those into Options,
	// but the raw bytes are preserved here for re-encoding and for the
	// lease store's byte-exact persistence requirement.
	SName [snameLen]byte
	File  [fileLen]byte

	XID uint32

	Secs  uint16
	Flags uint16

	Op    byte
	HType byte
	HLen  byte
	Hops  byte
}

// NewMessage returns a Message with the fixed-length fields zeroed and an
// empty option set, ready to have its header fields and options filled in.
func NewMessage() *Message {
	return &Message{
		CIAddr: net.IPv4zero,
		YIAddr: net.IPv4zero,
		SIAddr: net.IPv4zero,
		GIAddr: net.IPv4zero,
	}
}

// MessageType returns the value of option 53, or 0 if absent.
func (m *Message) MessageType() MessageType {
	v, ok := m.Options.Get(OptionDHCPMessageType)
	if !ok || len(v) != 1 {
		return 0
	}

	return MessageType(v[0])
}

// Encode serializes m to the canonical wire format: the fixed 236-byte
// header, the 4-byte magic cookie, then the options area terminated by
// option 255 and padded to [MinMessageLen].
func (m *Message) Encode() []byte {
	buf := make([]byte, HeaderLen, MinMessageLen)

	buf[0] = m.Op
	buf[1] = m.HType
	buf[2] = m.HLen
	buf[3] = m.Hops

	binary.BigEndian.PutUint32(buf[4:8], m.XID)
	binary.BigEndian.PutUint16(buf[8:10], m.Secs)
	binary.BigEndian.PutUint16(buf[10:12], m.Flags)

	putIP4(buf[12:16], m.CIAddr)
	putIP4(buf[16:20], m.YIAddr)
	putIP4(buf[20:24], m.SIAddr)
	putIP4(buf[24:28], m.GIAddr)

	copy(buf[28:28+chaddrLen], m.CHAddr)

	copy(buf[44:44+snameLen], m.SName[:])
	copy(buf[108:108+fileLen], m.File[:])

	var cookie [4]byte
	binary.BigEndian.PutUint32(cookie[:], MagicCookie)
	buf = append(buf, cookie[:]...)

	buf = append(buf, m.Options.Encode()...)
	buf = append(buf, OptionEnd)

	for len(buf) < MinMessageLen {
		buf = append(buf, OptionPad)
	}

	return buf
}

// Decode parses b into a Message.  It bounds-checks every option TLV and
// honors option 52 (overload) by continuing the option walk into File
// then SName (each at most once, never re-entering overload). It does
// not check option value lengths or ranges: the typed accessors of
// [Options] report ok == false for a value of the wrong length when it
// is read, and no range check (such as a minimum interface MTU) is made.
func Decode(b []byte) (m *Message, err error) {
	if len(b) < HeaderLen+4 {
		return nil, errBufferTooShort
	}

	m = &Message{}

	m.Op = b[0]
	m.HType = b[1]
	m.HLen = b[2]
	m.Hops = b[3]

	m.XID = binary.BigEndian.Uint32(b[4:8])
	m.Secs = binary.BigEndian.Uint16(b[8:10])
	m.Flags = binary.BigEndian.Uint16(b[10:12])

	m.CIAddr = getIP4(b[12:16])
	m.YIAddr = getIP4(b[16:20])
	m.SIAddr = getIP4(b[20:24])
	m.GIAddr = getIP4(b[24:28])

	m.CHAddr = net.HardwareAddr(append([]byte(nil), b[28:28+int(m.HLen)]...))

	copy(m.SName[:], b[44:44+snameLen])
	copy(m.File[:], b[108:108+fileLen])

	cookie := binary.BigEndian.Uint32(b[232:236])
	if cookie != MagicCookie {
		return nil, errBadCookie
	}

	err = m.Options.decodeInto(b[236:])
	if err != nil {
		return nil, errors.Annotate(err, "parsing options: %w")
	}

	if overload, ok := m.Options.Get(OptionOverload); ok && len(overload) == 1 {
		switch overload[0] {
		case 1:
			err = m.Options.decodeInto(m.File[:])
		case 2:
			err = m.Options.decodeInto(m.SName[:])
		case 3:
			err = m.Options.decodeInto(m.File[:])
			if err == nil {
				err = m.Options.decodeInto(m.SName[:])
			}
		}

		if err != nil {
			return nil, errors.Annotate(err, "parsing overloaded options: %w")
		}
	}

	return m, nil
}

// putIP4 writes the 4-byte big-endian representation of ip into dst,
// leaving dst zeroed when ip is nil or unspecified.
func putIP4(dst []byte, ip net.IP) {
	if ip4 := ip.To4(); ip4 != nil {
		copy(dst, ip4)
	}
}

// getIP4 returns the 4 bytes of src as a net.IP.
func getIP4(src []byte) net.IP {
	ip := make(net.IP, 4)
	copy(ip, src)

	return ip
}

// Netip returns ip as a [netip.Addr], or the zero value if ip is not a
// valid IPv4 address.
func Netip(ip net.IP) netip.Addr {
	ip4 := ip.To4()
	if ip4 == nil {
		return netip.Addr{}
	}

	return netip.AddrFrom4([4]byte(ip4))
}
