package dhcp4wire

import (
	"encoding/binary"
	"net"

	"github.com/AdguardTeam/golibs/errors"
)

// ClientPort and ServerPort are the well-known DHCP UDP ports, per
// RFC 2131 §4.1.
const (
	ClientPort = 68
	ServerPort = 67
)

// IPv4/UDP constants used when framing a message for raw-socket transmit,
// per spec.md §4.1 "build_udp_ip".
const (
	ipVersion4    = 4
	ipIHL         = 5 // no options, 5 * 4 = 20 bytes
	ipTOSLowDelay = 0x10
	ipDefTTL      = 64
	ipProtoUDP    = 17
	ipDontFragment = 0x4000

	ipHeaderLen  = 20
	udpHeaderLen = 8
)

// errTooShortForIPHeader through errWrongDestPort are the rejection
// reasons ParseUDPIP returns.
const (
	errTooShortForIPHeader errors.Error = "frame shorter than an ip header"
	errTooShortForUDP      errors.Error = "frame shorter than ip+udp headers"
	errNotIPv4             errors.Error = "not an ipv4 packet"
	errNotUDP              errors.Error = "ip payload protocol is not udp"
	errBadIPChecksum       errors.Error = "bad ip header checksum"
	errBadUDPChecksum      errors.Error = "bad udp checksum"
	errWrongDestPort       errors.Error = "udp destination port is not the dhcp client port"
)

// BuildUDPIP constructs an IPv4 header and UDP header wrapping payload,
// addressed from src:68 to dst:67 (dst defaults to the limited broadcast
// address 255.255.255.255 when unset), exactly as spec.md §4.1 describes:
// TOS=IPTOS_LOWDELAY, TTL=IPDEFTTL, DF=1, id=0, proto=UDP. The UDP
// checksum is computed first, over the pseudo-header + UDP header +
// payload with both checksum fields zeroed; only then is the IP header
// checksum computed over the IP header alone.
func BuildUDPIP(src, dst net.IP, payload []byte) []byte {
	if dst == nil {
		dst = net.IPv4bcast
	}

	totalLen := ipHeaderLen + udpHeaderLen + len(payload)

	buf := make([]byte, totalLen)

	ip := buf[:ipHeaderLen]
	ip[0] = ipVersion4<<4 | ipIHL
	ip[1] = ipTOSLowDelay
	binary.BigEndian.PutUint16(ip[2:4], uint16(totalLen))
	binary.BigEndian.PutUint16(ip[4:6], 0) // id
	binary.BigEndian.PutUint16(ip[6:8], ipDontFragment)
	ip[8] = ipDefTTL
	ip[9] = ipProtoUDP
	// ip[10:12] checksum, filled in below
	putIP4(ip[12:16], src)
	putIP4(ip[16:20], dst)

	udp := buf[ipHeaderLen : ipHeaderLen+udpHeaderLen]
	binary.BigEndian.PutUint16(udp[0:2], ClientPort)
	binary.BigEndian.PutUint16(udp[2:4], ServerPort)
	binary.BigEndian.PutUint16(udp[4:6], uint16(udpHeaderLen+len(payload)))
	// udp[6:8] checksum, filled in below

	copy(buf[ipHeaderLen+udpHeaderLen:], payload)

	udpChecksum := pseudoHeaderChecksum(
		srcOrZero(src), dstOrBcast(dst), ipProtoUDP,
		buf[ipHeaderLen:],
	)
	binary.BigEndian.PutUint16(udp[6:8], udpChecksum)

	binary.BigEndian.PutUint16(ip[10:12], checksum16(ip))

	return buf
}

func srcOrZero(ip net.IP) [4]byte {
	var out [4]byte
	putIP4(out[:], ip)

	return out
}

func dstOrBcast(ip net.IP) [4]byte {
	if ip == nil {
		ip = net.IPv4bcast
	}

	var out [4]byte
	putIP4(out[:], ip)

	return out
}

// checksum16 computes the ones'-complement-of-ones'-complement-sum
// Internet checksum (RFC 1071) over data.
func checksum16(data []byte) uint16 {
	var sum uint32

	n := len(data)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}

	if n%2 == 1 {
		sum += uint32(data[n-1]) << 8
	}

	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}

	return ^uint16(sum)
}

// pseudoHeaderChecksum computes the UDP checksum over the RFC 768
// pseudo-header (src, dst, zero, proto, udpLen) followed by udpSegment
// (UDP header + payload, with the checksum field zeroed by the caller).
func pseudoHeaderChecksum(src, dst [4]byte, proto byte, udpSegment []byte) uint16 {
	pseudo := make([]byte, 12+len(udpSegment))
	copy(pseudo[0:4], src[:])
	copy(pseudo[4:8], dst[:])
	pseudo[8] = 0
	pseudo[9] = proto
	binary.BigEndian.PutUint16(pseudo[10:12], uint16(len(udpSegment)))
	copy(pseudo[12:], udpSegment)

	sum := checksum16(pseudo)
	if sum == 0 {
		// Per RFC 768, an all-zero computed checksum is transmitted as
		// all-ones; all-zero on the wire instead means "no checksum".
		return 0xffff
	}

	return sum
}

// ParseUDPIP validates and strips the IPv4+UDP framing built by
// BuildUDPIP, returning the DHCP payload. It recomputes the IP header
// checksum, and, if the UDP checksum is non-zero, recomputes it with the
// pseudo-header; it rejects mismatches, non-IPv4/non-UDP frames, and
// frames not addressed to [ClientPort], per spec.md §4.1
// "valid_dhcp_packet".
func ParseUDPIP(buf []byte) (payload []byte, srcIP, dstIP net.IP, err error) {
	if len(buf) < ipHeaderLen {
		return nil, nil, nil, errTooShortForIPHeader
	}

	version := buf[0] >> 4
	if version != ipVersion4 {
		return nil, nil, nil, errNotIPv4
	}

	ihl := int(buf[0]&0x0f) * 4
	if ihl < ipHeaderLen || len(buf) < ihl {
		return nil, nil, nil, errTooShortForIPHeader
	}

	ipHeader := buf[:ihl]
	if checksum16(ipHeader) != 0 {
		return nil, nil, nil, errBadIPChecksum
	}

	if ipHeader[9] != ipProtoUDP {
		return nil, nil, nil, errNotUDP
	}

	if len(buf) < ihl+udpHeaderLen {
		return nil, nil, nil, errTooShortForUDP
	}

	src := getIP4(ipHeader[12:16])
	dst := getIP4(ipHeader[16:20])

	udpSegment := buf[ihl:]
	dstPort := binary.BigEndian.Uint16(udpSegment[2:4])
	if dstPort != ClientPort {
		return nil, nil, nil, errWrongDestPort
	}

	udpChecksum := binary.BigEndian.Uint16(udpSegment[6:8])
	if udpChecksum != 0 {
		segCopy := append([]byte(nil), udpSegment...)
		binary.BigEndian.PutUint16(segCopy[6:8], 0)

		got := pseudoHeaderChecksum([4]byte(src.To4()), [4]byte(dst.To4()), ipProtoUDP, segCopy)
		if got != udpChecksum {
			return nil, nil, nil, errBadUDPChecksum
		}
	}

	udpLen := int(binary.BigEndian.Uint16(udpSegment[4:6]))
	if udpLen < udpHeaderLen || len(udpSegment) < udpLen {
		return nil, nil, nil, errTooShortForUDP
	}

	return udpSegment[udpHeaderLen:udpLen], src, dst, nil
}
