package clientid

import (
	"encoding/binary"
	"net"
)

// rfc4361Prefix is the fixed first byte of an RFC 4361 client identifier.
const rfc4361Prefix = 0xff

// IAIDFromIndex derives a 4-byte IAID from a network interface index, per
// spec.md §4.6 "IAID is derived from the interface index or hardware
// address".
func IAIDFromIndex(ifIndex int) (iaid [4]byte) {
	binary.BigEndian.PutUint32(iaid[:], uint32(ifIndex))

	return iaid
}

// IAIDFromHWAddr derives a 4-byte IAID from a hardware address by folding
// its bytes with XOR, an alternative to [IAIDFromIndex] for when the
// interface index is not available. cmd/dhcp4c uses [IAIDFromIndex].
func IAIDFromHWAddr(hwaddr net.HardwareAddr) (iaid [4]byte) {
	for i, b := range hwaddr {
		iaid[i%4] ^= b
	}

	return iaid
}

// RFC4361ClientID composes the RFC 4361 client identifier:
// 0xff || IAID(4) || DUID, per spec.md §4.6.
func RFC4361ClientID(iaid [4]byte, duid DUID) (clientID []byte) {
	clientID = make([]byte, 0, 1+4+8+len(duid.HWAddr))
	clientID = append(clientID, rfc4361Prefix)
	clientID = append(clientID, iaid[:]...)
	clientID = append(clientID, duid.Encode()...)

	return clientID
}

// LegacyClientID composes the legacy client identifier: htype || hwaddr,
// used when no DUID is configured, per spec.md §4.6.
func LegacyClientID(htype byte, hwaddr net.HardwareAddr) (clientID []byte) {
	clientID = make([]byte, 0, 1+len(hwaddr))
	clientID = append(clientID, htype)
	clientID = append(clientID, hwaddr...)

	return clientID
}
