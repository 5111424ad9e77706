package dhcp4c

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"math"
	mathrand "math/rand"
	"net"
	"net/netip"
	"time"

	"github.com/AdguardTeam/dhcp4c/internal/clientid"
	"github.com/AdguardTeam/dhcp4c/internal/dhcp4wire"
)

// Backoff constants, per spec.md §4.5.1.
const (
	dhcpBase    = 4 * time.Second
	dhcpMax     = 64 * time.Second
	dhcpARPFail = 2 * time.Second
	jitterSpan  = 2 * time.Second // uniform in [-1, +1] s
)

// newXID draws a fresh 32-bit transaction id from src, a
// cryptographically-seeded source per spec.md §4.5.1 "Transaction id
// is redrawn from a cryptographically-seeded PRNG". src is injectable
// so tests can supply a deterministic reader, resolving the Open
// Question of spec.md §9 in favor of an explicit, test-friendly
// dependency rather than a hidden global RNG.
func newXID(src io.Reader) (xid uint32, err error) {
	if src == nil {
		src = rand.Reader
	}

	var b [4]byte
	if _, err = io.ReadFull(src, b[:]); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint32(b[:]), nil
}

// backoff returns the retransmission delay for the given 0-indexed
// attempt number: DHCP_BASE doubled each attempt, capped at DHCP_MAX,
// plus uniform jitter in [-1, +1] s, per spec.md §4.5.1.
func backoff(attempt int, rnd *mathrand.Rand) time.Duration {
	mult := math.Pow(2, float64(attempt))
	d := time.Duration(float64(dhcpBase) * mult)
	if d > dhcpMax || d <= 0 {
		d = dhcpMax
	}

	jitter := time.Duration(rnd.Int63n(int64(jitterSpan))) - jitterSpan/2

	d += jitter
	if d < 0 {
		d = 0
	}

	return d
}

// renewRetransmit returns the next REQUEST retransmit delay while
// RENEWING/REBINDING: lease/2, lease/4, lease/8, ... down to a 60 s
// floor, per spec.md §4.5.2.
func renewRetransmit(remaining time.Duration) time.Duration {
	half := remaining / 2
	if half < 60*time.Second {
		return 60 * time.Second
	}

	return half
}

// isLinkLocal reports whether addr is in 169.254.0.0/16 (RFC 3927), the
// one case spec.md §4.5.2 exempts from ARP-PROBE (an IPv4LL address was
// already probed by [PhaseInitIPv4LL]).
func isLinkLocal(addr netip.Addr) bool {
	return addr.Is4() && netip.MustParsePrefix("169.254.0.0/16").Contains(addr)
}

// needsARPProbe reports whether an accepted address must be
// ARP-probed before BOUND, per spec.md §4.5.2 "ARP-PROBE if ARP is
// enabled and the address is ... non-link-local".
func needsARPProbe(cfg *ClientConfig, addr netip.Addr) bool {
	return cfg.ARP.Enabled && !isLinkLocal(addr)
}

// isRejected reports whether addr matches one of the caller's
// reject-listed prefixes, per SPEC_FULL.md §12.
func isRejected(cfg *ClientConfig, addr netip.Addr) bool {
	for _, p := range cfg.RejectedAddresses {
		if p.Contains(addr) {
			return true
		}
	}

	return false
}

// clientIdentifier returns the option-61 value to send: the caller's
// override if set, else the RFC 4361 client-id built from duid and
// iaid, per spec.md §4.6.
func clientIdentifier(cfg *ClientConfig, duid clientid.DUID, iaid [4]byte) []byte {
	if len(cfg.ClientID) > 0 {
		return cfg.ClientID
	}

	return clientid.RFC4361ClientID(iaid, duid)
}

// acceptable implements the reply-acceptance rules of spec.md §4.5.3:
// xid must match, chaddr must match the interface hardware address,
// the magic cookie must be present (guaranteed by a successful
// [dhcp4wire.Decode]), and the message type must be in allowed.
func acceptable(m *dhcp4wire.Message, xid uint32, hwaddr net.HardwareAddr, allowed ...dhcp4wire.MessageType) bool {
	if m.XID != xid {
		return false
	}

	if len(m.CHAddr) == 0 || !hwAddrEqual(m.CHAddr, hwaddr) {
		return false
	}

	mt := m.MessageType()
	for _, a := range allowed {
		if mt == a {
			return true
		}
	}

	return false
}

func hwAddrEqual(a, b net.HardwareAddr) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

// allOnes reports whether ip is 255.255.255.255, the invalid yiaddr
// boundary case of spec.md §8 "An OFFER with an all-ones yiaddr is
// rejected."
func allOnes(ip net.IP) bool {
	ip4 := ip.To4()
	if ip4 == nil {
		return false
	}

	for _, b := range ip4 {
		if b != 0xff {
			return false
		}
	}

	return true
}
