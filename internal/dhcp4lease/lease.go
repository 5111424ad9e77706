// Package dhcp4lease implements the lease store: serializing and
// deserializing the last accepted DHCP message to stable storage, and
// deriving the in-memory [Lease] record spec.md §3 describes.
package dhcp4lease

import (
	"net"
	"time"

	"github.com/AdguardTeam/dhcp4c/internal/dhcp4wire"
)

// InfiniteLease is the wire value of option 51 meaning "no expiry", per
// spec.md §3.
const InfiniteLease uint32 = 0xffffffff

// Lease is the accepted lease record derived from an ACK, per spec.md
// §3 "Lease".
type Lease struct {
	YIAddr      net.IP
	Netmask     net.IPMask
	Broadcast   net.IP
	ServerID    net.IP
	BoundAt     time.Time
	LeaseTime   uint32
	T1          uint32
	T2          uint32
	FromPersist bool
}

// Infinite reports whether the lease never expires.
func (l *Lease) Infinite() bool {
	return l.LeaseTime == InfiniteLease
}

// ExpiresAt returns the wall-clock instant the lease expires, or the
// zero Time if the lease is infinite.
func (l *Lease) ExpiresAt() time.Time {
	if l.Infinite() {
		return time.Time{}
	}

	return l.BoundAt.Add(time.Duration(l.LeaseTime) * time.Second)
}

// RenewAt and RebindAt return the wall-clock instants T1 and T2 fire at.
func (l *Lease) RenewAt() time.Time {
	return l.BoundAt.Add(time.Duration(l.T1) * time.Second)
}

func (l *Lease) RebindAt() time.Time {
	return l.BoundAt.Add(time.Duration(l.T2) * time.Second)
}

// classfulNetmaskFor returns the historical classful netmask for addr,
// used only as a fallback when an ACK omits option 1 (subnet mask), per
// spec.md §3 "If netmask absent in message, compute classful from
// yiaddr".
func classfulNetmaskFor(addr net.IP) net.IPMask {
	ip4 := addr.To4()
	if ip4 == nil {
		return net.CIDRMask(24, 32)
	}

	switch {
	case ip4[0] < 128:
		return net.CIDRMask(8, 32)
	case ip4[0] < 192:
		return net.CIDRMask(16, 32)
	default:
		return net.CIDRMask(24, 32)
	}
}

// broadcastFor computes yiaddr | ~netmask, per spec.md §3 "If broadcast
// absent, compute yiaddr | ~netmask".
func broadcastFor(addr net.IP, mask net.IPMask) net.IP {
	ip4 := addr.To4()
	if ip4 == nil || len(mask) != 4 {
		return nil
	}

	bcast := make(net.IP, 4)
	for i := range bcast {
		bcast[i] = ip4[i] | ^mask[i]
	}

	return bcast
}

// FromMessage derives a Lease from an accepted ACK message m, observed
// at boundAt, applying the defaulting rules of spec.md §3: netmask
// falls back to the classful mask, broadcast falls back to
// yiaddr|~netmask, T1 defaults to lease_time/2, T2 defaults to
// lease_time*7/8, and the ordering invariant 0 < T1 < T2 < lease_time is
// enforced (falling back to the defaults if violated), except when the
// lease is infinite, in which case T1/T2 are left at [InfiniteLease] so
// the caller disables those timers.
func FromMessage(m *dhcp4wire.Message, boundAt time.Time) (l *Lease) {
	l = &Lease{
		YIAddr:  m.YIAddr,
		BoundAt: boundAt,
	}

	if mask, ok := m.Options.GetIP(dhcp4wire.OptionSubnetMask); ok {
		l.Netmask = net.IPMask(mask[:])
	} else {
		l.Netmask = classfulNetmaskFor(m.YIAddr)
	}

	if bcast, ok := m.Options.GetIP(dhcp4wire.OptionBroadcastAddress); ok {
		l.Broadcast = net.IP(bcast[:])
	} else {
		l.Broadcast = broadcastFor(m.YIAddr, l.Netmask)
	}

	if sid, ok := m.Options.GetIP(dhcp4wire.OptionServerIdentifier); ok {
		l.ServerID = net.IP(sid[:])
	}

	leaseTime, ok := m.Options.GetUint32(dhcp4wire.OptionIPAddressLeaseTime)
	if !ok {
		leaseTime = InfiniteLease
	}
	l.LeaseTime = leaseTime

	if l.Infinite() {
		l.T1 = InfiniteLease
		l.T2 = InfiniteLease

		return l
	}

	t1, t1ok := m.Options.GetUint32(dhcp4wire.OptionRenewalTimeT1)
	if !t1ok {
		t1 = leaseTime / 2
	}

	t2, t2ok := m.Options.GetUint32(dhcp4wire.OptionRebindingTimeT2)
	if !t2ok {
		t2 = leaseTime * 7 / 8
	}

	if !(0 < t1 && t1 < t2 && t2 < leaseTime) {
		t1 = leaseTime / 2
		t2 = leaseTime * 7 / 8
	}

	l.T1 = t1
	l.T2 = t2

	return l
}
