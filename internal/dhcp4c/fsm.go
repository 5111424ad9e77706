package dhcp4c

import (
	"net/netip"
	"time"

	"github.com/AdguardTeam/dhcp4c/internal/dhcp4lease"
	"github.com/AdguardTeam/dhcp4c/internal/dhcp4wire"
)

// Phase is one state of the per-interface FSM, per spec.md §3 "FSM
// state" and §4.5.2.
type Phase int

// Defined [Phase] values.
const (
	PhaseInit Phase = iota
	PhaseSelecting
	PhaseRequesting
	PhaseARPProbe
	PhaseBound
	PhaseRenewing
	PhaseRebinding
	PhaseReboot
	PhaseInform
	PhaseInitIPv4LL
	PhaseAnnounce
	PhaseReleasing
	PhaseStopped
)

// String implements [fmt.Stringer] for Phase.
func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "INIT"
	case PhaseSelecting:
		return "SELECTING"
	case PhaseRequesting:
		return "REQUESTING"
	case PhaseARPProbe:
		return "ARP-PROBE"
	case PhaseBound:
		return "BOUND"
	case PhaseRenewing:
		return "RENEWING"
	case PhaseRebinding:
		return "REBINDING"
	case PhaseReboot:
		return "REBOOT"
	case PhaseInform:
		return "INFORM"
	case PhaseInitIPv4LL:
		return "INIT_IPV4LL"
	case PhaseAnnounce:
		return "ANNOUNCE"
	case PhaseReleasing:
		return "RELEASING"
	case PhaseStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// state is the mutable FSM record of spec.md §3: "{phase, xid,
// attempts, next_deadline, offer?, lease?, probe_addr?, conflicts}".
type state struct {
	phase    Phase
	xid      uint32
	attempts int
	conflicts int

	offer *dhcp4wire.Message
	lease *dhcp4lease.Lease
	prev  *dhcp4lease.Lease

	probeAddr netip.Addr

	lastDefendAt time.Time
}
