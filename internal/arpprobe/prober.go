package arpprobe

import (
	"bytes"
	"math/rand"
	"net"
	"net/netip"
	"time"
)

// RFC 5227 timing constants, per spec.md §4.3.
const (
	ProbeNum         = 3
	ProbeMin         = 1 * time.Second
	ProbeMax         = 2 * time.Second
	ProbeWait        = 1 * time.Second
	AnnounceWait     = 2 * time.Second
	AnnounceNum      = 2
	AnnounceInterval = 2 * time.Second
	DefendInterval   = 10 * time.Second
)

// EventKind distinguishes the outcomes a [Prober] reports to the caller
// (the C5 state machine), per spec.md §4.3 "Outputs to C5".
type EventKind int

// Defined [EventKind] values.
const (
	// Probed means the probe sequence completed with no conflict
	// observed within ANNOUNCE_WAIT of the last probe.
	Probed EventKind = iota
	// Conflict means a probe or announce saw another host already
	// using the address.
	Conflict
	// Defended means a conflict arrived while bound, but the last
	// defense was long enough ago that the address was re-announced
	// and kept.
	Defended
	// Lost means a conflict arrived while bound and the last defense
	// was too recent; the address must be relinquished.
	Lost
)

// Event reports a [Prober] outcome for Addr.
type Event struct {
	Kind EventKind
	Addr netip.Addr
}

// phase is the internal state of a [Prober].
type phase int

const (
	phaseIdle phase = iota
	phaseProbing
	phaseAnnouncing
	phaseDefending
)

// Prober runs one RFC 5227 probe/announce/defend cycle for a single
// candidate address at a time, per spec.md §4.3. It is driven
// externally: the caller arms it with [Prober.Begin], calls
// [Prober.Fire] when [Prober.Deadline] elapses, and feeds every
// received ARP frame to [Prober.HandleFrame]. This mirrors the
// single-threaded, externally-clocked design of the teacher's event
// loop conventions: Prober holds no goroutine or timer of its own.
type Prober struct {
	rnd    *rand.Rand
	hwAddr net.HardwareAddr

	phase        phase
	addr         [4]byte
	sent         int
	announceToo  bool
	deadline     time.Time
	lastDefendAt time.Time
}

// New returns a Prober that identifies itself with hwAddr on the wire.
// rnd supplies the jitter for probe spacing; pass a source seeded from
// a CSPRNG for production use and a fixed-seed source in tests.
func New(hwAddr net.HardwareAddr, rnd *rand.Rand) *Prober {
	return &Prober{
		rnd:    rnd,
		hwAddr: hwAddr,
		phase:  phaseIdle,
	}
}

// Active reports whether a probe/announce/defend cycle is in progress.
func (p *Prober) Active() bool {
	return p.phase != phaseIdle
}

// Deadline returns the instant [Prober.Fire] should next be called, or
// the zero Time if no timer is currently pending (defending is driven
// only by [Prober.HandleFrame]).
func (p *Prober) Deadline() time.Time {
	return p.deadline
}

// Begin starts probing addr. If announceAfter, a successful probe
// (Probed event) is followed automatically by the RFC 5227 announce
// sequence before the cycle settles into defend mode; the DHCP
// ARP-PROBE phase (spec.md §4.5.2) passes false since the server's ACK
// already grants the address, while IPv4LL (§4.5.2 INIT_IPV4LL) passes
// true.
func (p *Prober) Begin(now time.Time, addr netip.Addr, announceAfter bool) (next time.Time) {
	p.phase = phaseProbing
	p.addr = addr.As4()
	p.sent = 0
	p.announceToo = announceAfter
	p.deadline = now.Add(p.jitter(0, ProbeWait))

	return p.deadline
}

// Stop returns the Prober to idle, discarding any in-progress cycle.
func (p *Prober) Stop() {
	p.phase = phaseIdle
	p.deadline = time.Time{}
}

// Fire advances the state machine when [Prober.Deadline] has elapsed.
// It returns the Ethernet frame to transmit, if any, and an [Event] if
// the cycle concluded at this step.
func (p *Prober) Fire(now time.Time) (frame []byte, ev *Event) {
	switch p.phase {
	case phaseProbing:
		return p.fireProbing(now)
	case phaseAnnouncing:
		return p.fireAnnouncing(now)
	default:
		return nil, nil
	}
}

func (p *Prober) fireProbing(now time.Time) (frame []byte, ev *Event) {
	if p.sent < ProbeNum {
		p.sent++
		frame = p.buildFrame(OperationRequest, [4]byte{}, p.addr)
		if p.sent < ProbeNum {
			p.deadline = now.Add(p.jitter(ProbeMin, ProbeMax))
		} else {
			// Quiet period: a conflicting frame arriving before this
			// deadline is still handled by HandleFrame.
			p.deadline = now.Add(AnnounceWait)
		}

		return frame, nil
	}

	// The quiet period elapsed with no conflict.
	ev = &Event{Kind: Probed, Addr: netip.AddrFrom4(p.addr)}
	if p.announceToo {
		p.phase = phaseAnnouncing
		p.sent = 0

		return p.fireAnnounceFrame(now), ev
	}

	p.phase = phaseDefending
	p.deadline = time.Time{}

	return nil, ev
}

func (p *Prober) fireAnnouncing(now time.Time) (frame []byte, ev *Event) {
	return p.fireAnnounceFrame(now), nil
}

func (p *Prober) fireAnnounceFrame(now time.Time) []byte {
	p.sent++
	frame := p.buildFrame(OperationRequest, p.addr, p.addr)

	if p.sent >= AnnounceNum {
		p.phase = phaseDefending
		p.deadline = time.Time{}
	} else {
		p.deadline = now.Add(AnnounceInterval)
	}

	return frame
}

// HandleFrame inspects a received ARP frame for a conflict against the
// address currently being probed, announced, or defended. It returns a
// frame to transmit (a defensive re-announcement) and/or an event.
func (p *Prober) HandleFrame(now time.Time, f *Frame) (frame []byte, ev *Event) {
	if p.phase == phaseIdle {
		return nil, nil
	}

	// Per spec.md §8: a probe seeing its own hardware address is never
	// a conflict (loopback of our own transmission).
	if bytes.Equal(f.SenderHW, p.hwAddr) {
		return nil, nil
	}

	conflict := false
	switch f.Operation {
	case OperationReply:
		conflict = f.SenderIP == p.addr
	case OperationRequest:
		conflict = f.SenderIP == p.addr
	}
	if !conflict {
		return nil, nil
	}

	switch p.phase {
	case phaseProbing, phaseAnnouncing:
		p.phase = phaseIdle
		p.deadline = time.Time{}

		return nil, &Event{Kind: Conflict, Addr: netip.AddrFrom4(p.addr)}
	case phaseDefending:
		if now.Sub(p.lastDefendAt) >= DefendInterval {
			p.lastDefendAt = now
			frame = p.buildFrame(OperationRequest, p.addr, p.addr)

			return frame, &Event{Kind: Defended, Addr: netip.AddrFrom4(p.addr)}
		}

		p.phase = phaseIdle

		return nil, &Event{Kind: Lost, Addr: netip.AddrFrom4(p.addr)}
	default:
		return nil, nil
	}
}

// buildFrame constructs the Ethernet-wrapped ARP request for a probe
// (spa=0.0.0.0) or an announce/defend (spa=tpa=claim), per spec.md
// §4.3.
func (p *Prober) buildFrame(op Operation, spa, tpa [4]byte) []byte {
	arp := &Frame{
		Operation: op,
		SenderHW:  p.hwAddr,
		SenderIP:  spa,
		TargetHW:  net.HardwareAddr{0, 0, 0, 0, 0, 0},
		TargetIP:  tpa,
	}

	// EncodeEthernet only fails if MarshalBinary rejects the frame
	// shape, which cannot happen for a fixed well-formed payload.
	raw, _ := EncodeEthernet(p.hwAddr, arp)

	return raw
}

// jitter returns a uniform-random duration in [lo, hi). When hi <= lo
// it returns lo without consulting rnd.
func (p *Prober) jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}

	span := hi - lo
	return lo + time.Duration(p.rnd.Int63n(int64(span)))
}
