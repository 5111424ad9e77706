package dhcp4c

import (
	"context"
	"io"
	"log/slog"
	mathrand "math/rand"
	"net"
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/google/uuid"

	"github.com/AdguardTeam/dhcp4c/internal/arpprobe"
	"github.com/AdguardTeam/dhcp4c/internal/clientid"
	"github.com/AdguardTeam/dhcp4c/internal/dhcp4lease"
	"github.com/AdguardTeam/dhcp4c/internal/dhcp4wire"
	"github.com/AdguardTeam/dhcp4c/internal/dhcpeloop"
	"github.com/AdguardTeam/dhcp4c/internal/optionmask"
)

// Transport abstracts the raw link socket a [Client] sends on. A real
// implementation wraps the platform raw/UDP sockets (see
// SPEC_FULL.md's linksock component); tests supply a recording fake.
type Transport interface {
	// SendBroadcast writes an Ethernet/IPv4/UDP-framed DHCP message to
	// the LAN broadcast address.
	SendBroadcast(payload []byte) error

	// SendUnicast writes payload to dst:67 (server) over UDP, used for
	// RENEWING and RELEASING.
	SendUnicast(payload []byte, dst netip.Addr) error

	// SendARP writes a raw Ethernet ARP frame, already encoded by
	// [arpprobe].
	SendARP(frame []byte) error
}

// ConfigureEvent is emitted on every hook-worthy transition, per
// spec.md §6.5.
type ConfigureEvent struct {
	Reason Reason
	Env    Env
	Lease  *dhcp4lease.Lease
}

// ConfigureFunc receives [ConfigureEvent]s. Applying them to the
// running system (address/route/resolv.conf changes) is outside the
// core per spec.md §1's non-goals; a caller wires this to the hook
// script and/or direct OS calls.
type ConfigureFunc func(ctx context.Context, ev ConfigureEvent)

// errNoTransport and errNotConfigured guard [Client] misuse.
const (
	errNoTransport   errors.Error = "dhcp4c: transport is nil"
	errNotConfigured errors.Error = "dhcp4c: client not started"
)

// queueID is the single [dhcpeloop.TimerKey] queue this client uses;
// one Client owns one interface, so one queue per process per
// interface is all spec.md §4.4's "clear every timer for an interface"
// use case requires.
const queueID = 0

// Timer names within queueID.
const (
	timerRetransmit = "retransmit"
	timerARP        = "arp"
	timerT1         = "t1"
	timerT2         = "t2"
	timerExpire     = "expire"
	timerCooldown   = "cooldown"
)

// Client drives the DHCP FSM for one interface, per spec.md §4.5.
type Client struct {
	cfg       *ClientConfig
	loop      *dhcpeloop.Loop
	transport Transport
	store     *dhcp4lease.Store
	prober    *arpprobe.Prober
	policy    *optionmask.Policy
	hook      HookRunner
	configure ConfigureFunc

	duid     clientid.DUID
	iaid     [4]byte
	clientID []byte

	rngSrc    io.Reader
	jitterRnd *mathrand.Rand

	// runID correlates every log line from one Start/Stop lifetime of
	// this Client across hook invocations and log aggregation, distinct
	// from the protocol-defined xid in every wire message.
	runID uuid.UUID

	st state
}

// NewClient constructs a Client for cfg. loop, transport, and store
// must not be nil. hook and configure may be nil (no-ops). rngSrc
// seeds xid generation (nil uses crypto/rand); jitterRnd seeds backoff
// and ARP timing jitter (nil uses a time-seeded source) — both
// injectable per spec.md §9's Open Question on RNG reproducibility.
func NewClient(
	cfg *ClientConfig,
	loop *dhcpeloop.Loop,
	transport Transport,
	store *dhcp4lease.Store,
	duid clientid.DUID,
	iaid [4]byte,
	hook HookRunner,
	configure ConfigureFunc,
	rngSrc io.Reader,
	jitterRnd *mathrand.Rand,
) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Annotate(err, "validating config: %w")
	}

	if transport == nil {
		return nil, errNoTransport
	}

	if jitterRnd == nil {
		jitterRnd = mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	}

	policy := &optionmask.Policy{}
	if err := optionmask.MakeOptionMask(&policy.Request, cfg.RequestPolicy.Request, true, false); err != nil {
		return nil, errors.Annotate(err, "request policy: %w")
	}
	if err := optionmask.MakeOptionMask(&policy.Require, cfg.RequestPolicy.Require, true, false); err != nil {
		return nil, errors.Annotate(err, "require policy: %w")
	}
	if err := optionmask.MakeOptionMask(&policy.Suppress, cfg.RequestPolicy.Suppress, true, false); err != nil {
		return nil, errors.Annotate(err, "suppress policy: %w")
	}

	c := &Client{
		cfg:       cfg,
		loop:      loop,
		transport: transport,
		store:     store,
		prober:    arpprobe.New(cfg.HardwareAddr, jitterRnd),
		policy:    policy,
		hook:      hook,
		configure: configure,
		duid:      duid,
		iaid:      iaid,
		rngSrc:    rngSrc,
		jitterRnd: jitterRnd,
		runID:     uuid.New(),
		st:        state{phase: PhaseInit},
	}
	c.clientID = clientIdentifier(cfg, duid, iaid)

	return c, nil
}

func (c *Client) logger() *slog.Logger {
	return c.cfg.Logger.With(
		slogutil.KeyPrefix, "dhcp4c",
		"interface", c.cfg.InterfaceName,
		"run_id", c.runID,
	)
}

// Start begins the FSM: REBOOT if a non-expired lease is persisted (or,
// with --lastlease, any readable persisted lease even if it has
// expired), else INIT.
func (c *Client) Start(now time.Time) error {
	if c.cfg.TestMode {
		return c.enterInit(now)
	}

	if c.store.Exists() {
		_, lease, err := c.store.Read()
		if err == nil && (!lease.Expired(now) || c.cfg.Persistence.LastLease) {
			c.st.prev = lease

			return c.enterReboot(now, lease)
		}
	}

	return c.enterInit(now)
}

// Stop tears down the FSM: if release is true, sends RELEASE first
// (RELEASING phase); otherwise simply clears timers and, unless
// Persistence.KeepOnStop, deletes the lease file.
func (c *Client) Stop(now time.Time, release bool) error {
	c.loop.RemoveQueueExcept(queueID)
	c.prober.Stop()

	if release && c.st.lease != nil && c.st.lease.ServerID != nil {
		return c.enterReleasing(now)
	}

	if !c.cfg.Persistence.KeepOnStop {
		_ = c.store.Delete()
	}

	c.st.phase = PhaseStopped
	c.emit(ReasonStop, c.st.prev, false)

	return nil
}

// newXID draws a fresh xid for a new acquisition round (DISCOVER or
// INFORM), per spec.md §4.5.1.
func (c *Client) newXID() (uint32, error) {
	return newXID(c.rngSrc)
}

func (c *Client) emit(reason Reason, lease *dhcp4lease.Lease, isNew bool) {
	if c.configure == nil {
		return
	}

	env := Env{}
	if isNew && c.st.offer != nil && lease != nil {
		env = BuildEnv(c.st.offer, lease, c.cfg.RequestPolicy.UseMSCSR)
	}

	c.configure(context.Background(), ConfigureEvent{Reason: reason, Env: env, Lease: lease})

	if c.hook != nil {
		go func() {
			_ = c.hook.Run(context.Background(), "", reason)
		}()
	}
}

func (c *Client) scheduleRetransmit(now time.Time, fn dhcpeloop.TimerFunc) {
	delay := backoff(c.st.attempts, c.jitterRnd)
	c.st.attempts++
	c.loop.AddTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerRetransmit}, now.Add(delay), fn)
}

// --- INIT / SELECTING ---------------------------------------------------

func (c *Client) enterInit(now time.Time) error {
	// A restart after an ARP-PROBE conflict keeps the conflict count so
	// the MaxConflicts threshold can be reached across DECLINE cycles.
	conflicts := 0
	if c.st.phase == PhaseARPProbe {
		conflicts = c.st.conflicts
	}

	c.st = state{phase: PhaseInit, prev: c.st.prev, conflicts: conflicts}
	c.loop.RemoveQueueExcept(queueID)

	xid, err := c.newXID()
	if err != nil {
		return errors.Annotate(err, "drawing xid: %w")
	}

	c.st.xid = xid
	c.st.phase = PhaseSelecting

	if c.cfg.Timeout > 0 {
		c.loop.AddTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerCooldown}, now.Add(c.cfg.Timeout), c.onSelectTimeout)
	}

	return c.sendDiscover(now)
}

// onSelectTimeout fires if SELECTING is still unresolved after
// Timeout: if IPv4LL is enabled, fall back to a self-assigned address
// per RFC 3927, else keep retrying DISCOVER indefinitely.
func (c *Client) onSelectTimeout(now time.Time) {
	if c.st.phase != PhaseSelecting {
		return
	}

	if c.cfg.ARP.IPv4LLEnabled {
		c.enterInitIPv4LL(now)
	}
}

func (c *Client) sendDiscover(now time.Time) error {
	m := buildDiscover(c.cfg.HardwareAddr, c.st.xid, c.clientID, c.policy, c.cfg.RequestedAddress)
	if err := c.transport.SendBroadcast(m.Encode()); err != nil {
		c.logger().WarnContext(context.Background(), "sending discover", slogutil.KeyError, err)
	}

	c.scheduleRetransmit(now, func(fireAt time.Time) { _ = c.sendDiscover(fireAt) })

	return nil
}

// handleOffer processes an OFFER received in SELECTING. If
// cfg.OfferTimeout is zero, the first acceptable OFFER is taken
// immediately; otherwise the first one is held, later OFFERs are
// ignored, and the held one is accepted when the timeout fires.
func (c *Client) handleOffer(now time.Time, m *dhcp4wire.Message) {
	if c.st.phase != PhaseSelecting {
		return
	}

	if !acceptable(m, c.st.xid, c.cfg.HardwareAddr, dhcp4wire.Offer) {
		return
	}

	if allOnes(m.YIAddr) {
		return
	}

	if _, ok := netip.AddrFromSlice(m.YIAddr.To4()); !ok {
		return
	}

	if c.cfg.OfferTimeout <= 0 {
		c.acceptOffer(now, m)

		return
	}

	if c.st.offer != nil {
		// Already holding a candidate; first offer wins.
		return
	}

	c.st.offer = m
	c.loop.AddTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerCooldown}, now.Add(c.cfg.OfferTimeout), func(fireAt time.Time) {
		if c.st.phase == PhaseSelecting && c.st.offer != nil {
			c.acceptOffer(fireAt, c.st.offer)
		}
	})
}

// acceptOffer moves SELECTING to REQUESTING for m, rejecting it first
// if its yiaddr is reject-listed or link-local.
func (c *Client) acceptOffer(now time.Time, m *dhcp4wire.Message) {
	addr, ok := netip.AddrFromSlice(m.YIAddr.To4())
	if !ok || isRejected(c.cfg, addr) || isLinkLocal(addr) {
		c.st.offer = nil

		return
	}

	c.st.offer = m
	c.st.phase = PhaseRequesting
	c.st.attempts = 0
	c.loop.RemoveTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerRetransmit})

	serverID, _ := m.Options.GetIP(dhcp4wire.OptionServerIdentifier)
	req := buildSelectingRequest(c.cfg.HardwareAddr, c.st.xid, c.clientID, c.policy, addr, netip.AddrFrom4(serverID))
	if err := c.transport.SendBroadcast(req.Encode()); err != nil {
		c.logger().WarnContext(context.Background(), "sending request", slogutil.KeyError, err)
	}

	c.scheduleRetransmit(now, func(fireAt time.Time) {
		if c.st.phase != PhaseRequesting {
			return
		}
		_ = c.enterInit(fireAt)
	})
}

// --- REQUESTING / ARP-PROBE / BOUND -------------------------------------

func (c *Client) handleAckInRequesting(now time.Time, m *dhcp4wire.Message) {
	if c.st.phase != PhaseRequesting {
		return
	}

	if !acceptable(m, c.st.xid, c.cfg.HardwareAddr, dhcp4wire.ACK, dhcp4wire.NAK) {
		return
	}

	if m.MessageType() == dhcp4wire.NAK {
		c.loop.AddTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerCooldown}, now.Add(dhcpARPFail), func(fireAt time.Time) {
			_ = c.enterInit(fireAt)
		})

		return
	}

	// An ACK whose yiaddr differs from the offered yiaddr is treated as
	// a NAK, per spec.md §4.5.4.
	if c.st.offer != nil && !m.YIAddr.Equal(c.st.offer.YIAddr) {
		c.loop.AddTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerCooldown}, now.Add(dhcpARPFail), func(fireAt time.Time) {
			_ = c.enterInit(fireAt)
		})

		return
	}

	c.loop.RemoveTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerRetransmit})
	c.st.offer = m
	lease := dhcp4lease.FromMessage(m, now)
	c.st.lease = lease

	addr, _ := netip.AddrFromSlice(m.YIAddr.To4())
	if needsARPProbe(c.cfg, addr) {
		c.enterARPProbe(now, addr)

		return
	}

	c.enterBound(now, m, lease, ReasonBound)
}

func (c *Client) enterARPProbe(now time.Time, addr netip.Addr) {
	c.st.phase = PhaseARPProbe
	c.st.probeAddr = addr
	next := c.prober.Begin(now, addr, false)
	c.loop.AddTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerARP}, next, c.onARPTimer)
}

func (c *Client) onARPTimer(now time.Time) {
	frame, ev := c.prober.Fire(now)
	if len(frame) > 0 {
		if err := c.transport.SendARP(frame); err != nil {
			c.logger().WarnContext(context.Background(), "sending arp", slogutil.KeyError, err)
		}
	}
	if ev != nil {
		c.handleProbeEvent(now, *ev)
	}

	// Re-arm after the event too: an IPv4LL Probed event is followed by
	// further announcements, and entering BOUND has cleared the timers.
	if d := c.prober.Deadline(); !d.IsZero() {
		c.loop.AddTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerARP}, d, c.onARPTimer)
	}
}

func (c *Client) handleProbeEvent(now time.Time, ev arpprobe.Event) {
	switch ev.Kind {
	case arpprobe.Probed:
		switch c.st.phase {
		case PhaseARPProbe:
			c.enterBound(now, c.st.offer, c.st.lease, ReasonBound)
		case PhaseInitIPv4LL:
			c.enterIPv4LLBound(now)
		}
	case arpprobe.Conflict:
		c.st.conflicts++
		if c.st.phase == PhaseInitIPv4LL {
			if c.st.conflicts > c.cfg.maxConflicts() {
				c.st.phase = PhaseStopped
				c.emit(ReasonFail, nil, false)

				return
			}

			c.enterInitIPv4LL(now)

			return
		}

		c.sendDeclineAndCooldown(now)
	case arpprobe.Defended:
		// Address kept; nothing further to do.
	case arpprobe.Lost:
		c.st.lease = nil
		c.emit(ReasonExpire, c.st.prev, false)
		_ = c.enterInit(now)
	}
}

// --- INIT_IPV4LL -----------------------------------------------------

// enterInitIPv4LL begins RFC 3927 self-assignment: pick a pseudo-random
// 169.254.0.0/16 address and probe it, announcing on success, per
// spec.md §4.5.2's INIT_IPV4LL fallback.
func (c *Client) enterInitIPv4LL(now time.Time) {
	c.st.phase = PhaseInitIPv4LL
	addr := randomLinkLocalAddr(c.jitterRnd)
	c.st.probeAddr = addr
	next := c.prober.Begin(now, addr, true)
	c.loop.AddTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerARP}, next, c.onARPTimer)
}

// randomLinkLocalAddr draws an address from 169.254.1.0-169.254.254.255,
// excluding the first and last /24s per RFC 3927 §2.1.
func randomLinkLocalAddr(rnd *mathrand.Rand) netip.Addr {
	b2 := byte(1 + rnd.Intn(254))
	b3 := byte(rnd.Intn(256))

	return netip.AddrFrom4([4]byte{169, 254, b2, b3})
}

// enterIPv4LLBound synthesizes a Lease for the self-assigned address
// (no server, infinite lifetime) and enters BOUND, per spec.md §4.5.2.
func (c *Client) enterIPv4LLBound(now time.Time) {
	addr := c.st.probeAddr
	a4 := addr.As4()

	lease := &dhcp4lease.Lease{
		YIAddr:    net.IP(a4[:]),
		Netmask:   net.CIDRMask(16, 32),
		Broadcast: net.IPv4(169, 254, 255, 255),
		LeaseTime: dhcp4lease.InfiniteLease,
		T1:        dhcp4lease.InfiniteLease,
		T2:        dhcp4lease.InfiniteLease,
		BoundAt:   now,
	}

	c.enterBound(now, nil, lease, ReasonIPv4LL)
}

func (c *Client) sendDeclineAndCooldown(now time.Time) {
	var serverID netip.Addr
	if c.st.offer != nil {
		if sid, ok := c.st.offer.Options.GetIP(dhcp4wire.OptionServerIdentifier); ok {
			serverID = netip.AddrFrom4(sid)
		}
	}

	decl := buildDecline(c.cfg.HardwareAddr, c.st.xid, c.clientID, c.st.probeAddr, serverID)
	if err := c.transport.SendBroadcast(decl.Encode()); err != nil {
		c.logger().WarnContext(context.Background(), "sending decline", slogutil.KeyError, err)
	}

	if c.st.conflicts > c.cfg.maxConflicts() {
		c.logger().ErrorContext(context.Background(), "too many arp conflicts, giving up")
		c.st.phase = PhaseStopped
		c.emit(ReasonFail, nil, false)

		return
	}

	c.loop.AddTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerCooldown}, now.Add(10*time.Second), func(fireAt time.Time) {
		_ = c.enterInit(fireAt)
	})
}

func (c *Client) enterBound(now time.Time, m *dhcp4wire.Message, lease *dhcp4lease.Lease, reason Reason) {
	c.loop.RemoveQueueExcept(queueID)
	c.st.phase = PhaseBound
	c.st.offer = m
	c.st.lease = lease
	c.st.attempts = 0

	if !c.cfg.TestMode && m != nil {
		if raw := m.Encode(); len(raw) > 0 {
			if err := c.store.Write(raw); err != nil {
				c.logger().WarnContext(context.Background(), "writing lease file", slogutil.KeyError, err)
			}
		}
	}

	c.armLeaseTimers(now, lease)
	c.emit(reason, lease, true)
	c.st.prev = lease
}

// armLeaseTimers schedules T1/T2/EXPIRE from bound_at, guaranteeing
// exactly one of {T1, T2, EXPIRE} is the soonest deadline, per spec.md
// §8: an infinite lease arms none of them.
func (c *Client) armLeaseTimers(now time.Time, lease *dhcp4lease.Lease) {
	if lease.Infinite() {
		return
	}

	c.loop.AddTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerT1}, lease.RenewAt(), func(fireAt time.Time) {
		c.enterRenewing(fireAt)
	})
	c.loop.AddTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerT2}, lease.RebindAt(), func(fireAt time.Time) {
		c.enterRebinding(fireAt)
	})
	c.loop.AddTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerExpire}, lease.ExpiresAt(), func(fireAt time.Time) {
		c.st.lease = nil
		c.emit(ReasonExpire, c.st.prev, false)
		_ = c.enterInit(fireAt)
	})
}

// --- RENEWING / REBINDING ------------------------------------------------

func (c *Client) enterRenewing(now time.Time) {
	if c.st.phase != PhaseBound && c.st.phase != PhaseRenewing {
		return
	}

	c.st.phase = PhaseRenewing
	c.loop.RemoveTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerT1})
	c.sendRenewRequest(now)
}

func (c *Client) sendRenewRequest(now time.Time) {
	lease := c.st.lease
	req := buildRenewRequest(c.cfg.HardwareAddr, c.st.xid, c.clientID, c.policy, netip.MustParseAddr(lease.YIAddr.String()))
	if err := c.transport.SendUnicast(req.Encode(), netip.MustParseAddr(lease.ServerID.String())); err != nil {
		c.logger().WarnContext(context.Background(), "sending renew", slogutil.KeyError, err)
	}

	remaining := lease.RebindAt().Sub(now)
	delay := renewRetransmit(remaining)
	c.loop.AddTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerRetransmit}, now.Add(delay), func(fireAt time.Time) {
		if c.st.phase == PhaseRenewing {
			c.sendRenewRequest(fireAt)
		}
	})
}

func (c *Client) enterRebinding(now time.Time) {
	if c.st.phase == PhaseStopped {
		return
	}

	c.st.phase = PhaseRebinding
	c.loop.RemoveTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerT2})
	c.loop.RemoveTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerRetransmit})
	c.sendRebindRequest(now)
}

func (c *Client) sendRebindRequest(now time.Time) {
	lease := c.st.lease
	req := buildRebindRequest(c.cfg.HardwareAddr, c.st.xid, c.clientID, c.policy, netip.MustParseAddr(lease.YIAddr.String()))
	if err := c.transport.SendBroadcast(req.Encode()); err != nil {
		c.logger().WarnContext(context.Background(), "sending rebind", slogutil.KeyError, err)
	}

	remaining := lease.ExpiresAt().Sub(now)
	delay := renewRetransmit(remaining)
	c.loop.AddTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerRetransmit}, now.Add(delay), func(fireAt time.Time) {
		if c.st.phase == PhaseRebinding {
			c.sendRebindRequest(fireAt)
		}
	})
}

func (c *Client) handleAckInRenewRebind(now time.Time, m *dhcp4wire.Message) {
	if c.st.phase != PhaseRenewing && c.st.phase != PhaseRebinding {
		return
	}

	if !acceptable(m, c.st.xid, c.cfg.HardwareAddr, dhcp4wire.ACK, dhcp4wire.NAK) {
		return
	}

	if m.MessageType() == dhcp4wire.NAK {
		c.st.lease = nil
		c.emit(ReasonExpire, c.st.prev, false)
		c.loop.AddTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerCooldown}, now.Add(dhcpARPFail), func(fireAt time.Time) {
			_ = c.enterInit(fireAt)
		})

		return
	}

	lease := dhcp4lease.FromMessage(m, now)
	reason := ReasonRenew
	if c.st.phase == PhaseRebinding {
		reason = ReasonRebind
	}
	c.enterBound(now, m, lease, reason)
}

// --- REBOOT ---------------------------------------------------------------

func (c *Client) enterReboot(now time.Time, lease *dhcp4lease.Lease) error {
	c.st.phase = PhaseReboot
	c.st.lease = lease

	xid, err := c.newXID()
	if err != nil {
		return errors.Annotate(err, "drawing xid: %w")
	}
	c.st.xid = xid

	addr, _ := netip.AddrFromSlice(lease.YIAddr.To4())
	req := buildRebootRequest(c.cfg.HardwareAddr, c.st.xid, c.clientID, c.policy, addr)
	if err = c.transport.SendBroadcast(req.Encode()); err != nil {
		c.logger().WarnContext(context.Background(), "sending reboot request", slogutil.KeyError, err)
	}

	deadline := c.cfg.RebootTimeout
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	c.loop.AddTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerRetransmit}, now.Add(deadline), func(fireAt time.Time) {
		if c.st.phase == PhaseReboot {
			_ = c.enterInit(fireAt)
		}
	})

	return nil
}

func (c *Client) handleAckInReboot(now time.Time, m *dhcp4wire.Message) {
	if c.st.phase != PhaseReboot {
		return
	}

	if !acceptable(m, c.st.xid, c.cfg.HardwareAddr, dhcp4wire.ACK, dhcp4wire.NAK) {
		return
	}

	if m.MessageType() == dhcp4wire.NAK {
		_ = c.enterInit(now)

		return
	}

	c.loop.RemoveTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerRetransmit})
	lease := dhcp4lease.FromMessage(m, now)

	addr, _ := netip.AddrFromSlice(m.YIAddr.To4())
	if needsARPProbe(c.cfg, addr) {
		c.st.offer = m
		c.st.lease = lease
		c.enterARPProbe(now, addr)

		return
	}

	c.enterBound(now, m, lease, ReasonReboot)
}

// --- INFORM -----------------------------------------------------------

// StartInform requests configuration (DNS, routes, etc.) for a
// statically-assigned addr without leasing one, per spec.md §4.5.2's
// INFORM phase.
func (c *Client) StartInform(now time.Time, addr netip.Addr) error {
	c.st = state{phase: PhaseInform, prev: c.st.prev, probeAddr: addr}

	xid, err := c.newXID()
	if err != nil {
		return errors.Annotate(err, "drawing xid: %w")
	}
	c.st.xid = xid

	return c.sendInform(now)
}

func (c *Client) sendInform(now time.Time) error {
	m := buildInform(c.cfg.HardwareAddr, c.st.xid, c.clientID, c.policy, c.st.probeAddr)
	if err := c.transport.SendBroadcast(m.Encode()); err != nil {
		c.logger().WarnContext(context.Background(), "sending inform", slogutil.KeyError, err)
	}

	c.scheduleRetransmit(now, func(fireAt time.Time) {
		if c.st.phase == PhaseInform {
			_ = c.sendInform(fireAt)
		}
	})

	return nil
}

func (c *Client) handleAckInInform(now time.Time, m *dhcp4wire.Message) {
	if c.st.phase != PhaseInform {
		return
	}

	if !acceptable(m, c.st.xid, c.cfg.HardwareAddr, dhcp4wire.ACK) {
		return
	}

	c.loop.RemoveTimer(dhcpeloop.TimerKey{Queue: queueID, Name: timerRetransmit})

	lease := dhcp4lease.FromMessage(m, now)
	a4 := c.st.probeAddr.As4()
	lease.YIAddr = net.IP(a4[:])
	lease.LeaseTime = dhcp4lease.InfiniteLease
	lease.T1 = dhcp4lease.InfiniteLease
	lease.T2 = dhcp4lease.InfiniteLease

	c.st.offer = m
	c.st.lease = lease
	c.emit(ReasonInform, lease, true)
}

// --- RELEASING --------------------------------------------------------

func (c *Client) enterReleasing(now time.Time) error {
	c.st.phase = PhaseReleasing
	lease := c.st.lease

	serverID, _ := netip.AddrFromSlice(lease.ServerID.To4())
	yiaddr, _ := netip.AddrFromSlice(lease.YIAddr.To4())
	rel := buildRelease(c.cfg.HardwareAddr, c.st.xid, c.clientID, yiaddr, serverID)
	if err := c.transport.SendUnicast(rel.Encode(), serverID); err != nil {
		c.logger().WarnContext(context.Background(), "sending release", slogutil.KeyError, err)
	}

	if !c.cfg.Persistence.KeepOnStop {
		_ = c.store.Delete()
	}

	c.st.phase = PhaseStopped
	c.emit(ReasonRelease, lease, false)

	return nil
}

// --- Dispatch --------------------------------------------------------

// HandleDHCP decodes a received UDP payload as a DHCP message and
// dispatches it to the current phase's handler, per spec.md §2's data
// flow "kernel raw frames → C1.validate → C5.handle → ...". Callers
// demultiplex by EtherType/UDP port before calling this or
// [Client.HandleARP].
func (c *Client) HandleDHCP(now time.Time, raw []byte) {
	m, err := dhcp4wire.Decode(raw)
	if err != nil {
		// Protocol error: drop, no state change, per spec.md §7.
		return
	}

	switch m.MessageType() {
	case dhcp4wire.Offer:
		c.handleOffer(now, m)
	case dhcp4wire.ACK, dhcp4wire.NAK:
		switch c.st.phase {
		case PhaseRequesting:
			c.handleAckInRequesting(now, m)
		case PhaseRenewing, PhaseRebinding:
			c.handleAckInRenewRebind(now, m)
		case PhaseReboot:
			c.handleAckInReboot(now, m)
		case PhaseInform:
			c.handleAckInInform(now, m)
		}
	}
}

// HandleARP feeds a received ARP frame to the conflict detector.
func (c *Client) HandleARP(now time.Time, raw []byte) {
	f, err := arpprobe.DecodeEthernet(raw)
	if err != nil {
		return
	}

	frame, ev := c.prober.HandleFrame(now, f)
	if len(frame) > 0 {
		if err = c.transport.SendARP(frame); err != nil {
			c.logger().WarnContext(context.Background(), "sending arp defense", slogutil.KeyError, err)
		}
	}
	if ev != nil {
		c.handleProbeEvent(now, *ev)
	}
}

// Phase reports the FSM's current phase, chiefly for tests and status
// reporting.
func (c *Client) Phase() Phase {
	return c.st.phase
}

// Lease reports the FSM's currently-accepted lease, if any.
func (c *Client) Lease() *dhcp4lease.Lease {
	return c.st.lease
}
