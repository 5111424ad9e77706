// Package dhcp4c implements the per-interface DHCPv4 client state
// machine (spec.md §4.5): it orchestrates the wire codec
// ([dhcp4wire]), the lease store ([dhcp4lease]), the ARP conflict
// detector ([arpprobe]), the event loop ([dhcpeloop]), the client
// identifier ([clientid]), and the option mask ([optionmask]) to
// acquire, renew, and relinquish an IPv4 lease on one interface.
// Grounded on the ambient configuration/validation conventions of
// [dhcpsvc.Config] (golibs/validate, slog.Logger, time.Duration
// fields) and the phase/transition design of the original dhcpcd.c.
package dhcp4c

import (
	"net"
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
	"log/slog"
)

// ClientConfig is the configuration of one interface's DHCP client, per
// spec.md §6 and the supplemented features of SPEC_FULL.md §12 (none of
// which are parsed here: this struct is the parsed, validated result a
// caller's CLI/config layer is expected to produce).
type ClientConfig struct {
	// Logger receives structured client events. It must not be nil.
	Logger *slog.Logger

	// InterfaceName is the name of the network interface this client
	// runs on. It must not be empty.
	InterfaceName string

	// HardwareAddr is the interface's link-layer address. It must not
	// be empty.
	HardwareAddr net.HardwareAddr

	// StateDir is the directory holding the lease file (spec.md §6.2).
	// It must not be empty.
	StateDir string

	// ConfigDir is the directory holding the DUID file (spec.md §6.3).
	// It must not be empty.
	ConfigDir string

	// PackageName is the file-name prefix used for the lease, DUID,
	// and PID files (the "package" of spec.md §6.2-§6.4). It must not
	// be empty.
	PackageName string

	// ClientID, if non-nil, is sent as option 61 verbatim, overriding
	// the DUID/legacy derivation of spec.md §4.6.
	ClientID []byte

	// RequestPolicy controls which options are requested, required,
	// and suppressed (C7).
	RequestPolicy RequestPolicy

	// ARP controls ARP probing and IPv4LL fallback (C3).
	ARP ARPPolicy

	// Persistence controls lease-file behavior (C2), per SPEC_FULL.md
	// §12.
	Persistence Persistence

	// RejectedAddresses lists offered addresses that must never be
	// accepted, per SPEC_FULL.md §12's "reject-list".
	RejectedAddresses []netip.Prefix

	// RequestedAddress, if valid, is sent as option 50 in the initial
	// DISCOVER, per SPEC_FULL.md §12's "--request".
	RequestedAddress netip.Addr

	// OfferTimeout is how long SELECTING holds the first acceptable
	// OFFER before accepting it; later OFFERs are ignored. Zero means
	// "accept the first offer immediately".
	OfferTimeout time.Duration

	// Timeout bounds how long SELECTING waits for an acceptable OFFER
	// before falling back to INIT_IPV4LL when ARP.IPv4LLEnabled is set;
	// otherwise DISCOVER keeps being retransmitted. It does not bound
	// REQUESTING or REBOOT (see RebootTimeout).
	Timeout time.Duration

	// RebootTimeout bounds how long REBOOT waits for a reply before
	// falling back to INIT, per spec.md §4.5.2.
	RebootTimeout time.Duration

	// MaxConflicts is the number of consecutive ARP conflicts, counted
	// across DECLINE-and-restart cycles, before the client stops and
	// reports, per
	// spec.md §4.5.4. Zero means the default of 10.
	MaxConflicts int

	// TestMode, if true, makes Start ignore any persisted lease (no
	// REBOOT) and keeps BOUND from writing the lease file. The rest of
	// the acquisition runs as usual: the client does not stop after the
	// first OFFER, goes on through REQUESTING to BOUND, and still calls
	// the configure callback and the hook.
	TestMode bool
}

// type check
var _ validate.Interface = (*ClientConfig)(nil)

// Validate implements the [validate.Interface] interface for
// *ClientConfig.
func (c *ClientConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	errs := []error{
		validate.NotNil("Logger", c.Logger),
		validate.NotEmpty("InterfaceName", c.InterfaceName),
		validate.NotEmpty("StateDir", c.StateDir),
		validate.NotEmpty("ConfigDir", c.ConfigDir),
		validate.NotEmpty("PackageName", c.PackageName),
		validate.NotNegative("OfferTimeout", c.OfferTimeout),
		validate.NotNegative("Timeout", c.Timeout),
		validate.NotNegative("RebootTimeout", c.RebootTimeout),
		validate.NotNegative("MaxConflicts", c.MaxConflicts),
	}

	if len(c.HardwareAddr) == 0 {
		errs = append(errs, errors.Error("HardwareAddr: must not be empty"))
	}

	errs = validate.Append(errs, "ARP", &c.ARP)

	return errors.Join(errs...)
}

// maxConflicts returns the effective conflict threshold, defaulting to
// 10 per spec.md §4.5.4.
func (c *ClientConfig) maxConflicts() int {
	if c.MaxConflicts <= 0 {
		return 10
	}

	return c.MaxConflicts
}

// ARPPolicy controls RFC 5227 probing, per spec.md §4.5.2.
type ARPPolicy struct {
	// Enabled turns on ARP-PROBE before BOUND for a privately-addressed
	// offer.
	Enabled bool

	// IPv4LLEnabled turns on the INIT_IPV4LL fallback when SELECTING
	// times out.
	IPv4LLEnabled bool
}

// type check
var _ validate.Interface = (*ARPPolicy)(nil)

// Validate implements the [validate.Interface] interface for
// *ARPPolicy. It has no invariants of its own beyond being non-nil;
// the method exists so [ClientConfig.Validate] can nest it uniformly.
func (p *ARPPolicy) Validate() (err error) {
	if p == nil {
		return errors.ErrNoValue
	}

	return nil
}

// Persistence controls lease-file behavior, per SPEC_FULL.md §12.
type Persistence struct {
	// KeepOnStop, if true, leaves the lease file in place when the
	// client is stopped without a RELEASE (the original's
	// "persistent-lease" mode).
	KeepOnStop bool

	// LastLease, if true, loads a persisted lease at startup for
	// INIT-REBOOT even if that lease has already expired.
	LastLease bool
}

// RequestPolicy is the caller-facing shape of the three C7 masks:
// which options to request, require, and suppress, expressed as
// comma/space-separated name-or-numeric-code lists, per spec.md §4.7.
type RequestPolicy struct {
	// Request lists options to add to the Parameter Request List.
	Request string

	// Require lists options that, if absent from an otherwise
	// acceptable reply, disqualify it (not enforced by C7 itself; C7
	// only tracks the mask, per spec.md §4.7's "three masks per
	// interface").
	Require string

	// Suppress lists options to withhold even if requested elsewhere.
	Suppress string

	// UseMSCSR allows option 249 (MS-CSR) to be honored when option
	// 121 is absent, per the Route type's precedence rule in spec.md
	// §3.
	UseMSCSR bool
}
