package dhcp4c

import (
	"net"
	"net/netip"

	"github.com/AdguardTeam/dhcp4c/internal/dhcp4wire"
	"github.com/AdguardTeam/dhcp4c/internal/optionmask"
)

// newBaseMessage builds the fixed BOOTP header common to every message
// this client sends: BOOTREQUEST, Ethernet hardware type, the
// interface's hardware address, and a fresh xid.
func newBaseMessage(hwaddr net.HardwareAddr, xid uint32) *dhcp4wire.Message {
	m := dhcp4wire.NewMessage()
	m.Op = dhcp4wire.OpBootRequest
	m.HType = 1 // ARPHRD_ETHER
	m.HLen = byte(len(hwaddr))
	m.CHAddr = hwaddr
	m.XID = xid

	return m
}

// setCommonOptions appends the options every DISCOVER/REQUEST/INFORM
// shares: message type, client-id, and the Parameter Request List, in
// the canonical emission order spec.md §4.1 documents (53, 61, 55).
func setCommonOptions(m *dhcp4wire.Message, mt dhcp4wire.MessageType, clientID []byte, policy *optionmask.Policy) {
	m.Options.SetByte(dhcp4wire.OptionDHCPMessageType, byte(mt))

	if len(clientID) > 0 {
		m.Options.Set(dhcp4wire.OptionClientIdentifier, clientID)
	}

	policy.SetParameterRequestList(&m.Options)
}

// buildDiscover constructs a DISCOVER: broadcast, no ciaddr, optional
// requested-address per SPEC_FULL.md §12's "--request".
func buildDiscover(
	hwaddr net.HardwareAddr,
	xid uint32,
	clientID []byte,
	policy *optionmask.Policy,
	requested netip.Addr,
) *dhcp4wire.Message {
	m := newBaseMessage(hwaddr, xid)
	m.Flags = dhcp4wire.FlagBroadcast
	setCommonOptions(m, dhcp4wire.Discover, clientID, policy)

	if requested.IsValid() {
		m.Options.SetIP(dhcp4wire.OptionRequestedIPAddress, requested.As4())
	}

	return m
}

// buildSelectingRequest constructs the REQUEST sent from SELECTING:
// broadcast, requested-address = offered yiaddr, server-id = the
// offering server, per spec.md §4.5.2.
func buildSelectingRequest(
	hwaddr net.HardwareAddr,
	xid uint32,
	clientID []byte,
	policy *optionmask.Policy,
	offeredAddr netip.Addr,
	serverID netip.Addr,
) *dhcp4wire.Message {
	m := newBaseMessage(hwaddr, xid)
	m.Flags = dhcp4wire.FlagBroadcast
	setCommonOptions(m, dhcp4wire.Request, clientID, policy)
	m.Options.SetIP(dhcp4wire.OptionRequestedIPAddress, offeredAddr.As4())
	m.Options.SetIP(dhcp4wire.OptionServerIdentifier, serverID.As4())

	return m
}

// buildRebootRequest constructs the REQUEST sent from REBOOT:
// broadcast, requested-address = the persisted yiaddr, no server-id,
// per spec.md §4.5.2.
func buildRebootRequest(
	hwaddr net.HardwareAddr,
	xid uint32,
	clientID []byte,
	policy *optionmask.Policy,
	persistedAddr netip.Addr,
) *dhcp4wire.Message {
	m := newBaseMessage(hwaddr, xid)
	m.Flags = dhcp4wire.FlagBroadcast
	setCommonOptions(m, dhcp4wire.Request, clientID, policy)
	m.Options.SetIP(dhcp4wire.OptionRequestedIPAddress, persistedAddr.As4())

	return m
}

// buildRenewRequest constructs the unicast REQUEST sent from RENEWING:
// ciaddr = yiaddr, no server-id, no requested-address, per spec.md
// §4.5.2 scenario 4.
func buildRenewRequest(
	hwaddr net.HardwareAddr,
	xid uint32,
	clientID []byte,
	policy *optionmask.Policy,
	yiaddr netip.Addr,
) *dhcp4wire.Message {
	m := newBaseMessage(hwaddr, xid)
	m.CIAddr = net.IP(yiaddrBytes(yiaddr))
	setCommonOptions(m, dhcp4wire.Request, clientID, policy)

	return m
}

// buildRebindRequest constructs the broadcast REQUEST sent from
// REBINDING: ciaddr = yiaddr, per spec.md §4.5.2.
func buildRebindRequest(
	hwaddr net.HardwareAddr,
	xid uint32,
	clientID []byte,
	policy *optionmask.Policy,
	yiaddr netip.Addr,
) *dhcp4wire.Message {
	m := newBaseMessage(hwaddr, xid)
	m.Flags = dhcp4wire.FlagBroadcast
	m.CIAddr = net.IP(yiaddrBytes(yiaddr))
	setCommonOptions(m, dhcp4wire.Request, clientID, policy)

	return m
}

// buildDecline constructs a DECLINE for a conflicting offered address,
// per spec.md §4.5.2 "ARP-PROBE ... On CONFLICT, send DECLINE".
func buildDecline(
	hwaddr net.HardwareAddr,
	xid uint32,
	clientID []byte,
	declinedAddr netip.Addr,
	serverID netip.Addr,
) *dhcp4wire.Message {
	m := newBaseMessage(hwaddr, xid)
	m.Options.SetByte(dhcp4wire.OptionDHCPMessageType, byte(dhcp4wire.Decline))
	if len(clientID) > 0 {
		m.Options.Set(dhcp4wire.OptionClientIdentifier, clientID)
	}
	m.Options.SetIP(dhcp4wire.OptionRequestedIPAddress, declinedAddr.As4())
	if serverID.IsValid() {
		m.Options.SetIP(dhcp4wire.OptionServerIdentifier, serverID.As4())
	}

	return m
}

// buildRelease constructs a unicast RELEASE, per spec.md §4.5.2
// "RELEASING — send one unicast RELEASE to server-id".
func buildRelease(
	hwaddr net.HardwareAddr,
	xid uint32,
	clientID []byte,
	yiaddr netip.Addr,
	serverID netip.Addr,
) *dhcp4wire.Message {
	m := newBaseMessage(hwaddr, xid)
	m.CIAddr = net.IP(yiaddrBytes(yiaddr))
	m.Options.SetByte(dhcp4wire.OptionDHCPMessageType, byte(dhcp4wire.Release))
	if len(clientID) > 0 {
		m.Options.Set(dhcp4wire.OptionClientIdentifier, clientID)
	}
	if serverID.IsValid() {
		m.Options.SetIP(dhcp4wire.OptionServerIdentifier, serverID.As4())
	}

	return m
}

// buildInform constructs an INFORM for a caller-provided static
// address, per spec.md §4.5.2.
func buildInform(
	hwaddr net.HardwareAddr,
	xid uint32,
	clientID []byte,
	policy *optionmask.Policy,
	addr netip.Addr,
) *dhcp4wire.Message {
	m := newBaseMessage(hwaddr, xid)
	m.CIAddr = net.IP(yiaddrBytes(addr))
	setCommonOptions(m, dhcp4wire.Inform, clientID, policy)

	return m
}

func yiaddrBytes(addr netip.Addr) []byte {
	a4 := addr.As4()

	return a4[:]
}
