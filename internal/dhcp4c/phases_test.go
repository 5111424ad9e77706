package dhcp4c

import (
	"bytes"
	"net"
	"net/netip"
	mathrand "math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdguardTeam/dhcp4c/internal/dhcp4wire"
)

func TestNewXID_deterministicSource(t *testing.T) {
	t.Parallel()

	src := bytes.NewReader([]byte{0x01, 0x02, 0x03, 0x04})
	xid, err := newXID(src)
	require.NoError(t, err)
	assert.EqualValues(t, 0x01020304, xid)
}

func TestNewXID_nilUsesCryptoRand(t *testing.T) {
	t.Parallel()

	xid1, err := newXID(nil)
	require.NoError(t, err)
	xid2, err := newXID(nil)
	require.NoError(t, err)

	// Astronomically unlikely to collide; a cheap check that newXID
	// isn't returning a fixed value when src is nil.
	assert.NotEqual(t, xid1, xid2)
}

func TestBackoff_doublesAndCaps(t *testing.T) {
	t.Parallel()

	rnd := mathrand.New(mathrand.NewSource(1))

	d0 := backoff(0, rnd)
	d1 := backoff(1, rnd)
	d6 := backoff(6, rnd) // 4s * 2^6 = 256s, well past the 64s cap

	assert.InDelta(t, float64(dhcpBase), float64(d0), float64(jitterSpan))
	assert.InDelta(t, float64(2*dhcpBase), float64(d1), float64(jitterSpan))
	assert.InDelta(t, float64(dhcpMax), float64(d6), float64(jitterSpan))
}

func TestRenewRetransmit_halvesDownToFloor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 150*time.Second, renewRetransmit(300*time.Second))
	assert.Equal(t, 75*time.Second, renewRetransmit(150*time.Second))
	assert.Equal(t, 60*time.Second, renewRetransmit(90*time.Second))
	assert.Equal(t, 60*time.Second, renewRetransmit(10*time.Second))
}

func TestIsLinkLocal(t *testing.T) {
	t.Parallel()

	assert.True(t, isLinkLocal(netip.MustParseAddr("169.254.1.2")))
	assert.False(t, isLinkLocal(netip.MustParseAddr("192.0.2.1")))
}

func TestIsRejected(t *testing.T) {
	t.Parallel()

	cfg := &ClientConfig{
		RejectedAddresses: []netip.Prefix{netip.MustParsePrefix("192.0.2.0/24")},
	}

	assert.True(t, isRejected(cfg, netip.MustParseAddr("192.0.2.5")))
	assert.False(t, isRejected(cfg, netip.MustParseAddr("203.0.113.5")))
}

func TestClientIdentifier_overrideWins(t *testing.T) {
	t.Parallel()

	cfg := &ClientConfig{ClientID: []byte{0xaa, 0xbb}}
	got := clientIdentifier(cfg, duidFixture(t), [4]byte{1, 2, 3, 4})
	assert.Equal(t, []byte{0xaa, 0xbb}, got)
}

func TestClientIdentifier_derivedFromDUID(t *testing.T) {
	t.Parallel()

	cfg := &ClientConfig{}
	got := clientIdentifier(cfg, duidFixture(t), [4]byte{1, 2, 3, 4})
	require.NotEmpty(t, got)
	assert.Equal(t, byte(0xff), got[0])
}

func TestAcceptable(t *testing.T) {
	t.Parallel()

	hw := net.HardwareAddr{2, 0, 0, 0, 0, 1}

	m := dhcp4wire.NewMessage()
	m.XID = 42
	m.CHAddr = hw
	m.Options.SetByte(dhcp4wire.OptionDHCPMessageType, byte(dhcp4wire.Offer))

	assert.True(t, acceptable(m, 42, hw, dhcp4wire.Offer))
	assert.False(t, acceptable(m, 43, hw, dhcp4wire.Offer), "xid mismatch")
	assert.False(t, acceptable(m, 42, net.HardwareAddr{9, 9, 9, 9, 9, 9}, dhcp4wire.Offer), "chaddr mismatch")
	assert.False(t, acceptable(m, 42, hw, dhcp4wire.ACK), "message type not allowed")
}

func TestAllOnes(t *testing.T) {
	t.Parallel()

	assert.True(t, allOnes(net.IPv4(255, 255, 255, 255)))
	assert.False(t, allOnes(net.IPv4(192, 0, 2, 1)))
}

func TestNeedsARPProbe(t *testing.T) {
	t.Parallel()

	cfg := &ClientConfig{ARP: ARPPolicy{Enabled: true}}
	assert.True(t, needsARPProbe(cfg, netip.MustParseAddr("192.0.2.5")))
	assert.False(t, needsARPProbe(cfg, netip.MustParseAddr("169.254.1.1")), "link-local is exempt")

	cfg.ARP.Enabled = false
	assert.False(t, needsARPProbe(cfg, netip.MustParseAddr("192.0.2.5")))
}
