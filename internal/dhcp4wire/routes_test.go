package dhcp4wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdguardTeam/dhcp4c/internal/dhcp4wire"
)

// TestRoutes_csrOverridesRoutersAndStatic implements scenario 2 of
// spec.md §8: a CSR option present together with routers and
// static-route options must yield only the CSR-derived routes.
func TestRoutes_csrOverridesRoutersAndStatic(t *testing.T) {
	t.Parallel()

	var o dhcp4wire.Options
	o.Set(dhcp4wire.OptionClasslessStaticRoute, []byte{
		24, 10, 0, 0, 192, 0, 2, 1,
		0, 192, 0, 2, 1,
	})
	o.SetIP(dhcp4wire.OptionRouter, [4]byte{192, 0, 2, 254})
	o.Set(dhcp4wire.OptionStaticRoute, []byte{
		10, 1, 0, 0, 192, 0, 2, 254,
	})

	routes, err := o.Routes(false)
	require.NoError(t, err)
	require.Len(t, routes, 2)

	assert.Equal(t, [4]byte{10, 0, 0, 0}, routes[0].Destination)
	assert.Equal(t, [4]byte{255, 255, 255, 0}, routes[0].Netmask)
	assert.Equal(t, [4]byte{192, 0, 2, 1}, routes[0].Gateway)

	assert.Equal(t, [4]byte{0, 0, 0, 0}, routes[1].Destination)
	assert.Equal(t, [4]byte{0, 0, 0, 0}, routes[1].Netmask)
	assert.Equal(t, [4]byte{192, 0, 2, 1}, routes[1].Gateway)
}

func TestRoutes_staticThenRouters(t *testing.T) {
	t.Parallel()

	var o dhcp4wire.Options
	o.Set(dhcp4wire.OptionStaticRoute, []byte{
		10, 0, 0, 0, 192, 0, 2, 1,
	})
	o.SetIP(dhcp4wire.OptionRouter, [4]byte{192, 0, 2, 254})

	routes, err := o.Routes(false)
	require.NoError(t, err)
	require.Len(t, routes, 2)

	assert.Equal(t, [4]byte{10, 0, 0, 0}, routes[0].Destination)
	assert.Equal(t, [4]byte{255, 0, 0, 0}, routes[0].Netmask)
	assert.Equal(t, [4]byte{192, 0, 2, 254}, routes[1].Gateway)
}

func TestRoutes_csrPrefixTooLongRejected(t *testing.T) {
	t.Parallel()

	var o dhcp4wire.Options
	o.Set(dhcp4wire.OptionClasslessStaticRoute, []byte{33, 10, 0, 0, 0, 192, 0, 2, 1})

	_, err := o.Routes(false)
	assert.Error(t, err)
}

func TestRoutes_msCSRUsedOnlyWhenRequested(t *testing.T) {
	t.Parallel()

	var o dhcp4wire.Options
	o.Set(dhcp4wire.OptionMSClasslessStaticRoute, []byte{
		24, 10, 0, 0, 192, 0, 2, 1,
	})

	routes, err := o.Routes(false)
	require.NoError(t, err)
	assert.Empty(t, routes)

	routes, err = o.Routes(true)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, [4]byte{10, 0, 0, 0}, routes[0].Destination)
}

func TestSetCSR_roundTrip(t *testing.T) {
	t.Parallel()

	want := []dhcp4wire.Route{
		{Destination: [4]byte{10, 0, 0, 0}, Netmask: [4]byte{255, 255, 255, 0}, Gateway: [4]byte{192, 0, 2, 1}},
		{Destination: [4]byte{0, 0, 0, 0}, Netmask: [4]byte{0, 0, 0, 0}, Gateway: [4]byte{192, 0, 2, 1}},
	}

	var o dhcp4wire.Options
	o.SetCSR(want)

	got, err := o.Routes(false)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
