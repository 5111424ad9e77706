package dhcp4wire

import (
	"github.com/AdguardTeam/golibs/errors"
)

// Route is a single IPv4 route: destination/netmask via gateway.
type Route struct {
	Destination [4]byte
	Netmask     [4]byte
	Gateway     [4]byte
}

// errBadPrefixLength is returned by decodeCSR when a classless static
// route's prefix length exceeds 32.
const errBadPrefixLength errors.Error = "classless static route prefix length > 32"

// prefixNetmask returns the netmask for a CIDR prefix length in [0, 32].
func prefixNetmask(prefix int) (mask [4]byte) {
	bits := uint32(0xffffffff) << uint(32-prefix)
	if prefix == 0 {
		bits = 0
	}

	mask[0] = byte(bits >> 24)
	mask[1] = byte(bits >> 16)
	mask[2] = byte(bits >> 8)
	mask[3] = byte(bits)

	return mask
}

// decodeCSR decodes the RFC 3442/MS-CSR wire format: a sequence of
// (prefix-length, destination-octets, gateway) entries.
func decodeCSR(data []byte) (routes []Route, err error) {
	i := 0
	for i < len(data) {
		prefix := int(data[i])
		i++

		if prefix > 32 {
			return nil, errBadPrefixLength
		}

		destOctets := (prefix + 7) / 8

		if i+destOctets+4 > len(data) {
			return nil, errShortOption
		}

		var dest [4]byte
		copy(dest[:], data[i:i+destOctets])
		i += destOctets

		var gw [4]byte
		copy(gw[:], data[i:i+4])
		i += 4

		routes = append(routes, Route{
			Destination: dest,
			Netmask:     prefixNetmask(prefix),
			Gateway:     gw,
		})
	}

	return routes, nil
}

// classfulNetmask derives the historical classful netmask from the high
// bits of an IPv4 address, used only for legacy option 33 static routes
// (spec.md §3 Route, "Classful netmask" in the glossary), never for the
// interface netmask itself.
func classfulNetmask(addr [4]byte) (mask [4]byte) {
	switch {
	case addr[0] < 128:
		return [4]byte{255, 0, 0, 0}
	case addr[0] < 192:
		return [4]byte{255, 255, 0, 0}
	default:
		return [4]byte{255, 255, 255, 0}
	}
}

// decodeStaticRoutes decodes option 33: 8-byte (destination, gateway)
// pairs with a classful netmask.
func decodeStaticRoutes(data []byte) (routes []Route, err error) {
	if len(data) == 0 || len(data)%8 != 0 {
		return nil, errShortOption
	}

	for i := 0; i < len(data); i += 8 {
		var dest, gw [4]byte
		copy(dest[:], data[i:i+4])
		copy(gw[:], data[i+4:i+8])

		routes = append(routes, Route{
			Destination: dest,
			Netmask:     classfulNetmask(dest),
			Gateway:     gw,
		})
	}

	return routes, nil
}

// Routes derives the effective route set from o, following the priority
// spec.md §3 "Route" describes: option 121 (CSR) alone if present
// (discarding 33 and 3); else MS-CSR (249) alone, if present and
// useMSCSR is true (the caller's setting; dhcp4c passes its
// RequestPolicy.UseMSCSR); else static routes (33) then routers (3)
// concatenated in that order.
func (o Options) Routes(useMSCSR bool) (routes []Route, err error) {
	if data, ok := o.Get(OptionClasslessStaticRoute); ok {
		return decodeCSR(data)
	}

	if useMSCSR {
		if data, ok := o.Get(OptionMSClasslessStaticRoute); ok {
			return decodeCSR(data)
		}
	}

	if data, ok := o.Get(OptionStaticRoute); ok {
		static, sErr := decodeStaticRoutes(data)
		if sErr != nil {
			return nil, sErr
		}

		routes = append(routes, static...)
	}

	if ips, ok := o.GetIPList(OptionRouter); ok {
		for _, ip := range ips {
			routes = append(routes, Route{Gateway: ip})
		}
	}

	return routes, nil
}

// SetCSR encodes routes as option 121 (classless static routes).
func (o *Options) SetCSR(routes []Route) {
	o.Set(OptionClasslessStaticRoute, encodeCSR(routes))
}

func encodeCSR(routes []Route) (data []byte) {
	for _, r := range routes {
		prefix := maskPrefixLen(r.Netmask)
		destOctets := (prefix + 7) / 8

		data = append(data, byte(prefix))
		data = append(data, r.Destination[:destOctets]...)
		data = append(data, r.Gateway[:]...)
	}

	return data
}

// maskPrefixLen returns the CIDR prefix length of mask.
func maskPrefixLen(mask [4]byte) (prefix int) {
	for _, b := range mask {
		for b != 0 {
			if b&0x80 != 0 {
				prefix++
			}

			b <<= 1
		}
	}

	return prefix
}
