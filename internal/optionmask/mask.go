package optionmask

import (
	"github.com/AdguardTeam/golibs/errors"

	"github.com/AdguardTeam/dhcp4c/internal/dhcp4wire"
)

// Mask is a fixed-size bitmap indexed 0-255, one bit per DHCP option
// code, per spec.md §4.7.
type Mask [256 / 8]byte

// Set sets the bit for code.
func (m *Mask) Set(code byte) {
	m[code/8] |= 1 << (code % 8)
}

// Clear clears the bit for code.
func (m *Mask) Clear(code byte) {
	m[code/8] &^= 1 << (code % 8)
}

// Has reports whether the bit for code is set.
func (m Mask) Has(code byte) (ok bool) {
	return m[code/8]&(1<<(code%8)) != 0
}

// errIPv4OnlyRequired is returned by [MakeOptionMask] when ipv4Only is
// true and a named option is not of [TypeAddrIPv4] — used by the
// "-S"-style request that only accepts IPv4-address options.
const errIPv4OnlyRequired errors.Error = "option is not an ipv4 address option"

// MakeOptionMask parses a comma/space-separated list of symbolic names
// or numeric codes, per spec.md §4.7 "make_option_mask(spec, add)",
// validating each token against [Descriptors]. When add is true, the
// corresponding bits in mask are set; when false, cleared. When
// ipv4Only is true, a token naming a known option whose type is not
// [TypeAddrIPv4] is rejected, matching the "-S" behavior the source
// describes.
func MakeOptionMask(mask *Mask, spec string, add, ipv4Only bool) (err error) {
	for _, token := range splitTokens(spec) {
		d, code, dErr := descriptorFor(token)
		if dErr != nil {
			return dErr
		}

		if ipv4Only && d != nil && d.Type != TypeAddrIPv4 {
			return errIPv4OnlyRequired
		}

		if add {
			mask.Set(code)
		} else {
			mask.Clear(code)
		}
	}

	return nil
}

// Policy holds the three option masks spec.md §4.7 describes per
// interface: which options to request, which the client requires the
// server to return, and which to suppress from an otherwise-requested
// set.
type Policy struct {
	Request  Mask
	Require  Mask
	Suppress Mask
}

// canonicalOrder is the fixed iteration order spec.md §4.7 and §8
// require when composing the parameter request list: the classless
// static route option precedes both the legacy router option and the
// legacy static-route option, per RFC 3442's advice, and the MS variant
// follows immediately after so it is still offered before routers/
// static-routes if the canonical one is suppressed.
var canonicalOrder = buildCanonicalOrder()

func buildCanonicalOrder() (order []byte) {
	order = append(order,
		dhcp4wire.OptionClasslessStaticRoute,
		dhcp4wire.OptionMSClasslessStaticRoute,
		dhcp4wire.OptionRouter,
		dhcp4wire.OptionStaticRoute,
	)

	seen := make(map[byte]bool, len(order))
	for _, c := range order {
		seen[c] = true
	}

	for _, d := range Descriptors {
		if !seen[d.Code] {
			seen[d.Code] = true
			order = append(order, d.Code)
		}
	}

	return order
}

// RequestList builds option 55's value: the codes set in p.Request and
// not in p.Suppress, iterated in [canonicalOrder] (spec.md §4.7, and the
// §8 invariant that option 121 always precedes 3 and 33 when not
// suppressed). Codes in p.Request that don't appear in [Descriptors] or
// [canonicalOrder] are appended afterwards in ascending numeric order,
// so a caller requesting an obscure/unrecognized code is never silently
// dropped.
func (p *Policy) RequestList() (codes []byte) {
	emitted := make(map[byte]bool, 256)

	for _, code := range canonicalOrder {
		if p.Request.Has(code) && !p.Suppress.Has(code) {
			codes = append(codes, code)
			emitted[code] = true
		}
	}

	for code := 1; code < 255; code++ {
		c := byte(code)
		if emitted[c] {
			continue
		}

		if p.Request.Has(c) && !p.Suppress.Has(c) {
			codes = append(codes, c)
		}
	}

	return codes
}

// SetParameterRequestList sets option 55 on o from p.
func (p *Policy) SetParameterRequestList(o *dhcp4wire.Options) {
	o.Set(dhcp4wire.OptionParameterRequestList, p.RequestList())
}
