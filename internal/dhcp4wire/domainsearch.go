package dhcp4wire

import (
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// errBadLabel is returned by decodeDomainSearch for a label type outside
// the set the RFC 3397 wire format allows.
const errBadLabel errors.Error = "domain search: bad label type"

// errTooManyHops guards against a pointer cycle in compressed labels.
const errTooManyHops errors.Error = "domain search: too many compression hops"

// maxHops bounds the number of compression-pointer hops followed while
// decoding a single name, per spec.md §4.1 "reject ... hops > 255".
const maxHops = 255

// decodeDomainSearch decodes option 119 (RFC 3397): a sequence of
// DNS-style names using the standard label format plus 0xc0-prefixed
// compression pointers back into the same option buffer.
func decodeDomainSearch(data []byte) (names []string, err error) {
	i := 0
	for i < len(data) {
		name, next, nErr := decodeName(data, i, 0)
		if nErr != nil {
			return nil, nErr
		}

		names = append(names, name)
		i = next
	}

	return names, nil
}

// decodeName decodes a single (possibly compressed) name starting at
// pos, returning the name and the position immediately after its
// uncompressed (non-pointer-followed) representation in the buffer.
func decodeName(data []byte, pos int, hops int) (name string, next int, err error) {
	if hops > maxHops {
		return "", 0, errTooManyHops
	}

	var labels []string
	firstPos := pos

	for {
		if pos >= len(data) {
			return "", 0, errShortOption
		}

		length := data[pos]

		switch {
		case length == 0:
			pos++

			return strings.Join(labels, "."), pos, nil
		case length&0xc0 == 0xc0:
			if pos+1 >= len(data) {
				return "", 0, errShortOption
			}

			ptr := int(length&0x3f)<<8 | int(data[pos+1])
			rest, _, rErr := decodeName(data, ptr, hops+1)
			if rErr != nil {
				return "", 0, rErr
			}

			labels = append(labels, rest)

			end := pos + 2
			if firstPos == pos {
				// The whole name was just a pointer; next starts right
				// after it.
				return strings.Join(labels, "."), end, nil
			}

			return strings.Join(labels, "."), end, nil
		case length&0xc0 != 0:
			// Label types 0x40/0x80 are reserved; reject them per
			// spec.md §4.1.
			return "", 0, errBadLabel
		default:
			start := pos + 1
			end := start + int(length)
			if end > len(data) {
				return "", 0, errShortOption
			}

			labels = append(labels, string(data[start:end]))
			pos = end
		}
	}
}

// encodeDomainSearch encodes names using uncompressed labels (always
// legal, even though servers/clients may emit compressed forms).
func encodeDomainSearch(names []string) (data []byte) {
	for _, name := range names {
		for _, label := range strings.Split(strings.TrimSuffix(name, "."), ".") {
			data = append(data, byte(len(label)))
			data = append(data, label...)
		}

		data = append(data, 0)
	}

	return data
}

// DomainSearch returns the decoded RFC 3397 domain-search list, option
// 119.
func (o Options) DomainSearch() (names []string, err error) {
	data, ok := o.Get(OptionDomainSearch)
	if !ok {
		return nil, nil
	}

	return decodeDomainSearch(data)
}

// SetDomainSearch sets option 119 from a list of domain names.
func (o *Options) SetDomainSearch(names []string) {
	o.Set(OptionDomainSearch, encodeDomainSearch(names))
}
