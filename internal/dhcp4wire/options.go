package dhcp4wire

import (
	"encoding/binary"
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
)

// Option codes recognized by this package.  Names follow RFC 2132.
const (
	OptionPad                  byte = 0
	OptionSubnetMask           byte = 1
	OptionTimeOffset           byte = 2
	OptionRouter               byte = 3
	OptionDomainNameServer     byte = 6
	OptionHostName             byte = 12
	OptionBootFileSize         byte = 13
	OptionDomainName           byte = 15
	OptionInterfaceMTU         byte = 26
	OptionBroadcastAddress     byte = 28
	OptionStaticRoute          byte = 33
	OptionNISDomain            byte = 40
	OptionNTPServers           byte = 42
	OptionVendorSpecific       byte = 43
	OptionRequestedIPAddress   byte = 50
	OptionIPAddressLeaseTime   byte = 51
	OptionOverload             byte = 52
	OptionDHCPMessageType      byte = 53
	OptionServerIdentifier     byte = 54
	OptionParameterRequestList byte = 55
	OptionMessage              byte = 56
	OptionMaxMessageSize       byte = 57
	OptionRenewalTimeT1        byte = 58
	OptionRebindingTimeT2      byte = 59
	OptionVendorClassID        byte = 60
	OptionClientIdentifier     byte = 61
	OptionDomainSearch         byte = 119
	OptionClasslessStaticRoute byte = 121
	OptionFQDN                 byte = 81
	OptionUserClass            byte = 77
	OptionMSClasslessStaticRoute byte = 249
	OptionEnd                  byte = 255
)

// MessageType is the value of option 53.
type MessageType byte

// Message type values, per RFC 2131 §3.
const (
	MessageTypeNone MessageType = 0
	Discover        MessageType = 1
	Offer           MessageType = 2
	Request         MessageType = 3
	Decline         MessageType = 4
	ACK             MessageType = 5
	NAK             MessageType = 6
	Release         MessageType = 7
	Inform          MessageType = 8
)

// String implements the fmt.Stringer interface for MessageType.
func (t MessageType) String() string {
	switch t {
	case Discover:
		return "DISCOVER"
	case Offer:
		return "OFFER"
	case Request:
		return "REQUEST"
	case Decline:
		return "DECLINE"
	case ACK:
		return "ACK"
	case NAK:
		return "NAK"
	case Release:
		return "RELEASE"
	case Inform:
		return "INFORM"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(t))
	}
}

// Option is a single decoded TLV: a code and its raw value bytes.
type Option struct {
	Code byte
	Data []byte
}

// Options is an ordered set of DHCP options.  Order is the order in which
// options were Set or decoded off the wire; Encode emits them in that
// order, matching the construction order spec.md §4.1 requires of
// make_message.
type Options []Option

// Get returns the raw value of code, and whether it was present.
func (o Options) Get(code byte) (data []byte, ok bool) {
	for _, opt := range o {
		if opt.Code == code {
			return opt.Data, true
		}
	}

	return nil, false
}

// Has reports whether code is present.
func (o Options) Has(code byte) (ok bool) {
	_, ok = o.Get(code)

	return ok
}

// Set adds or replaces the value of code, preserving the position of an
// existing entry.
func (o *Options) Set(code byte, data []byte) {
	for i, opt := range *o {
		if opt.Code == code {
			(*o)[i].Data = data

			return
		}
	}

	*o = append(*o, Option{Code: code, Data: data})
}

// Del removes code, if present.
func (o *Options) Del(code byte) {
	for i, opt := range *o {
		if opt.Code == code {
			*o = append((*o)[:i], (*o)[i+1:]...)

			return
		}
	}
}

// SetByte sets a single-byte option value.
func (o *Options) SetByte(code byte, v byte) {
	o.Set(code, []byte{v})
}

// SetUint16 sets a big-endian 16-bit option value.
func (o *Options) SetUint16(code byte, v uint16) {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	o.Set(code, buf)
}

// SetUint32 sets a big-endian 32-bit option value.
func (o *Options) SetUint32(code byte, v uint32) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	o.Set(code, buf)
}

// SetIP sets a 4-byte IPv4 address option value.
func (o *Options) SetIP(code byte, ip [4]byte) {
	o.Set(code, ip[:])
}

// SetString sets a string option value.
func (o *Options) SetString(code byte, s string) {
	o.Set(code, []byte(s))
}

// GetByte returns a single-byte option value.
func (o Options) GetByte(code byte) (v byte, ok bool) {
	data, ok := o.Get(code)
	if !ok || len(data) != 1 {
		return 0, false
	}

	return data[0], true
}

// GetUint16 returns a big-endian 16-bit option value.
func (o Options) GetUint16(code byte) (v uint16, ok bool) {
	data, ok := o.Get(code)
	if !ok || len(data) != 2 {
		return 0, false
	}

	return binary.BigEndian.Uint16(data), true
}

// GetUint32 returns a big-endian 32-bit option value.
func (o Options) GetUint32(code byte) (v uint32, ok bool) {
	data, ok := o.Get(code)
	if !ok || len(data) != 4 {
		return 0, false
	}

	return binary.BigEndian.Uint32(data), true
}

// GetIP returns a 4-byte IPv4 address option value.
func (o Options) GetIP(code byte) (ip [4]byte, ok bool) {
	data, ok := o.Get(code)
	if !ok || len(data) != 4 {
		return [4]byte{}, false
	}

	return [4]byte(data), true
}

// GetIPList returns a list of 4-byte IPv4 addresses; ok is false unless
// len(data) is a non-zero multiple of 4, per spec.md §4.1 "ARRAY of
// address: length multiple of 4".
func (o Options) GetIPList(code byte) (ips [][4]byte, ok bool) {
	data, ok := o.Get(code)
	if !ok || len(data) == 0 || len(data)%4 != 0 {
		return nil, false
	}

	for i := 0; i < len(data); i += 4 {
		ips = append(ips, [4]byte(data[i:i+4]))
	}

	return ips, true
}

// GetString returns a string option value.
func (o Options) GetString(code byte) (s string, ok bool) {
	data, ok := o.Get(code)
	if !ok {
		return "", false
	}

	return string(data), true
}

// Encode serializes the options in order, without the terminating
// [OptionEnd] marker (Message.Encode appends that itself).
func (o Options) Encode() []byte {
	var buf []byte
	for _, opt := range o {
		buf = append(buf, opt.Code, byte(len(opt.Data)))
		buf = append(buf, opt.Data...)
	}

	return buf
}

// errShortOption is returned when an option's declared length overruns the
// buffer.
const errShortOption errors.Error = "option length overruns buffer"

// decodeInto walks the TLVs in data, appending or overwriting entries of
// o.  It stops at [OptionEnd] or at the end of data, skips [OptionPad]
// bytes, and fails if any TLV's length field would read past the end of
// data (spec.md §4.1 "fail if pos + length > end").
//
// decodeInto does not itself act on [OptionOverload]; the caller
// (Decode) re-invokes it on the file/sname fields when that option is
// present.
func (o *Options) decodeInto(data []byte) (err error) {
	i := 0
	for i < len(data) {
		code := data[i]
		if code == OptionPad {
			i++

			continue
		}

		if code == OptionEnd {
			return nil
		}

		if i+1 >= len(data) {
			return errShortOption
		}

		length := int(data[i+1])
		start := i + 2
		end := start + length
		if end > len(data) {
			return errShortOption
		}

		value := make([]byte, length)
		copy(value, data[start:end])
		o.Set(code, value)

		i = end
	}

	return nil
}

// DecodeOptions parses a standalone options area (no header, no magic
// cookie), such as a single sub-options buffer.
func DecodeOptions(data []byte) (o Options, err error) {
	err = o.decodeInto(data)
	if err != nil {
		return nil, err
	}

	return o, nil
}
