// Package optionmask tracks which DHCP options a caller wishes to
// request, require, and suppress, and builds the Parameter Request List
// (option 55) sent in DISCOVER/REQUEST/INFORM messages.
package optionmask

import (
	"strconv"
	"strings"

	"github.com/AdguardTeam/golibs/errors"

	"github.com/AdguardTeam/dhcp4c/internal/dhcp4wire"
)

// ValueType describes the wire encoding of an option's value, used by
// printing, env export, and option-mask parsing. It mirrors spec.md §3's
// "Option descriptor table" type set.
type ValueType int

// Recognized value types.
const (
	TypeUint8 ValueType = iota
	TypeUint16
	TypeSint16
	TypeUint32
	TypeSint32
	TypeString
	TypeAddrIPv4
	TypeArray
	TypeRFC3397
	TypeRFC3442
	TypeRFC3361
	TypeBinHex
	TypeFlag
)

// Descriptor binds an option code to its symbolic name and value type,
// per spec.md §3.
type Descriptor struct {
	Name string
	Code byte
	Type ValueType
}

// Descriptors is the process-global, read-only option descriptor table.
// It is consulted by name/number lookups in [ParseList] and by
// rendering code; nothing mutates it after process start, per spec.md §3
// "Ownership".
var Descriptors = []Descriptor{
	{Name: "subnet_mask", Code: dhcp4wire.OptionSubnetMask, Type: TypeAddrIPv4},
	{Name: "time_offset", Code: dhcp4wire.OptionTimeOffset, Type: TypeSint32},
	{Name: "routers", Code: dhcp4wire.OptionRouter, Type: TypeArray},
	{Name: "domain_name_servers", Code: dhcp4wire.OptionDomainNameServer, Type: TypeArray},
	{Name: "host_name", Code: dhcp4wire.OptionHostName, Type: TypeString},
	{Name: "domain_name", Code: dhcp4wire.OptionDomainName, Type: TypeString},
	{Name: "interface_mtu", Code: dhcp4wire.OptionInterfaceMTU, Type: TypeUint16},
	{Name: "broadcast_address", Code: dhcp4wire.OptionBroadcastAddress, Type: TypeAddrIPv4},
	{Name: "static_routes", Code: dhcp4wire.OptionStaticRoute, Type: TypeArray},
	{Name: "nis_domain", Code: dhcp4wire.OptionNISDomain, Type: TypeString},
	{Name: "ntp_servers", Code: dhcp4wire.OptionNTPServers, Type: TypeArray},
	{Name: "requested_address", Code: dhcp4wire.OptionRequestedIPAddress, Type: TypeAddrIPv4},
	{Name: "dhcp_lease_time", Code: dhcp4wire.OptionIPAddressLeaseTime, Type: TypeUint32},
	{Name: "dhcp_message_type", Code: dhcp4wire.OptionDHCPMessageType, Type: TypeUint8},
	{Name: "dhcp_server_identifier", Code: dhcp4wire.OptionServerIdentifier, Type: TypeAddrIPv4},
	{Name: "dhcp_parameter_request_list", Code: dhcp4wire.OptionParameterRequestList, Type: TypeArray},
	{Name: "dhcp_max_message_size", Code: dhcp4wire.OptionMaxMessageSize, Type: TypeUint16},
	{Name: "dhcp_renewal_time", Code: dhcp4wire.OptionRenewalTimeT1, Type: TypeUint32},
	{Name: "dhcp_rebinding_time", Code: dhcp4wire.OptionRebindingTimeT2, Type: TypeUint32},
	{Name: "vendor_class_id", Code: dhcp4wire.OptionVendorClassID, Type: TypeString},
	{Name: "dhcp_client_identifier", Code: dhcp4wire.OptionClientIdentifier, Type: TypeBinHex},
	{Name: "user_class", Code: dhcp4wire.OptionUserClass, Type: TypeBinHex},
	{Name: "fqdn", Code: dhcp4wire.OptionFQDN, Type: TypeBinHex},
	{Name: "domain_search", Code: dhcp4wire.OptionDomainSearch, Type: TypeRFC3397},
	{Name: "classless_static_routes", Code: dhcp4wire.OptionClasslessStaticRoute, Type: TypeRFC3442},
	{Name: "ms_classless_static_routes", Code: dhcp4wire.OptionMSClasslessStaticRoute, Type: TypeRFC3442},
}

// byName is built once at init for O(1) name lookups in
// [descriptorFor]; numeric codes are matched by a scan of [Descriptors].
var byName = make(map[string]*Descriptor, len(Descriptors))

func init() {
	for i := range Descriptors {
		d := &Descriptors[i]
		byName[d.Name] = d
	}
}

// errUnknownOption is returned by [ParseList] for a token that is
// neither a known symbolic name nor a valid numeric option code.
const errUnknownOption errors.Error = "unknown option name or code"

// descriptorFor resolves a single comma/space-separated token (a
// symbolic name or a numeric code) against the descriptor table.
func descriptorFor(token string) (d *Descriptor, code byte, err error) {
	if d, ok := byName[token]; ok {
		return d, d.Code, nil
	}

	n, convErr := strconv.ParseUint(token, 0, 8)
	if convErr == nil {
		code = byte(n)
		for i := range Descriptors {
			if Descriptors[i].Code == code {
				return &Descriptors[i], code, nil
			}
		}

		// A bare numeric code with no matching descriptor is still
		// accepted: the option is unrecognized but its code is
		// well-formed.
		return nil, code, nil
	}

	return nil, 0, errUnknownOption
}

// splitTokens splits a comma/space-separated option-name list, skipping
// empty tokens, mirroring dhcpcd's strsep(&p, ", ") token loop.
func splitTokens(spec string) (tokens []string) {
	return strings.FieldsFunc(spec, func(r rune) bool {
		return r == ',' || r == ' '
	})
}
