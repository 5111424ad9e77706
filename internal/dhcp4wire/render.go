package dhcp4wire

import (
	"fmt"
	"strings"
)

// shellEscapeSet is the set of characters that must be backslash-escaped
// in a shell-safe rendering of an option's printable bytes, per spec.md
// §4.1 "Printable option rendering".
const shellEscapeSet = "\"'$`\\|&"

// RenderString renders data as a shell-safe, single-quoted-compatible
// string: printable ASCII bytes pass through (backslash-escaped if they
// are in [shellEscapeSet]), and any other byte becomes a \ooo octal
// escape. A single run of trailing NUL bytes is dropped rather than
// rendered, matching hook-environment generation for fixed-width string
// options such as the BOOTP host-name field.
func RenderString(data []byte) string {
	// Drop a trailing run of NUL bytes.
	end := len(data)
	for end > 0 && data[end-1] == 0 {
		end--
	}
	data = data[:end]

	var b strings.Builder
	for _, c := range data {
		if c < 0x20 || c > 0x7e {
			fmt.Fprintf(&b, "\\%03o", c)

			continue
		}

		if strings.IndexByte(shellEscapeSet, c) >= 0 {
			b.WriteByte('\\')
		}

		b.WriteByte(c)
	}

	return b.String()
}

// RenderIP renders a 4-byte IPv4 address in dotted-decimal form.
func RenderIP(ip [4]byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3])
}

// RenderIPList renders a list of IPv4 addresses space-separated, per
// spec.md §6.5 "Arrays are space-separated".
func RenderIPList(ips [][4]byte) string {
	parts := make([]string, len(ips))
	for i, ip := range ips {
		parts[i] = RenderIP(ip)
	}

	return strings.Join(parts, " ")
}

// RenderUint32 renders a 32-bit option value in decimal.
func RenderUint32(v uint32) string {
	return fmt.Sprintf("%d", v)
}
