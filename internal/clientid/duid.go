// Package clientid derives and persists the client's DUID-LLT and builds
// the RFC 4361 client identifier from it, or the legacy
// hardware-type/address client identifier when no DUID is configured.
package clientid

import (
	"encoding/binary"
	"encoding/hex"
	"net"
	"os"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/insomniacslk/dhcp/iana"

	"github.com/AdguardTeam/dhcp4c/internal/atomicfile"
)

// duidFilePerm is the permission mode used when a DUID file is created
// for the first time, per spec.md §6.3.
const duidFilePerm = 0o644

// epoch2000 is 2000-01-01T00:00:00Z, the DUID-LLT epoch, per spec.md
// §4.6.
var epoch2000 = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// duidTypeLLT is the DUID type value for "link-layer address plus
// time", per spec.md §4.6.
const duidTypeLLT uint16 = 1

// DUID is a parsed DUID-LLT: type=1, hardware type, seconds elapsed
// since [epoch2000], and the hardware address.
type DUID struct {
	HWType  iana.HWType
	HWAddr  net.HardwareAddr
	Seconds uint32
}

// errBadDUIDLen, errNotLLT are returned by DecodeDUID.
const (
	errBadDUIDLen errors.Error = "duid shorter than the ltt header"
	errNotLLT     errors.Error = "duid is not of type llt"
)

// Encode serializes d in the RFC 3315/spec.md §4.6 wire format: type,
// hwtype, seconds-since-epoch, hwaddr, all integers big-endian.
func (d DUID) Encode() []byte {
	buf := make([]byte, 8+len(d.HWAddr))
	binary.BigEndian.PutUint16(buf[0:2], duidTypeLLT)
	binary.BigEndian.PutUint16(buf[2:4], uint16(d.HWType))
	binary.BigEndian.PutUint32(buf[4:8], d.Seconds)
	copy(buf[8:], d.HWAddr)

	return buf
}

// DecodeDUID parses the wire format written by [DUID.Encode].
func DecodeDUID(b []byte) (d DUID, err error) {
	if len(b) < 8 {
		return DUID{}, errBadDUIDLen
	}

	if binary.BigEndian.Uint16(b[0:2]) != duidTypeLLT {
		return DUID{}, errNotLLT
	}

	d.HWType = iana.HWType(binary.BigEndian.Uint16(b[2:4]))
	d.Seconds = binary.BigEndian.Uint32(b[4:8])
	d.HWAddr = append(net.HardwareAddr(nil), b[8:]...)

	return d, nil
}

// NewDUID builds a fresh DUID-LLT for hwaddr, stamping the current
// monotonic-wall time (via now) as seconds since [epoch2000].
func NewDUID(hwaddr net.HardwareAddr, now time.Time) (d DUID) {
	return DUID{
		HWType:  iana.HWTypeEthernet,
		HWAddr:  hwaddr,
		Seconds: uint32(now.UTC().Sub(epoch2000).Seconds()),
	}
}

// LoadOrCreateDUID reads the DUID file at path, an ASCII hex
// representation of a DUID-LLT with an optional trailing newline, per
// spec.md §6.3. If the file does not exist, a fresh DUID-LLT is
// generated for hwaddr and persisted there with mode 0644; it is never
// rotated thereafter.
func LoadOrCreateDUID(path string, hwaddr net.HardwareAddr, now time.Time) (d DUID, err error) {
	raw, err := readDUIDFile(path)
	if err == nil {
		return DecodeDUID(raw)
	}

	if !errors.Is(err, errDUIDFileMissing) {
		return DUID{}, errors.Annotate(err, "reading duid file: %w")
	}

	d = NewDUID(hwaddr, now)

	err = atomicfile.WriteFile(path, []byte(hex.EncodeToString(d.Encode())), duidFilePerm)
	if err != nil {
		return DUID{}, errors.Annotate(err, "writing duid file: %w")
	}

	return d, nil
}

// errDUIDFileMissing is a sentinel distinguishing a missing file from a
// read/decode error in readDUIDFile's caller.
const errDUIDFileMissing errors.Error = "duid file does not exist"

func readDUIDFile(path string) (raw []byte, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errDUIDFileMissing
		}

		return nil, err
	}

	trimmed := strings.TrimSpace(string(data))

	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, errors.Annotate(err, "decoding hex: %w")
	}

	return decoded, nil
}
