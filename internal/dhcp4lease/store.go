package dhcp4lease

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AdguardTeam/golibs/errors"

	"github.com/AdguardTeam/dhcp4c/internal/atomicfile"
	"github.com/AdguardTeam/dhcp4c/internal/dhcp4wire"
)

// leaseFilePerm is the permission mode for a newly-created lease file.
const leaseFilePerm = 0o644

// Store persists and reloads the raw bytes of the last accepted DHCP
// message for one interface, per spec.md §4.2 and the external
// interface in §6.2: path `<state-dir>/<package>-<ifname>.lease`,
// content the raw 236-byte header plus the raw options octets exactly
// as received, written with atomic replace.
type Store struct {
	path string
}

// NewStore returns a Store persisting to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path computed the conventional lease-file path for stateDir, pkg
// (the program name used as the file prefix), and ifaceName.
func Path(stateDir, pkg, ifaceName string) string {
	return filepath.Join(stateDir, fmt.Sprintf("%s-%s.lease", pkg, ifaceName))
}

// Write persists raw exactly as given (the client passes the accepted
// message's Encode output, BOOTP padding included) to the store's
// path, atomically replacing any existing file, per spec.md §8 "The lease store is byte-identical to the raw
// on-wire header+options of the ACK that produced it".
func (s *Store) Write(raw []byte) (err error) {
	err = atomicfile.WriteFile(s.path, raw, leaseFilePerm)
	if err != nil {
		return errors.Annotate(err, "writing lease file: %w")
	}

	return nil
}

// Delete removes the lease file, if present. A missing file is not an
// error, since deleting an already-absent lease is the desired end
// state (RELEASE or user stop without persistent mode, per spec.md §3
// "Lifecycle").
func (s *Store) Delete() (err error) {
	err = os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Annotate(err, "deleting lease file: %w")
	}

	return nil
}

// Read loads and re-parses the persisted bytes, returning the decoded
// message and the Lease it implies (with FromPersist set). The file's
// modification time is passed to [FromMessage] as the lease's boundAt,
// so expiry is measured from when the file was written — per spec.md
// §4.2 "elapsed_since_bound seeded from the file mtime". A
// missing lease file is reported via [os.ErrNotExist]; the caller is
// expected to treat that as "no persisted lease" (INIT, not REBOOT).
func (s *Store) Read() (msg *dhcp4wire.Message, lease *Lease, err error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, nil, err
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return nil, nil, err
	}

	msg, err = dhcp4wire.Decode(padToMinimum(raw))
	if err != nil {
		return nil, nil, errors.Annotate(err, "parsing persisted lease: %w")
	}

	// The persisted message's BoundAt is reconstructed from the file's
	// mtime: a lease written at time T and read back later still
	// reports the same BoundAt, so [Lease.ExpiresAt] reflects real
	// elapsed time, not "just bound".
	l := FromMessage(msg, info.ModTime())
	l.FromPersist = true

	return msg, l, nil
}

// padToMinimum pads raw, if necessary, back up to
// [dhcp4wire.MinMessageLen] with [dhcp4wire.OptionPad] so a message
// trimmed before persistence (Write stores the exact received bytes,
// which a conformant server already pads, but a defensively-trimmed
// record might not) still decodes.
func padToMinimum(raw []byte) []byte {
	if len(raw) >= dhcp4wire.MinMessageLen {
		return raw
	}

	padded := make([]byte, dhcp4wire.MinMessageLen)
	copy(padded, raw)
	for i := len(raw); i < len(padded); i++ {
		padded[i] = dhcp4wire.OptionPad
	}

	return padded
}

// Exists reports whether a lease file is present without reading it.
func (s *Store) Exists() (ok bool) {
	_, err := os.Stat(s.path)

	return err == nil
}

// Expired reports whether a persisted lease at readTime would already
// have expired, given its own ExpiresAt, for the FSM's REBOOT-vs-INIT
// choice, per spec.md §4.5.2 "REBOOT ... entered on start if a
// non-expired lease is persisted".
func (l *Lease) Expired(asOf time.Time) (ok bool) {
	if l.Infinite() {
		return false
	}

	return !asOf.Before(l.ExpiresAt())
}
