// Package encryption defines the negotiation primitive the connection
// manager invokes as an outbound initiator, and the tiered set of
// encryption modes a peer may be willing to try. The negotiation
// primitive itself, producing a live encryptor/decryptor pair from a
// handshake blob, is an external collaborator; this package only
// defines its interface and the mode bookkeeping around it.
package encryption

import "github.com/willf/bitset"

// Mode enumerates the supported encryption tiers, strongest first.
type Mode int

const (
	// RC4Full encrypts the entire stream, header and payload.
	RC4Full Mode = iota
	// RC4Header encrypts only the handshake header.
	RC4Header
	// PlainText performs no encryption at all.
	PlainText

	numModes = int(PlainText) + 1
)

func (m Mode) String() string {
	switch m {
	case RC4Full:
		return "rc4_full"
	case RC4Header:
		return "rc4_header"
	case PlainText:
		return "plain_text"
	default:
		return "unknown"
	}
}

// ModeSet is a mutable, narrowing set of allowed encryption modes for a
// peer. It starts out as every mode configuration permits, and is
// narrowed monotonically as negotiation and handshake attempts fail.
// Backed by willf/bitset the way the rest of this codebase's ancestry
// represents compact mutable sets (lib/torrent/scheduler/sync_bitfield.go).
type ModeSet struct {
	b *bitset.BitSet
}

// NewModeSet returns a ModeSet containing exactly the given modes.
func NewModeSet(modes ...Mode) *ModeSet {
	b := bitset.New(uint(numModes))
	for _, m := range modes {
		b.Set(uint(m))
	}
	return &ModeSet{b}
}

// AllModes returns a ModeSet permitting every tier.
func AllModes() *ModeSet {
	return NewModeSet(RC4Full, RC4Header, PlainText)
}

// Allows returns whether m is currently permitted.
func (s *ModeSet) Allows(m Mode) bool {
	return s.b.Test(uint(m))
}

// Remove narrows the set by clearing m. Idempotent.
func (s *ModeSet) Remove(m Mode) {
	s.b.Clear(uint(m))
}

// RemoveRC4 narrows the set by clearing both RC4 tiers (full and
// header) together: a failed negotiation leaves only PlainText
// allowed, if configuration otherwise permits it.
func (s *ModeSet) RemoveRC4() {
	s.b.Clear(uint(RC4Full))
	s.b.Clear(uint(RC4Header))
}

// Empty returns true if no modes remain allowed.
func (s *ModeSet) Empty() bool {
	return s.b.None()
}

// Count returns the number of modes currently allowed.
func (s *ModeSet) Count() int {
	return int(s.b.Count())
}

// Copy returns an independent copy of s.
func (s *ModeSet) Copy() *ModeSet {
	c := bitset.New(uint(numModes))
	s.b.Copy(c)
	return &ModeSet{c}
}

// StrictSubsetOf returns true if s allows strictly fewer modes than
// other, used to assert that narrowing a peer's allowed modes never
// widens it.
func (s *ModeSet) StrictSubsetOf(other *ModeSet) bool {
	if s.Count() >= other.Count() {
		return false
	}
	for m := Mode(0); int(m) < numModes; m++ {
		if s.Allows(m) && !other.Allows(m) {
			return false
		}
	}
	return true
}
