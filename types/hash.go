package types

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// HashSize is the size of a block hash in bytes.
const HashSize = 32

// Hash identifies a header by the blake2b-256 of its canonical encoding.
type Hash [HashSize]byte

// NewHash converts bz into a Hash. The length of bz must be exactly
// HashSize.
func NewHash(bz []byte) (Hash, error) {
	var h Hash
	if len(bz) != HashSize {
		return h, fmt.Errorf("invalid hash length: got %d, want %d", len(bz), HashSize)
	}
	copy(h[:], bz)
	return h, nil
}

// MustHash converts bz into a Hash, panicking on bad input. For use with
// hard-coded fixtures only.
func MustHash(bz []byte) Hash {
	h, err := NewHash(bz)
	if err != nil {
		panic(err)
	}
	return h
}

// IsZero reports whether the hash is all zeroes.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Bytes returns a copy-free view of the hash.
func (h Hash) Bytes() []byte {
	return h[:]
}

// Less orders hashes lexicographically. Used as the deterministic
// tie-breaker in fork choice.
func (h Hash) Less(other Hash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

func (h Hash) String() string {
	return strings.ToUpper(hex.EncodeToString(h[:]))
}

// ShortString returns the first 6 hex digits, for log output.
func (h Hash) ShortString() string {
	return strings.ToUpper(hex.EncodeToString(h[:3]))
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	dec, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(dec) != HashSize {
		return errors.New("invalid hash length")
	}
	copy(h[:], dec)
	return nil
}
