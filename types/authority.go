package types

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"

	tmmath "github.com/arclight-network/arclight/libs/math"
)

// AuthorityKeySize is the size of an authority public key. Both signature
// schemes in use (sr25519 for block production, ed25519 for finality votes)
// have 32-byte public keys.
const AuthorityKeySize = 32

// Authority is one weighted member of an authority set.
type Authority struct {
	PubKey [AuthorityKeySize]byte
	Weight uint64
}

// AuthoritySet is an ordered list of authorities sharing one set id. A new
// set id is minted at every authority change, so a vote is only valid
// against the exact set it names.
//
// Sets are immutable: epoch transitions produce a new set, they never
// mutate one in place.
type AuthoritySet struct {
	Authorities []Authority
	ID          uint64

	totalWeight uint64
}

// NewAuthoritySet builds a set from an ordered authority list. The total
// weight is computed once with overflow checking; a set whose weights
// overflow uint64 is invalid by construction.
func NewAuthoritySet(authorities []Authority, id uint64) (*AuthoritySet, error) {
	if len(authorities) == 0 {
		return nil, errors.New("authority set cannot be empty")
	}

	total := uint64(0)
	for i, a := range authorities {
		if a.Weight == 0 {
			return nil, fmt.Errorf("authority %d has zero weight", i)
		}
		var err error
		total, err = tmmath.SafeAddUint64(total, a.Weight)
		if err != nil {
			return nil, fmt.Errorf("authority set weight overflows: %w", err)
		}
	}

	return &AuthoritySet{
		Authorities: authorities,
		ID:          id,
		totalWeight: total,
	}, nil
}

// Len returns the number of authorities in the set.
func (s *AuthoritySet) Len() int {
	return len(s.Authorities)
}

// TotalWeight returns the sum of all authority weights.
func (s *AuthoritySet) TotalWeight() uint64 {
	return s.totalWeight
}

// ByIndex returns the authority at index i.
func (s *AuthoritySet) ByIndex(i uint32) (Authority, bool) {
	if int(i) >= len(s.Authorities) {
		return Authority{}, false
	}
	return s.Authorities[i], true
}

// IndexOf returns the index of the authority with the given public key.
func (s *AuthoritySet) IndexOf(pubKey []byte) (int, bool) {
	for i, a := range s.Authorities {
		if bytes.Equal(a.PubKey[:], pubKey) {
			return i, true
		}
	}
	return 0, false
}

// authorityChange wire tags.
const (
	changeTagScheduled uint8 = 1
	changeTagForced    uint8 = 2
)

// AuthorityChange is an authority-set transition announced in a Consensus
// digest. Scheduled changes take effect Delay blocks after the announcing
// header; forced changes take effect immediately and cancel any pending
// scheduled change on the same fork.
type AuthorityChange struct {
	Forced      bool
	Authorities []Authority
	Delay       uint32
}

type authorityChangeWire struct {
	Authorities []Authority
	Delay       uint32
}

// DecodeAuthorityChange parses the payload of an authority-change Consensus
// digest.
func DecodeAuthorityChange(bz []byte) (*AuthorityChange, error) {
	dec, r := NewExactDecoder(bz)

	var tag uint8
	if err := dec.Decode(&tag); err != nil {
		return nil, ErrStructuralDecode{What: "authority change", Reason: err}
	}
	if tag != changeTagScheduled && tag != changeTagForced {
		return nil, ErrStructuralDecode{
			What:   "authority change",
			Reason: fmt.Errorf("unknown change tag %d", tag),
		}
	}

	var wire authorityChangeWire
	if err := dec.Decode(&wire); err != nil {
		return nil, ErrStructuralDecode{What: "authority change", Reason: err}
	}
	if r.Len() != 0 {
		return nil, ErrStructuralDecode{What: "authority change", Reason: fmt.Errorf("%d trailing bytes", r.Len())}
	}

	return &AuthorityChange{
		Forced:      tag == changeTagForced,
		Authorities: wire.Authorities,
		Delay:       wire.Delay,
	}, nil
}

// Encode returns the digest payload for the change. Used by test fixtures
// and warp-proof construction.
func (c *AuthorityChange) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)

	tag := changeTagScheduled
	if c.Forced {
		tag = changeTagForced
	}
	if err := enc.Encode(tag); err != nil {
		return nil, err
	}
	if err := enc.Encode(authorityChangeWire{Authorities: c.Authorities, Delay: c.Delay}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
