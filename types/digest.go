package types

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ChainSafe/gossamer/pkg/scale"
)

// ConsensusEngineID identifies the consensus engine that produced a digest
// item. The set of recognized ids is engine-configuration data; unknown ids
// decode fine and are skipped by verification.
type ConsensusEngineID [4]byte

func (id ConsensusEngineID) String() string {
	return string(id[:])
}

// EngineIDFromString converts a 4-character string to a ConsensusEngineID.
func EngineIDFromString(s string) (ConsensusEngineID, error) {
	var id ConsensusEngineID
	if len(s) != len(id) {
		return id, fmt.Errorf("engine id must be %d bytes, got %q", len(id), s)
	}
	copy(id[:], s)
	return id, nil
}

// DigestType tags a digest item variant. The values are wire tags and must
// match the rest of the network.
type DigestType uint8

const (
	DigestOther          DigestType = 0
	DigestConsensus      DigestType = 4
	DigestSeal           DigestType = 5
	DigestPreRuntime     DigestType = 6
	DigestRuntimeUpdated DigestType = 8
)

// DigestLog is a single decoded digest item.
//
// PreRuntime items carry the author's slot claim, Consensus items carry
// engine messages such as authority-set changes, and Seal items carry the
// author's signature over the rest of the header. EngineID is zero for
// variants that do not carry one.
type DigestLog struct {
	Type     DigestType
	EngineID ConsensusEngineID
	Data     []byte
}

// Digest is the ordered list of digest items embedded in a header.
type Digest []DigestLog

// DecodeDigest parses a raw digest byte sequence, including its leading
// item count. Decoding is pure: it never inspects engine ids, so items from
// engines this client does not implement are preserved as opaque entries.
func DecodeDigest(bz []byte) (Digest, error) {
	dec, r := NewExactDecoder(bz)
	d, err := decodeDigest(dec)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, ErrStructuralDecode{What: "digest", Reason: fmt.Errorf("%d trailing bytes", r.Len())}
	}
	return d, nil
}

func decodeDigest(dec *scale.Decoder) (Digest, error) {
	var count uint
	if err := dec.Decode(&count); err != nil {
		return nil, ErrStructuralDecode{What: "digest", Reason: err}
	}

	digest := make(Digest, 0, count)
	for i := uint(0); i < count; i++ {
		item, err := decodeDigestItem(dec)
		if err != nil {
			return nil, err
		}
		digest = append(digest, item)
	}
	return digest, nil
}

func decodeDigestItem(dec *scale.Decoder) (DigestLog, error) {
	var tag uint8
	if err := dec.Decode(&tag); err != nil {
		return DigestLog{}, ErrStructuralDecode{What: "digest item", Reason: err}
	}

	item := DigestLog{Type: DigestType(tag)}
	switch DigestType(tag) {
	case DigestPreRuntime, DigestConsensus, DigestSeal:
		if err := dec.Decode(&item.EngineID); err != nil {
			return DigestLog{}, ErrStructuralDecode{What: "digest item engine id", Reason: err}
		}
		if err := dec.Decode(&item.Data); err != nil {
			return DigestLog{}, ErrStructuralDecode{What: "digest item payload", Reason: err}
		}

	case DigestOther:
		if err := dec.Decode(&item.Data); err != nil {
			return DigestLog{}, ErrStructuralDecode{What: "digest item payload", Reason: err}
		}

	case DigestRuntimeUpdated:
		// no payload

	default:
		return DigestLog{}, ErrStructuralDecode{
			What:   "digest item",
			Reason: fmt.Errorf("unknown digest item tag %d", tag),
		}
	}
	return item, nil
}

func (d Digest) encode(w io.Writer) error {
	enc := scale.NewEncoder(w)
	if err := enc.Encode(uint(len(d))); err != nil {
		return err
	}
	for _, item := range d {
		if err := enc.Encode(uint8(item.Type)); err != nil {
			return err
		}
		switch item.Type {
		case DigestPreRuntime, DigestConsensus, DigestSeal:
			if err := enc.Encode(item.EngineID); err != nil {
				return err
			}
			if err := enc.Encode(item.Data); err != nil {
				return err
			}
		case DigestOther:
			if err := enc.Encode(item.Data); err != nil {
				return err
			}
		case DigestRuntimeUpdated:
		default:
			return fmt.Errorf("cannot encode digest item tag %d", item.Type)
		}
	}
	return nil
}

// Encode returns the canonical encoding of the digest, including the item
// count. Used when reconstructing signing payloads and by test fixtures.
func (d Digest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PreRuntimeOf returns the first PreRuntime item for the given engine, or
// nil if there is none.
func (d Digest) PreRuntimeOf(id ConsensusEngineID) *DigestLog {
	return d.first(DigestPreRuntime, id)
}

// SealOf returns the first Seal item for the given engine, or nil.
func (d Digest) SealOf(id ConsensusEngineID) *DigestLog {
	return d.first(DigestSeal, id)
}

// ConsensusOf returns every Consensus item for the given engine, in order.
func (d Digest) ConsensusOf(id ConsensusEngineID) []DigestLog {
	var out []DigestLog
	for _, item := range d {
		if item.Type == DigestConsensus && item.EngineID == id {
			out = append(out, item)
		}
	}
	return out
}

// WithoutSeal returns a copy of the digest with all Seal items removed.
// The result is the digest over which the seal itself is computed.
func (d Digest) WithoutSeal() Digest {
	out := make(Digest, 0, len(d))
	for _, item := range d {
		if item.Type != DigestSeal {
			out = append(out, item)
		}
	}
	return out
}

func (d Digest) first(t DigestType, id ConsensusEngineID) *DigestLog {
	for i := range d {
		if d[i].Type == t && d[i].EngineID == id {
			return &d[i]
		}
	}
	return nil
}
