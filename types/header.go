package types

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"
	"github.com/rs/zerolog"

	"github.com/arclight-network/arclight/crypto"
)

// Header is an untrusted candidate block header as supplied by a peer.
//
// Identity is the blake2b-256 of the canonical SCALE encoding; headers are
// never mutated after they have been hashed.
type Header struct {
	ParentHash     Hash
	Number         uint64
	StateRoot      Hash
	ExtrinsicsRoot Hash
	Digest         Digest

	// memoized hash of the canonical encoding
	hash Hash
}

// DecodeHeader parses a header from its canonical encoding. The returned
// header has its hash memoized over exactly the bytes consumed.
func DecodeHeader(bz []byte) (*Header, error) {
	dec, r := NewExactDecoder(bz)

	h := new(Header)
	if err := dec.Decode(&h.ParentHash); err != nil {
		return nil, ErrStructuralDecode{What: "header parent hash", Reason: err}
	}

	var number uint
	if err := dec.Decode(&number); err != nil {
		return nil, ErrStructuralDecode{What: "header number", Reason: err}
	}
	h.Number = uint64(number)

	if err := dec.Decode(&h.StateRoot); err != nil {
		return nil, ErrStructuralDecode{What: "header state root", Reason: err}
	}
	if err := dec.Decode(&h.ExtrinsicsRoot); err != nil {
		return nil, ErrStructuralDecode{What: "header extrinsics root", Reason: err}
	}

	digest, err := decodeDigest(dec)
	if err != nil {
		return nil, err
	}
	h.Digest = digest

	if r.Len() != 0 {
		return nil, ErrStructuralDecode{What: "header", Reason: fmt.Errorf("%d trailing bytes", r.Len())}
	}

	h.hash = blakeHash(bz)
	return h, nil
}

// Encode returns the canonical SCALE encoding of the header.
func (h *Header) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)

	if err := enc.Encode(h.ParentHash); err != nil {
		return nil, err
	}
	if err := enc.Encode(uint(h.Number)); err != nil {
		return nil, err
	}
	if err := enc.Encode(h.StateRoot); err != nil {
		return nil, err
	}
	if err := enc.Encode(h.ExtrinsicsRoot); err != nil {
		return nil, err
	}
	if err := h.Digest.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hash returns the header's identity, computing and memoizing it on first
// use if the header was built in-process rather than decoded.
func (h *Header) Hash() Hash {
	if h.hash.IsZero() {
		bz, err := h.Encode()
		if err != nil {
			panic(fmt.Sprintf("header encoding cannot fail for a well-formed header: %v", err))
		}
		h.hash = blakeHash(bz)
	}
	return h.hash
}

// SealPayload returns the bytes an author signs: the canonical encoding of
// the header with every seal digest stripped.
func (h *Header) SealPayload() ([]byte, error) {
	unsealed := Header{
		ParentHash:     h.ParentHash,
		Number:         h.Number,
		StateRoot:      h.StateRoot,
		ExtrinsicsRoot: h.ExtrinsicsRoot,
		Digest:         h.Digest.WithoutSeal(),
	}
	return unsealed.Encode()
}

// ValidateBasic performs stateless checks that do not need the parent.
func (h *Header) ValidateBasic() error {
	if h == nil {
		return errors.New("nil header")
	}
	if h.Number > 0 && h.ParentHash.IsZero() {
		return errors.New("non-genesis header has zero parent hash")
	}
	return nil
}

func (h *Header) String() string {
	if h == nil {
		return "nil-Header"
	}
	return fmt.Sprintf("Header{#%d %s parent:%s}", h.Number, h.Hash().ShortString(), h.ParentHash.ShortString())
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler
func (h *Header) MarshalZerologObject(e *zerolog.Event) {
	e.Uint64("number", h.Number)
	e.Str("hash", h.Hash().ShortString())
	e.Str("parent", h.ParentHash.ShortString())
}

func blakeHash(bz []byte) Hash {
	var h Hash
	copy(h[:], crypto.Checksum(bz))
	return h
}
