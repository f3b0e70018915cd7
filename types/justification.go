package types

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/ChainSafe/gossamer/pkg/scale"
	"github.com/klauspost/compress/zstd"
)

// SignatureSize is the size of an encoded finality-vote signature.
const SignatureSize = 64

// SignedVote is a single finality vote: one authority's signature over a
// target block.
type SignedVote struct {
	TargetHash   Hash
	TargetNumber uint32
	Signature    [SignatureSize]byte
	AuthorityID  [AuthorityKeySize]byte
}

// Justification is a bundled set of signed votes proving supermajority
// agreement on a finalized target. It is consumed and discarded once
// verification completes; the core never stores justifications.
type Justification struct {
	Round        uint64
	SetID        uint64
	TargetHash   Hash
	TargetNumber uint32
	Votes        []SignedVote
}

// zstd frames start with this little-endian magic number.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	zstdDecoderOnce sync.Once
	zstdDecoder     *zstd.Decoder
	zstdEncoderOnce sync.Once
	zstdEncoder     *zstd.Encoder
)

// DecodeJustification parses a justification blob. Justifications are
// shipped zstd-compressed on the wire; uncompressed blobs are accepted too,
// distinguished by the frame magic.
func DecodeJustification(bz []byte) (*Justification, error) {
	if bytes.HasPrefix(bz, zstdMagic) {
		zstdDecoderOnce.Do(func() {
			var err error
			zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
			if err != nil {
				panic(err)
			}
		})

		var err error
		bz, err = zstdDecoder.DecodeAll(bz, nil)
		if err != nil {
			return nil, ErrStructuralDecode{What: "justification", Reason: err}
		}
	}

	var j Justification
	if err := DecodeExact(bz, &j, "justification"); err != nil {
		return nil, err
	}
	return &j, nil
}

// Encode returns the SCALE encoding of the justification, zstd-compressed
// when compress is set. Used by test fixtures and warp-proof construction.
func (j *Justification) Encode(compress bool) ([]byte, error) {
	bz, err := scale.Marshal(*j)
	if err != nil {
		return nil, err
	}
	if !compress {
		return bz, nil
	}

	zstdEncoderOnce.Do(func() {
		zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		if err != nil {
			panic(err)
		}
	})
	return zstdEncoder.EncodeAll(bz, nil), nil
}

// voteSignPayload is the canonical payload a finality voter signs. Round
// and set id are bound into the payload so a vote cannot be replayed across
// rounds or authority sets.
type voteSignPayload struct {
	TargetHash   Hash
	TargetNumber uint32
	Round        uint64
	SetID        uint64
}

// VoteSignBytes returns the bytes signed by the vote's author.
func VoteSignBytes(targetHash Hash, targetNumber uint32, round, setID uint64) []byte {
	bz, err := scale.Marshal(voteSignPayload{
		TargetHash:   targetHash,
		TargetNumber: targetNumber,
		Round:        round,
		SetID:        setID,
	})
	if err != nil {
		panic(fmt.Sprintf("vote payload encoding cannot fail: %v", err))
	}
	return bz
}

func (j *Justification) String() string {
	if j == nil {
		return "nil-Justification"
	}
	return fmt.Sprintf("Justification{round:%d set:%d target:#%d %s votes:%d}",
		j.Round, j.SetID, j.TargetNumber, j.TargetHash.ShortString(), len(j.Votes))
}
