// Package sassafras implements the VRF-based slot-leadership engine.
//
// Every slot has exactly one primary author, elected by evaluating a VRF
// over the fork's epoch randomness and comparing the output against a
// per-authority threshold; empty primary slots are filled by a
// deterministically assigned secondary author. Primary blocks outweigh
// secondary blocks in fork choice.
package sassafras

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	"github.com/ChainSafe/gossamer/pkg/scale"
	"github.com/gtank/merlin"

	"github.com/arclight-network/arclight/consensus"
	"github.com/arclight-network/arclight/crypto"
	"github.com/arclight-network/arclight/crypto/sr25519"
	"github.com/arclight-network/arclight/types"
)

const (
	claimTagPrimary   uint8 = 1
	claimTagSecondary uint8 = 2

	primaryWeight   uint64 = 2
	secondaryWeight uint64 = 1

	// vrfThresholdBytes is the number of VRF output bytes interpreted as an
	// integer for the leadership-threshold comparison.
	vrfThresholdBytes = 16
)

var (
	transcriptLabel = []byte("sassafras")
	vrfByteContext  = []byte("sassafras-vrf")
)

// Config holds the engine parameters shared by the whole network. C is the
// probability, as a fraction, that a slot has at least one primary leader.
type Config struct {
	EngineID      types.ConsensusEngineID
	CNumerator    uint64
	CDenominator  uint64
	SlotsPerEpoch uint64
}

// Engine implements consensus.Engine.
type Engine struct {
	cfg Config
}

var _ consensus.Engine = (*Engine)(nil)

func New(cfg Config) (*Engine, error) {
	if cfg.CDenominator == 0 || cfg.CNumerator > cfg.CDenominator {
		return nil, fmt.Errorf("leadership fraction %d/%d is not in (0, 1]", cfg.CNumerator, cfg.CDenominator)
	}
	if cfg.SlotsPerEpoch == 0 {
		return nil, fmt.Errorf("slots per epoch must be positive")
	}
	return &Engine{cfg: cfg}, nil
}

func (e *Engine) ID() types.ConsensusEngineID {
	return e.cfg.EngineID
}

// EpochIndex returns the epoch a slot belongs to.
func (e *Engine) EpochIndex(slot uint64) uint64 {
	return slot / e.cfg.SlotsPerEpoch
}

type primaryClaimWire struct {
	AuthorityIndex uint32
	Slot           uint64
	VRFOutput      [sr25519.VRFOutputSize]byte
	VRFProof       [sr25519.VRFProofSize]byte
}

type secondaryClaimWire struct {
	AuthorityIndex uint32
	Slot           uint64
}

// DecodeClaim parses a pre-runtime digest payload into a slot claim.
func (e *Engine) DecodeClaim(data []byte) (*consensus.SlotClaim, error) {
	dec, r := types.NewExactDecoder(data)

	var tag uint8
	if err := dec.Decode(&tag); err != nil {
		return nil, types.ErrStructuralDecode{What: "slot claim", Reason: err}
	}

	claim := new(consensus.SlotClaim)
	switch tag {
	case claimTagPrimary:
		var wire primaryClaimWire
		if err := dec.Decode(&wire); err != nil {
			return nil, types.ErrStructuralDecode{What: "primary slot claim", Reason: err}
		}
		claim.Primary = true
		claim.AuthorityIndex = wire.AuthorityIndex
		claim.Slot = wire.Slot
		claim.VRFOutput = wire.VRFOutput
		claim.VRFProof = wire.VRFProof

	case claimTagSecondary:
		var wire secondaryClaimWire
		if err := dec.Decode(&wire); err != nil {
			return nil, types.ErrStructuralDecode{What: "secondary slot claim", Reason: err}
		}
		claim.AuthorityIndex = wire.AuthorityIndex
		claim.Slot = wire.Slot

	default:
		return nil, types.ErrStructuralDecode{
			What:   "slot claim",
			Reason: fmt.Errorf("unknown claim tag %d", tag),
		}
	}

	if r.Len() != 0 {
		return nil, types.ErrStructuralDecode{What: "slot claim", Reason: fmt.Errorf("%d trailing bytes", r.Len())}
	}
	return claim, nil
}

// EncodeClaim is the inverse of DecodeClaim. Used by block authors and test
// fixtures.
func EncodeClaim(claim *consensus.SlotClaim) ([]byte, error) {
	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)

	if claim.Primary {
		if err := enc.Encode(claimTagPrimary); err != nil {
			return nil, err
		}
		err := enc.Encode(primaryClaimWire{
			AuthorityIndex: claim.AuthorityIndex,
			Slot:           claim.Slot,
			VRFOutput:      claim.VRFOutput,
			VRFProof:       claim.VRFProof,
		})
		if err != nil {
			return nil, err
		}
	} else {
		if err := enc.Encode(claimTagSecondary); err != nil {
			return nil, err
		}
		err := enc.Encode(secondaryClaimWire{
			AuthorityIndex: claim.AuthorityIndex,
			Slot:           claim.Slot,
		})
		if err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// VerifyClaim checks slot leadership against the fork's epoch context.
func (e *Engine) VerifyClaim(claim *consensus.SlotClaim, epoch consensus.EpochContext, auths *types.AuthoritySet) error {
	author, ok := auths.ByIndex(claim.AuthorityIndex)
	if !ok {
		return fmt.Errorf("%w: authority index %d out of range (set size %d)",
			types.ErrUnknownAuthority, claim.AuthorityIndex, auths.Len())
	}

	if !claim.Primary {
		// Secondary slots are assigned round-robin over a randomness-seeded
		// starting point, so the expected author is a pure function of the
		// epoch context.
		expected := secondaryAuthor(epoch.Randomness, claim.Slot, uint32(auths.Len()))
		if claim.AuthorityIndex != expected {
			return fmt.Errorf("%w: secondary author %d, expected %d",
				types.ErrBadSlotClaim, claim.AuthorityIndex, expected)
		}
		return nil
	}

	pubKey := sr25519.PubKey(author.PubKey[:])
	t := ClaimTranscript(epoch.Randomness, claim.Slot, epoch.Index)
	ok, err := sr25519.VRFVerify(pubKey, t, claim.VRFOutput, claim.VRFProof)
	if err != nil || !ok {
		return fmt.Errorf("%w: vrf proof rejected", types.ErrBadSlotClaim)
	}

	threshold, err := CalculateThreshold(e.cfg.CNumerator, e.cfg.CDenominator, author.Weight, auths.TotalWeight())
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrBadSlotClaim, err)
	}

	// The transcript was consumed by VRFVerify, so rebuild it for output
	// derivation.
	t = ClaimTranscript(epoch.Randomness, claim.Slot, epoch.Index)
	vrfBytes, err := sr25519.VRFBytes(pubKey, t, claim.VRFOutput, vrfByteContext, vrfThresholdBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrBadSlotClaim, err)
	}

	value := new(big.Int).SetBytes(vrfBytes)
	if value.Cmp(threshold) >= 0 {
		return fmt.Errorf("%w: vrf output above leadership threshold", types.ErrBadSlotClaim)
	}
	return nil
}

// VerifySeal checks the author's sr25519 signature over the unsealed
// header bytes.
func (e *Engine) VerifySeal(claim *consensus.SlotClaim, payload, sig []byte, auths *types.AuthoritySet) error {
	author, ok := auths.ByIndex(claim.AuthorityIndex)
	if !ok {
		return fmt.Errorf("%w: authority index %d out of range (set size %d)",
			types.ErrUnknownAuthority, claim.AuthorityIndex, auths.Len())
	}
	if !sr25519.PubKey(author.PubKey[:]).VerifySignature(payload, sig) {
		return types.ErrBadSeal
	}
	return nil
}

func (e *Engine) ClaimWeight(claim *consensus.SlotClaim) uint64 {
	if claim.Primary {
		return primaryWeight
	}
	return secondaryWeight
}

// NextRandomness folds a primary claim's VRF output into the fork's
// randomness accumulator. Secondary claims carry no VRF output and leave
// the accumulator unchanged.
func (e *Engine) NextRandomness(parent [32]byte, claim *consensus.SlotClaim) [32]byte {
	if !claim.Primary {
		return parent
	}
	return FoldRandomness(parent, claim.VRFOutput)
}

// ClaimTranscript builds the VRF transcript for a slot claim. Every field
// an author can choose is bound into the transcript, so a proof cannot be
// transplanted between slots or epochs.
func ClaimTranscript(randomness [32]byte, slot, epochIndex uint64) *merlin.Transcript {
	t := merlin.NewTranscript(string(transcriptLabel))
	t.AppendMessage([]byte("slot number"), uint64LE(slot))
	t.AppendMessage([]byte("current epoch"), uint64LE(epochIndex))
	t.AppendMessage([]byte("chain randomness"), randomness[:])
	return t
}

// FoldRandomness advances the per-fork randomness accumulator with a
// verified VRF output.
func FoldRandomness(parent [32]byte, out sr25519.VRFOutput) [32]byte {
	var buf [64]byte
	copy(buf[:32], parent[:])
	copy(buf[32:], out[:])
	return blake2bSum(buf[:])
}

// CalculateThreshold computes the primary-leadership threshold for one
// authority: 2^128 * (1 - (1-c)^(weight/totalWeight)), where c is the
// configured leadership fraction. A VRF output below the threshold wins the
// slot.
func CalculateThreshold(cNum, cDen, weight, totalWeight uint64) (*big.Int, error) {
	if totalWeight == 0 {
		return nil, fmt.Errorf("total authority weight is zero")
	}

	c := float64(cNum) / float64(cDen)
	theta := float64(weight) / float64(totalWeight)
	p := 1 - math.Pow(1-c, theta)

	pRat := new(big.Rat).SetFloat64(p)
	if pRat == nil {
		return nil, fmt.Errorf("leadership probability is not finite")
	}

	q := new(big.Int).Lsh(big.NewInt(1), vrfThresholdBytes*8)
	return q.Mul(q, pRat.Num()).Div(q, pRat.Denom()), nil
}

func secondaryAuthor(randomness [32]byte, slot uint64, numAuths uint32) uint32 {
	var buf [40]byte
	copy(buf[:32], randomness[:])
	copy(buf[32:], uint64LE(slot))
	sum := blake2bSum(buf[:])
	return binary.LittleEndian.Uint32(sum[:4]) % numAuths
}

func uint64LE(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

func blake2bSum(bz []byte) [32]byte {
	var h [32]byte
	copy(h[:], crypto.Checksum(bz))
	return h
}
