// Package aura implements the round-robin slot-leadership engine: the
// author of slot s is authority s mod len(set). No VRF is involved, so
// every block carries the same fork-choice weight.
package aura

import (
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"

	"github.com/arclight-network/arclight/consensus"
	"github.com/arclight-network/arclight/crypto/sr25519"
	"github.com/arclight-network/arclight/types"
)

const blockWeight uint64 = 1

// Engine implements consensus.Engine.
type Engine struct {
	id types.ConsensusEngineID
}

var _ consensus.Engine = (*Engine)(nil)

func New(id types.ConsensusEngineID) *Engine {
	return &Engine{id: id}
}

func (e *Engine) ID() types.ConsensusEngineID {
	return e.id
}

// EpochIndex implements consensus.Engine. Round-robin production has no
// epochs.
func (e *Engine) EpochIndex(uint64) uint64 {
	return 0
}

// DecodeClaim parses the pre-runtime payload, which is just the slot
// number. The author index is implied by the slot.
func (e *Engine) DecodeClaim(data []byte) (*consensus.SlotClaim, error) {
	var slot uint64
	if err := types.DecodeExact(data, &slot, "slot claim"); err != nil {
		return nil, err
	}

	return &consensus.SlotClaim{Slot: slot}, nil
}

// EncodeClaim is the inverse of DecodeClaim.
func EncodeClaim(claim *consensus.SlotClaim) ([]byte, error) {
	return scale.Marshal(claim.Slot)
}

// VerifyClaim fills in and checks the expected author for the slot.
func (e *Engine) VerifyClaim(claim *consensus.SlotClaim, _ consensus.EpochContext, auths *types.AuthoritySet) error {
	expected := uint32(claim.Slot % uint64(auths.Len()))
	if claim.AuthorityIndex != 0 && claim.AuthorityIndex != expected {
		return fmt.Errorf("%w: author %d, slot assigns %d",
			types.ErrBadSlotClaim, claim.AuthorityIndex, expected)
	}
	claim.AuthorityIndex = expected
	return nil
}

// VerifySeal checks the slot author's sr25519 signature.
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

func (e *Engine) ClaimWeight(*consensus.SlotClaim) uint64 {
	return blockWeight
}

func (e *Engine) NextRandomness(parent [32]byte, _ *consensus.SlotClaim) [32]byte {
	return parent
}
