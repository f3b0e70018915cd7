// Package verifier checks a candidate header against its parent's verified
// context: hash linkage, block number, slot-leadership claim and seal
// signature. It holds no state of its own; the caller decides what to do
// with the verdict.
package verifier

import (
	"fmt"

	"github.com/arclight-network/arclight/consensus"
	"github.com/arclight-network/arclight/types"
)

// BlockMeta is the context derived from a header once verification
// succeeds. It is computed exactly once, then owned by the header tree and
// never mutated.
type BlockMeta struct {
	// Slot the block was produced in.
	Slot uint64
	// AuthorityIndex of the block author within the set in force.
	AuthorityIndex uint32
	// Primary reports whether the author won the slot's primary election.
	Primary bool
	// EpochIndex in force at the block's slot.
	EpochIndex uint64
	// Weight is the cumulative fork-choice weight of the chain up to and
	// including this block.
	Weight uint64
	// Randomness is the fork's randomness accumulator after folding in
	// this block's VRF output.
	Randomness [32]byte
}

// GenesisMeta returns the verified context of the chain's genesis (or any
// warp-trusted root): slot and weight zero, randomness from configuration.
func GenesisMeta(randomness [32]byte) *BlockMeta {
	return &BlockMeta{Randomness: randomness}
}

// Verifier applies engine-specific verification to candidate headers.
// Verifier is stateless and safe for concurrent use.
type Verifier struct {
	registry *consensus.Registry
}

func New(registry *consensus.Registry) *Verifier {
	return &Verifier{registry: registry}
}

// Verify checks hdr against its parent's verified context and the
// authority set in force on that fork. Checks run in order and
// short-circuit on the first failure; the returned error is one of the
// typed consensus rejections so callers can apply differing peer-penalty
// policy. Verify has no side effects.
func (v *Verifier) Verify(
	hdr *types.Header,
	parent *types.Header,
	parentMeta *BlockMeta,
	auths *types.AuthoritySet,
) (*BlockMeta, error) {
	if err := hdr.ValidateBasic(); err != nil {
		return nil, types.ErrStructuralDecode{What: "header", Reason: err}
	}

	if hdr.ParentHash != parent.Hash() {
		return nil, fmt.Errorf("%w: header names %s, verifying against %s",
			types.ErrBadLinkage, hdr.ParentHash.ShortString(), parent.Hash().ShortString())
	}

	if hdr.Number != parent.Number+1 {
		return nil, fmt.Errorf("%w: got %d after parent %d",
			types.ErrNonSequentialNumber, hdr.Number, parent.Number)
	}

	engine, preRuntime, err := v.registry.ForHeader(hdr)
	if err != nil {
		return nil, err
	}

	claim, err := engine.DecodeClaim(preRuntime.Data)
	if err != nil {
		return nil, err
	}

	if claim.Slot <= parentMeta.Slot {
		return nil, fmt.Errorf("%w: slot %d, parent slot %d",
			types.ErrSlotInPast, claim.Slot, parentMeta.Slot)
	}

	epoch := consensus.EpochContext{
		Index:      engine.EpochIndex(claim.Slot),
		Randomness: parentMeta.Randomness,
	}
	if err := engine.VerifyClaim(claim, epoch, auths); err != nil {
		return nil, err
	}

	seal := hdr.Digest.SealOf(engine.ID())
	if seal == nil {
		return nil, types.ErrMissingSeal
	}

	payload, err := hdr.SealPayload()
	if err != nil {
		return nil, types.ErrStructuralDecode{What: "seal payload", Reason: err}
	}
	if err := engine.VerifySeal(claim, payload, seal.Data, auths); err != nil {
		return nil, err
	}

	return &BlockMeta{
		Slot:           claim.Slot,
		AuthorityIndex: claim.AuthorityIndex,
		Primary:        claim.Primary,
		EpochIndex:     epoch.Index,
		Weight:         parentMeta.Weight + engine.ClaimWeight(claim),
		Randomness:     engine.NextRandomness(parentMeta.Randomness, claim),
	}, nil
}
