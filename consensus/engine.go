// Package consensus defines the contract a per-block consensus engine must
// implement to plug into block verification, and the registry used to pick
// the engine named by a header's digest.
package consensus

import (
	"fmt"

	"github.com/arclight-network/arclight/crypto/sr25519"
	"github.com/arclight-network/arclight/types"
)

// SlotClaim is a decoded slot-leadership claim from a PreRuntime digest.
// VRFOutput and VRFProof are only populated for primary claims of a
// VRF-based engine.
type SlotClaim struct {
	Slot           uint64
	AuthorityIndex uint32
	Primary        bool
	VRFOutput      sr25519.VRFOutput
	VRFProof       sr25519.VRFProof
}

// EpochContext is the fork-scoped randomness state a claim is verified
// against. It is derived from the parent block, never from global state,
// because competing forks may disagree about it until finalization.
type EpochContext struct {
	Index      uint64
	Randomness [32]byte
}

// Engine verifies slot-leadership claims and seals for one consensus
// engine id. Implementations are stateless: everything they need arrives
// as arguments, so calls may run concurrently.
type Engine interface {
	ID() types.ConsensusEngineID

	// EpochIndex maps a slot to its epoch. Engines without epochs return 0.
	EpochIndex(slot uint64) uint64

	// DecodeClaim parses the payload of the engine's PreRuntime digest.
	DecodeClaim(data []byte) (*SlotClaim, error)

	// VerifyClaim checks that the claim's author was entitled to produce a
	// block in the claimed slot. Returns types.ErrBadSlotClaim or
	// types.ErrUnknownAuthority on failure.
	VerifyClaim(claim *SlotClaim, epoch EpochContext, auths *types.AuthoritySet) error

	// VerifySeal checks the author's signature over the seal payload.
	VerifySeal(claim *SlotClaim, payload, sig []byte, auths *types.AuthoritySet) error

	// ClaimWeight is the fork-choice weight a block with this claim adds to
	// its chain.
	ClaimWeight(claim *SlotClaim) uint64

	// NextRandomness folds a verified claim into the fork's randomness
	// accumulator. Engines without VRF output return the parent value
	// unchanged.
	NextRandomness(parent [32]byte, claim *SlotClaim) [32]byte
}

// Registry maps engine ids to engines. The recognized set is configuration
// supplied at startup.
type Registry struct {
	engines map[types.ConsensusEngineID]Engine
}

func NewRegistry(engines ...Engine) (*Registry, error) {
	r := &Registry{engines: make(map[types.ConsensusEngineID]Engine, len(engines))}
	for _, e := range engines {
		if _, ok := r.engines[e.ID()]; ok {
			return nil, fmt.Errorf("duplicate consensus engine id %q", e.ID())
		}
		r.engines[e.ID()] = e
	}
	return r, nil
}

// Lookup returns the engine registered under id.
func (r *Registry) Lookup(id types.ConsensusEngineID) (Engine, bool) {
	e, ok := r.engines[id]
	return e, ok
}

// ForHeader picks the engine that produced hdr by scanning its PreRuntime
// digests for a recognized engine id. Digest items from unrecognized
// engines are skipped, not rejected.
func (r *Registry) ForHeader(hdr *types.Header) (Engine, *types.DigestLog, error) {
	for i := range hdr.Digest {
		item := &hdr.Digest[i]
		if item.Type != types.DigestPreRuntime {
			continue
		}
		if e, ok := r.engines[item.EngineID]; ok {
			return e, item, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: no recognized pre-runtime digest", types.ErrDigestMalformed)
}
