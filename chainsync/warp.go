package chainsync

import (
	"bytes"
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"

	"github.com/arclight-network/arclight/blocktree"
	"github.com/arclight-network/arclight/finality"
	"github.com/arclight-network/arclight/types"
	"github.com/arclight-network/arclight/verifier"
)

// WarpFragment is one link in a warp proof: a header announcing an
// authority-set change, plus the justification that finalizes it, signed
// by the set in force before the change.
type WarpFragment struct {
	Header        *types.Header
	Justification *types.Justification
}

// WarpProof is a chain of fragments leading from an already-trusted
// authority set (usually genesis) to a finalized point near the chain tip,
// plus the slot-engine state in force at that point. The trailing state is
// covered by the same trust assumption as the final justification: a
// supermajority of the voter set attested the final header.
type WarpProof struct {
	Fragments []WarpFragment

	// Randomness is the VRF randomness accumulator at the final header,
	// needed to verify slot claims from that point on.
	Randomness [32]byte

	// SlotAuthorities is the block-production set in force at the final
	// header.
	SlotAuthorities []types.Authority
}

type warpFragmentWire struct {
	Header        []byte
	Justification []byte
}

type warpProofWire struct {
	Fragments       []warpFragmentWire
	Randomness      [32]byte
	SlotAuthorities []types.Authority
}

// DecodeWarpProof parses a warp proof blob.
func DecodeWarpProof(bz []byte) (*WarpProof, error) {
	var wire warpProofWire
	if err := types.DecodeExact(bz, &wire, "warp proof"); err != nil {
		return nil, err
	}

	proof := &WarpProof{
		Randomness:      wire.Randomness,
		SlotAuthorities: wire.SlotAuthorities,
	}
	for i, f := range wire.Fragments {
		hdr, err := types.DecodeHeader(f.Header)
		if err != nil {
			return nil, types.ErrStructuralDecode{What: fmt.Sprintf("warp fragment %d header", i), Reason: err}
		}
		j, err := types.DecodeJustification(f.Justification)
		if err != nil {
			return nil, types.ErrStructuralDecode{What: fmt.Sprintf("warp fragment %d justification", i), Reason: err}
		}
		proof.Fragments = append(proof.Fragments, WarpFragment{Header: hdr, Justification: j})
	}
	return proof, nil
}

// Encode returns the wire form of the proof. Used by proof servers and
// test fixtures.
func (p *WarpProof) Encode() ([]byte, error) {
	wire := warpProofWire{
		Randomness:      p.Randomness,
		SlotAuthorities: p.SlotAuthorities,
	}
	for _, f := range p.Fragments {
		hdrBz, err := f.Header.Encode()
		if err != nil {
			return nil, err
		}
		jBz, err := f.Justification.Encode(false)
		if err != nil {
			return nil, err
		}
		wire.Fragments = append(wire.Fragments, warpFragmentWire{Header: hdrBz, Justification: jBz})
	}

	var buf bytes.Buffer
	if err := scale.NewEncoder(&buf).Encode(wire); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WarpSync bootstraps trust at the proof's final header without verifying
// the intermediate history. Each fragment's justification is verified
// against the authority set proved by the previous fragment, starting from
// the engine's currently trusted set; nothing is trusted that a
// supermajority has not signed. On success the final header becomes the
// new finalized root and normal incremental sync resumes from it.
func (e *Engine) WarpSync(raw []byte, peer PeerID) Outcome {
	proof, err := DecodeWarpProof(raw)
	if err != nil {
		return Outcome{Status: StatusBadEncoding, Err: err, Peer: peer}
	}
	out := e.warpSync(proof, peer)
	if out.OK() {
		e.logger.Info("warp sync complete", "hash", out.Hash.ShortString(), "number", out.Number,
			"fragments", len(proof.Fragments), "peer", peer)
		final := proof.Fragments[len(proof.Fragments)-1].Header
		e.notifyFinalized(final)
	} else {
		e.logger.Info("warp sync rejected", "peer", peer, "err", out.Err)
	}
	return out
}

func (e *Engine) warpSync(proof *WarpProof, peer PeerID) Outcome {
	out := Outcome{Peer: peer}
	if len(proof.Fragments) == 0 {
		out.Status, out.Err = StatusBadEncoding,
			types.ErrStructuralDecode{What: "warp proof", Reason: fmt.Errorf("no fragments")}
		return out
	}
	if len(proof.SlotAuthorities) == 0 {
		out.Status, out.Err = StatusBadEncoding,
			types.ErrStructuralDecode{What: "warp proof", Reason: fmt.Errorf("no slot authorities")}
		return out
	}

	e.mtx.RLock()
	voteSet := e.voteAuths.Current()
	_, rootHdr := e.tree.FinalizedRoot()
	e.mtx.RUnlock()

	lastNumber := rootHdr.Number
	for i := range proof.Fragments {
		frag := &proof.Fragments[i]
		hash := frag.Header.Hash()

		if frag.Header.Number <= lastNumber {
			out.Status, out.Err = StatusInvalidJustification,
				fmt.Errorf("%w: fragment %d height %d does not advance past %d",
					types.ErrInvalidWarpProofChain, i, frag.Header.Number, lastNumber)
			return out
		}
		if frag.Justification.TargetHash != hash ||
			uint64(frag.Justification.TargetNumber) != frag.Header.Number {
			out.Status, out.Err = StatusInvalidJustification,
				fmt.Errorf("%w: fragment %d justification targets a different header",
					types.ErrInvalidWarpProofChain, i)
			return out
		}

		if err := finality.VerifyJustification(frag.Justification, voteSet, e.cfg.FinalityThreshold); err != nil {
			out.Status, out.Err = justificationStatusFromErr(err),
				fmt.Errorf("warp fragment %d: %w", i, err)
			return out
		}
		e.metrics.WarpFragments.Add(1)
		lastNumber = frag.Header.Number

		// Advance the voter set through the change this fragment proves.
		// Every fragment but the last must carry one; the last is simply
		// the sync target.
		changes := frag.Header.Digest.ConsensusOf(e.finalityEngineID)
		if len(changes) == 0 {
			if i != len(proof.Fragments)-1 {
				out.Status, out.Err = StatusInvalidJustification,
					fmt.Errorf("%w: fragment %d proves no authority change", types.ErrInvalidWarpProofChain, i)
				return out
			}
			continue
		}
		change, err := types.DecodeAuthorityChange(changes[0].Data)
		if err != nil {
			out.Status, out.Err = StatusBadEncoding,
				types.ErrStructuralDecode{What: fmt.Sprintf("warp fragment %d change", i), Reason: err}
			return out
		}
		next, err := types.NewAuthoritySet(change.Authorities, voteSet.ID+1)
		if err != nil {
			out.Status, out.Err = StatusInvalidJustification,
				fmt.Errorf("warp fragment %d: %w", i, err)
			return out
		}
		voteSet = next
	}

	final := proof.Fragments[len(proof.Fragments)-1]
	finalHash := final.Header.Hash()

	slotSet, err := types.NewAuthoritySet(proof.SlotAuthorities, voteSet.ID)
	if err != nil {
		out.Status, out.Err = StatusInvalidJustification, fmt.Errorf("warp slot authorities: %w", err)
		return out
	}

	rootMeta := verifier.GenesisMeta(proof.Randomness)
	if engine, preRuntime, err := e.registry.ForHeader(final.Header); err == nil {
		if claim, err := engine.DecodeClaim(preRuntime.Data); err == nil {
			rootMeta.Slot = claim.Slot
			rootMeta.AuthorityIndex = claim.AuthorityIndex
			rootMeta.Primary = claim.Primary
			rootMeta.EpochIndex = engine.EpochIndex(claim.Slot)
		}
	}

	e.mtx.Lock()
	e.tree = blocktree.New(final.Header, rootMeta, e.cfg.MaxNonFinalizedDepth)
	e.voteAuths.SetCurrent(voteSet)
	e.slotAuths.SetCurrent(slotSet)
	for i := range proof.Fragments {
		e.finalized.Add(proof.Fragments[i].Header.Hash(), struct{}{})
	}
	e.orphans.Purge()
	e.metrics.FinalizedHeight.Set(float64(final.Header.Number))
	e.metrics.BestHeight.Set(float64(final.Header.Number))
	e.metrics.TreeSize.Set(float64(e.tree.Size()))
	e.mtx.Unlock()

	out.Status = StatusFinalized
	out.Hash = finalHash
	out.Number = final.Header.Number
	return out
}
