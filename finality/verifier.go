// Package finality validates justifications: bundled sets of signed votes
// claiming supermajority agreement on a finalized target.
package finality

import (
	"fmt"

	"github.com/arclight-network/arclight/crypto/ed25519"
	tmmath "github.com/arclight-network/arclight/libs/math"
	"github.com/arclight-network/arclight/types"
)

// DefaultThreshold is the supermajority fraction required to finalize.
var DefaultThreshold = tmmath.Fraction{Numerator: 2, Denominator: 3}

// WeightNeeded returns the minimum tallied weight for a supermajority:
// the exact integer cutoff ceil(total * num / den), computed without
// overflow for any weights produced by types.NewAuthoritySet.
func WeightNeeded(totalWeight uint64, threshold tmmath.Fraction) uint64 {
	// total * num can exceed uint64 for large weights, so split the
	// multiplication: total = q*den + r.
	q := totalWeight / threshold.Denominator
	r := totalWeight % threshold.Denominator
	return q*threshold.Numerator + (r*threshold.Numerator+threshold.Denominator-1)/threshold.Denominator
}

// VerifyJustification checks j against the authority set in force at its
// target. Each vote must name a set authority exactly once, target the
// justified block, and carry a valid ed25519 signature over the canonical
// vote payload. The valid weight must reach the supermajority threshold.
//
// Verification is pure: the caller finalizes the target on success.
func VerifyJustification(j *types.Justification, auths *types.AuthoritySet, threshold tmmath.Fraction) error {
	if j.SetID != auths.ID {
		return fmt.Errorf("%w: justification names set %d, in force is %d",
			types.ErrWrongSetID, j.SetID, auths.ID)
	}

	seen := make(map[[types.AuthorityKeySize]byte]struct{}, len(j.Votes))
	talliedWeight := uint64(0)

	// Batch the signature checks; on batch failure fall back to
	// per-signature verification so the offending vote is attributable.
	batch := ed25519.NewBatchVerifier()
	batchable := true

	for i := range j.Votes {
		vote := &j.Votes[i]

		if vote.TargetHash != j.TargetHash || vote.TargetNumber != j.TargetNumber {
			return fmt.Errorf("%w: vote %d targets #%d %s",
				types.ErrVoteTargetMismatch, i, vote.TargetNumber, vote.TargetHash.ShortString())
		}

		idx, ok := auths.IndexOf(vote.AuthorityID[:])
		if !ok {
			return fmt.Errorf("%w: vote %d signer %X", types.ErrVoterNotInSet, i, vote.AuthorityID[:4])
		}

		if _, dup := seen[vote.AuthorityID]; dup {
			return fmt.Errorf("%w: vote %d signer %X", types.ErrDuplicateVoter, i, vote.AuthorityID[:4])
		}
		seen[vote.AuthorityID] = struct{}{}

		signBytes := types.VoteSignBytes(vote.TargetHash, vote.TargetNumber, j.Round, j.SetID)
		if err := batch.Add(ed25519.PubKey(vote.AuthorityID[:]), signBytes, vote.Signature[:]); err != nil {
			batchable = false
		}

		var err error
		talliedWeight, err = tmmath.SafeAddUint64(talliedWeight, auths.Authorities[idx].Weight)
		if err != nil {
			// set weights are overflow-checked at construction, so a tally
			// of unique members cannot overflow
			panic(fmt.Sprintf("finality: vote weight tally overflow: %v", err))
		}
	}

	if ok, _ := batch.Verify(); len(j.Votes) > 0 && (!ok || !batchable) {
		// Attribute the failure.
		for i := range j.Votes {
			vote := &j.Votes[i]
			signBytes := types.VoteSignBytes(vote.TargetHash, vote.TargetNumber, j.Round, j.SetID)
			if !ed25519.PubKey(vote.AuthorityID[:]).VerifySignature(signBytes, vote.Signature[:]) {
				return fmt.Errorf("%w: vote %d signer %X", types.ErrInvalidVoteSignature, i, vote.AuthorityID[:4])
			}
		}
		// The batch rejected but every individual signature passed: treat
		// the batch result as authoritative-negative only when attributable.
	}

	if needed := WeightNeeded(auths.TotalWeight(), threshold); talliedWeight < needed {
		return types.ErrInsufficientWeight{Got: talliedWeight, Needed: needed}
	}
	return nil
}
