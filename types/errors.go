package types

import (
	"errors"
	"fmt"
)

// Structural errors are fatal to the single input that produced them, never
// to engine state.

// ErrStructuralDecode wraps any failure to decode a header, digest or
// justification blob.
type ErrStructuralDecode struct {
	What   string
	Reason error
}

func (e ErrStructuralDecode) Error() string {
	return fmt.Sprintf("malformed %s: %v", e.What, e.Reason)
}

func (e ErrStructuralDecode) Unwrap() error { return e.Reason }

// Consensus rejections are fatal to the offending header only. They are
// distinguishable so callers can apply differing peer-penalty policy.
var (
	// ErrBadLinkage means the header's parent hash does not match the parent
	// it was verified against.
	ErrBadLinkage = errors.New("parent hash does not match parent header")

	// ErrNonSequentialNumber means the header's number is not parent+1.
	ErrNonSequentialNumber = errors.New("block number is not parent number + 1")

	// ErrBadSlotClaim means the slot-leadership proof did not verify.
	ErrBadSlotClaim = errors.New("invalid slot claim")

	// ErrSlotInPast means the claimed slot is not after the parent's slot.
	ErrSlotInPast = errors.New("slot is not after parent slot")

	// ErrMissingSeal means the header carries no seal digest for the session
	// engine.
	ErrMissingSeal = errors.New("header is missing a seal digest")

	// ErrBadSeal means the seal signature did not verify against the claimed
	// author.
	ErrBadSeal = errors.New("invalid seal signature")

	// ErrUnknownAuthority means the claimed author is not in the authority
	// set in force at the header's height.
	ErrUnknownAuthority = errors.New("author is not a known authority")

	// ErrDigestMalformed means the digest decoded but does not carry the
	// records the session engine requires.
	ErrDigestMalformed = errors.New("consensus digest is malformed")
)

// Tree results. ErrAwaitingParent and ErrAwaitingAncestor are legitimate
// "not yet" conditions, not faults: the caller must fetch the missing data
// and resubmit.
var (
	ErrAwaitingParent   = errors.New("parent not in tree, fetch and resubmit")
	ErrAwaitingAncestor = errors.New("ancestry not retained, backfill required")
	ErrAlreadyInTree    = errors.New("header already in tree")
	ErrBelowFinalized   = errors.New("header number at or below finalized root")
	ErrCapacityExceeded = errors.New("non-finalized depth limit reached")
	ErrUnknownBlock     = errors.New("unknown block")
)

// Finality rejections.
var (
	ErrInvalidVoteSignature  = errors.New("invalid vote signature")
	ErrVoterNotInSet         = errors.New("voter is not in the authority set")
	ErrDuplicateVoter        = errors.New("duplicate voter in justification")
	ErrWrongSetID            = errors.New("justification set id does not match")
	ErrVoteTargetMismatch    = errors.New("vote target does not match justification target")
	ErrNonMonotonicFinality  = errors.New("justification target is below the finalized root")
	ErrInvalidWarpProofChain = errors.New("warp proof fragments do not form a chain")
)

// ErrInsufficientWeight is returned when a justification's valid votes sum
// below the supermajority threshold.
type ErrInsufficientWeight struct {
	Got    uint64
	Needed uint64
}

func (e ErrInsufficientWeight) Error() string {
	return fmt.Sprintf("insufficient vote weight: got %d, need at least %d", e.Got, e.Needed)
}
