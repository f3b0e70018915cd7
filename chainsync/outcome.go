package chainsync

import (
	"errors"

	"github.com/arclight-network/arclight/types"
)

// PeerID names the peer that supplied an input. The core does not decide
// reputation policy; it only attributes every verdict.
type PeerID string

// Status is the category of a submit verdict, stable for peer-policy
// dispatch. The Err field of the Outcome carries the precise reason.
type Status string

const (
	// StatusVerified: the header passed verification and is retained.
	StatusVerified Status = "verified"
	// StatusFinalized: the justification passed and the target is final.
	StatusFinalized Status = "finalized"
	// StatusAlreadyKnown: duplicate of a retained or finalized header;
	// nothing was mutated.
	StatusAlreadyKnown Status = "already_known"
	// StatusAwaitingParent: not an error; fetch the parent and resubmit.
	StatusAwaitingParent Status = "awaiting_parent"
	// StatusAwaitingAncestor: the justification targets a header whose
	// ancestry is not retained; backfill and resubmit.
	StatusAwaitingAncestor Status = "awaiting_ancestor"
	// StatusCapacityExceeded: the non-finalized depth limit is reached;
	// wait for finalization to advance.
	StatusCapacityExceeded Status = "capacity_exceeded"
	// StatusBadEncoding: the blob did not decode; fatal to this input only.
	StatusBadEncoding Status = "bad_encoding"
	// StatusRejected: the header failed a consensus check.
	StatusRejected Status = "rejected"
	// StatusInvalidJustification: the justification failed signature,
	// membership or weight checks.
	StatusInvalidJustification Status = "invalid_justification"
)

// Outcome is the explicit result of a submit call. No outcome is ever
// silently dropped: every submission returns exactly one.
type Outcome struct {
	Status Status
	Err    error
	Peer   PeerID

	// Hash and Number identify the subject header when it decoded far
	// enough to have one.
	Hash   types.Hash
	Number uint64
}

// OK reports whether the outcome is a success (verified or finalized).
func (o Outcome) OK() bool {
	return o.Status == StatusVerified || o.Status == StatusFinalized
}

// Retriable reports whether the same submission may succeed later once
// missing data arrives or finalization advances.
func (o Outcome) Retriable() bool {
	switch o.Status {
	case StatusAwaitingParent, StatusAwaitingAncestor, StatusCapacityExceeded:
		return true
	}
	return false
}

func headerStatusFromErr(err error) Status {
	var structural types.ErrStructuralDecode
	switch {
	case errors.As(err, &structural):
		return StatusBadEncoding
	case errors.Is(err, types.ErrAwaitingParent):
		return StatusAwaitingParent
	case errors.Is(err, types.ErrCapacityExceeded):
		return StatusCapacityExceeded
	case errors.Is(err, types.ErrAlreadyInTree):
		return StatusAlreadyKnown
	default:
		return StatusRejected
	}
}

func justificationStatusFromErr(err error) Status {
	var (
		structural   types.ErrStructuralDecode
		insufficient types.ErrInsufficientWeight
	)
	switch {
	case errors.As(err, &structural):
		return StatusBadEncoding
	case errors.Is(err, types.ErrAwaitingAncestor), errors.Is(err, types.ErrUnknownBlock):
		return StatusAwaitingAncestor
	case errors.As(err, &insufficient):
		return StatusInvalidJustification
	default:
		return StatusInvalidJustification
	}
}
