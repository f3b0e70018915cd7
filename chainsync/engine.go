// Package chainsync is the coordinating engine: it accepts untrusted
// header and justification blobs from peers, verifies them against the
// retained fork tree and authority-set state, and answers the queries the
// transport layer needs to schedule its next requests.
//
// The engine performs no I/O. Missing data is reported as an explicit
// outcome, never awaited; the caller fetches and resubmits.
package chainsync

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/arclight-network/arclight/blocktree"
	"github.com/arclight-network/arclight/consensus"
	"github.com/arclight-network/arclight/consensus/aura"
	"github.com/arclight-network/arclight/consensus/sassafras"
	"github.com/arclight-network/arclight/epochs"
	"github.com/arclight-network/arclight/finality"
	"github.com/arclight-network/arclight/libs/log"
	"github.com/arclight-network/arclight/types"
	"github.com/arclight-network/arclight/verifier"
)

const (
	orphanCacheSize    = 512
	finalizedCacheSize = 8192
)

// Engine owns the header tree and the authority trackers. Mutation is
// serialized behind a single writer lock; the CPU-bound cryptographic
// checks run outside it, so submissions from many peers verify in
// parallel and only the tree update itself is funneled through the lock.
type Engine struct {
	cfg     Config
	logger  log.Logger
	metrics *Metrics

	registry *consensus.Registry
	verifier *verifier.Verifier

	vrfEngineID      types.ConsensusEngineID
	rrEngineID       types.ConsensusEngineID
	finalityEngineID types.ConsensusEngineID

	mtx       sync.RWMutex
	tree      *blocktree.Tree
	slotAuths *epochs.Tracker
	voteAuths *epochs.Tracker

	// orphans remembers headers refused with StatusAwaitingParent, so
	// MissingAncestorsOf can point the transport at the right gap.
	orphans *lru.Cache
	// finalized remembers recently finalized or pruned hashes, so
	// resubmissions are answered without touching the tree.
	finalized *lru.Cache

	onFinalized []func(*types.Header)
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithLogger replaces the nop logger.
func WithLogger(logger log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics replaces the nop metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// OnFinalized registers a callback invoked, outside the engine lock, with
// every newly finalized header in chain order. The execution collaborator
// hangs off this to validate state against the finalized state root.
func OnFinalized(fn func(*types.Header)) Option {
	return func(e *Engine) { e.onFinalized = append(e.onFinalized, fn) }
}

// New builds an engine from its session configuration.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	vrfID, _ := types.EngineIDFromString(cfg.VRFEngineID)
	rrID, _ := types.EngineIDFromString(cfg.RoundRobinEngineID)
	finID, _ := types.EngineIDFromString(cfg.FinalityEngineID)

	vrfEngine, err := sassafras.New(sassafras.Config{
		EngineID:      vrfID,
		CNumerator:    cfg.LeadershipFraction.Numerator,
		CDenominator:  cfg.LeadershipFraction.Denominator,
		SlotsPerEpoch: cfg.SlotsPerEpoch,
	})
	if err != nil {
		return nil, err
	}

	registry, err := consensus.NewRegistry(vrfEngine, aura.New(rrID))
	if err != nil {
		return nil, err
	}

	slotSet, err := types.NewAuthoritySet(cfg.SlotAuthorities, 0)
	if err != nil {
		return nil, fmt.Errorf("genesis slot authorities: %w", err)
	}
	slotAuths, err := epochs.NewTracker(slotSet)
	if err != nil {
		return nil, err
	}

	voteSet, err := types.NewAuthoritySet(cfg.VoteAuthorities, 0)
	if err != nil {
		return nil, fmt.Errorf("genesis vote authorities: %w", err)
	}
	voteAuths, err := epochs.NewTracker(voteSet)
	if err != nil {
		return nil, err
	}

	orphans, err := lru.New(orphanCacheSize)
	if err != nil {
		return nil, err
	}
	finalizedCache, err := lru.New(finalizedCacheSize)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:              cfg,
		logger:           log.NewNopLogger(),
		metrics:          NopMetrics(),
		registry:         registry,
		verifier:         verifier.New(registry),
		vrfEngineID:      vrfID,
		rrEngineID:       rrID,
		finalityEngineID: finID,
		tree:             blocktree.New(cfg.GenesisHeader, verifier.GenesisMeta(cfg.Randomness), cfg.MaxNonFinalizedDepth),
		slotAuths:        slotAuths,
		voteAuths:        voteAuths,
		orphans:          orphans,
		finalized:        finalizedCache,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// SubmitHeader verifies a peer-supplied header blob and, on success,
// retains it in the fork tree. Every call returns an explicit outcome.
func (e *Engine) SubmitHeader(raw []byte, peer PeerID) Outcome {
	hdr, err := types.DecodeHeader(raw)
	if err != nil {
		e.metrics.HeadersSubmitted.With("status", string(StatusBadEncoding)).Add(1)
		e.logger.Debug("header rejected", "peer", peer, "err", err)
		return Outcome{Status: StatusBadEncoding, Err: err, Peer: peer}
	}
	return e.submitHeader(hdr, peer)
}

func (e *Engine) submitHeader(hdr *types.Header, peer PeerID) Outcome {
	out := e.verifyAndInsert(hdr, peer)

	e.metrics.HeadersSubmitted.With("status", string(out.Status)).Add(1)
	switch {
	case out.Status == StatusVerified:
		e.logger.Debug("header verified", "header", hdr, "peer", peer)
	case out.Retriable():
		e.logger.Debug("header deferred", "header", hdr, "peer", peer, "status", out.Status)
	case out.Status == StatusAlreadyKnown:
		e.logger.Debug("header already known", "header", hdr, "peer", peer)
	default:
		e.logger.Info("header rejected", "header", hdr, "peer", peer, "err", out.Err)
	}
	return out
}

func (e *Engine) verifyAndInsert(hdr *types.Header, peer PeerID) Outcome {
	hash := hdr.Hash()
	out := Outcome{Peer: peer, Hash: hash, Number: hdr.Number}

	// Snapshot the parent context under the read lock; the expensive
	// cryptography runs unlocked.
	e.mtx.RLock()
	if e.tree.Contains(hash) {
		e.mtx.RUnlock()
		out.Status = StatusVerified
		return out
	}
	if _, done := e.finalized.Get(hash); done {
		e.mtx.RUnlock()
		out.Status = StatusAlreadyKnown
		return out
	}

	parentHdr, ok := e.tree.HeaderByHash(hdr.ParentHash)
	if !ok {
		e.orphans.Add(hash, hdr)
		e.mtx.RUnlock()
		out.Status, out.Err = StatusAwaitingParent, types.ErrAwaitingParent
		return out
	}
	parentMeta, _ := e.tree.MetaByHash(hdr.ParentHash)
	slotSet, err := e.slotAuths.CurrentSet(hdr.ParentHash, hdr.Number, e.tree)
	e.mtx.RUnlock()
	if err != nil {
		out.Status, out.Err = StatusRejected, err
		return out
	}

	meta, err := e.verifier.Verify(hdr, parentHdr, parentMeta, slotSet)
	if err != nil {
		out.Status, out.Err = headerStatusFromErr(err), err
		return out
	}

	slotChanges, voteChanges, err := e.decodeChanges(hdr)
	if err != nil {
		out.Status, out.Err = StatusRejected, err
		return out
	}

	e.mtx.Lock()
	defer e.mtx.Unlock()

	// The parent context may have shifted while we were verifying.
	if e.tree.Contains(hash) {
		out.Status = StatusVerified
		return out
	}
	for _, c := range slotChanges {
		if err := e.slotAuths.CheckEpochChange(hdr.ParentHash, hdr.Number, c, e.tree); err != nil {
			out.Status, out.Err = StatusRejected, err
			return out
		}
	}
	for _, c := range voteChanges {
		if err := e.voteAuths.CheckEpochChange(hdr.ParentHash, hdr.Number, c, e.tree); err != nil {
			out.Status, out.Err = StatusRejected, err
			return out
		}
	}

	if err := e.tree.Insert(hdr, meta); err != nil {
		out.Status, out.Err = headerStatusFromErr(err), err
		if out.Status == StatusAwaitingParent {
			// The parent was pruned mid-verification: this fork lost.
			if _, done := e.finalized.Get(hdr.ParentHash); done {
				out.Status, out.Err = StatusAlreadyKnown, types.ErrBelowFinalized
			} else {
				e.orphans.Add(hash, hdr)
			}
		}
		if out.Err == types.ErrBelowFinalized {
			out.Status = StatusAlreadyKnown
		}
		return out
	}

	for _, c := range slotChanges {
		if err := e.slotAuths.ApplyEpochChange(hash, hdr.Number, c, e.tree); err != nil {
			panic(fmt.Sprintf("chainsync: checked epoch change failed to apply: %v", err))
		}
	}
	for _, c := range voteChanges {
		if err := e.voteAuths.ApplyEpochChange(hash, hdr.Number, c, e.tree); err != nil {
			panic(fmt.Sprintf("chainsync: checked epoch change failed to apply: %v", err))
		}
	}

	e.orphans.Remove(hash)
	_, best := e.tree.BestChainHead()
	e.metrics.BestHeight.Set(float64(best.Number))
	e.metrics.TreeSize.Set(float64(e.tree.Size()))

	out.Status = StatusVerified
	return out
}

// decodeChanges extracts authority-change announcements for the slot and
// vote trackers from the header's consensus digests.
func (e *Engine) decodeChanges(hdr *types.Header) (slot, vote []*types.AuthorityChange, err error) {
	for _, engineID := range []types.ConsensusEngineID{e.vrfEngineID, e.rrEngineID} {
		for _, item := range hdr.Digest.ConsensusOf(engineID) {
			c, err := types.DecodeAuthorityChange(item.Data)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %v", types.ErrDigestMalformed, err)
			}
			slot = append(slot, c)
		}
	}
	for _, item := range hdr.Digest.ConsensusOf(e.finalityEngineID) {
		c, err := types.DecodeAuthorityChange(item.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", types.ErrDigestMalformed, err)
		}
		vote = append(vote, c)
	}
	return slot, vote, nil
}

// SubmitJustification verifies a peer-supplied justification blob and, on
// success, finalizes its target and prunes the tree.
func (e *Engine) SubmitJustification(raw []byte, peer PeerID) Outcome {
	j, err := types.DecodeJustification(raw)
	if err != nil {
		e.metrics.JustificationsSubmitted.With("status", string(StatusBadEncoding)).Add(1)
		e.logger.Debug("justification rejected", "peer", peer, "err", err)
		return Outcome{Status: StatusBadEncoding, Err: err, Peer: peer}
	}

	out, segment := e.verifyAndFinalize(j, peer)

	e.metrics.JustificationsSubmitted.With("status", string(out.Status)).Add(1)
	switch out.Status {
	case StatusFinalized:
		e.logger.Info("finalized", "hash", j.TargetHash.ShortString(), "number", j.TargetNumber,
			"round", j.Round, "peer", peer)
	case StatusAlreadyKnown, StatusAwaitingAncestor:
		e.logger.Debug("justification deferred", "justification", j.String(), "peer", peer, "status", out.Status)
	default:
		e.logger.Info("justification rejected", "justification", j.String(), "peer", peer, "err", out.Err)
	}

	for _, hdr := range segment {
		e.notifyFinalized(hdr)
	}
	return out
}

func (e *Engine) verifyAndFinalize(j *types.Justification, peer PeerID) (Outcome, []*types.Header) {
	out := Outcome{Peer: peer, Hash: j.TargetHash, Number: uint64(j.TargetNumber)}

	e.mtx.RLock()
	_, rootHdr := e.tree.FinalizedRoot()
	if j.TargetHash == rootHdr.Hash() {
		e.mtx.RUnlock()
		out.Status = StatusAlreadyKnown
		return out, nil
	}

	target, ok := e.tree.HeaderByHash(j.TargetHash)
	if !ok {
		if _, done := e.finalized.Get(j.TargetHash); done || uint64(j.TargetNumber) <= rootHdr.Number {
			// Finalization is monotonic: a justification below the root is
			// a reordering error, not a no-op.
			e.mtx.RUnlock()
			out.Status, out.Err = StatusInvalidJustification, types.ErrNonMonotonicFinality
			return out, nil
		}
		e.mtx.RUnlock()
		out.Status, out.Err = StatusAwaitingAncestor, types.ErrAwaitingAncestor
		return out, nil
	}
	if target.Number != uint64(j.TargetNumber) {
		e.mtx.RUnlock()
		out.Status, out.Err = StatusInvalidJustification,
			fmt.Errorf("%w: target %s is #%d, justification says #%d",
				types.ErrVoteTargetMismatch, j.TargetHash.ShortString(), target.Number, j.TargetNumber)
		return out, nil
	}

	voteSet, err := e.voteAuths.CurrentSet(j.TargetHash, target.Number, e.tree)
	e.mtx.RUnlock()
	if err != nil {
		out.Status, out.Err = StatusInvalidJustification, err
		return out, nil
	}

	if err := finality.VerifyJustification(j, voteSet, e.cfg.FinalityThreshold); err != nil {
		out.Status, out.Err = justificationStatusFromErr(err), err
		return out, nil
	}

	e.mtx.Lock()
	defer e.mtx.Unlock()

	if !e.tree.Contains(j.TargetHash) {
		// The target was pruned by a competing finalization while votes
		// were being checked.
		out.Status, out.Err = StatusInvalidJustification, types.ErrNonMonotonicFinality
		return out, nil
	}

	// Resolve fork-scoped authority state while the finalized path is
	// still retained; Finalize prunes the target's strict ancestors, and
	// with them the headers that announced any pending change.
	e.slotAuths.FinalizeUpTo(j.TargetHash, uint64(j.TargetNumber), e.tree)
	e.voteAuths.FinalizeUpTo(j.TargetHash, uint64(j.TargetNumber), e.tree)

	segment, err := e.tree.Finalize(j.TargetHash)
	if err != nil {
		panic(fmt.Sprintf("chainsync: finalize of retained target failed: %v", err))
	}

	for _, hdr := range segment {
		e.finalized.Add(hdr.Hash(), struct{}{})
	}

	_, best := e.tree.BestChainHead()
	e.metrics.BestHeight.Set(float64(best.Number))
	e.metrics.FinalizedHeight.Set(float64(j.TargetNumber))
	e.metrics.TreeSize.Set(float64(e.tree.Size()))

	out.Status = StatusFinalized
	return out, segment
}

func (e *Engine) notifyFinalized(hdr *types.Header) {
	for _, fn := range e.onFinalized {
		fn(hdr)
	}
}

// BestChainHead returns the tip of the heaviest retained chain.
func (e *Engine) BestChainHead() (types.Hash, *types.Header) {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	return e.tree.BestChainHead()
}

// FinalizedHead returns the finalized root.
func (e *Engine) FinalizedHead() (types.Hash, *types.Header) {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	return e.tree.FinalizedRoot()
}

// MissingAncestorsOf reports what the transport must fetch before hash can
// be retained: the deepest ancestor the engine knows nothing about. An
// empty result means nothing is missing and a resubmission would proceed.
func (e *Engine) MissingAncestorsOf(hash types.Hash) []types.Hash {
	e.mtx.RLock()
	defer e.mtx.RUnlock()

	cur := hash
	for {
		if e.tree.Contains(cur) {
			return nil
		}
		if _, done := e.finalized.Get(cur); done {
			return nil
		}
		v, ok := e.orphans.Get(cur)
		if !ok {
			return []types.Hash{cur}
		}
		cur = v.(*types.Header).ParentHash
	}
}
