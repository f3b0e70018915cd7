package chainsync_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclight-network/arclight/chainsync"
	"github.com/arclight-network/arclight/crypto/ed25519"
	"github.com/arclight-network/arclight/types"
)

func buildJustification(t *testing.T, privs []ed25519.PrivKey, target *types.Header, round, setID uint64, signers ...int) *types.Justification {
	t.Helper()

	j := &types.Justification{
		Round:        round,
		SetID:        setID,
		TargetHash:   target.Hash(),
		TargetNumber: uint32(target.Number),
	}
	signBytes := types.VoteSignBytes(j.TargetHash, j.TargetNumber, round, setID)
	for _, idx := range signers {
		sig, err := privs[idx].Sign(signBytes)
		require.NoError(t, err)

		vote := types.SignedVote{TargetHash: j.TargetHash, TargetNumber: j.TargetNumber}
		copy(vote.Signature[:], sig)
		copy(vote.AuthorityID[:], privs[idx].PubKey().Bytes())
		j.Votes = append(j.Votes, vote)
	}
	return j
}

// warpFixture is a two-hop proof: set 0 proves a handoff to set 1 at #10,
// set 1 attests the sync target at #20.
type warpFixture struct {
	f *fixture

	gen1Privs  []ed25519.PrivKey
	checkpoint *types.Header
	target     *types.Header
	randomness [32]byte
}

func newWarpFixture(t *testing.T, opts ...chainsync.Option) *warpFixture {
	t.Helper()

	f := newFixture(t, opts...)
	gen1Privs, gen1Auths := voteKeys(4, 1)

	checkpoint := &types.Header{
		ParentHash: types.Hash{0x0a},
		Number:     10,
		StateRoot:  types.Hash{0x0b},
		Digest: types.Digest{
			scheduledChangeDigest(t, finalityEngineID, gen1Auths, 0),
		},
	}
	target := &types.Header{
		ParentHash: types.Hash{0x0c},
		Number:     20,
		StateRoot:  types.Hash{0x0d},
	}

	return &warpFixture{
		f:          f,
		gen1Privs:  gen1Privs,
		checkpoint: checkpoint,
		target:     target,
		randomness: [32]byte{0xcc},
	}
}

func (w *warpFixture) proof(t *testing.T) *chainsync.WarpProof {
	t.Helper()
	return &chainsync.WarpProof{
		Fragments: []chainsync.WarpFragment{
			{Header: w.checkpoint, Justification: buildJustification(t, w.f.votePrivs, w.checkpoint, 1, 0, 0, 1, 2)},
			{Header: w.target, Justification: buildJustification(t, w.gen1Privs, w.target, 2, 1, 0, 1, 3)},
		},
		Randomness:      w.randomness,
		SlotAuthorities: w.f.cfg.SlotAuthorities,
	}
}

func (w *warpFixture) sync(t *testing.T, proof *chainsync.WarpProof) chainsync.Outcome {
	t.Helper()
	raw, err := proof.Encode()
	require.NoError(t, err)
	return w.f.engine.WarpSync(raw, testPeer)
}

func TestWarpProofRoundTrip(t *testing.T) {
	w := newWarpFixture(t)
	proof := w.proof(t)

	raw, err := proof.Encode()
	require.NoError(t, err)

	got, err := chainsync.DecodeWarpProof(raw)
	require.NoError(t, err)
	require.Len(t, got.Fragments, 2)
	assert.Equal(t, w.checkpoint.Hash(), got.Fragments[0].Header.Hash())
	assert.Equal(t, w.target.Hash(), got.Fragments[1].Header.Hash())
	assert.Equal(t, proof.Randomness, got.Randomness)
	assert.Equal(t, proof.SlotAuthorities, got.SlotAuthorities)

	_, err = chainsync.DecodeWarpProof([]byte{0x01})
	require.Error(t, err)
	_, err = chainsync.DecodeWarpProof(raw[:len(raw)-7])
	require.Error(t, err)
	_, err = chainsync.DecodeWarpProof(append(raw, 0x00))
	require.Error(t, err)
}

func TestWarpSync(t *testing.T) {
	var finalized []uint64
	w := newWarpFixture(t, chainsync.OnFinalized(func(hdr *types.Header) {
		finalized = append(finalized, hdr.Number)
	}))

	out := w.sync(t, w.proof(t))
	require.Equal(t, chainsync.StatusFinalized, out.Status, "%v", out.Err)
	assert.Equal(t, w.target.Hash(), out.Hash)
	assert.EqualValues(t, 20, out.Number)

	_, root := w.f.engine.FinalizedHead()
	assert.Equal(t, w.target.Hash(), root.Hash())

	best, _ := w.f.engine.BestChainHead()
	assert.Equal(t, w.target.Hash(), best)

	// only the sync target is announced; skipped history has no headers
	assert.Equal(t, []uint64{20}, finalized)
}

func TestWarpSyncThenResume(t *testing.T) {
	w := newWarpFixture(t)
	out := w.sync(t, w.proof(t))
	require.Equal(t, chainsync.StatusFinalized, out.Status, "%v", out.Err)

	// incremental sync continues from the warp target using the proof's
	// trailing slot state
	w.f.rand[w.target.Hash()] = w.randomness
	w.f.slots[w.target.Hash()] = 0

	h21 := w.f.childOf(w.target, 0)
	h22 := w.f.childOf(h21, 1)
	w.f.mustSubmit(h21, h22)

	// the voter set minted during warp finalizes new blocks under set id 1
	j, err := buildJustification(t, w.gen1Privs, h22, 3, 1, 0, 1, 2).Encode(true)
	require.NoError(t, err)
	out = w.f.engine.SubmitJustification(j, testPeer)
	require.Equal(t, chainsync.StatusFinalized, out.Status, "%v", out.Err)

	// pre-warp history is rejected as regressing
	old := buildJustification(t, w.f.votePrivs, w.f.childOf(w.f.genesis, 0), 1, 0, 0, 1, 2)
	raw, err := old.Encode(false)
	require.NoError(t, err)
	out = w.f.engine.SubmitJustification(raw, testPeer)
	assert.Equal(t, chainsync.StatusInvalidJustification, out.Status)
	require.ErrorIs(t, out.Err, types.ErrNonMonotonicFinality)
}

func TestWarpSyncRejections(t *testing.T) {
	t.Run("empty proof", func(t *testing.T) {
		w := newWarpFixture(t)
		out := w.sync(t, &chainsync.WarpProof{
			Randomness:      w.randomness,
			SlotAuthorities: w.f.cfg.SlotAuthorities,
		})
		assert.Equal(t, chainsync.StatusBadEncoding, out.Status)
	})

	t.Run("missing slot authorities", func(t *testing.T) {
		w := newWarpFixture(t)
		proof := w.proof(t)
		proof.SlotAuthorities = nil
		out := w.sync(t, proof)
		assert.Equal(t, chainsync.StatusBadEncoding, out.Status)
	})

	t.Run("fragment without a handoff", func(t *testing.T) {
		w := newWarpFixture(t)
		plain := &types.Header{ParentHash: types.Hash{0x0a}, Number: 10, StateRoot: types.Hash{0x0b}}
		proof := w.proof(t)
		proof.Fragments[0] = chainsync.WarpFragment{
			Header:        plain,
			Justification: buildJustification(t, w.f.votePrivs, plain, 1, 0, 0, 1, 2),
		}
		out := w.sync(t, proof)
		assert.Equal(t, chainsync.StatusInvalidJustification, out.Status)
		require.ErrorIs(t, out.Err, types.ErrInvalidWarpProofChain)
	})

	t.Run("non-advancing fragments", func(t *testing.T) {
		w := newWarpFixture(t)
		stale := &types.Header{ParentHash: types.Hash{0x0c}, Number: 10, StateRoot: types.Hash{0x0d}}
		proof := w.proof(t)
		proof.Fragments[1] = chainsync.WarpFragment{
			Header:        stale,
			Justification: buildJustification(t, w.gen1Privs, stale, 2, 1, 0, 1, 3),
		}
		out := w.sync(t, proof)
		assert.Equal(t, chainsync.StatusInvalidJustification, out.Status)
		require.ErrorIs(t, out.Err, types.ErrInvalidWarpProofChain)
	})

	t.Run("justification from the wrong voters", func(t *testing.T) {
		w := newWarpFixture(t)
		proof := w.proof(t)
		proof.Fragments[0].Justification = buildJustification(t, w.gen1Privs, w.checkpoint, 1, 0, 0, 1, 2)
		out := w.sync(t, proof)
		assert.Equal(t, chainsync.StatusInvalidJustification, out.Status)
		require.ErrorIs(t, out.Err, types.ErrVoterNotInSet)
	})

	t.Run("justification targeting another header", func(t *testing.T) {
		w := newWarpFixture(t)
		proof := w.proof(t)
		proof.Fragments[0].Justification = buildJustification(t, w.f.votePrivs, w.target, 1, 0, 0, 1, 2)
		out := w.sync(t, proof)
		assert.Equal(t, chainsync.StatusInvalidJustification, out.Status)
		require.ErrorIs(t, out.Err, types.ErrInvalidWarpProofChain)
	})

	t.Run("nothing mutated on rejection", func(t *testing.T) {
		w := newWarpFixture(t)
		proof := w.proof(t)
		proof.Fragments[1].Justification = buildJustification(t, w.gen1Privs, w.target, 2, 1, 0)
		out := w.sync(t, proof)
		assert.Equal(t, chainsync.StatusInvalidJustification, out.Status)

		_, root := w.f.engine.FinalizedHead()
		assert.Equal(t, w.f.genesis.Hash(), root.Hash())
	})
}
