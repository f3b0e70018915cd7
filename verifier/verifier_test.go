package verifier_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclight-network/arclight/consensus"
	"github.com/arclight-network/arclight/consensus/sassafras"
	"github.com/arclight-network/arclight/crypto/sr25519"
	"github.com/arclight-network/arclight/types"
	"github.com/arclight-network/arclight/verifier"
)

var slotEngineID = types.ConsensusEngineID{'S', 'A', 'S', 'S'}

type fixture struct {
	verifier *verifier.Verifier
	engine   *sassafras.Engine
	auths    *types.AuthoritySet
	privs    []sr25519.PrivKey
	genesis  *types.Header
	genMeta  *verifier.BlockMeta
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	engine, err := sassafras.New(sassafras.Config{
		EngineID:      slotEngineID,
		CNumerator:    1,
		CDenominator:  1,
		SlotsPerEpoch: 100,
	})
	require.NoError(t, err)

	registry, err := consensus.NewRegistry(engine)
	require.NoError(t, err)

	privs := make([]sr25519.PrivKey, 4)
	auths := make([]types.Authority, len(privs))
	for i := range privs {
		privs[i] = sr25519.GenPrivKeyFromSecret([]byte(fmt.Sprintf("verifier test authority %02d pad.", i)))
		copy(auths[i].PubKey[:], privs[i].PubKey().Bytes())
		auths[i].Weight = 1
	}
	set, err := types.NewAuthoritySet(auths, 0)
	require.NoError(t, err)

	return &fixture{
		verifier: verifier.New(registry),
		engine:   engine,
		auths:    set,
		privs:    privs,
		genesis:  &types.Header{Number: 0, StateRoot: types.Hash{0x01}},
		genMeta:  verifier.GenesisMeta([32]byte{0xaa}),
	}
}

// childOf builds a sealed primary-claim header on top of parent.
func (f *fixture) childOf(t *testing.T, parent *types.Header, parentMeta *verifier.BlockMeta, author uint32, slot uint64) *types.Header {
	t.Helper()

	transcript := sassafras.ClaimTranscript(parentMeta.Randomness, slot, f.engine.EpochIndex(slot))
	out, proof, err := sr25519.VRFSign(f.privs[author], transcript)
	require.NoError(t, err)

	claimBz, err := sassafras.EncodeClaim(&consensus.SlotClaim{
		Slot:           slot,
		AuthorityIndex: author,
		Primary:        true,
		VRFOutput:      out,
		VRFProof:       proof,
	})
	require.NoError(t, err)

	hdr := &types.Header{
		ParentHash:     parent.Hash(),
		Number:         parent.Number + 1,
		StateRoot:      types.Hash{byte(parent.Number + 1)},
		ExtrinsicsRoot: types.Hash{0x02},
		Digest: types.Digest{
			{Type: types.DigestPreRuntime, EngineID: slotEngineID, Data: claimBz},
		},
	}

	payload, err := hdr.SealPayload()
	require.NoError(t, err)
	sig, err := f.privs[author].Sign(payload)
	require.NoError(t, err)
	hdr.Digest = append(hdr.Digest, types.DigestLog{
		Type: types.DigestSeal, EngineID: slotEngineID, Data: sig,
	})
	return hdr
}

func TestVerifyChain(t *testing.T) {
	f := newFixture(t)

	h1 := f.childOf(t, f.genesis, f.genMeta, 1, 3)
	meta1, err := f.verifier.Verify(h1, f.genesis, f.genMeta, f.auths)
	require.NoError(t, err)

	assert.EqualValues(t, 3, meta1.Slot)
	assert.EqualValues(t, 1, meta1.AuthorityIndex)
	assert.True(t, meta1.Primary)
	assert.EqualValues(t, 2, meta1.Weight, "primary claim adds weight 2")
	assert.NotEqual(t, f.genMeta.Randomness, meta1.Randomness, "vrf output folds into randomness")

	h2 := f.childOf(t, h1, meta1, 2, 4)
	meta2, err := f.verifier.Verify(h2, h1, meta1, f.auths)
	require.NoError(t, err)
	assert.EqualValues(t, 4, meta2.Weight)
}

func TestVerifyRejections(t *testing.T) {
	f := newFixture(t)
	h1 := f.childOf(t, f.genesis, f.genMeta, 1, 3)
	meta1, err := f.verifier.Verify(h1, f.genesis, f.genMeta, f.auths)
	require.NoError(t, err)

	testCases := []struct {
		name    string
		mutate  func() (*types.Header, *types.Header, *verifier.BlockMeta)
		wantErr error
	}{
		{
			"bad linkage",
			func() (*types.Header, *types.Header, *verifier.BlockMeta) {
				hdr := f.childOf(t, f.genesis, f.genMeta, 1, 3)
				hdr.ParentHash = types.Hash{0xff}
				return hdr, f.genesis, f.genMeta
			},
			types.ErrBadLinkage,
		},
		{
			"non-sequential number",
			func() (*types.Header, *types.Header, *verifier.BlockMeta) {
				hdr := f.childOf(t, f.genesis, f.genMeta, 1, 3)
				hdr.Number = 5
				return hdr, f.genesis, f.genMeta
			},
			types.ErrNonSequentialNumber,
		},
		{
			"slot not after parent",
			func() (*types.Header, *types.Header, *verifier.BlockMeta) {
				hdr := f.childOf(t, h1, meta1, 2, 3)
				return hdr, h1, meta1
			},
			types.ErrSlotInPast,
		},
		{
			"missing seal",
			func() (*types.Header, *types.Header, *verifier.BlockMeta) {
				hdr := f.childOf(t, f.genesis, f.genMeta, 1, 3)
				hdr.Digest = hdr.Digest.WithoutSeal()
				return hdr, f.genesis, f.genMeta
			},
			types.ErrMissingSeal,
		},
		{
			"no pre-runtime digest",
			func() (*types.Header, *types.Header, *verifier.BlockMeta) {
				hdr := f.childOf(t, f.genesis, f.genMeta, 1, 3)
				hdr.Digest = types.Digest{hdr.Digest[1]}
				return hdr, f.genesis, f.genMeta
			},
			types.ErrDigestMalformed,
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			hdr, parent, parentMeta := tc.mutate()
			_, err := f.verifier.Verify(hdr, parent, parentMeta, f.auths)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestVerifyBadSeal(t *testing.T) {
	f := newFixture(t)

	hdr := f.childOf(t, f.genesis, f.genMeta, 1, 3)
	seal := hdr.Digest.SealOf(slotEngineID)
	require.NotNil(t, seal)
	seal.Data[7] ^= 0x01

	_, err := f.verifier.Verify(hdr, f.genesis, f.genMeta, f.auths)
	require.ErrorIs(t, err, types.ErrBadSeal)
}

func TestVerifySealByWrongAuthor(t *testing.T) {
	f := newFixture(t)

	// claim names authority 1, seal signed by authority 2
	hdr := f.childOf(t, f.genesis, f.genMeta, 1, 3)
	payload, err := hdr.SealPayload()
	require.NoError(t, err)
	sig, err := f.privs[2].Sign(payload)
	require.NoError(t, err)
	hdr.Digest.SealOf(slotEngineID).Data = sig

	_, err = f.verifier.Verify(hdr, f.genesis, f.genMeta, f.auths)
	require.ErrorIs(t, err, types.ErrBadSeal)
}

func TestVerifyHasNoSideEffects(t *testing.T) {
	f := newFixture(t)

	hdr := f.childOf(t, f.genesis, f.genMeta, 1, 3)
	metaA, err := f.verifier.Verify(hdr, f.genesis, f.genMeta, f.auths)
	require.NoError(t, err)
	metaB, err := f.verifier.Verify(hdr, f.genesis, f.genMeta, f.auths)
	require.NoError(t, err)

	assert.Equal(t, metaA, metaB)
	assert.Equal(t, verifier.GenesisMeta([32]byte{0xaa}), f.genMeta, "parent context untouched")
}
