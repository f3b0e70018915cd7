package aura_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclight-network/arclight/consensus"
	"github.com/arclight-network/arclight/consensus/aura"
	"github.com/arclight-network/arclight/crypto/sr25519"
	"github.com/arclight-network/arclight/types"
)

var testEngineID = types.ConsensusEngineID{'A', 'U', 'R', 'A'}

func testAuthoritySet(t *testing.T, n int) (*types.AuthoritySet, []sr25519.PrivKey) {
	t.Helper()
	privs := make([]sr25519.PrivKey, n)
	auths := make([]types.Authority, n)
	for i := range privs {
		privs[i] = sr25519.GenPrivKeyFromSecret([]byte(fmt.Sprintf("round robin author seed %02d pad.", i)))
		copy(auths[i].PubKey[:], privs[i].PubKey().Bytes())
		auths[i].Weight = 1
	}
	set, err := types.NewAuthoritySet(auths, 0)
	require.NoError(t, err)
	return set, privs
}

func TestClaimRoundTrip(t *testing.T) {
	e := aura.New(testEngineID)

	bz, err := aura.EncodeClaim(&consensus.SlotClaim{Slot: 12345})
	require.NoError(t, err)

	claim, err := e.DecodeClaim(bz)
	require.NoError(t, err)
	assert.EqualValues(t, 12345, claim.Slot)
	assert.False(t, claim.Primary)

	_, err = e.DecodeClaim([]byte{1, 2})
	require.Error(t, err)
	_, err = e.DecodeClaim(append(bz, 0x00))
	require.Error(t, err)
}

func TestVerifyClaimRoundRobin(t *testing.T) {
	e := aura.New(testEngineID)
	set, _ := testAuthoritySet(t, 3)

	for slot := uint64(0); slot < 9; slot++ {
		claim := &consensus.SlotClaim{Slot: slot}
		require.NoError(t, e.VerifyClaim(claim, consensus.EpochContext{}, set))
		assert.EqualValues(t, slot%3, claim.AuthorityIndex, "slot %d", slot)
	}

	// a pre-filled index that disagrees with the rotation is rejected
	claim := &consensus.SlotClaim{Slot: 4, AuthorityIndex: 2}
	err := e.VerifyClaim(claim, consensus.EpochContext{}, set)
	require.ErrorIs(t, err, types.ErrBadSlotClaim)
}

func TestVerifySeal(t *testing.T) {
	e := aura.New(testEngineID)
	set, privs := testAuthoritySet(t, 3)

	payload := []byte("unsealed header bytes")
	sig, err := privs[2].Sign(payload)
	require.NoError(t, err)

	claim := &consensus.SlotClaim{Slot: 2, AuthorityIndex: 2}
	require.NoError(t, e.VerifySeal(claim, payload, sig, set))

	sig[0] ^= 0x01
	require.ErrorIs(t, e.VerifySeal(claim, payload, sig, set), types.ErrBadSeal)

	claim.AuthorityIndex = 7
	require.ErrorIs(t, e.VerifySeal(claim, payload, sig, set), types.ErrUnknownAuthority)
}

func TestWeightAndRandomness(t *testing.T) {
	e := aura.New(testEngineID)

	assert.EqualValues(t, 1, e.ClaimWeight(&consensus.SlotClaim{}))
	assert.EqualValues(t, 0, e.EpochIndex(999))

	parent := [32]byte{0x42}
	assert.Equal(t, parent, e.NextRandomness(parent, &consensus.SlotClaim{Slot: 1}))
}
