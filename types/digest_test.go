package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testEngineSlot = ConsensusEngineID{'S', 'A', 'S', 'S'}
	testEngineFin  = ConsensusEngineID{'F', 'N', 'L', 'Y'}
)

func TestDigestRoundTrip(t *testing.T) {
	d := Digest{
		{Type: DigestPreRuntime, EngineID: testEngineSlot, Data: []byte{1, 2, 3}},
		{Type: DigestConsensus, EngineID: testEngineFin, Data: []byte{4, 5}},
		{Type: DigestOther, Data: []byte("opaque")},
		{Type: DigestRuntimeUpdated},
		{Type: DigestSeal, EngineID: testEngineSlot, Data: make([]byte, 64)},
	}

	bz, err := d.Encode()
	require.NoError(t, err)

	got, err := DecodeDigest(bz)
	require.NoError(t, err)
	require.Len(t, got, len(d))
	for i := range d {
		assert.Equal(t, d[i].Type, got[i].Type, "item %d type", i)
		assert.Equal(t, d[i].EngineID, got[i].EngineID, "item %d engine", i)
		assert.Equal(t, d[i].Data, got[i].Data, "item %d payload", i)
	}
}

func TestDigestUnknownEngineIDPreserved(t *testing.T) {
	// An item from an engine this client does not implement must survive
	// decoding untouched.
	alien := ConsensusEngineID{'X', 'X', 'X', 'X'}
	d := Digest{{Type: DigestPreRuntime, EngineID: alien, Data: []byte{0xde, 0xad}}}

	bz, err := d.Encode()
	require.NoError(t, err)

	got, err := DecodeDigest(bz)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, alien, got[0].EngineID)
	assert.Equal(t, []byte{0xde, 0xad}, got[0].Data)
}

func TestDigestDecodeErrors(t *testing.T) {
	valid, err := Digest{{Type: DigestRuntimeUpdated}}.Encode()
	require.NoError(t, err)

	testCases := []struct {
		name string
		bz   []byte
	}{
		{"unknown tag", []byte{0x04, 0x07}},
		{"truncated engine id", []byte{0x04, 0x06, 'S', 'A'}},
		{"truncated count", []byte{}},
		{"trailing bytes", append(append([]byte{}, valid...), 0xff)},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeDigest(tc.bz)
			require.Error(t, err)
			assert.ErrorAs(t, err, new(ErrStructuralDecode))
		})
	}
}

func TestDigestAccessors(t *testing.T) {
	d := Digest{
		{Type: DigestPreRuntime, EngineID: testEngineSlot, Data: []byte{1}},
		{Type: DigestConsensus, EngineID: testEngineFin, Data: []byte{2}},
		{Type: DigestConsensus, EngineID: testEngineFin, Data: []byte{3}},
		{Type: DigestSeal, EngineID: testEngineSlot, Data: []byte{4}},
	}

	pre := d.PreRuntimeOf(testEngineSlot)
	require.NotNil(t, pre)
	assert.Equal(t, []byte{1}, pre.Data)
	assert.Nil(t, d.PreRuntimeOf(testEngineFin))

	seal := d.SealOf(testEngineSlot)
	require.NotNil(t, seal)
	assert.Equal(t, []byte{4}, seal.Data)

	cons := d.ConsensusOf(testEngineFin)
	require.Len(t, cons, 2)
	assert.Equal(t, []byte{2}, cons[0].Data)
	assert.Equal(t, []byte{3}, cons[1].Data)

	unsealed := d.WithoutSeal()
	require.Len(t, unsealed, 3)
	for _, item := range unsealed {
		assert.NotEqual(t, DigestSeal, item.Type)
	}
	// the original is untouched
	assert.Len(t, d, 4)
}

func TestEngineIDFromString(t *testing.T) {
	id, err := EngineIDFromString("SASS")
	require.NoError(t, err)
	assert.Equal(t, testEngineSlot, id)
	assert.Equal(t, "SASS", id.String())

	_, err = EngineIDFromString("TOOLONG")
	require.Error(t, err)
	_, err = EngineIDFromString("")
	require.Error(t, err)
}
