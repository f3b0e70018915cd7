package sr25519_test

import (
	"testing"

	"github.com/gtank/merlin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclight-network/arclight/crypto/sr25519"
)

func vrfTranscript(label string) *merlin.Transcript {
	t := merlin.NewTranscript("vrf-test")
	t.AppendMessage([]byte("input"), []byte(label))
	return t
}

func TestVRFSignAndVerify(t *testing.T) {
	priv := sr25519.GenPrivKey()
	pub := priv.PubKey().(sr25519.PubKey)

	out, proof, err := sr25519.VRFSign(priv, vrfTranscript("alpha"))
	require.NoError(t, err)

	ok, err := sr25519.VRFVerify(pub, vrfTranscript("alpha"), out, proof)
	require.NoError(t, err)
	assert.True(t, ok)

	// wrong transcript
	ok, err = sr25519.VRFVerify(pub, vrfTranscript("beta"), out, proof)
	if err == nil {
		assert.False(t, ok)
	}

	// wrong key
	other := sr25519.GenPrivKey().PubKey().(sr25519.PubKey)
	ok, err = sr25519.VRFVerify(other, vrfTranscript("alpha"), out, proof)
	if err == nil {
		assert.False(t, ok)
	}
}

func TestVRFBytesDeterministic(t *testing.T) {
	priv := sr25519.GenPrivKeyFromSecret([]byte("vrf bytes deterministic seed 32b"))
	pub := priv.PubKey().(sr25519.PubKey)

	out, _, err := sr25519.VRFSign(priv, vrfTranscript("alpha"))
	require.NoError(t, err)

	a, err := sr25519.VRFBytes(pub, vrfTranscript("alpha"), out, []byte("ctx"), 16)
	require.NoError(t, err)
	require.Len(t, a, 16)

	b, err := sr25519.VRFBytes(pub, vrfTranscript("alpha"), out, []byte("ctx"), 16)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same transcript and output give same bytes")

	c, err := sr25519.VRFBytes(pub, vrfTranscript("alpha"), out, []byte("other"), 16)
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "context is bound into the derived bytes")
}
