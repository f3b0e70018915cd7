package sr25519

import (
	"errors"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/gtank/merlin"
)

const (
	// VRFOutputSize is the encoded size of a VRF pre-output.
	VRFOutputSize = 32
	// VRFProofSize is the encoded size of a VRF proof.
	VRFProofSize = 64
)

// VRFOutput is an encoded VRF pre-output point.
type VRFOutput [VRFOutputSize]byte

// VRFProof is an encoded VRF proof.
type VRFProof [VRFProofSize]byte

// VRFSign produces a VRF output and proof over the given transcript.
// Used by test fixtures and block authors; verification is what the sync
// core itself exercises.
func VRFSign(privKey PrivKey, t *merlin.Transcript) (VRFOutput, VRFProof, error) {
	var (
		out   VRFOutput
		proof VRFProof
	)

	secretKey, err := privKey.secretKey()
	if err != nil {
		return out, proof, err
	}

	inOut, vrfProof, err := secretKey.VrfSign(t)
	if err != nil {
		return out, proof, err
	}

	out = inOut.Output().Encode()
	proof = vrfProof.Encode()
	return out, proof, nil
}

// VRFVerify checks that proof proves out was produced by pubKey over the
// given transcript.
func VRFVerify(pubKey PubKey, t *merlin.Transcript, out VRFOutput, proof VRFProof) (bool, error) {
	pub, err := pubKey.schnorrkelPublicKey()
	if err != nil {
		return false, err
	}

	vrfOut := new(schnorrkel.VrfOutput)
	if err := vrfOut.Decode(out); err != nil {
		return false, err
	}

	vrfProof := new(schnorrkel.VrfProof)
	if err := vrfProof.Decode(proof); err != nil {
		return false, err
	}

	return pub.VrfVerify(t, vrfOut, vrfProof)
}

// VRFBytes derives size pseudo-random bytes from a verified VRF output,
// bound to the transcript it was produced over. This is the value compared
// against the leadership threshold.
func VRFBytes(pubKey PubKey, t *merlin.Transcript, out VRFOutput, context []byte, size int) ([]byte, error) {
	pub, err := pubKey.schnorrkelPublicKey()
	if err != nil {
		return nil, err
	}

	vrfOut := new(schnorrkel.VrfOutput)
	if err := vrfOut.Decode(out); err != nil {
		return nil, err
	}

	inOut, err := vrfOut.AttachInput(pub, t)
	if err != nil {
		return nil, err
	}

	bz, err := inOut.MakeBytes(size, context)
	if err != nil {
		return nil, err
	}
	if len(bz) != size {
		return nil, errors.New("sr25519: vrf bytes have unexpected length")
	}
	return bz, nil
}
