package sr25519

import (
	"errors"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"

	"github.com/arclight-network/arclight/crypto"
)

var _ crypto.BatchVerifier = &BatchVerifier{}

// BatchVerifier implements batch verification for sr25519.
type BatchVerifier struct {
	*schnorrkel.BatchVerifier
}

func NewBatchVerifier() crypto.BatchVerifier {
	return &BatchVerifier{schnorrkel.NewBatchVerifier()}
}

func (b *BatchVerifier) Add(key crypto.PubKey, msg, signature []byte) error {
	pk, ok := key.(PubKey)
	if !ok {
		return errors.New("sr25519: pubkey is not sr25519")
	}

	var pkb [PubKeySize]byte
	copy(pkb[:], pk.Bytes())

	if len(signature) != SignatureSize {
		return errors.New("sr25519: invalid signature length")
	}
	var sig64 [SignatureSize]byte
	copy(sig64[:], signature)
	sig := new(schnorrkel.Signature)
	if err := sig.Decode(sig64); err != nil {
		return errors.New("sr25519: unable to decode signature")
	}

	spk, err := schnorrkel.NewPublicKey(pkb)
	if err != nil {
		return errors.New("sr25519: unable to decode public key")
	}

	signingContext := schnorrkel.NewSigningContext(SigningContext, msg)
	return b.BatchVerifier.Add(signingContext, sig, spk)
}

func (b *BatchVerifier) Verify() (bool, []bool) {
	// The underlying BatchVerify api does not support failure inspection, so
	// assume all signatures passed or failed together.
	ok := b.BatchVerifier.Verify()
	return ok, nil
}
