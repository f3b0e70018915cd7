package sr25519

import (
	"bytes"
	"errors"
	"fmt"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"

	"github.com/arclight-network/arclight/crypto"
)

const (
	PrivKeyName = "arclight/PrivKeySr25519"
	PubKeyName  = "arclight/PubKeySr25519"

	// PubKeySize is the size, in bytes, of public keys as used in this package.
	PubKeySize = 32
	// PrivKeySize is the size of a sr25519 mini secret key.
	PrivKeySize = 32
	// SignatureSize is the size of an encoded schnorrkel signature.
	SignatureSize = 64

	KeyType = "sr25519"
)

// SigningContext is the schnorrkel signing context shared by every seal
// signature on the chain. It must match the rest of the network byte for
// byte.
var SigningContext = []byte("substrate")

var (
	_ crypto.PrivKey = PrivKey{}
	_ crypto.PubKey  = PubKey{}
)

// PrivKey implements crypto.PrivKey.
type PrivKey []byte

// Bytes returns the byte representation of the mini secret key.
func (privKey PrivKey) Bytes() []byte {
	return []byte(privKey)
}

// Sign produces a signature on the given msg using the chain's signing
// context.
func (privKey PrivKey) Sign(msg []byte) ([]byte, error) {
	secretKey, err := privKey.secretKey()
	if err != nil {
		return nil, err
	}

	sig, err := secretKey.Sign(schnorrkel.NewSigningContext(SigningContext, msg))
	if err != nil {
		return nil, err
	}

	sigBytes := sig.Encode()
	return sigBytes[:], nil
}

// PubKey gets the corresponding public key from the private key.
func (privKey PrivKey) PubKey() crypto.PubKey {
	secretKey, err := privKey.secretKey()
	if err != nil {
		panic(fmt.Sprintf("invalid private key: %v", err))
	}

	pubKey, err := secretKey.Public()
	if err != nil {
		panic(fmt.Sprintf("could not derive public key: %v", err))
	}

	pubKeyBytes := pubKey.Encode()
	return PubKey(pubKeyBytes[:])
}

// Equals - you probably don't need to use this.
// Runs in constant time based on length of the keys.
func (privKey PrivKey) Equals(other crypto.PrivKey) bool {
	if otherSr, ok := other.(PrivKey); ok {
		return bytes.Equal(privKey.Bytes(), otherSr.Bytes())
	}
	return false
}

func (privKey PrivKey) Type() string {
	return KeyType
}

func (privKey PrivKey) miniSecretKey() (*schnorrkel.MiniSecretKey, error) {
	if len(privKey) != PrivKeySize {
		return nil, errors.New("sr25519: invalid private key size")
	}

	var seed [PrivKeySize]byte
	copy(seed[:], privKey)

	return schnorrkel.NewMiniSecretKeyFromRaw(seed)
}

func (privKey PrivKey) secretKey() (*schnorrkel.SecretKey, error) {
	msk, err := privKey.miniSecretKey()
	if err != nil {
		return nil, err
	}
	return msk.ExpandEd25519(), nil
}

// GenPrivKey generates a new sr25519 private key from OS randomness.
func GenPrivKey() PrivKey {
	return genPrivKey()
}

func genPrivKey() PrivKey {
	msk, err := schnorrkel.GenerateMiniSecretKey()
	if err != nil {
		panic(fmt.Sprintf("could not generate mini secret key: %v", err))
	}

	seed := msk.Encode()
	return PrivKey(seed[:])
}

// GenPrivKeyFromSecret hashes the secret with blake2b, and uses that 32 byte
// output to create the private key.
// NOTE: secret should be the output of a KDF like bcrypt, if it's derived
// from user input.
func GenPrivKeyFromSecret(secret []byte) PrivKey {
	return PrivKey(crypto.Checksum(secret))
}

//-------------------------------------

// PubKey implements crypto.PubKey.
type PubKey []byte

// Address is the blake2b-256 of the raw pubkey bytes.
func (pubKey PubKey) Address() crypto.Address {
	if len(pubKey) != PubKeySize {
		panic("pubkey is incorrect size")
	}
	return crypto.Address(crypto.Checksum(pubKey))
}

// Bytes returns the pubkey byte format.
func (pubKey PubKey) Bytes() []byte {
	return []byte(pubKey)
}

// VerifySignature checks sig against msg under the chain's signing context.
func (pubKey PubKey) VerifySignature(msg []byte, sig []byte) bool {
	// make sure we use the same algorithm to sign
	if len(sig) != SignatureSize {
		return false
	}

	var sig64 [SignatureSize]byte
	copy(sig64[:], sig)
	signature := new(schnorrkel.Signature)
	if err := signature.Decode(sig64); err != nil {
		return false
	}

	pub, err := pubKey.schnorrkelPublicKey()
	if err != nil {
		return false
	}

	ok, err := pub.Verify(signature, schnorrkel.NewSigningContext(SigningContext, msg))
	return ok && err == nil
}

func (pubKey PubKey) Equals(other crypto.PubKey) bool {
	if otherSr, ok := other.(PubKey); ok {
		return bytes.Equal(pubKey.Bytes(), otherSr.Bytes())
	}
	return false
}

func (pubKey PubKey) String() string {
	return fmt.Sprintf("PubKeySr25519{%X}", []byte(pubKey))
}

func (pubKey PubKey) Type() string {
	return KeyType
}

func (pubKey PubKey) schnorrkelPublicKey() (*schnorrkel.PublicKey, error) {
	if len(pubKey) != PubKeySize {
		return nil, errors.New("sr25519: invalid public key size")
	}

	var pk [PubKeySize]byte
	copy(pk[:], pubKey)
	return schnorrkel.NewPublicKey(pk)
}
