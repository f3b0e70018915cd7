package crypto

import (
	"golang.org/x/crypto/blake2b"

	"github.com/arclight-network/arclight/libs/bytes"
)

const (
	// HashSize is the size in bytes of a block or digest hash.
	HashSize = blake2b.Size256
)

// An address is a []byte, but hex-encoded even in JSON.
// []byte leaves us the option to change the address length.
// Use an alias so Unmarshal methods (with ptr receivers) are available too.
type Address = bytes.HexBytes

// Checksum returns the blake2b-256 of bz.
//
// Substrate-family chains hash headers and digest payloads with blake2b,
// not sha256.
func Checksum(bz []byte) []byte {
	h := blake2b.Sum256(bz)
	return h[:]
}

type PubKey interface {
	Address() Address
	Bytes() []byte
	VerifySignature(msg []byte, sig []byte) bool
	Equals(PubKey) bool
	Type() string
}

type PrivKey interface {
	Bytes() []byte
	Sign(msg []byte) ([]byte, error)
	PubKey() PubKey
	Equals(PrivKey) bool
	Type() string
}

// BatchVerifier collects signatures for a deferred aggregate verification
// pass. Implementations are not safe for concurrent use.
type BatchVerifier interface {
	// Add appends an entry into the BatchVerifier.
	Add(key PubKey, message, signature []byte) error
	// Verify verifies all the entries in the BatchVerifier, and returns
	// if every signature in the batch is valid, and a vector of bools
	// indicating the verification status of each signature (in the order
	// that signatures were added to the batch).
	Verify() (bool, []bool)
}
