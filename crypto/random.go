package crypto

import (
	crand "crypto/rand"
	"io"
)

// CRandBytes reads numBytes of OS randomness. Failures to read from the
// OS entropy source are not recoverable and panic.
func CRandBytes(numBytes int) []byte {
	b := make([]byte, numBytes)
	if _, err := crand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// CReader exposes the OS randomness source as an io.Reader for key
// generation and batch verification.
func CReader() io.Reader {
	return crand.Reader
}
