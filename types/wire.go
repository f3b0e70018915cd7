package types

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ChainSafe/gossamer/pkg/scale"
)

// exactReader gives multi-byte reads all-or-nothing semantics. The scale
// decoder issues one Read per fixed-width field; a plain bytes.Reader
// satisfies such a read partially at the end of a truncated input, and the
// decoder would then carry on over a zero-filled tail instead of failing.
type exactReader struct {
	r *bytes.Reader
}

func (er exactReader) Read(p []byte) (int, error) {
	return io.ReadFull(er.r, p)
}

// NewExactDecoder returns a scale decoder over bz that fails with an
// unexpected-EOF error on truncated input. The returned reader reports
// unconsumed trailing bytes via Len.
func NewExactDecoder(bz []byte) (*scale.Decoder, *bytes.Reader) {
	r := bytes.NewReader(bz)
	return scale.NewDecoder(exactReader{r}), r
}

// DecodeExact unmarshals bz into dst, requiring that decoding consume the
// input exactly: truncated fields and trailing bytes are both structural
// errors.
func DecodeExact(bz []byte, dst interface{}, what string) error {
	dec, r := NewExactDecoder(bz)
	if err := dec.Decode(dst); err != nil {
		return ErrStructuralDecode{What: what, Reason: err}
	}
	if r.Len() != 0 {
		return ErrStructuralDecode{What: what, Reason: fmt.Errorf("%d trailing bytes", r.Len())}
	}
	return nil
}
