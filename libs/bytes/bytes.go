package bytes

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HexBytes renders a byte slice as uppercase hex in logs and JSON.
// Key material and hashes cross the API as HexBytes so that log lines
// and serialized state stay greppable.
type HexBytes []byte

// MarshalText implements encoding.TextMarshaler, which json.Marshal
// picks up for both values and map keys.
func (bz HexBytes) MarshalText() ([]byte, error) {
	return []byte(strings.ToUpper(hex.EncodeToString(bz))), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. A JSON "null" leaves
// the receiver untouched; an empty string decodes to an empty slice.
func (bz *HexBytes) UnmarshalText(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	dec, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*bz = dec
	return nil
}

func (bz HexBytes) Bytes() []byte { return bz }

func (bz HexBytes) String() string {
	return strings.ToUpper(hex.EncodeToString(bz))
}

// ShortString is the log-friendly prefix form. Inputs shorter than the
// prefix render empty rather than padded.
func (bz HexBytes) ShortString() string {
	if len(bz) < 3 {
		return ""
	}
	return strings.ToUpper(hex.EncodeToString(bz[:3]))
}

// Format makes %v and %s render the hex form; %p still prints the
// slice address.
func (bz HexBytes) Format(s fmt.State, verb rune) {
	if verb == 'p' {
		fmt.Fprintf(s, "%p", bz)
		return
	}
	fmt.Fprintf(s, "%X", []byte(bz))
}
