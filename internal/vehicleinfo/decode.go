package vehicleinfo

import (
	"math/big"
	"strings"

	"github.com/tturner/udsinfo/internal/uds"
)

// Decode turns a DID record into its string value. It never fails: bytes
// that are not ASCII are dropped.
func Decode(spec IdentifierSpec, raw []byte) string {
	value, _ := decode(spec.Encoding, raw)
	return value
}

// decode also reports how many bytes the ASCII rule dropped.
func decode(encoding Encoding, raw []byte) (string, int) {
	if encoding == EncodingUnsigned {
		return new(big.Int).SetBytes(raw).String(), 0
	}
	return decodeASCII(raw)
}

func decodeASCII(raw []byte) (string, int) {
	var b strings.Builder
	b.Grow(len(raw))
	dropped := 0
	for _, c := range raw {
		if c >= 0x80 {
			dropped++
			continue
		}
		b.WriteByte(c)
	}
	return strings.TrimRight(b.String(), "\x00"), dropped
}

// codec adapts a table entry to the UDS client's codec seam.
type codec struct {
	encoding Encoding
}

func (c codec) Decode(payload []byte) string {
	value, _ := decode(c.encoding, payload)
	return value
}

// DataIdentifierCodecs returns the UDS client codec configuration for a table.
func DataIdentifierCodecs(table []IdentifierSpec) map[uint16]uds.Codec {
	codecs := make(map[uint16]uds.Codec, len(table))
	for _, spec := range table {
		codecs[spec.DID] = codec{encoding: spec.Encoding}
	}
	return codecs
}
