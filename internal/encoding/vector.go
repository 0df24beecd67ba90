// Package encoding implements the binary codec for stored meaning vectors:
// raw little-endian IEEE-754 float32 values, four bytes per element, with
// the length implied by the blob size.
package encoding

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrInvalidVector is returned when a stored vector blob is malformed
var ErrInvalidVector = errors.New("invalid vector")

// EncodeVector converts a float32 vector to its stored byte form. Encoding
// is bit-exact: every float, including NaN payloads and signed zeros, round
// trips unchanged. A nil or empty vector encodes to an empty blob.
func EncodeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, val := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(val))
	}
	return buf
}

// DecodeVector converts a stored blob back to a float32 vector. A blob whose
// length is not a multiple of four is corrupt.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, ErrInvalidVector
	}
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector, nil
}
