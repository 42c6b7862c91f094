package database

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeVector packs v as little-endian float32, the F32_BLOB layout.
// Non-finite values are rejected so a stored model always reloads usable.
func encodeVector(v []float32) ([]byte, error) {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil, fmt.Errorf("non-finite value %v at index %d", x, i)
		}
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf, nil
}

// decodeVector extracts a dims-length vector from an F32_BLOB.
func decodeVector(blob []byte, dims int) ([]float32, error) {
	expectedBytes := dims * 4
	if len(blob) != expectedBytes {
		return nil, fmt.Errorf("invalid embedding size: expected %d bytes for %d-dimensional vector, got %d", expectedBytes, dims, len(blob))
	}
	vector := make([]float32, dims)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : (i+1)*4]))
	}
	return vector, nil
}
