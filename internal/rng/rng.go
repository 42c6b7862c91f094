// Package rng derives independent, reproducible random streams from a global seed.
package rng

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// Derive returns a generator seeded by hashing seed together with parts, so
// e.g. Derive(seed, round, node) gives every walk its own stream.
func Derive(seed int64, parts ...uint64) *rand.Rand {
	buf := make([]byte, 8*(len(parts)+1))
	binary.LittleEndian.PutUint64(buf, uint64(seed))
	for i, p := range parts {
		binary.LittleEndian.PutUint64(buf[8*(i+1):], p)
	}
	h := xxhash.Sum64(buf)
	return rand.New(rand.NewPCG(h, h^0x9e3779b97f4a7c15))
}
