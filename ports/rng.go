package ports

import (
	"hash/fnv"
	"math/rand"
)

// SeededStream creates a deterministic random number generator for a named
// operation. The same (name, seed) pair always yields the same sequence.
func SeededStream(name string, seed int64) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(name))
	return rand.New(rand.NewSource(seed ^ int64(h.Sum64())))
}
