package dump

import "math"

// HashVector returns a content hash for an embedding by folding each component's
// bit pattern with the boost-style hash_combine step. Positive and negative zero
// hash the same.
func HashVector(v []float32) uint64 {
	var seed uint64
	for _, x := range v {
		var h uint64
		if x != 0 {
			h = uint64(math.Float32bits(x))
		}
		seed ^= h + 0x9e3779b9 + (seed << 6) + (seed >> 2)
	}
	return seed
}

// HashVectors returns HashVector for every vector.
func HashVectors(vectors [][]float32) []uint64 {
	out := make([]uint64, len(vectors))
	for i, v := range vectors {
		out[i] = HashVector(v)
	}
	return out
}
