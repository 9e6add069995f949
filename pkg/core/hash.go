package core

// Hash64 mixes a seed and a key into a well distributed 64-bit value
// (MurmurHash64A over a single 8-byte block).
func Hash64(seed, key uint64) uint64 {
	const m = 0xc6a4a7935bd1e995
	const r = 47

	// 8*m wrapped to 64 bits
	h := seed ^ 0x35253c9ade8f4ca8

	k := key
	k *= m
	k ^= k >> r
	k *= m

	h ^= k
	h *= m

	h ^= h >> r
	h *= m
	h ^= h >> r
	return h
}
