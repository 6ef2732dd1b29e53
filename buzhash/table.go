// Package buzhash implements the table-driven, rotate-and-XOR rolling
// hash used by the content-defined chunker to find cut points in a
// byte stream.
//
// The hash over a window of W bytes b[0..W) is
//
//	rotL(T[b0], W-1) XOR rotL(T[b1], W-2) XOR ... XOR rotL(T[b_{W-2}], 1) XOR T[b_{W-1}]
//
// and slides by one byte at a time in O(1) via Update. T is a fixed
// 256-entry table XORed with a per-instance seed.
package buzhash

// baseTable holds 256 fixed pseudo-random uint32 constants. Dedup
// compatibility across chunker instances within this module depends on
// every instance deriving its table from this same array; changing it
// changes every cut point this module will ever produce.
var baseTable = deriveBaseTable()

// deriveBaseTable fills baseTable deterministically using a SplitMix64
// mixer seeded with a fixed constant. We don't have access to any
// specific upstream implementation's published table, so we generate
// our own fixed one here rather than leaving the table randomized
// between builds (which would break determinism, the chunker's core
// promise).
func deriveBaseTable() [256]uint32 {
	var t [256]uint32
	x := uint64(0x9e3779b97f4a7c15)
	for i := range t {
		x += 0x9e3779b97f4a7c15
		z := x
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		z = z ^ (z >> 31)
		t[i] = uint32(z) ^ uint32(z>>32)
	}
	return t
}

// DeriveTable returns the 256-entry table for seed, letting a caller
// precompute it once and hand it to many Hashers sharing the same
// seed rather than re-deriving it per instance.
func DeriveTable(seed uint32) [256]uint32 {
	var t [256]uint32
	for i, v := range baseTable {
		t[i] = v ^ seed
	}
	return t
}

// RotateLeft32 rotates v left by k bits, modulo 32. k == 0 (or any
// multiple of 32) returns v unchanged; the naive (v<<k)|(v>>(32-k))
// is undefined behavior in C for k==0 and must be special-cased.
func RotateLeft32(v uint32, k uint) uint32 {
	k &= 31
	if k == 0 {
		return v
	}
	return (v << k) | (v >> (32 - k))
}
