// Package constanttime provides comparison and masking primitives whose
// running time and memory access pattern do not depend on the values being
// processed. Only lengths are treated as public.
//
// Every function here is built from arithmetic and bitwise operations
// (math/bits, crypto/subtle). None of them branch or index on secret data,
// and callers must preserve that property: converting a mask back into a
// bool and branching on it reintroduces the leak these helpers exist to
// avoid. This is a correctness requirement for the bignum and key schedule
// code, not a style preference.
package constanttime

import (
	"crypto/subtle"
	"math/bits"
)

// Equal reports whether a and b hold identical bytes. The time taken depends
// on the lengths but not on the contents.
func Equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Compare returns 0 when a and b are equal and a non-zero value otherwise.
// Unlike bytes.Compare it carries no ordering information. Buffers of
// different length compare unequal.
func Compare(a, b []byte) int {
	if len(a) != len(b) {
		return 1
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return int(diff)
}

// UintMask returns all ones if v is non-zero and zero otherwise.
func UintMask(v uint) uint {
	// v | -v has its top bit set iff v != 0.
	return -((v | -v) >> (bits.UintSize - 1))
}

// SizeMask returns all ones if bit is 1 and zero if bit is 0. Any other
// input gives an unspecified result.
func SizeMask(bit uint) uint {
	return -bit
}

// SizeMaskLt returns all ones if x < y and zero otherwise.
func SizeMaskLt(x, y uint) uint {
	_, borrow := bits.Sub(x, y, 0)
	return -borrow
}

// SizeMaskGe returns all ones if x >= y and zero otherwise.
func SizeMaskGe(x, y uint) uint {
	return ^SizeMaskLt(x, y)
}

// LimbMask returns all ones if cond is 1 and zero if cond is 0.
func LimbMask(cond uint64) uint64 {
	return -cond
}

// LimbSelect returns a if cond is 1 and b if cond is 0.
func LimbSelect(a, b, cond uint64) uint64 {
	m := LimbMask(cond)
	return (a & m) | (b &^ m)
}

// LimbNonZero returns 1 if v is non-zero and 0 otherwise.
func LimbNonZero(v uint64) uint64 {
	return (v | -v) >> 63
}

// LimbLt returns 1 if x < y and 0 otherwise.
func LimbLt(x, y uint64) uint64 {
	_, borrow := bits.Sub64(x, y, 0)
	return borrow
}

// ByteBool converts a 0/1 byte flag into a 0/1 limb without branching.
func ByteBool(b byte) uint64 {
	return uint64(b) & 1
}
