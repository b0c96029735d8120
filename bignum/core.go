package bignum

import (
	"fmt"
	"math/bits"

	"github.com/opd-ai/tls13core/constanttime"
	"github.com/opd-ai/tls13core/crypto"
)

// Limb is one machine word of a multi-word integer.
type Limb = uint64

const (
	limbBytes = 8
	limbBits  = 64
)

func limbsForBytes(n int) int {
	return crypto.CeilDiv(n, limbBytes)
}

// The core* helpers below operate on equal-length limb vectors, least
// significant limb first. Loop bounds depend only on vector lengths.

// coreReadLE imports little-endian bytes into x, zeroing the unused high limbs.
func coreReadLE(x []Limb, buf []byte) error {
	if len(buf) > len(x)*limbBytes {
		return fmt.Errorf("%w: %d bytes do not fit in %d limbs", crypto.ErrInvalidInput, len(buf), len(x))
	}
	for i := range x {
		x[i] = 0
	}
	for i, b := range buf {
		x[i/limbBytes] |= Limb(b) << (8 * (i % limbBytes))
	}
	return nil
}

// coreReadBE imports big-endian bytes into x, zeroing the unused high limbs.
func coreReadBE(x []Limb, buf []byte) error {
	if len(buf) > len(x)*limbBytes {
		return fmt.Errorf("%w: %d bytes do not fit in %d limbs", crypto.ErrInvalidInput, len(buf), len(x))
	}
	for i := range x {
		x[i] = 0
	}
	n := len(buf)
	for i, b := range buf {
		j := n - 1 - i
		x[j/limbBytes] |= Limb(b) << (8 * (j % limbBytes))
	}
	return nil
}

func limbByte(x []Limb, i int) byte {
	return byte(x[i/limbBytes] >> (8 * (i % limbBytes)))
}

// fitsIn reports whether the bytes of x at positions n and above are all zero.
func fitsIn(x []Limb, n int) bool {
	var acc byte
	for i := n; i < len(x)*limbBytes; i++ {
		acc |= limbByte(x, i)
	}
	return acc == 0
}

// coreWriteLE exports x as little-endian bytes. A buffer longer than x is
// zero-padded; a shorter one is accepted only if the value still fits.
func coreWriteLE(x []Limb, buf []byte) error {
	stored := len(x) * limbBytes
	if len(buf) < stored && !fitsIn(x, len(buf)) {
		return fmt.Errorf("%w: value needs more than %d bytes", crypto.ErrBufferTooSmall, len(buf))
	}
	for i := range buf {
		if i < stored {
			buf[i] = limbByte(x, i)
		} else {
			buf[i] = 0
		}
	}
	return nil
}

// coreWriteBE exports x as big-endian bytes with the same padding rules as
// coreWriteLE.
func coreWriteBE(x []Limb, buf []byte) error {
	stored := len(x) * limbBytes
	if len(buf) < stored && !fitsIn(x, len(buf)) {
		return fmt.Errorf("%w: value needs more than %d bytes", crypto.ErrBufferTooSmall, len(buf))
	}
	n := len(buf)
	for i := 0; i < n; i++ {
		if i < stored {
			buf[n-1-i] = limbByte(x, i)
		} else {
			buf[n-1-i] = 0
		}
	}
	return nil
}

// coreAdd sets x = a + b and returns the carry out.
func coreAdd(x, a, b []Limb) Limb {
	var c Limb
	for i := range x {
		x[i], c = bits.Add64(a[i], b[i], c)
	}
	return c
}

// coreSub sets x = a - b and returns the borrow out.
func coreSub(x, a, b []Limb) Limb {
	var c Limb
	for i := range x {
		x[i], c = bits.Sub64(a[i], b[i], c)
	}
	return c
}

// coreAddIf adds a to x when cond is 1 and returns the carry out. The
// addition is always performed; a is masked to zero when cond is 0.
func coreAddIf(x, a []Limb, cond Limb) Limb {
	mask := constanttime.LimbMask(cond)
	var c Limb
	for i := range x {
		x[i], c = bits.Add64(x[i], a[i]&mask, c)
	}
	return c
}

// coreLtCT returns 1 if a < b and 0 otherwise.
func coreLtCT(a, b []Limb) Limb {
	var c Limb
	for i := range a {
		_, c = bits.Sub64(a[i], b[i], c)
	}
	return c
}

// coreCondAssign sets x = a when assign is 1. x may alias a.
func coreCondAssign(x, a []Limb, assign Limb) {
	for i := range x {
		x[i] = constanttime.LimbSelect(a[i], x[i], assign)
	}
}

// coreCondSwap exchanges x and y when swap is 1. x and y may be the same
// vector, in which case nothing changes.
func coreCondSwap(x, y []Limb, swap Limb) {
	mask := constanttime.LimbMask(swap)
	for i := range x {
		t := (x[i] ^ y[i]) & mask
		x[i] ^= t
		y[i] ^= t
	}
}

// coreMontInit returns -n0^-1 mod 2^64 for odd n0 by Newton iteration.
func coreMontInit(n0 Limb) Limb {
	x := n0
	x += ((n0 + 2) & 4) << 1
	for i := limbBits; i >= 8; i /= 2 {
		x *= 2 - n0*x
	}
	return ^x + 1
}

// coreMontmul sets x = a * b * R^-1 mod n with R = 2^(64*len(n)), using the
// coarsely integrated operand scanning method. a and b must be below n.
// t is scratch of len(n)+2 limbs and must not alias anything; x may alias
// a or b.
func coreMontmul(x, a, b, n []Limb, mm Limb, t []Limb) {
	l := len(n)
	for i := range t {
		t[i] = 0
	}

	for i := 0; i < l; i++ {
		var c, cc Limb
		bi := b[i]
		for j := 0; j < l; j++ {
			hi, lo := bits.Mul64(a[j], bi)
			lo, cc = bits.Add64(lo, t[j], 0)
			hi += cc
			lo, cc = bits.Add64(lo, c, 0)
			hi += cc
			t[j] = lo
			c = hi
		}
		t[l], cc = bits.Add64(t[l], c, 0)
		t[l+1] = cc

		m := t[0] * mm
		hi, lo := bits.Mul64(m, n[0])
		_, cc = bits.Add64(lo, t[0], 0)
		c = hi + cc
		for j := 1; j < l; j++ {
			hi, lo = bits.Mul64(m, n[j])
			lo, cc = bits.Add64(lo, t[j], 0)
			hi += cc
			lo, cc = bits.Add64(lo, c, 0)
			hi += cc
			t[j-1] = lo
			c = hi
		}
		t[l-1], cc = bits.Add64(t[l], c, 0)
		t[l] = t[l+1] + cc
		t[l+1] = 0
	}

	// t < 2n here. Keep t - n unless that borrowed without t having
	// overflowed into t[l].
	carry := t[l]
	borrow := coreSub(x, t[:l], n)
	coreCondAssign(x, t[:l], carry^borrow)
}
