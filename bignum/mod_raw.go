package bignum

import (
	"fmt"

	"github.com/opd-ai/tls13core/constanttime"
	"github.com/opd-ai/tls13core/crypto"
)

// Residue is an integer in [0, N) stored as Limbs() words, least
// significant first. Residues are owned by the caller; functions in this
// package never retain them.
//
// Unless stated otherwise an output residue may alias any input residue of
// the same call. Two outputs of one call must not alias each other.
type Residue []Limb

// Read imports buf into x using m's external byte order and checks, in
// constant time, that the value is below N. On failure x is zeroed.
func Read(x Residue, m *Modulus, buf []byte) error {
	m.check(x)

	var err error
	switch m.ext {
	case ExtRepLE:
		err = coreReadLE(x, buf)
	case ExtRepBE:
		err = coreReadBE(x, buf)
	default:
		return fmt.Errorf("%w: external representation %s", crypto.ErrInvalidInput, m.ext)
	}
	if err != nil {
		crypto.WipeLimbs(x)
		return err
	}

	if coreLtCT(x, m.p) != 1 {
		crypto.WipeLimbs(x)
		return fmt.Errorf("%w: value is not below the modulus", crypto.ErrInvalidInput)
	}
	return nil
}

// Write exports x into buf using m's external byte order. Buffers longer
// than the value are zero-padded.
func Write(x Residue, m *Modulus, buf []byte) error {
	m.check(x)

	switch m.ext {
	case ExtRepLE:
		return coreWriteLE(x, buf)
	case ExtRepBE:
		return coreWriteBE(x, buf)
	default:
		return fmt.Errorf("%w: external representation %s", crypto.ErrInvalidInput, m.ext)
	}
}

// CondAssign sets x = a if assign is 1 and leaves x unchanged if assign is
// 0, without branching on assign. Other values of assign give an
// unspecified result.
func CondAssign(x, a Residue, m *Modulus, assign byte) {
	m.check(x, a)
	coreCondAssign(x, a, constanttime.ByteBool(assign))
}

// CondSwap exchanges x and y if swap is 1 and leaves both unchanged if swap
// is 0, without branching on swap.
func CondSwap(x, y Residue, m *Modulus, swap byte) {
	m.check(x, y)
	coreCondSwap(x, y, constanttime.ByteBool(swap))
}

// Add sets x = a + b mod N. a and b must be below N.
func Add(x, a, b Residue, m *Modulus) {
	m.check(x, a, b)
	carry := coreAdd(x, a, b)
	borrow := coreSub(x, x, m.p)
	coreAddIf(x, m.p, borrow^carry)
}

// Sub sets x = a - b mod N. a and b must be below N.
func Sub(x, a, b Residue, m *Modulus) {
	m.check(x, a, b)
	borrow := coreSub(x, a, b)
	coreAddIf(x, m.p, borrow)
}

// Neg sets x = -a mod N. Zero maps to zero.
func Neg(x, a Residue, m *Modulus) {
	m.check(x, a)
	coreSub(x, m.p, a)
	borrow := coreSub(x, x, m.p)
	coreAddIf(x, m.p, borrow)
}

// ToMont converts x in place from its plain value to its Montgomery
// representative x*R mod N. m must use IntRepMontgomery.
func ToMont(x Residue, m *Modulus) error {
	m.check(x)
	if m.rep != IntRepMontgomery {
		return fmt.Errorf("%w: modulus is not in Montgomery representation", crypto.ErrInvalidInput)
	}

	t := make([]Limb, len(m.p)+2)
	defer crypto.WipeLimbs(t)
	coreMontmul(x, x, m.rr, m.p, m.mm, t)
	return nil
}

// FromMont converts x in place from its Montgomery representative back to
// the plain value.
func FromMont(x Residue, m *Modulus) error {
	m.check(x)
	if m.rep != IntRepMontgomery {
		return fmt.Errorf("%w: modulus is not in Montgomery representation", crypto.ErrInvalidInput)
	}

	one := make([]Limb, len(m.p))
	one[0] = 1
	t := make([]Limb, len(m.p)+2)
	defer crypto.WipeLimbs(t)
	coreMontmul(x, x, one, m.p, m.mm, t)
	return nil
}

// Mul sets x = a * b * R^-1 mod N, the Montgomery product. When a and b are
// Montgomery representatives the result is the representative of their
// product.
func Mul(x, a, b Residue, m *Modulus) error {
	m.check(x, a, b)
	if m.rep != IntRepMontgomery {
		return fmt.Errorf("%w: modulus is not in Montgomery representation", crypto.ErrInvalidInput)
	}

	t := make([]Limb, len(m.p)+2)
	defer crypto.WipeLimbs(t)
	coreMontmul(x, a, b, m.p, m.mm, t)
	return nil
}
