// Package bignum implements fixed-width modular arithmetic over residues of a
// modulus known at setup time.
//
// A [Modulus] fixes the limb count L, the byte order used by [Read] and
// [Write], and whether residues live in Montgomery form. Every operation is
// written so that only L affects control flow and memory addresses; residue
// values never do. Conditional operations such as [CondAssign] and [CondSwap]
// are built from arithmetic masks rather than branches.
//
// Montgomery conversion and multiplication use a small scratch vector that is
// allocated per call and wiped before return. All other operations work in
// the caller's buffers only.
//
// Example:
//
//	m, err := bignum.NewModulusFromBytes(pBytes, bignum.ExtRepBE, bignum.IntRepMontgomery)
//	if err != nil {
//	    return err
//	}
//	a, b := bignum.NewResidue(m), bignum.NewResidue(m)
//	if err := bignum.Read(a, m, aBytes); err != nil {
//	    return err
//	}
//	bignum.Add(b, a, a, m) // b = 2a mod p
package bignum
