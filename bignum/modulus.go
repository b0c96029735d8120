package bignum

import (
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/tls13core/crypto"
)

// ExtRep is the byte order used when importing and exporting residues.
type ExtRep int

const (
	ExtRepInvalid ExtRep = iota
	ExtRepLE
	ExtRepBE
)

// String returns a human-readable representation of the byte order.
func (e ExtRep) String() string {
	switch e {
	case ExtRepLE:
		return "little-endian"
	case ExtRepBE:
		return "big-endian"
	default:
		return "invalid"
	}
}

// IntRep is the internal representation of residues for a modulus.
type IntRep int

const (
	IntRepInvalid IntRep = iota
	// IntRepMontgomery stores residues as x*R mod N with R = 2^(64*L).
	IntRepMontgomery
	// IntRepOptRed stores residues as plain integers; reduction is left to
	// modulus-specific code.
	IntRepOptRed
)

// String returns a human-readable representation of the internal form.
func (r IntRep) String() string {
	switch r {
	case IntRepMontgomery:
		return "montgomery"
	case IntRepOptRed:
		return "opt-red"
	default:
		return "invalid"
	}
}

// Modulus describes a modulus N: its limbs, external byte order and internal
// representation. It is immutable after construction and safe for concurrent
// use. Every residue used with a Modulus must have exactly Limbs() limbs.
type Modulus struct {
	p      []Limb
	ext    ExtRep
	rep    IntRep
	bitLen int

	// Montgomery constants, set only for IntRepMontgomery.
	mm Limb
	rr []Limb
}

// NewModulus builds a modulus descriptor from limbs in least significant
// first order. The limbs are copied. Montgomery moduli must be odd; all
// moduli must be greater than one.
func NewModulus(p []Limb, ext ExtRep, rep IntRep) (*Modulus, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty modulus", crypto.ErrInvalidInput)
	}
	if ext != ExtRepLE && ext != ExtRepBE {
		return nil, fmt.Errorf("%w: external representation %d", crypto.ErrInvalidInput, ext)
	}
	if rep != IntRepMontgomery && rep != IntRepOptRed {
		return nil, fmt.Errorf("%w: internal representation %d", crypto.ErrInvalidInput, rep)
	}

	m := &Modulus{
		p:   append([]Limb(nil), p...),
		ext: ext,
		rep: rep,
	}

	// Setup works on public data only, so math/big is acceptable here.
	n := limbsToInt(m.p)
	if n.Cmp(big.NewInt(1)) <= 0 {
		return nil, fmt.Errorf("%w: modulus must be greater than one", crypto.ErrInvalidInput)
	}
	m.bitLen = n.BitLen()

	if rep == IntRepMontgomery {
		if p[0]&1 == 0 {
			return nil, fmt.Errorf("%w: Montgomery modulus must be odd", crypto.ErrInvalidInput)
		}
		m.mm = coreMontInit(p[0])

		rr := new(big.Int).Lsh(big.NewInt(1), uint(2*limbBits*len(p)))
		rr.Mod(rr, n)
		m.rr = intToLimbs(rr, len(p))
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewModulus",
		"package":  "bignum",
		"limbs":    len(p),
		"bits":     m.bitLen,
		"ext_rep":  ext.String(),
		"int_rep":  rep.String(),
	}).Debug("Modulus set up")

	return m, nil
}

// NewModulusFromBytes builds a modulus from its byte encoding in the given
// external order. The limb count is derived from the buffer length, so
// leading zero bytes widen the modulus.
func NewModulusFromBytes(buf []byte, ext ExtRep, rep IntRep) (*Modulus, error) {
	p := make([]Limb, limbsForBytes(len(buf)))
	var err error
	switch ext {
	case ExtRepLE:
		err = coreReadLE(p, buf)
	case ExtRepBE:
		err = coreReadBE(p, buf)
	default:
		return nil, fmt.Errorf("%w: external representation %d", crypto.ErrInvalidInput, ext)
	}
	if err != nil {
		return nil, err
	}
	return NewModulus(p, ext, rep)
}

// Limbs returns the limb count L shared by every residue of this modulus.
func (m *Modulus) Limbs() int { return len(m.p) }

// BitLen returns the bit length of N.
func (m *Modulus) BitLen() int { return m.bitLen }

// ExtRep returns the external byte order.
func (m *Modulus) ExtRep() ExtRep { return m.ext }

// IntRep returns the internal representation.
func (m *Modulus) IntRep() IntRep { return m.rep }

// Value returns N as a big.Int. It is meant for tests and diagnostics.
func (m *Modulus) Value() *big.Int { return limbsToInt(m.p) }

// NewResidue allocates a zero residue sized for m.
func NewResidue(m *Modulus) Residue {
	return make(Residue, len(m.p))
}

func (m *Modulus) check(rs ...Residue) {
	for _, r := range rs {
		if len(r) != len(m.p) {
			panic(fmt.Sprintf("bignum: residue has %d limbs, modulus has %d", len(r), len(m.p)))
		}
	}
}

func limbsToInt(p []Limb) *big.Int {
	buf := make([]byte, len(p)*limbBytes)
	_ = coreWriteBE(p, buf)
	return new(big.Int).SetBytes(buf)
}

func intToLimbs(v *big.Int, l int) []Limb {
	buf := v.FillBytes(make([]byte, l*limbBytes))
	p := make([]Limb, l)
	_ = coreReadBE(p, buf)
	return p
}
