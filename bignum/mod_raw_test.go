package bignum

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/tls13core/crypto"
)

// Moduli of assorted sizes, including values whose top limb is all ones or
// nearly empty.
var testModuli = []string{
	"b",
	"fd",
	"eeff99aa37",
	"eeff99aa11",
	"800000000005",
	"7fffffffffffffff",
	"80fe000a10000001",
	"25a55a46e5da99c71c7",
	"1058ad82120c3a10196bb36229c1",
	"ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff43",
}

func mustHex(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 16)
	require.True(t, ok, "bad hex %q", s)
	return v
}

func newTestModulus(t *testing.T, hex string, ext ExtRep, rep IntRep) *Modulus {
	t.Helper()
	n := mustHex(t, hex)
	l := limbsForBytes(len(n.Bytes()))
	m, err := NewModulus(intToLimbs(n, l), ext, rep)
	require.NoError(t, err)
	return m
}

func residueOf(m *Modulus, v *big.Int) Residue {
	return Residue(intToLimbs(v, m.Limbs()))
}

func valueOf(x Residue) *big.Int {
	return limbsToInt(x)
}

// samples returns 0, 1, N-1 and a few random values below N.
func samples(rng *rand.Rand, n *big.Int) []*big.Int {
	out := []*big.Int{big.NewInt(0), big.NewInt(1), new(big.Int).Sub(n, big.NewInt(1))}
	for i := 0; i < 6; i++ {
		out = append(out, new(big.Int).Rand(rng, n))
	}
	return out
}

func TestNewModulus(t *testing.T) {
	t.Run("rejects empty", func(t *testing.T) {
		_, err := NewModulus(nil, ExtRepLE, IntRepOptRed)
		assert.ErrorIs(t, err, crypto.ErrInvalidInput)
	})
	t.Run("rejects bad representations", func(t *testing.T) {
		_, err := NewModulus([]Limb{11}, ExtRepInvalid, IntRepOptRed)
		assert.ErrorIs(t, err, crypto.ErrInvalidInput)
		_, err = NewModulus([]Limb{11}, ExtRepBE, IntRepInvalid)
		assert.ErrorIs(t, err, crypto.ErrInvalidInput)
	})
	t.Run("rejects even Montgomery modulus", func(t *testing.T) {
		_, err := NewModulus([]Limb{12}, ExtRepBE, IntRepMontgomery)
		assert.ErrorIs(t, err, crypto.ErrInvalidInput)
	})
	t.Run("rejects one", func(t *testing.T) {
		_, err := NewModulus([]Limb{1, 0}, ExtRepBE, IntRepOptRed)
		assert.ErrorIs(t, err, crypto.ErrInvalidInput)
	})
	t.Run("copies limbs", func(t *testing.T) {
		p := []Limb{0xfd}
		m, err := NewModulus(p, ExtRepLE, IntRepOptRed)
		require.NoError(t, err)
		p[0] = 0
		assert.Equal(t, int64(0xfd), m.Value().Int64())
		assert.Equal(t, 8, m.BitLen())
	})
	t.Run("from bytes", func(t *testing.T) {
		m, err := NewModulusFromBytes([]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05}, ExtRepBE, IntRepMontgomery)
		require.NoError(t, err)
		assert.Equal(t, 2, m.Limbs())
		assert.Equal(t, ExtRepBE, m.ExtRep())
		assert.Equal(t, IntRepMontgomery, m.IntRep())
		assert.Equal(t, "10000000000000005", m.Value().Text(16))
	})
}

func TestMontInit(t *testing.T) {
	for _, n0 := range []Limb{1, 3, 0xb, 0x7fffffffffffffff, 0x80fe000a10000001, ^Limb(0)} {
		mm := coreMontInit(n0)
		assert.Equal(t, ^Limb(0), n0*mm, "n0 * mm must be -1 mod 2^64 for %#x", n0)
	}
}

func TestReadWrite(t *testing.T) {
	t.Run("big-endian round trip", func(t *testing.T) {
		m := newTestModulus(t, "1058ad82120c3a10196bb36229c1", ExtRepBE, IntRepMontgomery)
		in := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09}
		x := NewResidue(m)
		require.NoError(t, Read(x, m, in))
		assert.Equal(t, "10203040506070809", valueOf(x).Text(16))

		out := make([]byte, len(in))
		require.NoError(t, Write(x, m, out))
		assert.Equal(t, in, out)
	})

	t.Run("little-endian round trip", func(t *testing.T) {
		m := newTestModulus(t, "1058ad82120c3a10196bb36229c1", ExtRepLE, IntRepMontgomery)
		in := []byte{0x09, 0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
		x := NewResidue(m)
		require.NoError(t, Read(x, m, in))
		assert.Equal(t, "10203040506070809", valueOf(x).Text(16))

		out := make([]byte, len(in))
		require.NoError(t, Write(x, m, out))
		assert.Equal(t, in, out)
	})

	t.Run("write pads larger buffers", func(t *testing.T) {
		be := newTestModulus(t, "eeff99aa37", ExtRepBE, IntRepOptRed)
		x := residueOf(be, big.NewInt(0x1234))
		out := make([]byte, 12)
		require.NoError(t, Write(x, be, out))
		assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x12, 0x34}, out)

		le := newTestModulus(t, "eeff99aa37", ExtRepLE, IntRepOptRed)
		require.NoError(t, Write(x, le, out))
		assert.Equal(t, []byte{0x34, 0x12, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, out)
	})

	t.Run("write rejects buffers too small for the value", func(t *testing.T) {
		m := newTestModulus(t, "eeff99aa37", ExtRepBE, IntRepOptRed)
		x := residueOf(m, big.NewInt(0x123456))
		assert.ErrorIs(t, Write(x, m, make([]byte, 2)), crypto.ErrBufferTooSmall)
		require.NoError(t, Write(x, m, make([]byte, 3)))
	})

	t.Run("read rejects overflowing input", func(t *testing.T) {
		m := newTestModulus(t, "fd", ExtRepBE, IntRepOptRed)
		x := NewResidue(m)
		err := Read(x, m, make([]byte, limbBytes+1))
		assert.ErrorIs(t, err, crypto.ErrInvalidInput)
	})

	t.Run("read rejects values not below N", func(t *testing.T) {
		m := newTestModulus(t, "fd", ExtRepBE, IntRepOptRed)
		x := residueOf(m, big.NewInt(5))
		assert.ErrorIs(t, Read(x, m, []byte{0xfd}), crypto.ErrInvalidInput)
		assert.Equal(t, Residue{0}, x, "failed read must not leave a partial value")
		assert.ErrorIs(t, Read(x, m, []byte{0xfe}), crypto.ErrInvalidInput)
		require.NoError(t, Read(x, m, []byte{0xfc}))
	})

	t.Run("read rejects invalid external representation", func(t *testing.T) {
		m := &Modulus{}
		err := Read(NewResidue(m), m, nil)
		assert.ErrorIs(t, err, crypto.ErrInvalidInput)
		err = Write(NewResidue(m), m, nil)
		assert.ErrorIs(t, err, crypto.ErrInvalidInput)
	})
}

func TestResidueLengthMismatchPanics(t *testing.T) {
	m := newTestModulus(t, "1058ad82120c3a10196bb36229c1", ExtRepBE, IntRepOptRed)
	assert.Panics(t, func() {
		Add(NewResidue(m), NewResidue(m), make(Residue, 1), m)
	})
}

func TestCondAssignAndSwap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, hex := range testModuli {
		m := newTestModulus(t, hex, ExtRepBE, IntRepOptRed)
		n := m.Value()
		a := new(big.Int).Rand(rng, n)
		b := new(big.Int).Rand(rng, n)

		t.Run(hex, func(t *testing.T) {
			x := residueOf(m, a)
			CondAssign(x, residueOf(m, b), m, 0)
			assert.Equal(t, residueOf(m, a), x, "assign=0 must leave x unchanged")
			CondAssign(x, residueOf(m, b), m, 1)
			assert.Equal(t, residueOf(m, b), x)

			x, y := residueOf(m, a), residueOf(m, b)
			CondSwap(x, y, m, 0)
			assert.Equal(t, residueOf(m, a), x)
			assert.Equal(t, residueOf(m, b), y)
			CondSwap(x, y, m, 1)
			assert.Equal(t, residueOf(m, b), x)
			assert.Equal(t, residueOf(m, a), y)

			// swapping a residue with itself is a no-op
			CondSwap(x, x, m, 1)
			assert.Equal(t, residueOf(m, b), x)
		})
	}
}

func TestAddSubNeg(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, hex := range testModuli {
		m := newTestModulus(t, hex, ExtRepLE, IntRepOptRed)
		n := m.Value()

		t.Run(hex, func(t *testing.T) {
			vals := samples(rng, n)
			for _, a := range vals {
				for _, b := range vals {
					sum := NewResidue(m)
					Add(sum, residueOf(m, a), residueOf(m, b), m)
					want := new(big.Int).Add(a, b)
					want.Mod(want, n)
					require.Equal(t, want.Text(16), valueOf(sum).Text(16), "%x + %x", a, b)

					diff := NewResidue(m)
					Sub(diff, residueOf(m, a), residueOf(m, b), m)
					want.Sub(a, b).Mod(want, n)
					require.Equal(t, want.Text(16), valueOf(diff).Text(16), "%x - %x", a, b)

					// round trip
					Sub(sum, sum, residueOf(m, b), m)
					require.Equal(t, a.Text(16), valueOf(sum).Text(16))
				}

				neg := NewResidue(m)
				Neg(neg, residueOf(m, a), m)
				want := new(big.Int).Neg(a)
				want.Mod(want, n)
				require.Equal(t, want.Text(16), valueOf(neg).Text(16), "-%x", a)

				Neg(neg, neg, m)
				require.Equal(t, a.Text(16), valueOf(neg).Text(16), "double negation of %x", a)
			}
		})
	}
}

func TestAddAliasing(t *testing.T) {
	m := newTestModulus(t, "25a55a46e5da99c71c7", ExtRepBE, IntRepOptRed)
	n := m.Value()
	a := new(big.Int).Sub(n, big.NewInt(3))

	x := residueOf(m, a)
	Add(x, x, x, m)
	want := new(big.Int).Lsh(a, 1)
	want.Mod(want, n)
	assert.Equal(t, want.Text(16), valueOf(x).Text(16))

	Sub(x, x, x, m)
	assert.Equal(t, "0", valueOf(x).Text(16))
}

func TestMontgomery(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, hex := range testModuli {
		m := newTestModulus(t, hex, ExtRepBE, IntRepMontgomery)
		n := m.Value()
		r := new(big.Int).Lsh(big.NewInt(1), uint(limbBits*m.Limbs()))

		t.Run(hex, func(t *testing.T) {
			for _, a := range samples(rng, n) {
				x := residueOf(m, a)
				require.NoError(t, ToMont(x, m))
				want := new(big.Int).Mul(a, r)
				want.Mod(want, n)
				require.Equal(t, want.Text(16), valueOf(x).Text(16), "to_mont(%x)", a)

				require.NoError(t, FromMont(x, m))
				require.Equal(t, a.Text(16), valueOf(x).Text(16), "from_mont(to_mont(%x))", a)

				// from then to recovers any valid representative
				require.NoError(t, FromMont(x, m))
				require.NoError(t, ToMont(x, m))
				require.Equal(t, a.Text(16), valueOf(x).Text(16))
			}
		})
	}
}

func TestMul(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for _, hex := range testModuli {
		m := newTestModulus(t, hex, ExtRepLE, IntRepMontgomery)
		n := m.Value()

		t.Run(hex, func(t *testing.T) {
			vals := samples(rng, n)
			for i := 0; i+1 < len(vals); i++ {
				a, b := vals[i], vals[i+1]
				x, y := residueOf(m, a), residueOf(m, b)
				require.NoError(t, ToMont(x, m))
				require.NoError(t, ToMont(y, m))
				require.NoError(t, Mul(x, x, y, m))
				require.NoError(t, FromMont(x, m))

				want := new(big.Int).Mul(a, b)
				want.Mod(want, n)
				require.Equal(t, want.Text(16), valueOf(x).Text(16), "%x * %x", a, b)
			}
		})
	}
}

func TestMontgomeryRequiresMontgomeryModulus(t *testing.T) {
	m := newTestModulus(t, "fd", ExtRepBE, IntRepOptRed)
	x := NewResidue(m)
	assert.ErrorIs(t, ToMont(x, m), crypto.ErrInvalidInput)
	assert.ErrorIs(t, FromMont(x, m), crypto.ErrInvalidInput)
	assert.ErrorIs(t, Mul(x, x, x, m), crypto.ErrInvalidInput)
}

func TestCoreLtCT(t *testing.T) {
	tests := []struct {
		a, b []Limb
		want Limb
	}{
		{[]Limb{0, 0}, []Limb{0, 0}, 0},
		{[]Limb{1, 0}, []Limb{2, 0}, 1},
		{[]Limb{^Limb(0), 0}, []Limb{0, 1}, 1},
		{[]Limb{0, 1}, []Limb{^Limb(0), 0}, 0},
		{[]Limb{5, 7}, []Limb{5, 7}, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, coreLtCT(tt.a, tt.b), "%v < %v", tt.a, tt.b)
	}
}
