package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding"
	"fmt"
	"hash"
	"strings"

	"github.com/flynn/noise"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"

	"github.com/opd-ai/tls13core/crypto"
)

// Driver identifies a hash implementation backend.
type Driver int

const (
	// DriverBuiltin uses the Go standard library and golang.org/x/crypto.
	DriverBuiltin Driver = iota + 1
	// DriverNoise uses the hash functions of the Noise protocol framework
	// implementation.
	DriverNoise
	// DriverBLAKE3 uses the SIMD-accelerated BLAKE3 implementation.
	DriverBLAKE3
)

// String returns the configuration name of the driver.
func (d Driver) String() string {
	switch d {
	case DriverBuiltin:
		return "builtin"
	case DriverNoise:
		return "noise"
	case DriverBLAKE3:
		return "blake3"
	default:
		return fmt.Sprintf("Driver(%d)", int(d))
	}
}

// ParseDriver maps a configuration name to a driver.
func ParseDriver(name string) (Driver, error) {
	switch strings.ToLower(name) {
	case "builtin":
		return DriverBuiltin, nil
	case "noise":
		return DriverNoise, nil
	case "blake3":
		return DriverBLAKE3, nil
	default:
		return 0, fmt.Errorf("%w: unknown hash driver %q", crypto.ErrInvalidArgument, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Driver) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Driver) UnmarshalText(text []byte) error {
	drv, err := ParseDriver(string(text))
	if err != nil {
		return err
	}
	*d = drv
	return nil
}

var builtinHashes = map[Algorithm]func() hash.Hash{
	MD5:       md5.New,
	SHA1:      sha1.New,
	RIPEMD160: ripemd160.New,
	SHA224:    sha256.New224,
	SHA256:    sha256.New,
	SHA384:    sha512.New384,
	SHA512:    sha512.New,
	SHA3_256:  func() hash.Hash { return sha3.New256() },
	SHA3_512:  func() hash.Hash { return sha3.New512() },
	BLAKE2s256: func() hash.Hash {
		h, _ := blake2s.New256(nil) // unkeyed never fails
		return h
	},
	BLAKE2b512: func() hash.Hash {
		h, _ := blake2b.New512(nil)
		return h
	},
}

var noiseHashes = map[Algorithm]noise.HashFunc{
	SHA256:     noise.HashSHA256,
	SHA512:     noise.HashSHA512,
	BLAKE2s256: noise.HashBLAKE2s,
	BLAKE2b512: noise.HashBLAKE2b,
}

// Provides reports whether the driver implements alg.
func (d Driver) Provides(alg Algorithm) bool {
	switch d {
	case DriverBuiltin:
		_, ok := builtinHashes[alg]
		return ok
	case DriverNoise:
		_, ok := noiseHashes[alg]
		return ok
	case DriverBLAKE3:
		return alg == BLAKE3_256
	default:
		return false
	}
}

// newState starts a fresh hash computation on driver d.
func (d Driver) newState(alg Algorithm) (state, error) {
	switch d {
	case DriverBuiltin:
		if fn, ok := builtinHashes[alg]; ok {
			return &builtinState{alg: alg, h: fn()}, nil
		}
	case DriverNoise:
		if fn, ok := noiseHashes[alg]; ok {
			return &noiseState{alg: alg, fn: fn, h: fn.Hash()}, nil
		}
	case DriverBLAKE3:
		if alg == BLAKE3_256 {
			return &blake3State{h: blake3.New()}, nil
		}
	}
	return nil, fmt.Errorf("%w: driver %s does not implement %s", crypto.ErrNotSupported, d, alg)
}

// state is the per-driver payload of an active Operation. Each
// implementation carries its own driver tag, so the tag and the context it
// describes can never disagree.
type state interface {
	driver() Driver
	algorithm() Algorithm
	hash() hash.Hash
	clone() (state, error)
}

type builtinState struct {
	alg Algorithm
	h   hash.Hash
}

func (s *builtinState) driver() Driver       { return DriverBuiltin }
func (s *builtinState) algorithm() Algorithm { return s.alg }
func (s *builtinState) hash() hash.Hash      { return s.h }

func (s *builtinState) clone() (state, error) {
	h, err := cloneMarshaled(s.h, builtinHashes[s.alg]())
	if err != nil {
		return nil, fmt.Errorf("builtin %s: %w", s.alg, err)
	}
	return &builtinState{alg: s.alg, h: h}, nil
}

type noiseState struct {
	alg Algorithm
	fn  noise.HashFunc
	h   hash.Hash
}

func (s *noiseState) driver() Driver       { return DriverNoise }
func (s *noiseState) algorithm() Algorithm { return s.alg }
func (s *noiseState) hash() hash.Hash      { return s.h }

func (s *noiseState) clone() (state, error) {
	h, err := cloneMarshaled(s.h, s.fn.Hash())
	if err != nil {
		return nil, fmt.Errorf("noise %s: %w", s.fn.HashName(), err)
	}
	return &noiseState{alg: s.alg, fn: s.fn, h: h}, nil
}

type blake3State struct {
	h *blake3.Hasher
}

func (s *blake3State) driver() Driver       { return DriverBLAKE3 }
func (s *blake3State) algorithm() Algorithm { return BLAKE3_256 }
func (s *blake3State) hash() hash.Hash      { return s.h }

func (s *blake3State) clone() (state, error) {
	return &blake3State{h: s.h.Clone()}, nil
}

// cloneMarshaled copies the running state of src into the fresh hash dst
// through the binary marshaling support of the standard hash packages.
func cloneMarshaled(src, dst hash.Hash) (hash.Hash, error) {
	m, ok := src.(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("%w: hash state cannot be cloned", crypto.ErrNotSupported)
	}
	u, ok := dst.(encoding.BinaryUnmarshaler)
	if !ok {
		return nil, fmt.Errorf("%w: hash state cannot be cloned", crypto.ErrNotSupported)
	}
	st, err := m.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrPrimitiveFailure, err)
	}
	defer crypto.ZeroBytes(st)
	if err := u.UnmarshalBinary(st); err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrPrimitiveFailure, err)
	}
	return dst, nil
}
