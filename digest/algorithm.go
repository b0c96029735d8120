package digest

import (
	"fmt"
	"strings"

	"github.com/opd-ai/tls13core/crypto"
)

// Algorithm identifies a hash function.
type Algorithm int

const (
	// None is the zero value and never names a usable hash.
	None Algorithm = iota
	MD5
	SHA1
	RIPEMD160
	SHA224
	SHA256
	SHA384
	SHA512
	SHA3_256
	SHA3_512
	BLAKE2s256
	BLAKE2b512
	BLAKE3_256
)

type algorithmInfo struct {
	name      string
	size      int
	blockSize int
}

var algorithms = map[Algorithm]algorithmInfo{
	MD5:        {"MD5", 16, 64},
	SHA1:       {"SHA1", 20, 64},
	RIPEMD160:  {"RIPEMD160", 20, 64},
	SHA224:     {"SHA224", 28, 64},
	SHA256:     {"SHA256", 32, 64},
	SHA384:     {"SHA384", 48, 128},
	SHA512:     {"SHA512", 64, 128},
	SHA3_256:   {"SHA3-256", 32, 136},
	SHA3_512:   {"SHA3-512", 64, 72},
	BLAKE2s256: {"BLAKE2s-256", 32, 64},
	BLAKE2b512: {"BLAKE2b-512", 64, 128},
	BLAKE3_256: {"BLAKE3-256", 32, 64},
}

// AllAlgorithms lists every algorithm this package knows, in identifier order.
func AllAlgorithms() []Algorithm {
	return []Algorithm{
		MD5, SHA1, RIPEMD160, SHA224, SHA256, SHA384, SHA512,
		SHA3_256, SHA3_512, BLAKE2s256, BLAKE2b512, BLAKE3_256,
	}
}

// String returns the conventional name of the algorithm.
func (a Algorithm) String() string {
	if info, ok := algorithms[a]; ok {
		return info.name
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// Known reports whether a names a hash function, enabled or not.
func (a Algorithm) Known() bool {
	_, ok := algorithms[a]
	return ok
}

// Size returns the digest length in bytes, or 0 for an unknown algorithm.
func (a Algorithm) Size() int {
	return algorithms[a].size
}

// ParseAlgorithm maps a name such as "SHA256", "sha-256" or "blake3-256" to
// its identifier. Matching ignores case, dashes and underscores.
func ParseAlgorithm(name string) (Algorithm, error) {
	want := normalizeName(name)
	for alg, info := range algorithms {
		if normalizeName(info.name) == want {
			return alg, nil
		}
	}
	return None, fmt.Errorf("%w: unknown hash algorithm %q", crypto.ErrInvalidArgument, name)
}

func normalizeName(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, "_", "")
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	if !a.Known() {
		return nil, fmt.Errorf("%w: unknown hash algorithm %d", crypto.ErrInvalidArgument, int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(text []byte) error {
	alg, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = alg
	return nil
}
