package digest

import (
	"fmt"
	"hash"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/tls13core/crypto"
)

// Registry is the table of enabled hash algorithms and the drivers that
// serve them. It is built once, from configuration, and is read-only
// afterwards, so it is safe for concurrent use.
type Registry struct {
	enabled map[Algorithm]Driver
	drivers []Driver
}

// DefaultDrivers is the driver preference used by Default.
var DefaultDrivers = []Driver{DriverBuiltin, DriverNoise, DriverBLAKE3}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the registry with every algorithm enabled and the
// DefaultDrivers preference order.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		r, err := NewRegistry(AllAlgorithms(), DefaultDrivers)
		if err != nil {
			panic(fmt.Sprintf("digest: default registry: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// NewRegistry enables algs, binding each to the first driver in drivers
// that implements it. An algorithm no listed driver implements is an error.
func NewRegistry(algs []Algorithm, drivers []Driver) (*Registry, error) {
	if len(drivers) == 0 {
		return nil, fmt.Errorf("%w: no hash drivers configured", crypto.ErrInvalidArgument)
	}
	for _, d := range drivers {
		if d != DriverBuiltin && d != DriverNoise && d != DriverBLAKE3 {
			return nil, fmt.Errorf("%w: unknown hash driver %s", crypto.ErrInvalidArgument, d)
		}
	}

	r := &Registry{
		enabled: make(map[Algorithm]Driver, len(algs)),
		drivers: append([]Driver(nil), drivers...),
	}

	for _, alg := range algs {
		if !alg.Known() {
			return nil, fmt.Errorf("%w: unknown hash algorithm %s", crypto.ErrInvalidArgument, alg)
		}
		bound := false
		for _, d := range drivers {
			if d.Provides(alg) {
				r.enabled[alg] = d
				bound = true
				break
			}
		}
		if !bound {
			return nil, fmt.Errorf("%w: no configured driver implements %s", crypto.ErrNotSupported, alg)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":   "NewRegistry",
		"package":    "digest",
		"algorithms": len(r.enabled),
		"drivers":    len(r.drivers),
	}).Debug("Hash capability registry built")

	return r, nil
}

// Supported reports whether alg is enabled.
func (r *Registry) Supported(alg Algorithm) bool {
	_, ok := r.enabled[alg]
	return ok
}

// Length returns the digest length of alg, or 0 when alg is not enabled.
func (r *Registry) Length(alg Algorithm) int {
	if !r.Supported(alg) {
		return 0
	}
	return alg.Size()
}

// BlockSize returns the block size of alg, or 0 when alg is not enabled.
func (r *Registry) BlockSize(alg Algorithm) int {
	if !r.Supported(alg) {
		return 0
	}
	return algorithms[alg].blockSize
}

// Driver returns the driver bound to alg.
func (r *Registry) Driver(alg Algorithm) (Driver, error) {
	d, ok := r.enabled[alg]
	if !ok {
		return 0, unsupported(alg)
	}
	return d, nil
}

// Algorithms returns the enabled algorithms in identifier order.
func (r *Registry) Algorithms() []Algorithm {
	var out []Algorithm
	for _, alg := range AllAlgorithms() {
		if r.Supported(alg) {
			out = append(out, alg)
		}
	}
	return out
}

// New returns a fresh hash.Hash for alg from its bound driver.
func (r *Registry) New(alg Algorithm) (hash.Hash, error) {
	d, err := r.Driver(alg)
	if err != nil {
		return nil, err
	}
	st, err := d.newState(alg)
	if err != nil {
		return nil, err
	}
	return st.hash(), nil
}

// HashFunc returns a constructor for alg suitable for crypto/hmac.
func (r *Registry) HashFunc(alg Algorithm) (func() hash.Hash, error) {
	d, err := r.Driver(alg)
	if err != nil {
		return nil, err
	}
	if _, err := d.newState(alg); err != nil {
		return nil, err
	}
	return func() hash.Hash {
		st, _ := d.newState(alg)
		return st.hash()
	}, nil
}

// Compute hashes input in one shot into out and returns the digest length.
// It follows Operation.Finish for undersized buffers.
func (r *Registry) Compute(alg Algorithm, input, out []byte) (int, error) {
	var op Operation
	if err := op.Setup(r, alg); err != nil {
		return 0, err
	}
	if err := op.Update(input); err != nil {
		op.Abort()
		return 0, err
	}
	return op.Finish(out)
}

// Sum is Compute with a freshly allocated output.
func (r *Registry) Sum(alg Algorithm, input []byte) ([]byte, error) {
	out := make([]byte, r.Length(alg))
	if _, err := r.Compute(alg, input, out); err != nil {
		return nil, err
	}
	return out, nil
}

func unsupported(alg Algorithm) error {
	if alg.Known() {
		return fmt.Errorf("%w: hash algorithm %s is not enabled", crypto.ErrNotSupported, alg)
	}
	return fmt.Errorf("%w: %s is not a hash algorithm", crypto.ErrInvalidArgument, alg)
}
