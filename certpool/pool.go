package certpool

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/tls13core/crypto"
	"github.com/opd-ai/tls13core/limits"
)

// ErrPoolFull is returned by Acquire when the pool holds MaxEntries
// distinct certificates.
var ErrPoolFull = fmt.Errorf("%w: certificate pool is full", crypto.ErrBufferTooSmall)

// Options bounds a pool. Zero fields select the defaults.
type Options struct {
	// MaxEntries caps the number of distinct certificates; 0 is unlimited.
	MaxEntries int
	// MaxDERSize caps a single certificate; 0 means limits.MaxDERSize.
	MaxDERSize int
}

type entry struct {
	der  []byte
	refs int
	gen  uint64 // 0 once removed
}

// Pool is a reference-counted store of raw certificate DER buffers.
// Identical certificates share one copy. Every operation runs under a
// single mutex.
type Pool struct {
	mu      sync.Mutex
	entries []*entry
	nextGen uint64
	closed  bool
	opts    Options
}

// Handle is a counted reference to a pooled certificate. It is valid until
// passed to Release.
type Handle struct {
	pool     *Pool
	e        *entry
	gen      uint64
	released bool
}

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// Default returns the process-wide pool.
func Default() *Pool {
	defaultPoolOnce.Do(func() {
		defaultPool = New(nil)
	})
	return defaultPool
}

// New creates an empty pool. A nil opts selects the defaults.
func New(opts *Options) *Pool {
	p := &Pool{}
	if opts != nil {
		p.opts = *opts
	}
	if p.opts.MaxDERSize <= 0 {
		p.opts.MaxDERSize = limits.MaxDERSize
	}
	return p
}

// Acquire returns a handle to the pooled copy of der, inserting a copy if
// no identical certificate is present.
func (p *Pool) Acquire(der []byte) (*Handle, error) {
	if err := limits.ValidateSize(der, p.opts.MaxDERSize); err != nil {
		return nil, fmt.Errorf("%w: certificate: %w", crypto.ErrInvalidInput, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("%w: certificate pool is closed", crypto.ErrBadState)
	}

	for _, e := range p.entries {
		if len(e.der) == len(der) && bytes.Equal(e.der, der) {
			e.refs++
			logrus.WithFields(logrus.Fields{
				"function": "Acquire",
				"package":  "certpool",
				"size":     len(der),
				"refs":     e.refs,
			}).Debug("Certificate shared")
			return &Handle{pool: p, e: e, gen: e.gen}, nil
		}
	}

	if p.opts.MaxEntries > 0 && len(p.entries) >= p.opts.MaxEntries {
		return nil, ErrPoolFull
	}

	p.nextGen++
	e := &entry{der: append([]byte(nil), der...), refs: 1, gen: p.nextGen}
	p.entries = append(p.entries, e)

	logrus.WithFields(logrus.Fields{
		"function": "Acquire",
		"package":  "certpool",
		"size":     len(der),
		"entries":  len(p.entries),
	}).Debug("Certificate inserted")

	return &Handle{pool: p, e: e, gen: e.gen}, nil
}

// valid reports whether h still refers to a live entry. Callers hold p.mu.
func (p *Pool) valid(h *Handle) error {
	if h == nil || h.pool != p {
		return fmt.Errorf("%w: handle does not belong to this pool", crypto.ErrInvalidArgument)
	}
	if p.closed {
		return fmt.Errorf("%w: certificate pool is closed", crypto.ErrBadState)
	}
	if h.released || h.e.gen != h.gen {
		return fmt.Errorf("%w: certificate handle already released", crypto.ErrBadState)
	}
	return nil
}

// Release drops one reference. The last release removes the entry and
// wipes its bytes.
func (p *Pool) Release(h *Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.valid(h); err != nil {
		return err
	}
	h.released = true
	h.e.refs--
	if h.e.refs > 0 {
		return nil
	}

	for i, e := range p.entries {
		if e == h.e {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			break
		}
	}
	crypto.ZeroBytes(h.e.der)
	h.e.der = nil
	h.e.gen = 0

	logrus.WithFields(logrus.Fields{
		"function": "Release",
		"package":  "certpool",
		"entries":  len(p.entries),
	}).Debug("Certificate removed")
	return nil
}

// RefCount returns the number of live handles sharing h's certificate.
func (p *Pool) RefCount(h *Handle) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.valid(h); err != nil {
		return 0, err
	}
	return h.e.refs, nil
}

// Len returns the number of distinct certificates held.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Close wipes every entry and invalidates all handles. It is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		crypto.ZeroBytes(e.der)
		e.der = nil
		e.gen = 0
	}
	p.entries = nil
	p.closed = true
}

// Bytes returns a copy of the certificate.
func (h *Handle) Bytes() ([]byte, error) {
	if h == nil || h.pool == nil {
		return nil, fmt.Errorf("%w: nil handle", crypto.ErrInvalidArgument)
	}
	h.pool.mu.Lock()
	defer h.pool.mu.Unlock()
	if err := h.pool.valid(h); err != nil {
		return nil, err
	}
	return append([]byte(nil), h.e.der...), nil
}

// Same reports whether h and other are live handles to the same pooled
// certificate.
func (h *Handle) Same(other *Handle) bool {
	if h == nil || other == nil || h.pool == nil || h.pool != other.pool {
		return false
	}
	h.pool.mu.Lock()
	defer h.pool.mu.Unlock()
	return h.pool.valid(h) == nil && h.pool.valid(other) == nil && h.e == other.e
}
