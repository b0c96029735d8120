package mac

import (
	"crypto/hmac"
	"fmt"
	"hash"
	"sync"

	"github.com/opd-ai/tls13core/crypto"
	"github.com/opd-ai/tls13core/digest"
)

// Builtin is the HMAC provider over a digest registry.
type Builtin struct {
	reg *digest.Registry
}

var (
	defaultBuiltin     *Builtin
	defaultBuiltinOnce sync.Once
)

// NewBuiltin returns an HMAC provider for the algorithms enabled in reg.
func NewBuiltin(reg *digest.Registry) *Builtin {
	return &Builtin{reg: reg}
}

// Default returns the HMAC provider over digest.Default().
func Default() *Builtin {
	defaultBuiltinOnce.Do(func() {
		defaultBuiltin = NewBuiltin(digest.Default())
	})
	return defaultBuiltin
}

// Registry returns the digest registry backing the provider.
func (b *Builtin) Registry() *digest.Registry { return b.reg }

// Length implements Provider.
func (b *Builtin) Length(alg digest.Algorithm) int {
	return b.reg.Length(alg)
}

// Setup implements Provider.
func (b *Builtin) Setup(key *Key) (Operation, error) {
	raw, err := key.Material()
	if err != nil {
		return nil, err
	}
	fn, err := b.reg.HashFunc(key.Algorithm())
	if err != nil {
		return nil, err
	}
	return &hmacOperation{h: hmac.New(fn, raw), size: b.reg.Length(key.Algorithm())}, nil
}

type hmacOperation struct {
	h    hash.Hash
	size int
}

func (o *hmacOperation) Update(p []byte) error {
	if o.h == nil {
		return fmt.Errorf("%w: MAC operation not active", crypto.ErrBadState)
	}
	if _, err := o.h.Write(p); err != nil {
		o.Abort()
		return fmt.Errorf("%w: %v", crypto.ErrPrimitiveFailure, err)
	}
	return nil
}

func (o *hmacOperation) Finish(out []byte) (int, error) {
	if o.h == nil {
		return 0, fmt.Errorf("%w: MAC operation not active", crypto.ErrBadState)
	}
	defer o.Abort()

	if len(out) < o.size {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", crypto.ErrBufferTooSmall, o.size, len(out))
	}
	o.h.Sum(out[:0])
	return o.size, nil
}

func (o *hmacOperation) Abort() {
	if o.h == nil {
		return
	}
	o.h.Reset()
	o.h = nil
}
