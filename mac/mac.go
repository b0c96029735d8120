// Package mac is the keyed MAC provider consumed by HKDF and the TLS 1.3
// key schedule. Keys are imported into [Key] handles that own a copy of the
// raw material and wipe it on Destroy; MAC computations run through a
// [Provider] so that callers (and tests) can substitute the implementation.
package mac

import (
	"fmt"

	"github.com/opd-ai/tls13core/constanttime"
	"github.com/opd-ai/tls13core/crypto"
	"github.com/opd-ai/tls13core/digest"
)

// Key is an imported MAC key bound to one hash algorithm.
type Key struct {
	alg      digest.Algorithm
	material *crypto.Secret
}

// ImportKey copies raw into a new key handle for HMAC over alg. The caller
// keeps ownership of raw.
func ImportKey(alg digest.Algorithm, raw []byte) (*Key, error) {
	if !alg.Known() {
		return nil, fmt.Errorf("%w: %s is not a hash algorithm", crypto.ErrInvalidArgument, alg)
	}
	return &Key{alg: alg, material: crypto.SecretFrom(raw)}, nil
}

// Algorithm returns the hash algorithm the key is bound to.
func (k *Key) Algorithm() digest.Algorithm { return k.alg }

// Len returns the key length in bytes.
func (k *Key) Len() int { return k.material.Len() }

// Destroy wipes the key material. Using the key afterwards fails with
// ErrBadState. Destroy is idempotent.
func (k *Key) Destroy() {
	if k == nil {
		return
	}
	k.material.Destroy()
}

// Destroyed reports whether Destroy has been called.
func (k *Key) Destroyed() bool {
	return k == nil || k.material.Destroyed()
}

// Material returns the raw key bytes for providers. The slice aliases the
// key and must not be retained.
func (k *Key) Material() ([]byte, error) {
	if k.Destroyed() {
		return nil, fmt.Errorf("%w: key has been destroyed", crypto.ErrBadState)
	}
	return k.material.Bytes(), nil
}

// Operation is a multipart MAC computation.
type Operation interface {
	// Update feeds data into the MAC.
	Update(p []byte) error
	// Finish writes the tag into out and returns its length. The
	// operation ends whether or not Finish succeeds.
	Finish(out []byte) (int, error)
	// Abort ends the operation and discards its state. It is safe to call
	// more than once and after Finish.
	Abort()
}

// Provider computes MACs over imported keys.
type Provider interface {
	// Length returns the tag length for alg, or 0 if alg is unavailable.
	Length(alg digest.Algorithm) int
	// Setup starts a multipart MAC with key.
	Setup(key *Key) (Operation, error)
}

// Compute is the one-shot form of Setup, Update and Finish.
func Compute(p Provider, key *Key, input, out []byte) (int, error) {
	op, err := p.Setup(key)
	if err != nil {
		return 0, err
	}
	if err := op.Update(input); err != nil {
		op.Abort()
		return 0, err
	}
	return op.Finish(out)
}

// Verify recomputes the MAC of input and compares it with tag in constant
// time. A mismatch is reported as ErrInvalidInput.
func Verify(p Provider, key *Key, input, tag []byte) error {
	n := p.Length(key.Algorithm())
	if n == 0 {
		return fmt.Errorf("%w: hash algorithm %s is not enabled", crypto.ErrNotSupported, key.Algorithm())
	}
	want := crypto.NewSecret(n)
	defer want.Destroy()

	if _, err := Compute(p, key, input, want.Bytes()); err != nil {
		return err
	}
	if !constanttime.Equal(want.Bytes(), tag) {
		return fmt.Errorf("%w: MAC mismatch", crypto.ErrInvalidInput)
	}
	return nil
}
