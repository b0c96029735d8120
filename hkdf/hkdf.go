// Package hkdf implements the HMAC-based key derivation function of
// RFC 5869 on top of a pluggable MAC provider.
//
// Extract concentrates input keying material into a pseudorandom key;
// Expand stretches a pseudorandom key into output keying material. Both
// write into caller-provided buffers. Intermediate MAC keys and the
// chaining block T are wiped before return on every path, and a failing
// Expand also wipes whatever part of the output it had already written.
package hkdf

import (
	"fmt"
	"sync"

	"github.com/opd-ai/tls13core/crypto"
	"github.com/opd-ai/tls13core/digest"
	"github.com/opd-ai/tls13core/limits"
	"github.com/opd-ai/tls13core/mac"
)

// Engine runs HKDF over a MAC provider.
type Engine struct {
	mac mac.Provider
}

var (
	defaultEngine     *Engine
	defaultEngineOnce sync.Once
)

// New returns an engine that computes HMAC through p.
func New(p mac.Provider) *Engine {
	return &Engine{mac: p}
}

// Default returns the engine over mac.Default().
func Default() *Engine {
	defaultEngineOnce.Do(func() {
		defaultEngine = New(mac.Default())
	})
	return defaultEngine
}

// Provider returns the MAC provider used by the engine.
func (e *Engine) Provider() mac.Provider { return e.mac }

// HashLen returns the digest length of alg, or 0 if alg is unavailable.
func (e *Engine) HashLen(alg digest.Algorithm) int {
	return e.mac.Length(alg)
}

// Extract computes PRK = HMAC-Hash(salt, ikm) into prk and returns its
// length. An empty salt is replaced by HashLen zero bytes.
func (e *Engine) Extract(alg digest.Algorithm, salt, ikm, prk []byte) (int, error) {
	hashLen := e.mac.Length(alg)
	if hashLen == 0 {
		return 0, fmt.Errorf("%w: cannot determine digest length for %s", crypto.ErrInvalidArgument, alg)
	}
	if len(prk) < hashLen {
		return 0, fmt.Errorf("%w: PRK buffer holds %d bytes, need %d", crypto.ErrBufferTooSmall, len(prk), hashLen)
	}

	if len(salt) == 0 {
		salt = make([]byte, hashLen)
	}

	key, err := mac.ImportKey(alg, salt)
	if err != nil {
		return 0, err
	}
	defer key.Destroy()

	n, err := mac.Compute(e.mac, key, ikm, prk[:hashLen])
	if err != nil {
		crypto.ZeroBytes(prk[:hashLen])
		crypto.NewLogger("hkdf", "Extract").
			WithAlgorithm(alg).
			WithError(err, "hmac").
			Warn("HKDF-Extract failed")
		return 0, err
	}
	return n, nil
}

// Expand fills okm with HKDF-Expand(prk, info, len(okm)). prk must be at
// least HashLen bytes, okm must be non-empty, and at most 255 blocks may be
// produced.
func (e *Engine) Expand(alg digest.Algorithm, prk, info, okm []byte) error {
	hashLen := e.mac.Length(alg)
	if hashLen == 0 {
		return fmt.Errorf("%w: cannot determine digest length for %s", crypto.ErrInvalidArgument, alg)
	}
	if len(prk) < hashLen {
		return fmt.Errorf("%w: PRK is %d bytes, shorter than digest length %d", crypto.ErrInvalidArgument, len(prk), hashLen)
	}
	if len(okm) == 0 {
		return fmt.Errorf("%w: empty output", crypto.ErrInvalidArgument)
	}
	blocks := crypto.CeilDiv(len(okm), hashLen)
	if blocks > limits.MaxHKDFBlocks {
		return fmt.Errorf("%w: %d bytes need %d blocks, limit is %d", crypto.ErrInvalidArgument, len(okm), blocks, limits.MaxHKDFBlocks)
	}

	if err := e.expand(alg, prk, info, okm, hashLen, blocks); err != nil {
		crypto.ZeroBytes(okm)
		crypto.NewLogger("hkdf", "Expand").
			WithAlgorithm(alg).
			WithField("length", len(okm)).
			WithError(err, "hmac").
			Warn("HKDF-Expand failed")
		return err
	}
	return nil
}

func (e *Engine) expand(alg digest.Algorithm, prk, info, okm []byte, hashLen, blocks int) error {
	key, err := mac.ImportKey(alg, prk)
	if err != nil {
		return err
	}
	defer key.Destroy()

	t := crypto.NewSecret(hashLen)
	defer t.Destroy()

	tLen := 0
	where := 0
	for i := 1; i <= blocks; i++ {
		op, err := e.mac.Setup(key)
		if err != nil {
			return err
		}
		// T(i) = HMAC(PRK, T(i-1) | info | i), T(0) empty
		if err := updateAll(op, t.Bytes()[:tLen], info, []byte{byte(i)}); err != nil {
			op.Abort()
			return err
		}
		if _, err := op.Finish(t.Bytes()); err != nil {
			return err
		}
		tLen = hashLen

		where += copy(okm[where:], t.Bytes())
	}
	return nil
}

func updateAll(op mac.Operation, parts ...[]byte) error {
	for _, p := range parts {
		if err := op.Update(p); err != nil {
			return err
		}
	}
	return nil
}

// Extract runs Default().Extract.
func Extract(alg digest.Algorithm, salt, ikm, prk []byte) (int, error) {
	return Default().Extract(alg, salt, ikm, prk)
}

// Expand runs Default().Expand.
func Expand(alg digest.Algorithm, prk, info, okm []byte) error {
	return Default().Expand(alg, prk, info, okm)
}
