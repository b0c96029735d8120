package crypto

import (
	"crypto/subtle"
	"errors"
	"runtime"
)

// SecureWipe attempts to securely erase the contents of a byte slice
// containing sensitive data. It returns an error if the byte slice is nil.
func SecureWipe(data []byte) error {
	if data == nil {
		return errors.New("cannot wipe nil data")
	}

	// Overwrite the data with zeros
	// Using subtle.ConstantTimeCompare's byteXor operation to avoid
	// potential compiler optimizations that might remove the overwrite
	zeros := make([]byte, len(data))
	subtle.ConstantTimeCompare(data, zeros)
	copy(data, zeros)

	// Attempt to prevent the compiler from optimizing out the zeroing
	runtime.KeepAlive(data)
	runtime.KeepAlive(zeros)

	return nil
}

// ZeroBytes erases the contents of a byte slice containing sensitive data.
// This is a convenience function that ignores the error from SecureWipe.
func ZeroBytes(data []byte) {
	_ = SecureWipe(data)
}

// WipeLimbs erases a word vector holding sensitive integer material.
func WipeLimbs(limbs []uint64) {
	for i := range limbs {
		limbs[i] = 0
	}
	runtime.KeepAlive(limbs)
}

// Secret is a fixed-size buffer of key material whose memory is wiped by
// Destroy. The intended use is scoped:
//
//	s := crypto.NewSecret(n)
//	defer s.Destroy()
//
// so the wipe happens on every exit path, including error returns.
// Destroy is idempotent and safe on a nil *Secret.
type Secret struct {
	buf       []byte
	destroyed bool
}

// NewSecret allocates a zeroed secret of n bytes.
func NewSecret(n int) *Secret {
	return &Secret{buf: make([]byte, n)}
}

// SecretFrom copies b into a new Secret. The caller keeps ownership of b.
func SecretFrom(b []byte) *Secret {
	s := NewSecret(len(b))
	copy(s.buf, b)
	return s
}

// Bytes returns the underlying buffer. The slice is only valid until
// Destroy; callers that need the value afterwards must copy it.
func (s *Secret) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.buf
}

// Len returns the size of the secret in bytes.
func (s *Secret) Len() int {
	if s == nil {
		return 0
	}
	return len(s.buf)
}

// Destroyed reports whether Destroy has been called.
func (s *Secret) Destroyed() bool {
	return s == nil || s.destroyed
}

// Clone returns an independent copy of the secret.
func (s *Secret) Clone() *Secret {
	if s == nil {
		return nil
	}
	return SecretFrom(s.buf)
}

// Destroy overwrites the secret with zeros.
func (s *Secret) Destroy() {
	if s == nil || s.destroyed {
		return
	}
	ZeroBytes(s.buf)
	s.destroyed = true
}
