// Package crypto holds the pieces every other package in tls13core shares:
// the error taxonomy, secure memory handling, structured logging helpers and
// checked integer conversions.
//
// # Error Taxonomy
//
// All failures surface as one of a small set of sentinel errors, wrapped with
// context:
//
//   - [ErrInvalidInput]: malformed or out-of-range external data
//   - [ErrBufferTooSmall]: an output buffer is undersized
//   - [ErrInvalidArgument]: a caller precondition was violated
//   - [ErrInternal]: an invariant that upstream validation should guarantee
//   - [ErrBadState]: an object used in the wrong lifecycle phase
//   - [ErrPrimitiveFailure]: the hash, MAC or cipher provider failed
//   - [ErrNotSupported]: the algorithm or driver is not enabled
//
// Match them with errors.Is:
//
//	if errors.Is(err, crypto.ErrBufferTooSmall) {
//	    // grow and retry
//	}
//
// No error is retried internally.
//
// # Secure Memory Handling
//
// Key material lives in [Secret] values whose Destroy method overwrites the
// buffer. Pair every allocation with a deferred Destroy so the wipe happens on
// every exit path:
//
//	s := crypto.NewSecret(32)
//	defer s.Destroy()
//
// [SecureWipe] and [ZeroBytes] wipe plain slices for code that does not own a
// Secret.
//
// # Logging
//
// [LoggerHelper] wraps logrus with the standard "package" and "function"
// fields. Secrets are never logged; [LoggerHelper.WithSecret] and
// [SecretFields] record only sizes.
package crypto
