package crypto

import "errors"

// Error taxonomy shared by every package in this module. Callers match
// with errors.Is; packages wrap these with fmt.Errorf("...: %w", ...) to
// add context.
var (
	// ErrInvalidInput indicates malformed or out-of-range external data,
	// e.g. a residue that is not below its modulus or a bad representation tag.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBufferTooSmall indicates an output buffer cannot hold the result.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrInvalidArgument indicates a caller precondition violation such as an
	// empty PRK, an HKDF output length beyond 255 blocks or an unknown hash.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInternal indicates an invariant violation that correct callers never
	// trigger, e.g. a label longer than the statically allowed maximum.
	ErrInternal = errors.New("internal error")

	// ErrBadState indicates an operation invoked in the wrong lifecycle phase.
	ErrBadState = errors.New("bad state")

	// ErrPrimitiveFailure indicates the underlying hash, MAC or cipher failed.
	ErrPrimitiveFailure = errors.New("underlying primitive failure")

	// ErrNotSupported indicates an algorithm or driver that is not enabled.
	ErrNotSupported = errors.New("not supported")
)
