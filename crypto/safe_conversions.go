package crypto

import (
	"fmt"
	"math"
)

// ToUint8 converts a length to a single wire byte, failing instead of
// truncating.
//
// CWE-190: Integer Overflow or Wraparound
func ToUint8(val int) (uint8, error) {
	if val < 0 || val > math.MaxUint8 {
		return 0, fmt.Errorf("%w: value %d does not fit in uint8", ErrInternal, val)
	}
	return uint8(val), nil
}

// ToUint16 converts a length to a 16-bit wire field, failing instead of
// truncating.
//
// CWE-190: Integer Overflow or Wraparound
func ToUint16(val int) (uint16, error) {
	if val < 0 || val > math.MaxUint16 {
		return 0, fmt.Errorf("%w: value %d does not fit in uint16", ErrInternal, val)
	}
	return uint16(val), nil
}

// CeilDiv returns ceil(n/d) for non-negative n and positive d.
func CeilDiv(n, d int) int {
	return (n + d - 1) / d
}
