// Package limits provides the static size limits of the key schedule and
// certificate pool. Call sites validate against these constants so that the
// fixed-layout encoders never see oversized input.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxHashSize is the largest digest produced by any supported hash
	// (SHA-512, SHA3-512, BLAKE2b-512).
	MaxHashSize = 64

	// MaxHKDFBlocks is the RFC 5869 ceiling on HKDF-Expand iterations.
	MaxHKDFBlocks = 255

	// LabelPrefix is prepended to every TLS 1.3 HKDF label.
	LabelPrefix = "tls13 "

	// MaxLabelLen is the longest label accepted by HKDF-Expand-Label,
	// excluding LabelPrefix, so that the prefixed label fits a one-byte
	// length field.
	MaxLabelLen = 255 - len(LabelPrefix)

	// MaxContextLen is the longest HKDF-Expand-Label context. Contexts are
	// transcript hashes, so the largest digest bounds them.
	MaxContextLen = MaxHashSize

	// MaxExpansionLen is the most output HKDF-Expand-Label will produce.
	// The high byte of the encoded length is always zero.
	MaxExpansionLen = 255

	// MaxHkdfLabelLen is the encoded size of the largest HkdfLabel.
	MaxHkdfLabelLen = 2 + 1 + len(LabelPrefix) + MaxLabelLen + 1 + MaxContextLen

	// MaxDERSize is the largest certificate the pool will store.
	MaxDERSize = 64 * 1024
)

var (
	// ErrEmpty indicates an empty buffer was provided where data is required
	ErrEmpty = errors.New("empty input")

	// ErrTooLarge indicates input exceeds its maximum size
	ErrTooLarge = errors.New("input too large")
)

// ValidateSize validates data against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateSize(data []byte, maxSize int) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if len(data) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrTooLarge, len(data), maxSize)
	}
	return nil
}

// ValidateLabel checks a label against MaxLabelLen. Empty labels are
// allowed.
func ValidateLabel(label string) error {
	if len(label) > MaxLabelLen {
		return fmt.Errorf("%w: label size %d exceeds limit %d", ErrTooLarge, len(label), MaxLabelLen)
	}
	return nil
}

// ValidateContext checks an HKDF-Expand-Label context against
// MaxContextLen. Empty contexts are allowed.
func ValidateContext(context []byte) error {
	if len(context) > MaxContextLen {
		return fmt.Errorf("%w: context size %d exceeds limit %d", ErrTooLarge, len(context), MaxContextLen)
	}
	return nil
}

// ValidateExpansion checks a requested HKDF-Expand-Label output length.
func ValidateExpansion(length int) error {
	if length <= 0 {
		return fmt.Errorf("%w: expansion length %d", ErrEmpty, length)
	}
	if length > MaxExpansionLen {
		return fmt.Errorf("%w: expansion length %d exceeds limit %d", ErrTooLarge, length, MaxExpansionLen)
	}
	return nil
}

// ValidateDER checks a certificate buffer against MaxDERSize.
func ValidateDER(der []byte) error {
	if len(der) == 0 {
		return ErrEmpty
	}
	if len(der) > MaxDERSize {
		return fmt.Errorf("%w: certificate size %d exceeds limit %d", ErrTooLarge, len(der), MaxDERSize)
	}
	return nil
}
