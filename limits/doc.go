// Package limits provides centralized size constants and validation functions
// for the key schedule and certificate pool.
//
// # Size Hierarchy
//
// The TLS 1.3 HkdfLabel structure has one-byte length fields, which fixes
// most of the limits:
//
//   - MaxLabelLen (249 bytes): the purpose label without the "tls13 " prefix,
//     so that the prefixed label still fits in 255 bytes.
//
//   - MaxContextLen (64 bytes): contexts are transcript hashes, bounded by the
//     largest digest.
//
//   - MaxExpansionLen (255 bytes): HKDF-Expand-Label never produces more; the
//     high byte of the encoded length is always zero.
//
//   - MaxHKDFBlocks (255): the RFC 5869 ceiling on HKDF-Expand iterations.
//
//   - MaxDERSize (64 KiB): the largest certificate accepted by the pool.
//
// # Validation Functions
//
//	if err := limits.ValidateLabel(label); err != nil {
//	    // ErrTooLarge
//	}
//
// For custom size limits, use the generic ValidateSize function:
//
//	err := limits.ValidateSize(data, 4096)
//
// # Error Types
//
//   - ErrEmpty: returned when required data is empty
//   - ErrTooLarge: returned when data exceeds the specified limit
package limits
