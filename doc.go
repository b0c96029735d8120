// Package tls13core is the root of a small cryptographic toolkit built around
// the TLS 1.3 key schedule (RFC 8446 section 7).
//
// The root package holds no code. The functionality lives in subpackages:
//
//   - tls13: HkdfLabel encoding, the key schedule state machine, cipher suite
//     metadata and negotiation, transcript hashing, record protection
//     transforms, exporters and NSS key logging
//   - hkdf, mac, digest: HKDF over HMAC over a hash capability registry with
//     pluggable drivers (builtin, flynn/noise, BLAKE3)
//   - bignum: constant-time modular residue arithmetic with Montgomery support
//   - constanttime: masking helpers used by bignum and the verifiers
//   - keyshare: ECDHE shared secrets for x25519, x448, P-256 and P-384
//   - certpool: a reference-counted, deduplicating certificate DER pool
//   - config: YAML configuration for the registry, suites, groups and logging
//   - crypto, limits: secret wiping, the error taxonomy, logging helpers and
//     size limits shared by everything above
//
// # Getting Started
//
// Derive handshake and application keys for a full (EC)DHE handshake:
//
//	suite, _ := tls13.CipherSuiteByID(tls13.TLS_AES_128_GCM_SHA256)
//	ks, err := tls13.NewKeySchedule(suite, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ks.Erase()
//
//	if err := ks.StageEarly(nil); err != nil {
//	    log.Fatal(err)
//	}
//	shared, _ := priv.SharedSecret(peerPublic)
//	if err := ks.StageHandshake(shared.Bytes()); err != nil {
//	    log.Fatal(err)
//	}
//	keys, err := ks.HandshakeKeys(serverHelloHash)
//
// The cmd/tls13keys tool runs the schedule over a YAML vector file and prints
// every derived value, which is handy for checking another implementation.
package tls13core
