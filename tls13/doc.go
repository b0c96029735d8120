// Package tls13 implements the TLS 1.3 key schedule of RFC 8446.
//
// The Deriver exposes the derivation primitives (HKDF-Expand-Label,
// Derive-Secret, the Extract chain, Finished and PSK binder computation,
// KeyUpdate and the exporter). KeySchedule strings them into the
// per-connection state machine:
//
//	ks, _ := tls13.NewKeySchedule(suite, nil)
//	ks.StageEarly(psk)
//	ks.StageHandshake(ecdhe)
//	hsKeys, _ := ks.HandshakeKeys(transcript.Sum())
//	ks.StageApplication()
//	apKeys, _ := ks.ApplicationKeys(transcript.Sum())
//	res, _ := ks.StageResumption(transcript.Sum())
//	ks.Erase()
//
// Transcripts are passed as hashes. Transcript keeps the running hash and
// PopulateTransform turns a KeySet into record protection.
package tls13
