package tls13

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/tls13core/constanttime"
	"github.com/opd-ai/tls13core/crypto"
	"github.com/opd-ai/tls13core/digest"
	"github.com/opd-ai/tls13core/hkdf"
	"github.com/opd-ai/tls13core/limits"
	"github.com/opd-ai/tls13core/mac"
)

// PSKType tells binder computation which label to use.
type PSKType int

const (
	// PSKExternal is a PSK provisioned out of band ("ext binder").
	PSKExternal PSKType = iota
	// PSKResumption is a PSK from a previous session ("res binder").
	PSKResumption
)

// String returns a human-readable representation of the PSK type.
func (p PSKType) String() string {
	if p == PSKResumption {
		return "resumption"
	}
	return "external"
}

// ErrVerifyFailed reports a Finished or binder value that does not match.
var ErrVerifyFailed = fmt.Errorf("%w: verify_data mismatch", crypto.ErrInvalidInput)

// KeySet holds the record protection keys of one stage for both directions.
// Ownership passes to the caller, which must Destroy it once the keys are
// installed.
type KeySet struct {
	ClientWriteKey []byte
	ServerWriteKey []byte
	ClientWriteIV  []byte
	ServerWriteIV  []byte
	KeyLen         int
	IVLen          int
}

// Destroy wipes all keys and IVs.
func (k *KeySet) Destroy() {
	if k == nil {
		return
	}
	crypto.ZeroBytes(k.ClientWriteKey)
	crypto.ZeroBytes(k.ServerWriteKey)
	crypto.ZeroBytes(k.ClientWriteIV)
	crypto.ZeroBytes(k.ServerWriteIV)
}

// Deriver implements the TLS 1.3 derivation primitives on top of an HKDF
// engine and a hash registry. It holds no secret state and is safe for
// concurrent use.
type Deriver struct {
	hkdf *hkdf.Engine
	reg  *digest.Registry
}

var (
	defaultDeriver     *Deriver
	defaultDeriverOnce sync.Once
)

// NewDeriver returns a deriver using e for HKDF and reg for context hashes.
func NewDeriver(e *hkdf.Engine, reg *digest.Registry) *Deriver {
	return &Deriver{hkdf: e, reg: reg}
}

// DefaultDeriver returns the deriver over hkdf.Default and digest.Default.
func DefaultDeriver() *Deriver {
	defaultDeriverOnce.Do(func() {
		defaultDeriver = NewDeriver(hkdf.Default(), digest.Default())
	})
	return defaultDeriver
}

// HashLen returns the digest length of alg, or 0 if it is unavailable.
func (d *Deriver) HashLen(alg digest.Algorithm) int {
	return d.hkdf.HashLen(alg)
}

func (d *Deriver) hashLen(alg digest.Algorithm) (int, error) {
	n := d.hkdf.HashLen(alg)
	if n == 0 {
		return 0, fmt.Errorf("%w: hash algorithm %s is not available", crypto.ErrInvalidArgument, alg)
	}
	return n, nil
}

func (d *Deriver) macProvider() mac.Provider {
	return d.hkdf.Provider()
}

// ExpandLabel computes HKDF-Expand-Label(secret, label, context, len(out))
// into out.
func (d *Deriver) ExpandLabel(alg digest.Algorithm, secret []byte, label string, context, out []byte) error {
	hkdfLabel, err := EncodeLabel(len(out), label, context)
	if err != nil {
		return err
	}
	return d.hkdf.Expand(alg, secret, hkdfLabel, out)
}

// DeriveSecret computes Derive-Secret(secret, label, context) into out,
// which must hold exactly one digest. If ctxHashed is false the context is
// hashed first; otherwise it is used as given and must not exceed
// limits.MaxHashSize.
func (d *Deriver) DeriveSecret(alg digest.Algorithm, secret []byte, label string, context []byte, ctxHashed bool, out []byte) error {
	hashLen, err := d.hashLen(alg)
	if err != nil {
		return err
	}

	var hashed [limits.MaxHashSize]byte
	n := len(context)
	if !ctxHashed {
		n, err = d.reg.Compute(alg, context, hashed[:])
		if err != nil {
			return fmt.Errorf("hashing context: %w", err)
		}
	} else {
		if n > len(hashed) {
			return fmt.Errorf("%w: hashed context is %d bytes", crypto.ErrInternal, n)
		}
		copy(hashed[:], context)
	}

	if len(out) != hashLen {
		return fmt.Errorf("%w: derived secret buffer is %d bytes, digest is %d", crypto.ErrInvalidArgument, len(out), hashLen)
	}
	return d.ExpandLabel(alg, secret, label, hashed[:n], out)
}

// EvolveSecret advances the key schedule by one step:
//
//	salt   = old == nil ? 0^HashLen : Derive-Secret(old, "derived", "")
//	input  = input == nil ? 0^HashLen : input
//	out    = HKDF-Extract(salt, input)
//
// Empty slices count as absent. out must hold at least one digest.
func (d *Deriver) EvolveSecret(alg digest.Algorithm, old, input, out []byte) error {
	hashLen, err := d.hashLen(alg)
	if err != nil {
		return err
	}
	if len(out) < hashLen {
		return fmt.Errorf("%w: secret buffer is %d bytes, digest is %d", crypto.ErrBufferTooSmall, len(out), hashLen)
	}

	salt := crypto.NewSecret(hashLen)
	defer salt.Destroy()
	if len(old) != 0 {
		if err := d.DeriveSecret(alg, old, LabelDerived, nil, false, salt.Bytes()); err != nil {
			return err
		}
	}

	var ikm *crypto.Secret
	if len(input) == 0 {
		ikm = crypto.NewSecret(hashLen)
	} else {
		ikm = crypto.SecretFrom(input)
	}
	defer ikm.Destroy()

	if _, err := d.hkdf.Extract(alg, salt.Bytes(), ikm.Bytes(), out[:hashLen]); err != nil {
		return err
	}
	return nil
}

// MakeTrafficKeys expands the write keys and IVs of both directions from
// the two traffic secrets of a stage.
func (d *Deriver) MakeTrafficKeys(alg digest.Algorithm, clientSecret, serverSecret []byte, keyLen, ivLen int) (*KeySet, error) {
	if keyLen <= 0 || keyLen > limits.MaxExpansionLen || ivLen <= 0 || ivLen > limits.MaxExpansionLen {
		return nil, fmt.Errorf("%w: key length %d and IV length %d must be in 1..%d", crypto.ErrInvalidArgument, keyLen, ivLen, limits.MaxExpansionLen)
	}
	keys := &KeySet{
		ClientWriteKey: make([]byte, keyLen),
		ServerWriteKey: make([]byte, keyLen),
		ClientWriteIV:  make([]byte, ivLen),
		ServerWriteIV:  make([]byte, ivLen),
		KeyLen:         keyLen,
		IVLen:          ivLen,
	}

	steps := []struct {
		secret []byte
		label  string
		out    []byte
	}{
		{clientSecret, LabelKey, keys.ClientWriteKey},
		{serverSecret, LabelKey, keys.ServerWriteKey},
		{clientSecret, LabelIV, keys.ClientWriteIV},
		{serverSecret, LabelIV, keys.ServerWriteIV},
	}
	for _, s := range steps {
		if err := d.ExpandLabel(alg, s.secret, s.label, nil, s.out); err != nil {
			keys.Destroy()
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "MakeTrafficKeys",
		"package":  "tls13",
		"key_len":  keyLen,
		"iv_len":   ivLen,
	}).Debug("Traffic keys derived")

	return keys, nil
}

// ComputeFinished computes the Finished verify_data
//
//	finished_key = HKDF-Expand-Label(baseKey, "finished", "", HashLen)
//	verify_data  = HMAC(finished_key, transcript)
//
// into out and returns its length. finished_key is wiped on every path.
func (d *Deriver) ComputeFinished(alg digest.Algorithm, baseKey, transcript, out []byte) (int, error) {
	hashLen, err := d.hashLen(alg)
	if err != nil {
		return 0, err
	}
	if len(out) < hashLen {
		return 0, fmt.Errorf("%w: verify_data buffer is %d bytes, need %d", crypto.ErrBufferTooSmall, len(out), hashLen)
	}

	finishedKey := crypto.NewSecret(hashLen)
	defer finishedKey.Destroy()
	if err := d.ExpandLabel(alg, baseKey, LabelFinished, nil, finishedKey.Bytes()); err != nil {
		return 0, err
	}

	key, err := mac.ImportKey(alg, finishedKey.Bytes())
	if err != nil {
		return 0, err
	}
	defer key.Destroy()

	n, err := mac.Compute(d.macProvider(), key, transcript, out[:hashLen])
	if err != nil {
		crypto.ZeroBytes(out[:hashLen])
		return 0, err
	}
	return n, nil
}

// VerifyFinished recomputes the verify_data for baseKey and transcript and
// compares it with received in constant time.
func (d *Deriver) VerifyFinished(alg digest.Algorithm, baseKey, transcript, received []byte) error {
	hashLen, err := d.hashLen(alg)
	if err != nil {
		return err
	}
	want := crypto.NewSecret(hashLen)
	defer want.Destroy()

	if _, err := d.ComputeFinished(alg, baseKey, transcript, want.Bytes()); err != nil {
		return err
	}
	if !constanttime.Equal(want.Bytes(), received) {
		return ErrVerifyFailed
	}
	return nil
}

// ComputePSKBinder computes the PSK binder value over a partial
// ClientHello transcript hash into out:
//
//	early_secret = HKDF-Extract(0, psk)
//	binder_key   = Derive-Secret(early_secret, "ext binder" | "res binder", "")
//	binder       = Finished(binder_key, transcript)
func (d *Deriver) ComputePSKBinder(alg digest.Algorithm, psk []byte, pskType PSKType, transcript, out []byte) (int, error) {
	hashLen, err := d.hashLen(alg)
	if err != nil {
		return 0, err
	}

	earlySecret := crypto.NewSecret(hashLen)
	defer earlySecret.Destroy()
	binderKey := crypto.NewSecret(hashLen)
	defer binderKey.Destroy()

	if err := d.EvolveSecret(alg, nil, psk, earlySecret.Bytes()); err != nil {
		return 0, err
	}

	label := LabelExtBinder
	if pskType == PSKResumption {
		label = LabelResBinder
	}
	if err := d.DeriveSecret(alg, earlySecret.Bytes(), label, nil, false, binderKey.Bytes()); err != nil {
		return 0, err
	}

	return d.ComputeFinished(alg, binderKey.Bytes(), transcript, out)
}

// NextTrafficSecret computes the KeyUpdate successor of an application
// traffic secret (RFC 8446, section 7.2) into out.
func (d *Deriver) NextTrafficSecret(alg digest.Algorithm, secret, out []byte) error {
	hashLen, err := d.hashLen(alg)
	if err != nil {
		return err
	}
	if len(out) < hashLen {
		return fmt.Errorf("%w: secret buffer is %d bytes, digest is %d", crypto.ErrBufferTooSmall, len(out), hashLen)
	}
	return d.ExpandLabel(alg, secret, LabelTrafficUpdate, nil, out[:hashLen])
}

// ResumptionPSK derives the PSK for a ticket from the resumption master
// secret (RFC 8446, section 4.6.1).
func (d *Deriver) ResumptionPSK(alg digest.Algorithm, resumptionSecret, nonce, out []byte) error {
	hashLen, err := d.hashLen(alg)
	if err != nil {
		return err
	}
	if len(out) < hashLen {
		return fmt.Errorf("%w: PSK buffer is %d bytes, digest is %d", crypto.ErrBufferTooSmall, len(out), hashLen)
	}
	return d.ExpandLabel(alg, resumptionSecret, LabelResumptionPSK, nonce, out[:hashLen])
}

// ExportKeyingMaterial implements the TLS-Exporter of RFC 8446,
// section 7.5, filling out with keying material for label and context.
func (d *Deriver) ExportKeyingMaterial(alg digest.Algorithm, exporterSecret []byte, label string, context, out []byte) error {
	hashLen, err := d.hashLen(alg)
	if err != nil {
		return err
	}
	if len(out) == 0 || len(out) > limits.MaxExpansionLen {
		return fmt.Errorf("%w: exporter length %d must be in 1..%d", crypto.ErrInvalidArgument, len(out), limits.MaxExpansionLen)
	}

	tmp := crypto.NewSecret(hashLen)
	defer tmp.Destroy()
	if err := d.DeriveSecret(alg, exporterSecret, label, nil, false, tmp.Bytes()); err != nil {
		return err
	}

	var ctxHash [limits.MaxHashSize]byte
	n, err := d.reg.Compute(alg, context, ctxHash[:])
	if err != nil {
		return fmt.Errorf("hashing exporter context: %w", err)
	}

	if err := d.ExpandLabel(alg, tmp.Bytes(), LabelExporter, ctxHash[:n], out); err != nil {
		crypto.ZeroBytes(out)
		return err
	}
	return nil
}

// Package-level forms of the Deriver methods over DefaultDeriver.

// ExpandLabel runs DefaultDeriver().ExpandLabel.
func ExpandLabel(alg digest.Algorithm, secret []byte, label string, context, out []byte) error {
	return DefaultDeriver().ExpandLabel(alg, secret, label, context, out)
}

// DeriveSecret runs DefaultDeriver().DeriveSecret.
func DeriveSecret(alg digest.Algorithm, secret []byte, label string, context []byte, ctxHashed bool, out []byte) error {
	return DefaultDeriver().DeriveSecret(alg, secret, label, context, ctxHashed, out)
}

// EvolveSecret runs DefaultDeriver().EvolveSecret.
func EvolveSecret(alg digest.Algorithm, old, input, out []byte) error {
	return DefaultDeriver().EvolveSecret(alg, old, input, out)
}

// MakeTrafficKeys runs DefaultDeriver().MakeTrafficKeys.
func MakeTrafficKeys(alg digest.Algorithm, clientSecret, serverSecret []byte, keyLen, ivLen int) (*KeySet, error) {
	return DefaultDeriver().MakeTrafficKeys(alg, clientSecret, serverSecret, keyLen, ivLen)
}

// ComputeFinished runs DefaultDeriver().ComputeFinished.
func ComputeFinished(alg digest.Algorithm, baseKey, transcript, out []byte) (int, error) {
	return DefaultDeriver().ComputeFinished(alg, baseKey, transcript, out)
}

// ComputePSKBinder runs DefaultDeriver().ComputePSKBinder.
func ComputePSKBinder(alg digest.Algorithm, psk []byte, pskType PSKType, transcript, out []byte) (int, error) {
	return DefaultDeriver().ComputePSKBinder(alg, psk, pskType, transcript, out)
}
