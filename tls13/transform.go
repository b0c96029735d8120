package tls13

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/opd-ai/tls13core/crypto"
)

// paddingGranularity is the record padding unit assumed when computing the
// minimum ciphertext length.
const paddingGranularity = 16

// Transform is the record protection state installed from one KeySet: an
// encrypting AEAD for the local write direction and a decrypting AEAD for
// the peer's.
type Transform struct {
	mu sync.Mutex

	suite    *CipherSuite
	endpoint Endpoint

	enc, dec     cipher.AEAD
	encIV, decIV []byte
	encSeq       uint64
	decSeq       uint64

	// TagLen is the AEAD tag size, IVLen the static IV size and MinLen
	// the shortest ciphertext that can be valid.
	TagLen int
	IVLen  int
	MinLen int
}

// PopulateTransform installs keys for endpoint: a server encrypts with the
// server write key and decrypts with the client's, a client the reverse.
// CCM suites have no AEAD implementation here and report ErrNotSupported.
func PopulateTransform(endpoint Endpoint, suite *CipherSuite, keys *KeySet) (*Transform, error) {
	if suite == nil || keys == nil {
		return nil, fmt.Errorf("%w: nil suite or keys", crypto.ErrInvalidArgument)
	}

	var encKey, decKey, encIV, decIV []byte
	switch endpoint {
	case EndpointServer:
		encKey, encIV = keys.ServerWriteKey, keys.ServerWriteIV
		decKey, decIV = keys.ClientWriteKey, keys.ClientWriteIV
	case EndpointClient:
		encKey, encIV = keys.ClientWriteKey, keys.ClientWriteIV
		decKey, decIV = keys.ServerWriteKey, keys.ServerWriteIV
	default:
		return nil, fmt.Errorf("%w: invalid endpoint %d", crypto.ErrInternal, int(endpoint))
	}
	if len(encKey) != suite.KeyLen || len(decKey) != suite.KeyLen {
		return nil, fmt.Errorf("%w: %s needs %d-byte keys", crypto.ErrInvalidInput, suite.Name, suite.KeyLen)
	}
	if len(encIV) != suite.IVLen || len(decIV) != suite.IVLen {
		return nil, fmt.Errorf("%w: %s needs %d-byte IVs", crypto.ErrInvalidInput, suite.Name, suite.IVLen)
	}

	enc, err := newAEAD(suite, encKey)
	if err != nil {
		return nil, err
	}
	dec, err := newAEAD(suite, decKey)
	if err != nil {
		return nil, err
	}

	t := &Transform{
		suite:    suite,
		endpoint: endpoint,
		enc:      enc,
		dec:      dec,
		encIV:    append([]byte(nil), encIV...),
		decIV:    append([]byte(nil), decIV...),
		TagLen:   suite.TagLen(),
		IVLen:    suite.IVLen,
	}
	t.MinLen = t.TagLen + paddingGranularity

	logrus.WithFields(logrus.Fields{
		"function": "PopulateTransform",
		"package":  "tls13",
		"suite":    suite.Name,
		"endpoint": endpoint.String(),
		"tag_len":  t.TagLen,
	}).Debug("Record transform installed")

	return t, nil
}

func newAEAD(suite *CipherSuite, key []byte) (cipher.AEAD, error) {
	switch suite.Cipher {
	case CipherAES128GCM, CipherAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", crypto.ErrPrimitiveFailure, err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", crypto.ErrPrimitiveFailure, err)
		}
		return aead, nil
	case CipherChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", crypto.ErrPrimitiveFailure, err)
		}
		return aead, nil
	case CipherAES128CCM:
		return nil, fmt.Errorf("%w: %s", crypto.ErrNotSupported, suite.Name)
	default:
		return nil, fmt.Errorf("%w: unknown cipher %s", crypto.ErrInvalidInput, suite.Cipher)
	}
}

// Suite returns the cipher suite of the transform.
func (t *Transform) Suite() *CipherSuite { return t.suite }

// recordNonce XORs the big-endian sequence number into the right end of
// the static IV (RFC 8446, section 5.3).
func recordNonce(iv []byte, seq uint64) []byte {
	nonce := append([]byte(nil), iv...)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	off := len(nonce) - 8
	for i, b := range seqBytes {
		nonce[off+i] ^= b
	}
	return nonce
}

// Seal protects one record and advances the write sequence number.
func (t *Transform) Seal(additionalData, plaintext []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.enc == nil {
		return nil, fmt.Errorf("%w: transform destroyed", crypto.ErrBadState)
	}
	if t.encSeq == math.MaxUint64 {
		return nil, fmt.Errorf("%w: write sequence number exhausted", crypto.ErrBadState)
	}
	nonce := recordNonce(t.encIV, t.encSeq)
	t.encSeq++
	return t.enc.Seal(nil, nonce, plaintext, additionalData), nil
}

// Open authenticates and decrypts one record and advances the read
// sequence number. A record that fails authentication does not advance it.
func (t *Transform) Open(additionalData, ciphertext []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dec == nil {
		return nil, fmt.Errorf("%w: transform destroyed", crypto.ErrBadState)
	}
	if len(ciphertext) < t.TagLen {
		return nil, fmt.Errorf("%w: record of %d bytes is shorter than the tag", crypto.ErrInvalidInput, len(ciphertext))
	}
	if t.decSeq == math.MaxUint64 {
		return nil, fmt.Errorf("%w: read sequence number exhausted", crypto.ErrBadState)
	}
	nonce := recordNonce(t.decIV, t.decSeq)
	plaintext, err := t.dec.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, fmt.Errorf("%w: record authentication failed", crypto.ErrInvalidInput)
	}
	t.decSeq++
	return plaintext, nil
}

// Destroy wipes the IVs and drops the AEADs.
func (t *Transform) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	crypto.ZeroBytes(t.encIV)
	crypto.ZeroBytes(t.decIV)
	t.enc, t.dec = nil, nil
}
