package tls13

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xhkdf "golang.org/x/crypto/hkdf"

	"github.com/opd-ai/tls13core/crypto"
	"github.com/opd-ai/tls13core/digest"
)

// oracleExpandLabel is an independent HKDF-Expand-Label over x/crypto/hkdf.
func oracleExpandLabel(t *testing.T, h func() hash.Hash, secret []byte, label string, context []byte, length int) []byte {
	t.Helper()
	full := "tls13 " + label
	info := []byte{byte(length >> 8), byte(length), byte(len(full))}
	info = append(info, full...)
	info = append(info, byte(len(context)))
	info = append(info, context...)

	out := make([]byte, length)
	_, err := io.ReadFull(xhkdf.Expand(h, secret, info), out)
	require.NoError(t, err)
	return out
}

func TestDeriveSecretRFC8448(t *testing.T) {
	out := make([]byte, 32)
	require.NoError(t, DeriveSecret(digest.SHA256, unhex(t, rfcEarlySecret), LabelDerived, nil, false, out))
	assert.Equal(t, rfcDerivedSalt, hex.EncodeToString(out))

	require.NoError(t, DeriveSecret(digest.SHA256, unhex(t, rfcHandshakeSecret), LabelClientHandshake, unhex(t, rfcTranscriptSH), true, out))
	assert.Equal(t, rfcClientHS, hex.EncodeToString(out))

	require.NoError(t, DeriveSecret(digest.SHA256, unhex(t, rfcHandshakeSecret), LabelServerHandshake, unhex(t, rfcTranscriptSH), true, out))
	assert.Equal(t, rfcServerHS, hex.EncodeToString(out))
}

func TestDeriveSecretIsRepeatable(t *testing.T) {
	secret := unhex(t, rfcHandshakeSecret)
	context := unhex(t, rfcTranscriptSH)
	first := make([]byte, 32)
	second := make([]byte, 32)

	require.NoError(t, DeriveSecret(digest.SHA256, secret, LabelClientHandshake, context, true, first))
	require.NoError(t, DeriveSecret(digest.SHA256, secret, LabelClientHandshake, context, true, second))
	assert.Equal(t, first, second)
	assert.Equal(t, unhex(t, rfcHandshakeSecret), secret, "input secret must not be modified")
	assert.Equal(t, unhex(t, rfcTranscriptSH), context, "context must not be modified")
}

func TestDeriveSecretErrors(t *testing.T) {
	secret := make([]byte, 32)

	t.Run("oversized hashed context", func(t *testing.T) {
		err := DeriveSecret(digest.SHA256, secret, LabelDerived, make([]byte, 65), true, make([]byte, 32))
		assert.ErrorIs(t, err, crypto.ErrInternal)
	})

	t.Run("wrong output length", func(t *testing.T) {
		err := DeriveSecret(digest.SHA256, secret, LabelDerived, nil, false, make([]byte, 31))
		assert.ErrorIs(t, err, crypto.ErrInvalidArgument)
	})

	t.Run("unknown hash", func(t *testing.T) {
		err := DeriveSecret(digest.None, secret, LabelDerived, nil, false, make([]byte, 32))
		assert.ErrorIs(t, err, crypto.ErrInvalidArgument)
	})
}

func TestEvolveSecretChain(t *testing.T) {
	early := make([]byte, 32)
	require.NoError(t, EvolveSecret(digest.SHA256, nil, nil, early))
	assert.Equal(t, rfcEarlySecret, hex.EncodeToString(early))

	hs := make([]byte, 32)
	require.NoError(t, EvolveSecret(digest.SHA256, early, unhex(t, rfcECDHE), hs))
	assert.Equal(t, rfcHandshakeSecret, hex.EncodeToString(hs))

	master := make([]byte, 32)
	require.NoError(t, EvolveSecret(digest.SHA256, hs, nil, master))
	assert.Equal(t, rfcMasterSecret, hex.EncodeToString(master))
}

func TestEvolveSecretZeroPSKMatchesEmpty(t *testing.T) {
	a := make([]byte, 32)
	b := make([]byte, 32)
	require.NoError(t, EvolveSecret(digest.SHA256, nil, nil, a))
	require.NoError(t, EvolveSecret(digest.SHA256, nil, make([]byte, 32), b))
	assert.Equal(t, a, b)
}

func TestEvolveSecretErrors(t *testing.T) {
	err := EvolveSecret(digest.SHA384, nil, nil, make([]byte, 32))
	assert.ErrorIs(t, err, crypto.ErrBufferTooSmall)

	err = EvolveSecret(digest.None, nil, nil, make([]byte, 64))
	assert.ErrorIs(t, err, crypto.ErrInvalidArgument)
}

func TestMakeTrafficKeysRFC8448(t *testing.T) {
	tests := []struct {
		name                string
		client, server      string
		clientKey, clientIV string
		serverKey, serverIV string
	}{
		{"handshake", rfcClientHS, rfcServerHS, rfcClientHSKey, rfcClientHSIV, rfcServerHSKey, rfcServerHSIV},
		{"application", rfcClientAP, rfcServerAP, rfcClientAPKey, rfcClientAPIV, rfcServerAPKey, rfcServerAPIV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := MakeTrafficKeys(digest.SHA256, unhex(t, tt.client), unhex(t, tt.server), 16, 12)
			require.NoError(t, err)
			defer keys.Destroy()

			assert.Equal(t, tt.clientKey, hex.EncodeToString(keys.ClientWriteKey))
			assert.Equal(t, tt.clientIV, hex.EncodeToString(keys.ClientWriteIV))
			assert.Equal(t, tt.serverKey, hex.EncodeToString(keys.ServerWriteKey))
			assert.Equal(t, tt.serverIV, hex.EncodeToString(keys.ServerWriteIV))
			assert.Equal(t, 16, keys.KeyLen)
			assert.Equal(t, 12, keys.IVLen)
		})
	}
}

func TestKeySetDestroy(t *testing.T) {
	keys, err := MakeTrafficKeys(digest.SHA256, unhex(t, rfcClientHS), unhex(t, rfcServerHS), 16, 12)
	require.NoError(t, err)
	keys.Destroy()
	assert.Equal(t, make([]byte, 16), keys.ClientWriteKey)
	assert.Equal(t, make([]byte, 12), keys.ServerWriteIV)

	var nilKeys *KeySet
	assert.NotPanics(t, nilKeys.Destroy)
}

func TestMakeTrafficKeysRejectsBadLengths(t *testing.T) {
	secret := unhex(t, rfcClientHS)

	tests := []struct {
		name          string
		keyLen, ivLen int
	}{
		{"negative key", -1, 12},
		{"zero key", 0, 12},
		{"negative iv", 16, -1},
		{"zero iv", 16, 0},
		{"oversized key", 256, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var keys *KeySet
			var err error
			require.NotPanics(t, func() {
				keys, err = MakeTrafficKeys(digest.SHA256, secret, secret, tt.keyLen, tt.ivLen)
			})
			assert.ErrorIs(t, err, crypto.ErrInvalidArgument)
			assert.Nil(t, keys)
		})
	}
}

func TestComputeFinishedRFC8448(t *testing.T) {
	out := make([]byte, 32)
	n, err := ComputeFinished(digest.SHA256, unhex(t, rfcServerHS), unhex(t, rfcTranscriptCV), out)
	require.NoError(t, err)
	assert.Equal(t, 32, n)
	assert.Equal(t, rfcServerFinished, hex.EncodeToString(out))

	_, err = ComputeFinished(digest.SHA256, unhex(t, rfcClientHS), unhex(t, rfcTranscriptSF), out)
	require.NoError(t, err)
	assert.Equal(t, rfcClientFinished, hex.EncodeToString(out))

	_, err = ComputeFinished(digest.SHA256, unhex(t, rfcClientHS), unhex(t, rfcTranscriptSF), make([]byte, 31))
	assert.ErrorIs(t, err, crypto.ErrBufferTooSmall)
}

func TestVerifyFinished(t *testing.T) {
	d := DefaultDeriver()
	base := unhex(t, rfcServerHS)
	transcript := unhex(t, rfcTranscriptCV)

	require.NoError(t, d.VerifyFinished(digest.SHA256, base, transcript, unhex(t, rfcServerFinished)))

	bad := unhex(t, rfcServerFinished)
	bad[0] ^= 1
	err := d.VerifyFinished(digest.SHA256, base, transcript, bad)
	assert.ErrorIs(t, err, ErrVerifyFailed)
	assert.ErrorIs(t, err, crypto.ErrInvalidInput)

	err = d.VerifyFinished(digest.SHA256, base, transcript, bad[:16])
	assert.ErrorIs(t, err, ErrVerifyFailed)
}

func TestComputePSKBinder(t *testing.T) {
	psk := bytes.Repeat([]byte{0x33}, 32)
	transcript := bytes.Repeat([]byte{0x44}, 32)

	tests := []struct {
		pskType PSKType
		label   string
	}{
		{PSKExternal, "ext binder"},
		{PSKResumption, "res binder"},
	}

	for _, tt := range tests {
		t.Run(tt.pskType.String(), func(t *testing.T) {
			early := xhkdf.Extract(sha256.New, psk, make([]byte, 32))
			emptyHash := sha256.Sum256(nil)
			binderKey := oracleExpandLabel(t, sha256.New, early, tt.label, emptyHash[:], 32)
			finishedKey := oracleExpandLabel(t, sha256.New, binderKey, "finished", nil, 32)
			m := hmac.New(sha256.New, finishedKey)
			m.Write(transcript)
			want := m.Sum(nil)

			got := make([]byte, 32)
			n, err := ComputePSKBinder(digest.SHA256, psk, tt.pskType, transcript, got)
			require.NoError(t, err)
			assert.Equal(t, 32, n)
			assert.Equal(t, want, got)
		})
	}

	ext := make([]byte, 32)
	res := make([]byte, 32)
	_, err := ComputePSKBinder(digest.SHA256, psk, PSKExternal, transcript, ext)
	require.NoError(t, err)
	_, err = ComputePSKBinder(digest.SHA256, psk, PSKResumption, transcript, res)
	require.NoError(t, err)
	assert.NotEqual(t, ext, res)
}

func TestResumptionPSKRFC8448(t *testing.T) {
	out := make([]byte, 32)
	require.NoError(t, DefaultDeriver().ResumptionPSK(digest.SHA256, unhex(t, rfcResumptionMaster), []byte{0, 0}, out))
	assert.Equal(t, rfcResumptionPSK, hex.EncodeToString(out))
}

func TestNextTrafficSecret(t *testing.T) {
	cur := unhex(t, rfcClientAP)
	want := oracleExpandLabel(t, sha256.New, cur, "traffic upd", nil, 32)

	got := make([]byte, 32)
	require.NoError(t, DefaultDeriver().NextTrafficSecret(digest.SHA256, cur, got))
	assert.Equal(t, want, got)

	assert.ErrorIs(t, DefaultDeriver().NextTrafficSecret(digest.SHA256, cur, make([]byte, 16)), crypto.ErrBufferTooSmall)
}

func TestExportKeyingMaterial(t *testing.T) {
	secret := bytes.Repeat([]byte{0x11}, 48)
	label := "EXPORTER-test"
	context := []byte("context value")

	emptyHash := sha512.Sum384(nil)
	tmp := oracleExpandLabel(t, sha512.New384, secret, label, emptyHash[:], 48)
	ctxHash := sha512.Sum384(context)
	want := oracleExpandLabel(t, sha512.New384, tmp, "exporter", ctxHash[:], 40)

	got := make([]byte, 40)
	require.NoError(t, DefaultDeriver().ExportKeyingMaterial(digest.SHA384, secret, label, context, got))
	assert.Equal(t, want, got)

	for _, n := range []int{0, 256} {
		err := DefaultDeriver().ExportKeyingMaterial(digest.SHA384, secret, label, context, make([]byte, n))
		assert.ErrorIs(t, err, crypto.ErrInvalidArgument, "length %d", n)
	}
}

func TestExpandLabelMatchesOracle(t *testing.T) {
	secret := bytes.Repeat([]byte{0x5c}, 48)
	for _, length := range []int{1, 12, 16, 32, 48, 255} {
		want := oracleExpandLabel(t, sha512.New384, secret, "key", nil, length)
		got := make([]byte, length)
		require.NoError(t, ExpandLabel(digest.SHA384, secret, "key", nil, got))
		assert.Equal(t, want, got, "length %d", length)
	}

	assert.ErrorIs(t, ExpandLabel(digest.SHA384, secret, "key", nil, make([]byte, 256)), crypto.ErrInternal)
}
