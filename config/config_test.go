package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/tls13core/digest"
	"github.com/opd-ai/tls13core/keyshare"
	"github.com/opd-ai/tls13core/tls13"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{
		"TLS_AES_128_GCM_SHA256",
		"TLS_CHACHA20_POLY1305_SHA256",
		"TLS_AES_256_GCM_SHA384",
	}, cfg.TLS.CipherSuites)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.True(t, reg.Supported(digest.SHA384))
}

func TestDecode(t *testing.T) {
	doc := `
log_level: debug
log_format: json
hash:
  algorithms: [sha256, sha-384]
  drivers: [noise, builtin]
tls:
  cipher_suites: [TLS_AES_256_GCM_SHA384]
  groups: [x448, P-256]
cert_pool:
  max_entries: 10
  max_der_size: 4096
`
	cfg, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []digest.Algorithm{digest.SHA256, digest.SHA384}, cfg.Hash.Algorithms)
	assert.Equal(t, []digest.Driver{digest.DriverNoise, digest.DriverBuiltin}, cfg.Hash.Drivers)
	assert.Equal(t, []keyshare.Group{keyshare.X448, keyshare.Secp256r1}, cfg.TLS.Groups)
	assert.Equal(t, 10, cfg.CertPool.MaxEntries)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	d, err := reg.Driver(digest.SHA256)
	require.NoError(t, err)
	assert.Equal(t, digest.DriverNoise, d)
	assert.False(t, reg.Supported(digest.SHA512))

	suites, err := cfg.Suites()
	require.NoError(t, err)
	require.Len(t, suites, 1)
	assert.Equal(t, tls13.TLS_AES_256_GCM_SHA384, suites[0].ID)
}

func TestDecodeEmptyUsesDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown field", "bogus: 1\n", "parse config"},
		{"bad log level", "log_level: loud\n", "log_level"},
		{"bad log format", "log_format: xml\n", "log_format"},
		{"unknown hash", "hash:\n  algorithms: [sha999]\n", "parse config"},
		{"unknown suite", "tls:\n  cipher_suites: [TLS_NULL]\n", "cipher_suites"},
		{"suite without its hash", "hash:\n  algorithms: [sha256]\ntls:\n  cipher_suites: [TLS_AES_256_GCM_SHA384]\n", "needs hash"},
		{"driver gap", "hash:\n  drivers: [builtin]\n", "no configured driver"},
		{"empty groups", "tls:\n  groups: []\n", "tls.groups"},
		{"negative entries", "cert_pool:\n  max_entries: -1\n", "max_entries"},
		{"oversized der", "cert_pool:\n  max_der_size: 100000000\n", "max_der_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.LogLevel = "warn"
	cfg.TLS.KeyLogFile = "/tmp/keys.log"

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNegotiatorAndDeriver(t *testing.T) {
	cfg := Default()
	cfg.TLS.CipherSuites = []string{"TLS_CHACHA20_POLY1305_SHA256", "TLS_AES_128_GCM_SHA256"}

	n, err := cfg.Negotiator()
	require.NoError(t, err)
	n.SetRemoteCapabilities([]tls13.CipherSuiteID{tls13.TLS_AES_128_GCM_SHA256, tls13.TLS_CHACHA20_POLY1305_SHA256})
	s, err := n.NegotiateCipherSuite()
	require.NoError(t, err)
	assert.Equal(t, tls13.TLS_CHACHA20_POLY1305_SHA256, s.ID)

	d, err := cfg.Deriver()
	require.NoError(t, err)
	out := make([]byte, 32)
	require.NoError(t, d.EvolveSecret(digest.SHA256, nil, nil, out))
	want := make([]byte, 32)
	require.NoError(t, tls13.EvolveSecret(digest.SHA256, nil, nil, want))
	assert.Equal(t, want, out)
}

func TestNewCertPool(t *testing.T) {
	cfg := Default()
	cfg.CertPool.MaxEntries = 1
	p := cfg.NewCertPool()
	_, err := p.Acquire([]byte{1})
	require.NoError(t, err)
	_, err = p.Acquire([]byte{2})
	assert.Error(t, err)
}

func TestApplyLogging(t *testing.T) {
	oldLevel := logrus.GetLevel()
	oldFormatter := logrus.StandardLogger().Formatter
	defer func() {
		logrus.SetLevel(oldLevel)
		logrus.SetFormatter(oldFormatter)
	}()

	cfg := Default()
	cfg.LogLevel = "debug"
	cfg.LogFormat = "json"
	require.NoError(t, cfg.ApplyLogging())
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)
}
