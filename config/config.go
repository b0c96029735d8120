// Package config loads the YAML configuration shared by the command-line
// tools: logging, enabled hash algorithms and drivers, TLS parameters and
// certificate pool bounds.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/tls13core/certpool"
	"github.com/opd-ai/tls13core/digest"
	"github.com/opd-ai/tls13core/hkdf"
	"github.com/opd-ai/tls13core/keyshare"
	"github.com/opd-ai/tls13core/limits"
	"github.com/opd-ai/tls13core/mac"
	"github.com/opd-ai/tls13core/tls13"
)

// Config is the top-level configuration.
type Config struct {
	// Logging
	LogLevel  string `yaml:"log_level"`  // trace, debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text or json

	Hash     HashConfig     `yaml:"hash"`
	TLS      TLSConfig      `yaml:"tls"`
	CertPool CertPoolConfig `yaml:"cert_pool"`
}

// HashConfig selects the hash capability registry.
type HashConfig struct {
	Algorithms []digest.Algorithm `yaml:"algorithms"`
	// Drivers in priority order; the first one providing an algorithm
	// serves it.
	Drivers []digest.Driver `yaml:"drivers"`
}

// TLSConfig holds the key schedule parameters.
type TLSConfig struct {
	CipherSuites []string         `yaml:"cipher_suites"`
	Groups       []keyshare.Group `yaml:"groups"`
	// KeyLogFile receives NSS key log lines when set. Debugging only.
	KeyLogFile string `yaml:"key_log_file"`
}

// CertPoolConfig bounds the certificate pool.
type CertPoolConfig struct {
	MaxEntries int `yaml:"max_entries"`
	MaxDERSize int `yaml:"max_der_size"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	suites := make([]string, 0, 3)
	for _, s := range tls13.SupportedCipherSuites() {
		if s.Cipher != tls13.CipherAES128CCM {
			suites = append(suites, s.Name)
		}
	}
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Hash: HashConfig{
			Algorithms: digest.AllAlgorithms(),
			Drivers:    append([]digest.Driver(nil), digest.DefaultDrivers...),
		},
		TLS: TLSConfig{
			CipherSuites: suites,
			Groups:       keyshare.Groups(),
		},
		CertPool: CertPoolConfig{
			MaxEntries: 0,
			MaxDERSize: limits.MaxDERSize,
		},
	}
}

// Load reads and validates a YAML file on top of Default.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads and validates YAML from r on top of Default.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks value ranges and that every named suite can run on the
// configured hash algorithms.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if len(c.Hash.Algorithms) == 0 {
		return fmt.Errorf("hash.algorithms must not be empty")
	}
	if len(c.Hash.Drivers) == 0 {
		return fmt.Errorf("hash.drivers must not be empty")
	}
	if _, err := c.Registry(); err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	if len(c.TLS.CipherSuites) == 0 {
		return fmt.Errorf("tls.cipher_suites must not be empty")
	}
	if len(c.TLS.Groups) == 0 {
		return fmt.Errorf("tls.groups must not be empty")
	}

	enabled := make(map[digest.Algorithm]bool, len(c.Hash.Algorithms))
	for _, alg := range c.Hash.Algorithms {
		enabled[alg] = true
	}
	for _, name := range c.TLS.CipherSuites {
		s, err := tls13.CipherSuiteByName(name)
		if err != nil {
			return fmt.Errorf("tls.cipher_suites: %w", err)
		}
		if !enabled[s.Hash] {
			return fmt.Errorf("tls.cipher_suites: %s needs hash %s", s.Name, s.Hash)
		}
	}

	if c.CertPool.MaxEntries < 0 {
		return fmt.Errorf("cert_pool.max_entries must not be negative")
	}
	if c.CertPool.MaxDERSize < 0 || c.CertPool.MaxDERSize > limits.MaxDERSize {
		return fmt.Errorf("cert_pool.max_der_size must be between 0 and %d", limits.MaxDERSize)
	}
	return nil
}

// ApplyLogging configures the standard logrus logger.
func (c *Config) ApplyLogging() error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// Registry builds the hash capability registry.
func (c *Config) Registry() (*digest.Registry, error) {
	return digest.NewRegistry(c.Hash.Algorithms, c.Hash.Drivers)
}

// Deriver builds a key schedule deriver whose hashes, HMAC and context
// hashing all come from the configured registry.
func (c *Config) Deriver() (*tls13.Deriver, error) {
	reg, err := c.Registry()
	if err != nil {
		return nil, err
	}
	return tls13.NewDeriver(hkdf.New(mac.NewBuiltin(reg)), reg), nil
}

// Suites resolves the configured cipher suites in preference order.
func (c *Config) Suites() ([]*tls13.CipherSuite, error) {
	out := make([]*tls13.CipherSuite, 0, len(c.TLS.CipherSuites))
	for _, name := range c.TLS.CipherSuites {
		s, err := tls13.CipherSuiteByName(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Negotiator returns a cipher suite negotiator using the configured
// preference order.
func (c *Config) Negotiator() (*tls13.CipherSuiteNegotiator, error) {
	suites, err := c.Suites()
	if err != nil {
		return nil, err
	}
	n := tls13.NewCipherSuiteNegotiator()
	n.LocalPreferences = n.LocalPreferences[:0]
	for _, s := range suites {
		n.LocalPreferences = append(n.LocalPreferences, s.ID)
	}
	return n, nil
}

// NewCertPool creates a pool with the configured bounds.
func (c *Config) NewCertPool() *certpool.Pool {
	return certpool.New(&certpool.Options{
		MaxEntries: c.CertPool.MaxEntries,
		MaxDERSize: c.CertPool.MaxDERSize,
	})
}
