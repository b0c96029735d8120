// Command tls13keys runs the TLS 1.3 key schedule over a YAML vector file
// and prints every derived value, optionally checking them against
// expected results.
//
// Usage:
//
//	tls13keys --vectors testdata/rfc8448.yaml
//	tls13keys --config tls13.yaml --vectors handshake.yaml --keylog keys.log
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/tls13core/config"
	"github.com/opd-ai/tls13core/keyshare"
	"github.com/opd-ai/tls13core/tls13"
)

// errMismatch reports derived values that differ from the vector file.
var errMismatch = errors.New("derived values do not match expectations")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// hexBytes is a byte string written as hex in YAML.
type hexBytes []byte

func (h hexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h)), nil
}

func (h *hexBytes) UnmarshalText(text []byte) error {
	s := strings.ReplaceAll(strings.TrimSpace(string(text)), " ", "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	*h = b
	return nil
}

type keyShareVector struct {
	Group      keyshare.Group `yaml:"group"`
	PrivateKey hexBytes       `yaml:"private_key"`
	PeerPublic hexBytes       `yaml:"peer_public"`
}

// transcripts holds transcript hashes at the points the schedule needs.
type transcripts struct {
	PartialClientHello      hexBytes `yaml:"partial_client_hello"`
	ClientHello             hexBytes `yaml:"client_hello"`
	ServerHello             hexBytes `yaml:"server_hello"`
	ServerCertificateVerify hexBytes `yaml:"server_certificate_verify"`
	ServerFinished          hexBytes `yaml:"server_finished"`
	ClientFinished          hexBytes `yaml:"client_finished"`
}

type exporterVector struct {
	Label   string   `yaml:"label"`
	Context hexBytes `yaml:"context"`
	Length  int      `yaml:"length"`
}

type vectorFile struct {
	Suite        string            `yaml:"suite"`
	PSK          hexBytes          `yaml:"psk"`
	PSKType      string            `yaml:"psk_type"`
	SharedSecret hexBytes          `yaml:"shared_secret"`
	KeyShare     *keyShareVector   `yaml:"key_share"`
	ClientRandom hexBytes          `yaml:"client_random"`
	Transcripts  transcripts       `yaml:"transcripts"`
	Exporter     *exporterVector   `yaml:"exporter"`
	Expect       map[string]string `yaml:"expect"`
}

type results struct {
	Suite                     string   `yaml:"suite"`
	PSKBinder                 hexBytes `yaml:"psk_binder,omitempty"`
	ClientEarlyTrafficSecret  hexBytes `yaml:"client_early_traffic_secret,omitempty"`
	EarlyExporterMasterSecret hexBytes `yaml:"early_exporter_master_secret,omitempty"`
	SharedSecret              hexBytes `yaml:"shared_secret,omitempty"`
	ClientHandshakeKey        hexBytes `yaml:"client_handshake_key,omitempty"`
	ClientHandshakeIV         hexBytes `yaml:"client_handshake_iv,omitempty"`
	ServerHandshakeKey        hexBytes `yaml:"server_handshake_key,omitempty"`
	ServerHandshakeIV         hexBytes `yaml:"server_handshake_iv,omitempty"`
	ServerFinished            hexBytes `yaml:"server_finished,omitempty"`
	ClientFinished            hexBytes `yaml:"client_finished,omitempty"`
	ClientApplicationKey      hexBytes `yaml:"client_application_key,omitempty"`
	ClientApplicationIV       hexBytes `yaml:"client_application_iv,omitempty"`
	ServerApplicationKey      hexBytes `yaml:"server_application_key,omitempty"`
	ServerApplicationIV       hexBytes `yaml:"server_application_iv,omitempty"`
	ExportedKeyingMaterial    hexBytes `yaml:"exported_keying_material,omitempty"`
	ResumptionMasterSecret    hexBytes `yaml:"resumption_master_secret,omitempty"`
}

func run(args []string, stdout, stderr io.Writer) error {
	flagSet := pflag.NewFlagSet("tls13keys", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	configPath := flagSet.StringP("config", "c", "", "YAML configuration file")
	vectorsPath := flagSet.StringP("vectors", "v", "", "YAML vector file (required)")
	keyLogPath := flagSet.String("keylog", "", "append NSS key log lines to this file")
	logLevel := flagSet.String("log-level", "", "override the configured log level")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *vectorsPath == "" {
		return errors.New("--vectors is required")
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.ApplyLogging(); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logrus.SetOutput(stderr)

	vec, err := loadVectors(*vectorsPath)
	if err != nil {
		return err
	}
	if *keyLogPath == "" {
		*keyLogPath = cfg.TLS.KeyLogFile
	}

	res, err := derive(cfg, vec, *keyLogPath)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if _, err := stdout.Write(out); err != nil {
		return err
	}

	return checkExpectations(out, vec.Expect, stderr)
}

func loadVectors(path string) (*vectorFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	var vec vectorFile
	if err := yaml.Unmarshal(data, &vec); err != nil {
		return nil, fmt.Errorf("parse vectors: %w", err)
	}
	return &vec, nil
}

func derive(cfg *config.Config, vec *vectorFile, keyLogPath string) (*results, error) {
	deriver, err := cfg.Deriver()
	if err != nil {
		return nil, err
	}

	suite, err := pickSuite(cfg, vec.Suite)
	if err != nil {
		return nil, err
	}
	res := &results{Suite: suite.Name}

	shared, err := sharedSecret(vec)
	if err != nil {
		return nil, err
	}
	res.SharedSecret = append(hexBytes(nil), shared...)

	ks, err := tls13.NewKeySchedule(suite, deriver)
	if err != nil {
		return nil, err
	}
	defer ks.Erase()

	if keyLogPath != "" {
		f, err := os.OpenFile(keyLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open key log: %w", err)
		}
		defer f.Close()
		ks.SetKeyLogger(tls13.NewNSSKeyLogWriter(f), vec.ClientRandom)
		logrus.WithFields(logrus.Fields{
			"function": "derive",
			"path":     keyLogPath,
		}).Warn("NSS key logging enabled")
	}

	tr := vec.Transcripts

	if len(vec.PSK) != 0 && len(tr.PartialClientHello) != 0 {
		pskType := tls13.PSKExternal
		if vec.PSKType == "resumption" {
			pskType = tls13.PSKResumption
		}
		res.PSKBinder = make(hexBytes, deriver.HashLen(suite.Hash))
		if _, err := deriver.ComputePSKBinder(suite.Hash, vec.PSK, pskType, tr.PartialClientHello, res.PSKBinder); err != nil {
			return nil, fmt.Errorf("psk binder: %w", err)
		}
	}

	if err := ks.StageEarly(vec.PSK); err != nil {
		return nil, err
	}
	if len(tr.ClientHello) != 0 {
		early, err := ks.EarlySecrets(tr.ClientHello)
		if err != nil {
			return nil, err
		}
		res.ClientEarlyTrafficSecret = early.ClientEarlyTrafficSecret
		res.EarlyExporterMasterSecret = early.EarlyExporterMasterSecret
	}

	if err := ks.StageHandshake(shared); err != nil {
		return nil, err
	}
	if len(tr.ServerHello) == 0 {
		return res, nil
	}
	hs, err := ks.HandshakeKeys(tr.ServerHello)
	if err != nil {
		return nil, err
	}
	res.ClientHandshakeKey, res.ClientHandshakeIV = hs.ClientWriteKey, hs.ClientWriteIV
	res.ServerHandshakeKey, res.ServerHandshakeIV = hs.ServerWriteKey, hs.ServerWriteIV

	if len(tr.ServerCertificateVerify) != 0 {
		if res.ServerFinished, err = ks.ComputeFinished(tls13.EndpointServer, tr.ServerCertificateVerify); err != nil {
			return nil, err
		}
	}
	if len(tr.ServerFinished) == 0 {
		return res, nil
	}
	if res.ClientFinished, err = ks.ComputeFinished(tls13.EndpointClient, tr.ServerFinished); err != nil {
		return nil, err
	}

	if err := ks.StageApplication(); err != nil {
		return nil, err
	}
	ap, err := ks.ApplicationKeys(tr.ServerFinished)
	if err != nil {
		return nil, err
	}
	res.ClientApplicationKey, res.ClientApplicationIV = ap.ClientWriteKey, ap.ClientWriteIV
	res.ServerApplicationKey, res.ServerApplicationIV = ap.ServerWriteKey, ap.ServerWriteIV

	if vec.Exporter != nil {
		if res.ExportedKeyingMaterial, err = ks.ExportKeyingMaterial(vec.Exporter.Label, vec.Exporter.Context, vec.Exporter.Length); err != nil {
			return nil, fmt.Errorf("exporter: %w", err)
		}
	}

	if len(tr.ClientFinished) != 0 {
		if res.ResumptionMasterSecret, err = ks.StageResumption(tr.ClientFinished); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func pickSuite(cfg *config.Config, name string) (*tls13.CipherSuite, error) {
	if name != "" {
		return tls13.CipherSuiteByName(name)
	}
	suites, err := cfg.Suites()
	if err != nil {
		return nil, err
	}
	return suites[0], nil
}

// sharedSecret returns the (EC)DHE input: given directly, computed from a
// key share, or empty for PSK-only handshakes.
func sharedSecret(vec *vectorFile) ([]byte, error) {
	if len(vec.SharedSecret) != 0 {
		return append([]byte(nil), vec.SharedSecret...), nil
	}
	if vec.KeyShare == nil {
		return nil, nil
	}
	priv, err := keyshare.NewPrivateKey(vec.KeyShare.Group, vec.KeyShare.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("key share: %w", err)
	}
	defer priv.Destroy()

	secret, err := priv.SharedSecret(vec.KeyShare.PeerPublic)
	if err != nil {
		return nil, fmt.Errorf("key share: %w", err)
	}
	defer secret.Destroy()
	return append([]byte(nil), secret.Bytes()...), nil
}

func checkExpectations(encoded []byte, expect map[string]string, stderr io.Writer) error {
	if len(expect) == 0 {
		return nil
	}
	var got map[string]string
	if err := yaml.Unmarshal(encoded, &got); err != nil {
		return fmt.Errorf("decode results: %w", err)
	}

	names := make([]string, 0, len(expect))
	for name := range expect {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := 0
	for _, name := range names {
		want := strings.ToLower(strings.ReplaceAll(expect[name], " ", ""))
		if got[name] != want {
			fmt.Fprintf(stderr, "MISMATCH %s\n  want %s\n  got  %s\n", name, want, got[name])
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errMismatch, failed, len(expect))
	}
	fmt.Fprintf(stderr, "all %d expected values match\n", len(expect))
	return nil
}
