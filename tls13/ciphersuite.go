package tls13

import (
	"fmt"
	"strings"

	"github.com/opd-ai/tls13core/crypto"
	"github.com/opd-ai/tls13core/digest"
)

// CipherSuiteID is the two-byte IANA cipher suite identifier.
type CipherSuiteID uint16

// TLS 1.3 cipher suites (RFC 8446, appendix B.4).
const (
	TLS_AES_128_GCM_SHA256       CipherSuiteID = 0x1301
	TLS_AES_256_GCM_SHA384       CipherSuiteID = 0x1302
	TLS_CHACHA20_POLY1305_SHA256 CipherSuiteID = 0x1303
	TLS_AES_128_CCM_SHA256       CipherSuiteID = 0x1304
	TLS_AES_128_CCM_8_SHA256     CipherSuiteID = 0x1305
)

// Cipher identifies the AEAD of a suite.
type Cipher int

const (
	CipherAES128GCM Cipher = iota + 1
	CipherAES256GCM
	CipherChaCha20Poly1305
	CipherAES128CCM
)

func (c Cipher) String() string {
	switch c {
	case CipherAES128GCM:
		return "AES-128-GCM"
	case CipherAES256GCM:
		return "AES-256-GCM"
	case CipherChaCha20Poly1305:
		return "ChaCha20-Poly1305"
	case CipherAES128CCM:
		return "AES-128-CCM"
	default:
		return fmt.Sprintf("Cipher(%d)", int(c))
	}
}

// CipherSuite carries the parameters the key schedule and record
// protection need for one suite.
type CipherSuite struct {
	ID       CipherSuiteID
	Name     string
	Hash     digest.Algorithm
	Cipher   Cipher
	KeyLen   int
	IVLen    int
	ShortTag bool
}

// TagLen returns the AEAD tag length: 8 for short-tag suites, else 16.
func (s *CipherSuite) TagLen() int {
	if s.ShortTag {
		return 8
	}
	return 16
}

func (s *CipherSuite) String() string {
	return s.Name
}

// Suites in default preference order.
var cipherSuites = []*CipherSuite{
	{ID: TLS_AES_128_GCM_SHA256, Name: "TLS_AES_128_GCM_SHA256", Hash: digest.SHA256, Cipher: CipherAES128GCM, KeyLen: 16, IVLen: 12},
	{ID: TLS_CHACHA20_POLY1305_SHA256, Name: "TLS_CHACHA20_POLY1305_SHA256", Hash: digest.SHA256, Cipher: CipherChaCha20Poly1305, KeyLen: 32, IVLen: 12},
	{ID: TLS_AES_256_GCM_SHA384, Name: "TLS_AES_256_GCM_SHA384", Hash: digest.SHA384, Cipher: CipherAES256GCM, KeyLen: 32, IVLen: 12},
	{ID: TLS_AES_128_CCM_SHA256, Name: "TLS_AES_128_CCM_SHA256", Hash: digest.SHA256, Cipher: CipherAES128CCM, KeyLen: 16, IVLen: 12},
	{ID: TLS_AES_128_CCM_8_SHA256, Name: "TLS_AES_128_CCM_8_SHA256", Hash: digest.SHA256, Cipher: CipherAES128CCM, KeyLen: 16, IVLen: 12, ShortTag: true},
}

// SupportedCipherSuites lists all known suites in default preference order.
func SupportedCipherSuites() []*CipherSuite {
	out := make([]*CipherSuite, len(cipherSuites))
	copy(out, cipherSuites)
	return out
}

// CipherSuiteByID looks up a suite. Unknown identifiers are bad input.
func CipherSuiteByID(id CipherSuiteID) (*CipherSuite, error) {
	for _, s := range cipherSuites {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown cipher suite 0x%04x", crypto.ErrInvalidInput, uint16(id))
}

// CipherSuiteByName looks up a suite by its IANA name, ignoring case.
func CipherSuiteByName(name string) (*CipherSuite, error) {
	for _, s := range cipherSuites {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown cipher suite %q", crypto.ErrInvalidInput, name)
}

// CipherSuiteNegotiator selects the suite shared with the peer.
type CipherSuiteNegotiator struct {
	LocalPreferences   []CipherSuiteID
	RemoteCapabilities []CipherSuiteID
	SelectedSuite      *CipherSuite
}

// NewCipherSuiteNegotiator creates a negotiator preferring the default
// suite order.
func NewCipherSuiteNegotiator() *CipherSuiteNegotiator {
	prefs := make([]CipherSuiteID, 0, len(cipherSuites))
	for _, s := range cipherSuites {
		prefs = append(prefs, s.ID)
	}
	return &CipherSuiteNegotiator{LocalPreferences: prefs}
}

// SetRemoteCapabilities records the suites the peer offered.
func (n *CipherSuiteNegotiator) SetRemoteCapabilities(remote []CipherSuiteID) {
	n.RemoteCapabilities = remote
}

// NegotiateCipherSuite selects the first local preference the peer also
// offers. Identifiers unknown to this package are skipped.
func (n *CipherSuiteNegotiator) NegotiateCipherSuite() (*CipherSuite, error) {
	if len(n.RemoteCapabilities) == 0 {
		return nil, fmt.Errorf("%w: no remote capabilities provided", crypto.ErrInvalidArgument)
	}

	for _, local := range n.LocalPreferences {
		for _, remote := range n.RemoteCapabilities {
			if local != remote {
				continue
			}
			suite, err := CipherSuiteByID(local)
			if err != nil {
				continue
			}
			n.SelectedSuite = suite
			return suite, nil
		}
	}

	return nil, fmt.Errorf("%w: no compatible cipher suite found", crypto.ErrNotSupported)
}
