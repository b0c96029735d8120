// Package keyshare produces the (EC)DHE shared secrets that feed the
// handshake stage of the TLS 1.3 key schedule.
//
// Supported groups are x25519 (golang.org/x/crypto/curve25519), x448
// (github.com/cloudflare/circl/dh/x448), secp256r1 and secp384r1
// (crypto/ecdh). Private scalars live in crypto.Secret buffers and are
// wiped by Destroy; shared secrets are returned as crypto.Secret values the
// caller destroys once the key schedule has consumed them.
package keyshare

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cloudflare/circl/dh/x448"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"

	"github.com/opd-ai/tls13core/constanttime"
	"github.com/opd-ai/tls13core/crypto"
)

// Group is a TLS NamedGroup code point.
type Group uint16

const (
	Secp256r1 Group = 0x0017
	Secp384r1 Group = 0x0018
	X25519    Group = 0x001d
	X448      Group = 0x001e
)

var groupNames = map[Group]string{
	Secp256r1: "secp256r1",
	Secp384r1: "secp384r1",
	X25519:    "x25519",
	X448:      "x448",
}

func (g Group) String() string {
	if name, ok := groupNames[g]; ok {
		return name
	}
	return fmt.Sprintf("Group(0x%04x)", uint16(g))
}

// Groups lists the supported groups in default preference order.
func Groups() []Group {
	return []Group{X25519, Secp256r1, X448, Secp384r1}
}

// ParseGroup resolves a group name such as "x25519" or "P-256".
func ParseGroup(name string) (Group, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "p-256", "p256", "prime256v1":
		return Secp256r1, nil
	case "p-384", "p384":
		return Secp384r1, nil
	}
	for g, gn := range groupNames {
		if gn == n {
			return g, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown group %q", crypto.ErrNotSupported, name)
}

// MarshalText implements encoding.TextMarshaler.
func (g Group) MarshalText() ([]byte, error) {
	if _, ok := groupNames[g]; !ok {
		return nil, fmt.Errorf("%w: unknown group 0x%04x", crypto.ErrNotSupported, uint16(g))
	}
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Group) UnmarshalText(text []byte) error {
	parsed, err := ParseGroup(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

func (g Group) curve() ecdh.Curve {
	switch g {
	case Secp256r1:
		return ecdh.P256()
	case Secp384r1:
		return ecdh.P384()
	}
	return nil
}

// ScalarSize returns the private scalar length of the group.
func (g Group) ScalarSize() int {
	switch g {
	case X25519:
		return curve25519.ScalarSize
	case X448:
		return x448.Size
	case Secp256r1:
		return 32
	case Secp384r1:
		return 48
	}
	return 0
}

// PrivateKey is an ephemeral key share.
type PrivateKey struct {
	mu     sync.Mutex
	group  Group
	scalar *crypto.Secret
	public []byte
	nist   *ecdh.PrivateKey
}

// Generate creates a fresh key share for group using crypto/rand.
func Generate(group Group) (*PrivateKey, error) {
	return GenerateFrom(group, rand.Reader)
}

// GenerateFrom creates a key share reading scalar bytes from r.
func GenerateFrom(group Group, r io.Reader) (*PrivateKey, error) {
	size := group.ScalarSize()
	if size == 0 {
		return nil, fmt.Errorf("%w: group %s", crypto.ErrNotSupported, group)
	}

	if c := group.curve(); c != nil {
		priv, err := c.GenerateKey(r)
		if err != nil {
			return nil, fmt.Errorf("%w: generating %s key: %v", crypto.ErrPrimitiveFailure, group, err)
		}
		return fromECDH(group, priv), nil
	}

	raw := crypto.NewSecret(size)
	defer raw.Destroy()
	if _, err := io.ReadFull(r, raw.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: reading randomness: %v", crypto.ErrPrimitiveFailure, err)
	}
	return NewPrivateKey(group, raw.Bytes())
}

// NewPrivateKey imports a private scalar. The caller keeps ownership of raw.
func NewPrivateKey(group Group, raw []byte) (*PrivateKey, error) {
	size := group.ScalarSize()
	if size == 0 {
		return nil, fmt.Errorf("%w: group %s", crypto.ErrNotSupported, group)
	}
	if len(raw) != size {
		return nil, fmt.Errorf("%w: %s scalar must be %d bytes, got %d", crypto.ErrInvalidInput, group, size, len(raw))
	}

	if c := group.curve(); c != nil {
		priv, err := c.NewPrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", crypto.ErrInvalidInput, err)
		}
		return fromECDH(group, priv), nil
	}

	k := &PrivateKey{group: group, scalar: crypto.SecretFrom(raw)}
	switch group {
	case X25519:
		pub, err := curve25519.X25519(k.scalar.Bytes(), curve25519.Basepoint)
		if err != nil {
			k.Destroy()
			return nil, fmt.Errorf("%w: %v", crypto.ErrPrimitiveFailure, err)
		}
		k.public = pub
	case X448:
		var secret, public x448.Key
		copy(secret[:], k.scalar.Bytes())
		x448.KeyGen(&public, &secret)
		crypto.ZeroBytes(secret[:])
		k.public = public[:]
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewPrivateKey",
		"package":  "keyshare",
		"group":    group.String(),
	}).Debug("Key share created")

	return k, nil
}

func fromECDH(group Group, priv *ecdh.PrivateKey) *PrivateKey {
	return &PrivateKey{
		group:  group,
		scalar: crypto.SecretFrom(priv.Bytes()),
		public: priv.PublicKey().Bytes(),
		nist:   priv,
	}
}

// Group returns the named group of the key.
func (k *PrivateKey) Group() Group { return k.group }

// PublicKey returns a copy of the encoded public share.
func (k *PrivateKey) PublicKey() []byte {
	return append([]byte(nil), k.public...)
}

// SharedSecret computes the (EC)DHE shared secret with the peer's encoded
// public share. All-zero results from small-order points are rejected.
func (k *PrivateKey) SharedSecret(peer []byte) (*crypto.Secret, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.scalar.Destroyed() {
		return nil, fmt.Errorf("%w: key share destroyed", crypto.ErrBadState)
	}
	if len(peer) != len(k.public) {
		return nil, fmt.Errorf("%w: %s peer share must be %d bytes, got %d", crypto.ErrInvalidInput, k.group, len(k.public), len(peer))
	}

	var shared *crypto.Secret
	switch k.group {
	case X25519:
		out, err := curve25519.X25519(k.scalar.Bytes(), peer)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", crypto.ErrInvalidInput, err)
		}
		shared = crypto.SecretFrom(out)
		crypto.ZeroBytes(out)
	case X448:
		var secret, public, out x448.Key
		copy(secret[:], k.scalar.Bytes())
		copy(public[:], peer)
		ok := x448.Shared(&out, &secret, &public)
		crypto.ZeroBytes(secret[:])
		shared = crypto.SecretFrom(out[:])
		crypto.ZeroBytes(out[:])
		if !ok {
			shared.Destroy()
			return nil, fmt.Errorf("%w: low-order x448 point", crypto.ErrInvalidInput)
		}
	default:
		pub, err := k.group.curve().NewPublicKey(peer)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", crypto.ErrInvalidInput, err)
		}
		out, err := k.nist.ECDH(pub)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", crypto.ErrInvalidInput, err)
		}
		shared = crypto.SecretFrom(out)
		crypto.ZeroBytes(out)
	}

	if constanttime.Equal(shared.Bytes(), make([]byte, shared.Len())) {
		shared.Destroy()
		return nil, fmt.Errorf("%w: all-zero shared secret", crypto.ErrInvalidInput)
	}

	logrus.WithFields(logrus.Fields{
		"function": "SharedSecret",
		"package":  "keyshare",
		"group":    k.group.String(),
	}).Debug("Shared secret computed")

	return shared, nil
}

// Destroy wipes the private scalar. The key cannot be used afterwards.
func (k *PrivateKey) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.scalar.Destroy()
	k.nist = nil
}
