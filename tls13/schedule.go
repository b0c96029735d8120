package tls13

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/tls13core/crypto"
	"github.com/opd-ai/tls13core/digest"
	"github.com/opd-ai/tls13core/limits"
)

// Endpoint is the local role in the handshake.
type Endpoint int

const (
	EndpointClient Endpoint = iota
	EndpointServer
)

func (e Endpoint) String() string {
	switch e {
	case EndpointClient:
		return "client"
	case EndpointServer:
		return "server"
	default:
		return fmt.Sprintf("Endpoint(%d)", int(e))
	}
}

// State is the progress of a KeySchedule.
type State int

const (
	StateInit State = iota
	StateEarlySecretReady
	StateHandshakeSecretReady
	StateHandshakeKeysReady
	StateApplicationSecretReady
	StateApplicationKeysReady
	StateResumptionSecretReady
	StateErased
)

var stateNames = map[State]string{
	StateInit:                   "init",
	StateEarlySecretReady:       "early-secret-ready",
	StateHandshakeSecretReady:   "handshake-secret-ready",
	StateHandshakeKeysReady:     "handshake-keys-ready",
	StateApplicationSecretReady: "application-secret-ready",
	StateApplicationKeysReady:   "application-keys-ready",
	StateResumptionSecretReady:  "resumption-secret-ready",
	StateErased:                 "erased",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// EarlySecrets are the 0-RTT secrets derived from the early secret.
type EarlySecrets struct {
	ClientEarlyTrafficSecret  []byte
	EarlyExporterMasterSecret []byte
}

// Destroy wipes both secrets.
func (e *EarlySecrets) Destroy() {
	if e == nil {
		return
	}
	crypto.ZeroBytes(e.ClientEarlyTrafficSecret)
	crypto.ZeroBytes(e.EarlyExporterMasterSecret)
}

// KeySchedule drives the TLS 1.3 secret chain of one connection:
//
//	PSK  -> Extract -> early secret      -> c e traffic, e exp master
//	(EC)DHE -> Extract -> handshake secret -> c/s hs traffic
//	0    -> Extract -> master secret     -> c/s ap traffic, exp master, res master
//
// Each stage checks only that its input secret exists; feeding transcripts
// in handshake order is the caller's job. A failed stage wipes whatever it
// produced and leaves the schedule as it was. Methods are safe for
// concurrent use.
type KeySchedule struct {
	mu sync.Mutex

	suite   *CipherSuite
	d       *Deriver
	alg     digest.Algorithm
	hashLen int
	state   State

	early     *crypto.Secret
	handshake *crypto.Secret
	master    *crypto.Secret

	clientHS *crypto.Secret
	serverHS *crypto.Secret
	clientAP *crypto.Secret
	serverAP *crypto.Secret
	exporter *crypto.Secret

	keyLog       KeyLogger
	clientRandom []byte
}

// NewKeySchedule creates a schedule for suite. A nil deriver selects
// DefaultDeriver.
func NewKeySchedule(suite *CipherSuite, d *Deriver) (*KeySchedule, error) {
	if suite == nil {
		return nil, fmt.Errorf("%w: nil cipher suite", crypto.ErrInvalidArgument)
	}
	if d == nil {
		d = DefaultDeriver()
	}
	hashLen := d.HashLen(suite.Hash)
	if hashLen == 0 {
		return nil, fmt.Errorf("%w: hash %s of %s is not enabled", crypto.ErrNotSupported, suite.Hash, suite.Name)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewKeySchedule",
		"package":  "tls13",
		"suite":    suite.Name,
		"hash":     suite.Hash.String(),
	}).Debug("Key schedule created")

	return &KeySchedule{suite: suite, d: d, alg: suite.Hash, hashLen: hashLen}, nil
}

// SetKeyLogger enables NSS key logging for this connection.
func (ks *KeySchedule) SetKeyLogger(kl KeyLogger, clientRandom []byte) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.keyLog = kl
	ks.clientRandom = append([]byte(nil), clientRandom...)
}

// Suite returns the cipher suite of the schedule.
func (ks *KeySchedule) Suite() *CipherSuite { return ks.suite }

// State reports the last completed stage.
func (ks *KeySchedule) State() State {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.state
}

func (ks *KeySchedule) logger(function string) *crypto.LoggerHelper {
	return crypto.NewLogger("tls13", function).WithFields(logrus.Fields{
		"suite": ks.suite.Name,
		"state": ks.state.String(),
	})
}

func (ks *KeySchedule) logSecret(label string, secret *crypto.Secret) {
	if ks.keyLog == nil {
		return
	}
	if err := ks.keyLog.LogSecret(label, ks.clientRandom, secret.Bytes()); err != nil {
		ks.logger("logSecret").
			WithField("label", label).
			WithSecret("secret", secret).
			WithError(err, "key_log").
			Warn("Key log write failed")
	}
}

func (ks *KeySchedule) missing(what string) error {
	return fmt.Errorf("%w: %s is not available in state %s", crypto.ErrBadState, what, ks.state)
}

// newSecret allocates the buffers of derived stage secrets.
var newSecret = crypto.NewSecret

func available(s *crypto.Secret) bool {
	return s != nil && !s.Destroyed()
}

// deriveAll derives one secret per label from base and the hashed
// transcript. On failure every derived secret is destroyed.
func (ks *KeySchedule) deriveAll(base *crypto.Secret, transcript []byte, labels ...string) ([]*crypto.Secret, error) {
	out := make([]*crypto.Secret, 0, len(labels))
	for _, label := range labels {
		s := newSecret(ks.hashLen)
		if err := ks.d.DeriveSecret(ks.alg, base.Bytes(), label, transcript, true, s.Bytes()); err != nil {
			s.Destroy()
			for _, done := range out {
				done.Destroy()
			}
			return nil, fmt.Errorf("derive %q: %w", label, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// StageEarly computes the early secret from psk, or from zeros when psk is
// empty.
func (ks *KeySchedule) StageEarly(psk []byte) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.state == StateErased {
		return ks.missing("schedule")
	}
	if ks.early != nil {
		return fmt.Errorf("%w: early secret already derived", crypto.ErrBadState)
	}

	early := crypto.NewSecret(ks.hashLen)
	if err := ks.d.EvolveSecret(ks.alg, nil, psk, early.Bytes()); err != nil {
		early.Destroy()
		ks.logger("StageEarly").WithError(err, "evolve_secret").Error("Early stage failed")
		return err
	}
	ks.early = early
	ks.state = StateEarlySecretReady

	ks.logger("StageEarly").WithField("psk", len(psk) != 0).Debug("Early secret ready")
	return nil
}

// EarlySecrets derives the 0-RTT traffic and exporter secrets from the
// ClientHello transcript hash. The caller owns the result.
func (ks *KeySchedule) EarlySecrets(transcriptCH []byte) (*EarlySecrets, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if !available(ks.early) {
		return nil, ks.missing("early secret")
	}
	secrets, err := ks.deriveAll(ks.early, transcriptCH, LabelClientEarly, LabelEarlyExporter)
	if err != nil {
		return nil, err
	}
	ks.logSecret(KeyLogClientEarly, secrets[0])
	ks.logSecret(KeyLogEarlyExporter, secrets[1])

	return &EarlySecrets{
		ClientEarlyTrafficSecret:  secrets[0].Bytes(),
		EarlyExporterMasterSecret: secrets[1].Bytes(),
	}, nil
}

// StageHandshake mixes the (EC)DHE shared secret into the schedule. The
// shared secret is wiped in place whether or not the stage succeeds. An
// empty shared secret selects PSK-only mode.
func (ks *KeySchedule) StageHandshake(sharedSecret []byte) error {
	defer crypto.ZeroBytes(sharedSecret)

	ks.mu.Lock()
	defer ks.mu.Unlock()

	if !available(ks.early) {
		return ks.missing("early secret")
	}
	if ks.handshake != nil {
		return fmt.Errorf("%w: handshake secret already derived", crypto.ErrBadState)
	}

	handshake := crypto.NewSecret(ks.hashLen)
	if err := ks.d.EvolveSecret(ks.alg, ks.early.Bytes(), sharedSecret, handshake.Bytes()); err != nil {
		handshake.Destroy()
		ks.logger("StageHandshake").WithError(err, "evolve_secret").Error("Handshake stage failed")
		return err
	}
	ks.handshake = handshake
	ks.state = StateHandshakeSecretReady

	ks.logger("StageHandshake").WithField("ecdhe", len(sharedSecret) != 0).Debug("Handshake secret ready")
	return nil
}

// HandshakeKeys derives the handshake traffic secrets and record keys from
// the ClientHello..ServerHello transcript hash. The traffic secrets stay
// in the schedule for the Finished computations.
func (ks *KeySchedule) HandshakeKeys(transcriptSH []byte) (*KeySet, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if !available(ks.handshake) {
		return nil, ks.missing("handshake secret")
	}
	if ks.clientHS != nil {
		return nil, fmt.Errorf("%w: handshake traffic secrets already derived", crypto.ErrBadState)
	}
	secrets, err := ks.deriveAll(ks.handshake, transcriptSH, LabelClientHandshake, LabelServerHandshake)
	if err != nil {
		return nil, err
	}
	keys, err := ks.d.MakeTrafficKeys(ks.alg, secrets[0].Bytes(), secrets[1].Bytes(), ks.suite.KeyLen, ks.suite.IVLen)
	if err != nil {
		secrets[0].Destroy()
		secrets[1].Destroy()
		return nil, err
	}

	ks.clientHS, ks.serverHS = secrets[0], secrets[1]
	ks.state = StateHandshakeKeysReady

	ks.logSecret(KeyLogClientHandshake, ks.clientHS)
	ks.logSecret(KeyLogServerHandshake, ks.serverHS)
	ks.logger("HandshakeKeys").Debug("Handshake traffic keys ready")
	return keys, nil
}

// StageApplication derives the master secret from the handshake secret.
func (ks *KeySchedule) StageApplication() error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if !available(ks.handshake) {
		return ks.missing("handshake secret")
	}
	if ks.master != nil {
		return fmt.Errorf("%w: master secret already derived", crypto.ErrBadState)
	}

	master := crypto.NewSecret(ks.hashLen)
	if err := ks.d.EvolveSecret(ks.alg, ks.handshake.Bytes(), nil, master.Bytes()); err != nil {
		master.Destroy()
		ks.logger("StageApplication").WithError(err, "evolve_secret").Error("Application stage failed")
		return err
	}
	ks.master = master
	ks.state = StateApplicationSecretReady

	ks.logger("StageApplication").Debug("Master secret ready")
	return nil
}

// ApplicationKeys derives the application traffic secrets, the exporter
// master secret and the first application record keys from the
// ClientHello..server Finished transcript hash. The early and handshake
// secrets are wiped on success.
func (ks *KeySchedule) ApplicationKeys(transcriptSF []byte) (*KeySet, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if !available(ks.master) {
		return nil, ks.missing("master secret")
	}
	if ks.clientAP != nil {
		return nil, fmt.Errorf("%w: application traffic secrets already derived", crypto.ErrBadState)
	}
	secrets, err := ks.deriveAll(ks.master, transcriptSF, LabelClientTraffic, LabelServerTraffic, LabelExporterMaster)
	if err != nil {
		return nil, err
	}
	keys, err := ks.d.MakeTrafficKeys(ks.alg, secrets[0].Bytes(), secrets[1].Bytes(), ks.suite.KeyLen, ks.suite.IVLen)
	if err != nil {
		for _, s := range secrets {
			s.Destroy()
		}
		return nil, err
	}

	ks.clientAP, ks.serverAP, ks.exporter = secrets[0], secrets[1], secrets[2]

	ks.early.Destroy()
	ks.handshake.Destroy()
	ks.state = StateApplicationKeysReady

	ks.logSecret(KeyLogClientTraffic, ks.clientAP)
	ks.logSecret(KeyLogServerTraffic, ks.serverAP)
	ks.logSecret(KeyLogExporter, ks.exporter)
	ks.logger("ApplicationKeys").Debug("Application traffic keys ready")
	return keys, nil
}

// StageResumption derives the resumption master secret from the
// ClientHello..client Finished transcript hash and returns it. The master
// secret and the handshake traffic secrets are wiped afterwards.
func (ks *KeySchedule) StageResumption(transcriptCF []byte) ([]byte, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if !available(ks.master) {
		return nil, ks.missing("master secret")
	}
	secrets, err := ks.deriveAll(ks.master, transcriptCF, LabelResumption)
	if err != nil {
		return nil, err
	}

	ks.master.Destroy()
	ks.clientHS.Destroy()
	ks.serverHS.Destroy()
	ks.state = StateResumptionSecretReady

	ks.logger("StageResumption").Debug("Resumption master secret ready")
	return secrets[0].Bytes(), nil
}

func (ks *KeySchedule) handshakeSecretFor(endpoint Endpoint) (*crypto.Secret, error) {
	var s *crypto.Secret
	switch endpoint {
	case EndpointClient:
		s = ks.clientHS
	case EndpointServer:
		s = ks.serverHS
	default:
		return nil, fmt.Errorf("%w: invalid endpoint %d", crypto.ErrInternal, int(endpoint))
	}
	if !available(s) {
		return nil, ks.missing(endpoint.String() + " handshake traffic secret")
	}
	return s, nil
}

// ComputeFinished returns the verify_data the given endpoint sends over
// transcript. The endpoint's handshake traffic secret is consumed.
func (ks *KeySchedule) ComputeFinished(endpoint Endpoint, transcript []byte) ([]byte, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	base, err := ks.handshakeSecretFor(endpoint)
	if err != nil {
		return nil, err
	}
	defer base.Destroy()

	out := make([]byte, ks.hashLen)
	if _, err := ks.d.ComputeFinished(ks.alg, base.Bytes(), transcript, out); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyFinished checks the verify_data received from the given endpoint
// in constant time. The endpoint's handshake traffic secret is consumed.
func (ks *KeySchedule) VerifyFinished(endpoint Endpoint, transcript, received []byte) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	base, err := ks.handshakeSecretFor(endpoint)
	if err != nil {
		return err
	}
	defer base.Destroy()

	if err := ks.d.VerifyFinished(ks.alg, base.Bytes(), transcript, received); err != nil {
		ks.logger("VerifyFinished").WithField("endpoint", endpoint.String()).Warn("Finished verification failed")
		return err
	}
	return nil
}

// TrafficKey is one direction's record protection key after a KeyUpdate.
type TrafficKey struct {
	Key []byte
	IV  []byte
}

// Destroy wipes the key and IV.
func (t *TrafficKey) Destroy() {
	if t == nil {
		return
	}
	crypto.ZeroBytes(t.Key)
	crypto.ZeroBytes(t.IV)
}

// UpdateTrafficKeys advances the application traffic secret of the given
// sender and returns its next record key.
func (ks *KeySchedule) UpdateTrafficKeys(sender Endpoint) (*TrafficKey, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	cur := &ks.clientAP
	if sender == EndpointServer {
		cur = &ks.serverAP
	} else if sender != EndpointClient {
		return nil, fmt.Errorf("%w: invalid endpoint %d", crypto.ErrInternal, int(sender))
	}
	if !available(*cur) {
		return nil, ks.missing(sender.String() + " application traffic secret")
	}

	next := crypto.NewSecret(ks.hashLen)
	if err := ks.d.NextTrafficSecret(ks.alg, (*cur).Bytes(), next.Bytes()); err != nil {
		next.Destroy()
		return nil, err
	}
	tk := &TrafficKey{Key: make([]byte, ks.suite.KeyLen), IV: make([]byte, ks.suite.IVLen)}
	if err := ks.d.ExpandLabel(ks.alg, next.Bytes(), LabelKey, nil, tk.Key); err != nil {
		next.Destroy()
		tk.Destroy()
		return nil, err
	}
	if err := ks.d.ExpandLabel(ks.alg, next.Bytes(), LabelIV, nil, tk.IV); err != nil {
		next.Destroy()
		tk.Destroy()
		return nil, err
	}

	(*cur).Destroy()
	*cur = next
	ks.logger("UpdateTrafficKeys").WithField("sender", sender.String()).Debug("Traffic secret updated")
	return tk, nil
}

// ExportKeyingMaterial runs the RFC 8446 exporter over the exporter master
// secret.
func (ks *KeySchedule) ExportKeyingMaterial(label string, context []byte, length int) ([]byte, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if length <= 0 || length > limits.MaxExpansionLen {
		return nil, fmt.Errorf("%w: exporter length %d must be in 1..%d", crypto.ErrInvalidArgument, length, limits.MaxExpansionLen)
	}
	if !available(ks.exporter) {
		return nil, ks.missing("exporter master secret")
	}
	out := make([]byte, length)
	if err := ks.d.ExportKeyingMaterial(ks.alg, ks.exporter.Bytes(), label, context, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Erase wipes every secret held by the schedule. It is idempotent.
func (ks *KeySchedule) Erase() {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	for _, s := range []*crypto.Secret{
		ks.early, ks.handshake, ks.master,
		ks.clientHS, ks.serverHS,
		ks.clientAP, ks.serverAP, ks.exporter,
	} {
		s.Destroy()
	}
	crypto.ZeroBytes(ks.clientRandom)
	ks.state = StateErased
}
