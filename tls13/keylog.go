package tls13

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

// NSS key log labels.
const (
	KeyLogClientEarly     = "CLIENT_EARLY_TRAFFIC_SECRET"
	KeyLogEarlyExporter   = "EARLY_EXPORTER_SECRET"
	KeyLogClientHandshake = "CLIENT_HANDSHAKE_TRAFFIC_SECRET"
	KeyLogServerHandshake = "SERVER_HANDSHAKE_TRAFFIC_SECRET"
	KeyLogClientTraffic   = "CLIENT_TRAFFIC_SECRET_0"
	KeyLogServerTraffic   = "SERVER_TRAFFIC_SECRET_0"
	KeyLogExporter        = "EXPORTER_SECRET"
)

// KeyLogger receives traffic secrets as they are derived, for use by
// protocol analyzers. It is opt-in and meant for debugging only.
type KeyLogger interface {
	LogSecret(label string, clientRandom, secret []byte) error
}

// NSSKeyLogWriter writes secrets in the NSS SSLKEYLOGFILE format.
type NSSKeyLogWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewNSSKeyLogWriter returns a KeyLogger writing lines to w.
func NewNSSKeyLogWriter(w io.Writer) *NSSKeyLogWriter {
	return &NSSKeyLogWriter{w: w}
}

// LogSecret writes one "<label> <client_random> <secret>" line.
func (k *NSSKeyLogWriter) LogSecret(label string, clientRandom, secret []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	_, err := fmt.Fprintf(k.w, "%s %s %s\n", label, hex.EncodeToString(clientRandom), hex.EncodeToString(secret))
	return err
}
