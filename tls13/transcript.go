package tls13

import (
	"fmt"

	"github.com/opd-ai/tls13core/crypto"
	"github.com/opd-ai/tls13core/digest"
)

// typeMessageHash is the synthetic handshake type used after a
// HelloRetryRequest (RFC 8446, section 4.4.1).
const typeMessageHash = 254

// Transcript is the running hash over handshake messages. The key
// schedule takes its snapshots as already-hashed contexts.
type Transcript struct {
	reg *digest.Registry
	alg digest.Algorithm
	op  *digest.Operation
}

// NewTranscript starts an empty transcript hash.
func NewTranscript(reg *digest.Registry, alg digest.Algorithm) (*Transcript, error) {
	if reg == nil {
		reg = digest.Default()
	}
	op, err := digest.NewOperation(reg, alg)
	if err != nil {
		return nil, err
	}
	return &Transcript{reg: reg, alg: alg, op: op}, nil
}

// Algorithm returns the transcript hash algorithm.
func (t *Transcript) Algorithm() digest.Algorithm { return t.alg }

// Write appends a handshake message. It implements io.Writer.
func (t *Transcript) Write(msg []byte) (int, error) {
	if err := t.op.Update(msg); err != nil {
		return 0, err
	}
	return len(msg), nil
}

// Sum returns the hash of everything written so far without ending the
// transcript.
func (t *Transcript) Sum() ([]byte, error) {
	snap, err := t.op.Clone()
	if err != nil {
		return nil, fmt.Errorf("snapshot transcript: %w", err)
	}
	out := make([]byte, snap.Size())
	if _, err := snap.Finish(out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceWithMessageHash restarts the transcript with the message_hash
// construct that stands in for ClientHello1 after a HelloRetryRequest.
func (t *Transcript) ReplaceWithMessageHash() error {
	ch1, err := t.Sum()
	if err != nil {
		return err
	}
	if len(ch1) > 255 {
		return fmt.Errorf("%w: digest of %d bytes", crypto.ErrInternal, len(ch1))
	}

	op, err := digest.NewOperation(t.reg, t.alg)
	if err != nil {
		return err
	}
	header := []byte{typeMessageHash, 0, 0, byte(len(ch1))}
	if err := op.Update(header); err != nil {
		op.Abort()
		return err
	}
	if err := op.Update(ch1); err != nil {
		op.Abort()
		return err
	}
	t.op.Abort()
	t.op = op
	return nil
}

// Close releases the running hash state.
func (t *Transcript) Close() {
	t.op.Abort()
}
