package digest

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/tls13core/crypto"
)

// Operation is a multipart hash computation. The zero value is inactive and
// ready for Setup. An Operation returns to the inactive state after Finish
// (successful or not) and after Abort, and may then be set up again.
//
// An Operation is not safe for concurrent use.
type Operation struct {
	st state
}

// NewOperation returns an operation already set up for alg.
func NewOperation(r *Registry, alg Algorithm) (*Operation, error) {
	op := &Operation{}
	if err := op.Setup(r, alg); err != nil {
		return nil, err
	}
	return op, nil
}

// Setup starts a computation of alg on the driver r binds it to. Setting up
// an active operation fails with ErrBadState.
func (o *Operation) Setup(r *Registry, alg Algorithm) error {
	if o.st != nil {
		return fmt.Errorf("%w: hash operation already active", crypto.ErrBadState)
	}
	d, err := r.Driver(alg)
	if err != nil {
		return err
	}
	st, err := d.newState(alg)
	if err != nil {
		return err
	}
	o.st = st

	logrus.WithFields(logrus.Fields{
		"function":  "Setup",
		"package":   "digest",
		"algorithm": alg.String(),
		"driver":    d.String(),
	}).Debug("Hash operation started")
	return nil
}

// Active reports whether the operation has been set up and not yet
// finished or aborted.
func (o *Operation) Active() bool {
	return o.st != nil
}

// Algorithm returns the algorithm of an active operation, or None.
func (o *Operation) Algorithm() Algorithm {
	if o.st == nil {
		return None
	}
	return o.st.algorithm()
}

// Driver returns the driver serving an active operation, or 0.
func (o *Operation) Driver() Driver {
	if o.st == nil {
		return 0
	}
	return o.st.driver()
}

// Size returns the digest length of an active operation, or 0.
func (o *Operation) Size() int {
	return o.Algorithm().Size()
}

// Update feeds p into the computation.
func (o *Operation) Update(p []byte) error {
	if o.st == nil {
		return fmt.Errorf("%w: hash operation not active", crypto.ErrBadState)
	}
	if _, err := o.st.hash().Write(p); err != nil {
		o.Abort()
		return fmt.Errorf("%w: %v", crypto.ErrPrimitiveFailure, err)
	}
	return nil
}

// Finish writes the digest into out and returns its length. The whole of
// out is first filled with '!' so a caller that ignores the error never
// sees something that looks like a digest. If out is shorter than the
// digest, ErrBufferTooSmall is returned. The operation is aborted in every
// case.
func (o *Operation) Finish(out []byte) (int, error) {
	if o.st == nil {
		return 0, fmt.Errorf("%w: hash operation not active", crypto.ErrBadState)
	}
	defer o.Abort()

	for i := range out {
		out[i] = '!'
	}

	n := o.st.algorithm().Size()
	if len(out) < n {
		return 0, fmt.Errorf("%w: need %d bytes for %s, have %d", crypto.ErrBufferTooSmall, n, o.st.algorithm(), len(out))
	}
	o.st.hash().Sum(out[:0])
	return n, nil
}

// Clone returns an independent active copy of the operation, so that a
// running digest can be read without disturbing it.
func (o *Operation) Clone() (*Operation, error) {
	if o.st == nil {
		return nil, fmt.Errorf("%w: hash operation not active", crypto.ErrBadState)
	}
	st, err := o.st.clone()
	if err != nil {
		return nil, err
	}
	return &Operation{st: st}, nil
}

// Abort discards any running computation. Aborting an inactive operation
// is a no-op.
func (o *Operation) Abort() {
	if o.st == nil {
		return
	}
	o.st.hash().Reset()
	o.st = nil
}
