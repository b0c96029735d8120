package tls13

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	"github.com/opd-ai/tls13core/crypto"
	"github.com/opd-ai/tls13core/limits"
)

// Purpose labels of RFC 8446, section 7.
const (
	LabelDerived         = "derived"
	LabelExtBinder       = "ext binder"
	LabelResBinder       = "res binder"
	LabelClientEarly     = "c e traffic"
	LabelEarlyExporter   = "e exp master"
	LabelClientHandshake = "c hs traffic"
	LabelServerHandshake = "s hs traffic"
	LabelClientTraffic   = "c ap traffic"
	LabelServerTraffic   = "s ap traffic"
	LabelExporterMaster  = "exp master"
	LabelResumption      = "res master"
	LabelFinished        = "finished"
	LabelKey             = "key"
	LabelIV              = "iv"
	LabelTrafficUpdate   = "traffic upd"
	LabelExporter        = "exporter"
	LabelResumptionPSK   = "resumption"
)

// EncodeLabel builds the HkdfLabel structure of RFC 8446, section 7.1:
//
//	struct {
//	    uint16 length = Length;
//	    opaque label<7..255> = "tls13 " + Label;
//	    opaque context<0..255> = Context;
//	} HkdfLabel;
//
// The high byte of length is always zero: expansions never exceed
// limits.MaxExpansionLen. Oversized lengths, labels or contexts are caller
// bugs and fail with ErrInternal.
func EncodeLabel(desiredLength int, label string, context []byte) ([]byte, error) {
	if err := limits.ValidateExpansion(desiredLength); err != nil {
		return nil, fmt.Errorf("%w: %w", crypto.ErrInternal, err)
	}
	if err := limits.ValidateLabel(label); err != nil {
		return nil, fmt.Errorf("%w: %w", crypto.ErrInternal, err)
	}
	if err := limits.ValidateContext(context); err != nil {
		return nil, fmt.Errorf("%w: %w", crypto.ErrInternal, err)
	}

	b := cryptobyte.NewBuilder(make([]byte, 0, 2+1+len(limits.LabelPrefix)+len(label)+1+len(context)))
	b.AddUint8(0)
	b.AddUint8(uint8(desiredLength))
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes([]byte(limits.LabelPrefix))
		b.AddBytes([]byte(label))
	})
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(context)
	})
	out, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: encoding HkdfLabel: %v", crypto.ErrInternal, err)
	}
	return out, nil
}

// EncodedLabelLen returns the size of the HkdfLabel for a label and
// context of the given lengths.
func EncodedLabelLen(labelLen, contextLen int) int {
	return 2 + 1 + len(limits.LabelPrefix) + labelLen + 1 + contextLen
}
