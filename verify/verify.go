// Package verify composes extraction, FEC decoding, and signature
// verification into a single three-way verification outcome, and provides
// the write-side twin that signs and embeds a claim in one call.
package verify

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/provenmark/go-watermark-sdk/fec"
	"github.com/provenmark/go-watermark-sdk/payload"
	"github.com/provenmark/go-watermark-sdk/sig"
	"github.com/provenmark/go-watermark-sdk/stego"
)

// Status is the outcome of a verification call.
type Status int

const (
	// StatusNoTokenFound means no structurally valid frame was recovered.
	StatusNoTokenFound Status = iota

	// StatusVerified means a frame was recovered and its signature checks
	// out under the supplied public key.
	StatusVerified

	// StatusInvalidSignature means a structurally valid frame was
	// recovered but its signature does not verify: the claim or the
	// carrier was tampered with, or it was signed by a different key.
	StatusInvalidSignature
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusVerified:
		return "verified"
	case StatusInvalidSignature:
		return "invalid-signature"
	case StatusNoTokenFound:
		return "no-token-found"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Result is produced fresh per verification call and never mutated. The
// metadata fields are populated only for StatusVerified.
type Result struct {
	Status    Status
	Issuer    string
	Timestamp time.Time
	DocID     string
}

var (
	// ErrNilImage is returned when a nil image is supplied.
	ErrNilImage = errors.New("image is nil")

	// ErrNilKey is returned when a nil key is supplied.
	ErrNilKey = errors.New("key is nil")
)

// Run extracts and verifies a watermark from img under pub.
//
// Every internal sub-failure, from sync search through FEC decode to
// payload parsing, collapses into one of the three statuses; an error is
// returned only for caller misuse or context cancellation. The document
// hash inside a verified payload is an issuer-side audit record and is
// deliberately not re-derived from img: the carrier is expected to have
// changed under lossy transforms while the claim stays verifiable.
func Run(ctx context.Context, img image.Image, pub crypto.PublicKey, opts ...stego.ExtractOpt) (*Result, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	if pub == nil {
		return nil, ErrNilKey
	}

	carrier, err := stego.NewCarrier(img)
	if err != nil {
		return nil, fmt.Errorf("failed to decode carrier: %w", err)
	}

	msg, err := stego.Extract(ctx, carrier, opts...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return &Result{Status: StatusNoTokenFound}, nil
	}

	signed, err := sig.DecodeSignedPayload(msg)
	if err != nil {
		return &Result{Status: StatusNoTokenFound}, nil
	}
	p, err := signed.Payload()
	if err != nil {
		return &Result{Status: StatusNoTokenFound}, nil
	}

	if !sig.Verify(signed, pub) {
		return &Result{Status: StatusInvalidSignature}, nil
	}

	return &Result{
		Status:    StatusVerified,
		Issuer:    p.Issuer,
		Timestamp: p.Timestamp,
		DocID:     p.DocID,
	}, nil
}

// Issue signs p with priv under scheme and embeds the signed claim into
// img, returning the watermarked image. It is the write-side composition:
// payload, signature, FEC frame, transform-domain embedding.
func Issue(img image.Image, p *payload.Payload, priv crypto.PrivateKey, scheme sig.Scheme, opts ...stego.EmbedOpt) (*image.NRGBA, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	if priv == nil {
		return nil, ErrNilKey
	}

	signed, err := sig.Sign(p, priv, scheme)
	if err != nil {
		return nil, err
	}
	return EmbedSigned(img, signed, opts...)
}

// EmbedSigned embeds an already signed payload into img. It accepts no
// private key material; everything it needs is public.
func EmbedSigned(img image.Image, signed *sig.SignedPayload, opts ...stego.EmbedOpt) (*image.NRGBA, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	if signed == nil {
		return nil, errors.New("signed payload is nil")
	}

	msg, err := signed.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed payload: %w", err)
	}
	frame, err := fec.Encode(msg)
	if err != nil {
		if errors.Is(err, fec.ErrMessageTooLarge) {
			return nil, fmt.Errorf("%w: signed payload is %d bytes", stego.ErrPayloadTooLarge, len(msg))
		}
		return nil, fmt.Errorf("failed to build frame: %w", err)
	}

	carrier, err := stego.NewCarrier(img)
	if err != nil {
		return nil, fmt.Errorf("failed to decode carrier: %w", err)
	}
	if err := stego.Embed(carrier, frame, opts...); err != nil {
		return nil, err
	}
	return carrier.Image(), nil
}
