// Package watermark signs metadata about a document and embeds the
// signature into the pixels of an image, robustly enough to survive common
// processing such as JPEG recompression, moderate resizing, and border
// cropping. Any holder of the issuer's public key can later extract and
// verify the claim offline.
//
// Basic usage:
//
//	priv, pub, err := watermark.GenerateKeyPair(watermark.SchemeECDSAP256)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p, err := watermark.NewPayload(docHash, "agency-1", time.Now(), "doc-42")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	marked, err := watermark.Issue(img, p, priv, watermark.SchemeECDSAP256)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Later, possibly after recompression or cropping:
//	result, err := watermark.Verify(ctx, marked, pub)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	switch result.Status {
//	case watermark.StatusVerified:
//	    fmt.Println("issued by", result.Issuer, "at", result.Timestamp)
//	case watermark.StatusInvalidSignature:
//	    fmt.Println("tampered or foreign signature")
//	case watermark.StatusNoTokenFound:
//	    fmt.Println("no watermark present")
//	}
//
// Embedding locations and protocol parameters are public; only the private
// signing key is secret. The embedding and extraction packages never
// receive private key material.
package watermark

import (
	"context"
	"crypto"
	"image"
	"time"

	"github.com/provenmark/go-watermark-sdk/payload"
	"github.com/provenmark/go-watermark-sdk/sig"
	"github.com/provenmark/go-watermark-sdk/stego"
	"github.com/provenmark/go-watermark-sdk/verify"
)

// Re-exported core types.
type (
	Payload       = payload.Payload
	SignedPayload = sig.SignedPayload
	Scheme        = sig.Scheme
	Result        = verify.Result
	Status        = verify.Status
)

// Supported signature schemes.
const (
	SchemeECDSAP256 = sig.SchemeECDSAP256
	SchemeRSA2048   = sig.SchemeRSA2048
)

// Verification outcomes.
const (
	StatusVerified         = verify.StatusVerified
	StatusInvalidSignature = verify.StatusInvalidSignature
	StatusNoTokenFound     = verify.StatusNoTokenFound
)

// Sentinel errors surfaced by the pipeline.
var (
	ErrInvalidKeyMaterial = sig.ErrInvalidKeyMaterial
	ErrPayloadTooLarge    = stego.ErrPayloadTooLarge
)

// NewPayload builds and validates a claim payload.
func NewPayload(docHash [payload.HashSize]byte, issuer string, timestamp time.Time, docID string) (*Payload, error) {
	return payload.New(docHash, issuer, timestamp, docID)
}

// GenerateKeyPair creates a fresh key pair for the given scheme.
func GenerateKeyPair(scheme Scheme) (crypto.PrivateKey, crypto.PublicKey, error) {
	return sig.GenerateKeyPair(scheme)
}

// Sign signs a payload; the signed value can be embedded with EmbedSigned.
func Sign(p *Payload, priv crypto.PrivateKey, scheme Scheme) (*SignedPayload, error) {
	return sig.Sign(p, priv, scheme)
}

// Issue signs p and embeds the signed claim into img in one call.
func Issue(img image.Image, p *Payload, priv crypto.PrivateKey, scheme Scheme, opts ...stego.EmbedOpt) (*image.NRGBA, error) {
	return verify.Issue(img, p, priv, scheme, opts...)
}

// EmbedSigned embeds an already signed payload into img.
func EmbedSigned(img image.Image, signed *SignedPayload, opts ...stego.EmbedOpt) (*image.NRGBA, error) {
	return verify.EmbedSigned(img, signed, opts...)
}

// Verify extracts and verifies a watermark from img under pub, producing
// one of the three Result statuses.
func Verify(ctx context.Context, img image.Image, pub crypto.PublicKey, opts ...stego.ExtractOpt) (*Result, error) {
	return verify.Run(ctx, img, pub, opts...)
}
