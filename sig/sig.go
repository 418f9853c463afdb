// Package sig provides asymmetric signing and verification over canonical
// payload bytes, plus the wire encoding of a signed payload.
//
// Only the private signing key is secret. Embedding locations and protocol
// parameters are public, so this package is the single place private key
// material is accepted; the stego and verify packages never receive it.
package sig

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/provenmark/go-watermark-sdk/payload"
)

// Scheme identifies a signature scheme.
type Scheme byte

const (
	// SchemeECDSAP256 is ECDSA over NIST P-256 with SHA-256, ASN.1 DER signatures.
	SchemeECDSAP256 Scheme = 1

	// SchemeRSA2048 is RSA-2048 PSS with SHA-256.
	SchemeRSA2048 Scheme = 2
)

// String returns the scheme name.
func (s Scheme) String() string {
	switch s {
	case SchemeECDSAP256:
		return "ecdsa-p256"
	case SchemeRSA2048:
		return "rsa-2048"
	default:
		return fmt.Sprintf("unknown(%d)", byte(s))
	}
}

const rsaKeyBits = 2048

// maxWireLen bounds the variable-length fields of the wire encoding.
const maxWireLen = 4096

var (
	// ErrInvalidKeyMaterial is returned when a key does not match the declared scheme.
	ErrInvalidKeyMaterial = errors.New("key material does not match the declared scheme")

	// ErrNilPayload is returned when a nil payload is signed.
	ErrNilPayload = errors.New("payload is nil")
)

// SignedPayload binds canonical payload bytes to a signature under a scheme.
// It is immutable once created.
type SignedPayload struct {
	PayloadBytes []byte
	Scheme       Scheme
	Signature    []byte
}

// Sign signs the canonical bytes of p with priv under the given scheme.
//
// Returns ErrInvalidKeyMaterial when the key type, curve, or modulus size
// does not match the scheme.
func Sign(p *payload.Payload, priv crypto.PrivateKey, scheme Scheme) (*SignedPayload, error) {
	if p == nil {
		return nil, ErrNilPayload
	}
	canonical, err := p.Canonical()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}
	digest := sha256.Sum256(canonical)

	var signature []byte
	switch scheme {
	case SchemeECDSAP256:
		key, ok := priv.(*ecdsa.PrivateKey)
		if !ok || key.Curve != elliptic.P256() {
			return nil, ErrInvalidKeyMaterial
		}
		signature, err = ecdsa.SignASN1(rand.Reader, key, digest[:])
		if err != nil {
			return nil, fmt.Errorf("failed to sign payload: %w", err)
		}
	case SchemeRSA2048:
		key, ok := priv.(*rsa.PrivateKey)
		if !ok || key.N.BitLen() != rsaKeyBits {
			return nil, ErrInvalidKeyMaterial
		}
		signature, err = rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], nil)
		if err != nil {
			return nil, fmt.Errorf("failed to sign payload: %w", err)
		}
	default:
		return nil, ErrInvalidKeyMaterial
	}

	return &SignedPayload{
		PayloadBytes: canonical,
		Scheme:       scheme,
		Signature:    signature,
	}, nil
}

// Verify reports whether sp's signature is valid under pub.
//
// Verify never returns an error: a malformed signature, a key that does not
// match the scheme, or an empty signed payload is a valid "false" result,
// not a fault, because the input may be attacker-controlled.
func Verify(sp *SignedPayload, pub crypto.PublicKey) bool {
	if sp == nil || len(sp.PayloadBytes) == 0 || len(sp.Signature) == 0 {
		return false
	}
	digest := sha256.Sum256(sp.PayloadBytes)

	switch sp.Scheme {
	case SchemeECDSAP256:
		key, ok := pub.(*ecdsa.PublicKey)
		if !ok || key.Curve != elliptic.P256() {
			return false
		}
		return ecdsa.VerifyASN1(key, digest[:], sp.Signature)
	case SchemeRSA2048:
		key, ok := pub.(*rsa.PublicKey)
		if !ok || key.N.BitLen() != rsaKeyBits {
			return false
		}
		return rsa.VerifyPSS(key, crypto.SHA256, digest[:], sp.Signature, nil) == nil
	default:
		return false
	}
}

// Payload decodes the canonical payload bytes back into a Payload.
func (sp *SignedPayload) Payload() (*payload.Payload, error) {
	return payload.Decode(sp.PayloadBytes)
}

// Encode returns the wire form carried inside a watermark frame:
// scheme byte, uint16-prefixed payload bytes, uint16-prefixed signature.
func (sp *SignedPayload) Encode() ([]byte, error) {
	if len(sp.PayloadBytes) == 0 || len(sp.Signature) == 0 {
		return nil, errors.New("signed payload is incomplete")
	}
	if len(sp.PayloadBytes) > maxWireLen || len(sp.Signature) > maxWireLen {
		return nil, errors.New("signed payload exceeds wire limits")
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(sp.Scheme))
	writeChunk(&buf, sp.PayloadBytes)
	writeChunk(&buf, sp.Signature)
	return buf.Bytes(), nil
}

// DecodeSignedPayload parses the wire form produced by Encode. The scheme
// byte is validated; payload bytes and signature are carried opaquely so a
// corrupted signature still yields a decodable (but unverifiable) value.
func DecodeSignedPayload(data []byte) (*SignedPayload, error) {
	r := bytes.NewReader(data)

	schemeByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("failed to read scheme: %w", err)
	}
	scheme := Scheme(schemeByte)
	if scheme != SchemeECDSAP256 && scheme != SchemeRSA2048 {
		return nil, fmt.Errorf("unknown signature scheme %d", schemeByte)
	}

	payloadBytes, err := readChunk(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload bytes: %w", err)
	}
	signature, err := readChunk(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read signature: %w", err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("unexpected %d trailing bytes", r.Len())
	}

	return &SignedPayload{
		PayloadBytes: payloadBytes,
		Scheme:       scheme,
		Signature:    signature,
	}, nil
}

func writeChunk(buf *bytes.Buffer, b []byte) {
	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(b)))
	buf.Write(length[:])
	buf.Write(b)
}

func readChunk(r *bytes.Reader) ([]byte, error) {
	var length uint16
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length == 0 || int(length) > maxWireLen {
		return nil, fmt.Errorf("invalid chunk length %d", length)
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
