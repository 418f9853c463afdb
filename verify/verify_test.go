package verify

import (
	"context"
	"crypto/sha256"
	"image"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provenmark/go-watermark-sdk/payload"
	"github.com/provenmark/go-watermark-sdk/sig"
	"github.com/provenmark/go-watermark-sdk/stego"
)

func testImage(w, h int, seed int64) *image.NRGBA {
	rnd := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fx, fy := float64(x), float64(y)
			v := 128 +
				52*math.Sin(fx/37)*math.Cos(fy/29) +
				24*math.Sin((fx+fy)/17) +
				(rnd.Float64()-0.5)*14
			o := img.PixOffset(x, y)
			for ch := 0; ch < 3; ch++ {
				img.Pix[o+ch] = uint8(v)
			}
			img.Pix[o+3] = 0xFF
		}
	}
	return img
}

func testPayload(t *testing.T) *payload.Payload {
	t.Helper()
	docHash := sha256.Sum256([]byte("hello"))
	ts, _ := time.Parse(time.RFC3339, "2024-01-01T00:00:00Z")
	p, err := payload.New(docHash, "agency-1", ts, "doc-42")
	require.NoError(t, err)
	return p
}

func TestIssueAndRunRoundTrip(t *testing.T) {
	priv, pub, err := sig.GenerateKeyPair(sig.SchemeECDSAP256)
	require.NoError(t, err)

	marked, err := Issue(testImage(512, 512, 1), testPayload(t), priv, sig.SchemeECDSAP256)
	require.NoError(t, err)

	result, err := Run(context.Background(), marked, pub)
	require.NoError(t, err)

	assert.Equal(t, StatusVerified, result.Status)
	assert.Equal(t, "agency-1", result.Issuer)
	assert.Equal(t, "doc-42", result.DocID)
	expectedTS, _ := time.Parse(time.RFC3339, "2024-01-01T00:00:00Z")
	assert.True(t, result.Timestamp.Equal(expectedTS))
}

func TestRunNoTokenOnUnmarkedImage(t *testing.T) {
	_, pub, err := sig.GenerateKeyPair(sig.SchemeECDSAP256)
	require.NoError(t, err)

	result, err := Run(context.Background(), testImage(512, 512, 2), pub)
	require.NoError(t, err)
	assert.Equal(t, StatusNoTokenFound, result.Status)
}

// A frame that decodes structurally but carries a signature made with a
// different key must be flagged as invalid, never verified and never a
// process fault.
func TestRunInvalidSignatureOnForeignKey(t *testing.T) {
	priv, _, err := sig.GenerateKeyPair(sig.SchemeECDSAP256)
	require.NoError(t, err)
	_, otherPub, err := sig.GenerateKeyPair(sig.SchemeECDSAP256)
	require.NoError(t, err)

	marked, err := Issue(testImage(512, 512, 3), testPayload(t), priv, sig.SchemeECDSAP256)
	require.NoError(t, err)

	result, err := Run(context.Background(), marked, otherPub)
	require.NoError(t, err)
	assert.Equal(t, StatusInvalidSignature, result.Status)
}

func TestRunInvalidSignatureOnTamperedClaim(t *testing.T) {
	priv, pub, err := sig.GenerateKeyPair(sig.SchemeECDSAP256)
	require.NoError(t, err)

	signed, err := sig.Sign(testPayload(t), priv, sig.SchemeECDSAP256)
	require.NoError(t, err)

	// Flip one bit of the signature before embedding.
	signed.Signature[10] ^= 0x01

	marked, err := EmbedSigned(testImage(512, 512, 4), signed)
	require.NoError(t, err)

	result, err := Run(context.Background(), marked, pub)
	require.NoError(t, err)
	assert.Equal(t, StatusInvalidSignature, result.Status)
}

func TestIssuePayloadTooLarge(t *testing.T) {
	priv, _, err := sig.GenerateKeyPair(sig.SchemeECDSAP256)
	require.NoError(t, err)

	_, err = Issue(testImage(160, 160, 5), testPayload(t), priv, sig.SchemeECDSAP256)
	assert.ErrorIs(t, err, stego.ErrPayloadTooLarge)
}

// A signed payload with maximum-length fields overflows a single frame
// before any carrier is consulted; the failure still reports as the
// payload-too-large condition rather than a frame internals error.
func TestEmbedSignedOversizedPayload(t *testing.T) {
	priv, _, err := sig.GenerateKeyPair(sig.SchemeECDSAP256)
	require.NoError(t, err)

	docHash := sha256.Sum256([]byte("hello"))
	big := strings.Repeat("x", 1024)
	p, err := payload.New(docHash, big, time.Now(), big)
	require.NoError(t, err)

	signed, err := sig.Sign(p, priv, sig.SchemeECDSAP256)
	require.NoError(t, err)

	_, err = EmbedSigned(testImage(2048, 2048, 9), signed)
	assert.ErrorIs(t, err, stego.ErrPayloadTooLarge)
}

func TestIssueInvalidKeyMaterial(t *testing.T) {
	rsaPriv, _, err := sig.GenerateKeyPair(sig.SchemeRSA2048)
	require.NoError(t, err)

	_, err = Issue(testImage(512, 512, 6), testPayload(t), rsaPriv, sig.SchemeECDSAP256)
	assert.ErrorIs(t, err, sig.ErrInvalidKeyMaterial)
}

func TestRunCallerMisuse(t *testing.T) {
	_, pub, err := sig.GenerateKeyPair(sig.SchemeECDSAP256)
	require.NoError(t, err)

	_, err = Run(context.Background(), nil, pub)
	assert.ErrorIs(t, err, ErrNilImage)

	_, err = Run(context.Background(), testImage(64, 64, 7), nil)
	assert.ErrorIs(t, err, ErrNilKey)
}

// The document hash in a verified result's payload is an issuer-side audit
// record. It is deliberately not re-checked against the received image:
// carrier pixels change under lossy transforms while the claim must stay
// verifiable. Re-verification against original document bytes is a caller
// decision outside this core.
func TestRunDoesNotRecheckDocHash(t *testing.T) {
	priv, pub, err := sig.GenerateKeyPair(sig.SchemeECDSAP256)
	require.NoError(t, err)

	// The embedded hash is of "hello", unrelated to the carrier pixels.
	marked, err := Issue(testImage(512, 512, 8), testPayload(t), priv, sig.SchemeECDSAP256)
	require.NoError(t, err)

	result, err := Run(context.Background(), marked, pub)
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, result.Status)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "verified", StatusVerified.String())
	assert.Equal(t, "invalid-signature", StatusInvalidSignature.String())
	assert.Equal(t, "no-token-found", StatusNoTokenFound.String())
}
