package watermark_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"image"
	"image/jpeg"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	watermark "github.com/provenmark/go-watermark-sdk"
)

func referenceImage(w, h int) *image.NRGBA {
	rnd := rand.New(rand.NewSource(2024))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fx, fy := float64(x), float64(y)
			base := 128 +
				52*math.Sin(fx/37)*math.Cos(fy/29) +
				24*math.Sin((fx+fy)/17) +
				(rnd.Float64()-0.5)*14
			o := img.PixOffset(x, y)
			img.Pix[o+0] = uint8(base + 14*math.Sin(fy/51))
			img.Pix[o+1] = uint8(base)
			img.Pix[o+2] = uint8(base - 11*math.Cos(fx/43))
			img.Pix[o+3] = 0xFF
		}
	}
	return img
}

// End-to-end scenario: a fixed claim signed with ECDSA P-256, embedded into
// a 1024x1024 reference image, JPEG-recompressed at quality 85, then
// verified offline from the public key alone.
func TestEndToEndJPEGScenario(t *testing.T) {
	priv, pub, err := watermark.GenerateKeyPair(watermark.SchemeECDSAP256)
	require.NoError(t, err)

	docHash := sha256.Sum256([]byte("hello"))
	ts, _ := time.Parse(time.RFC3339, "2024-01-01T00:00:00Z")
	p, err := watermark.NewPayload(docHash, "agency-1", ts, "doc-42")
	require.NoError(t, err)

	marked, err := watermark.Issue(referenceImage(1024, 1024), p, priv, watermark.SchemeECDSAP256)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, marked, &jpeg.Options{Quality: 85}))
	recompressed, err := jpeg.Decode(&buf)
	require.NoError(t, err)

	result, err := watermark.Verify(context.Background(), recompressed, pub)
	require.NoError(t, err)

	assert.Equal(t, watermark.StatusVerified, result.Status)
	assert.Equal(t, "agency-1", result.Issuer)
	assert.Equal(t, "doc-42", result.DocID)
	assert.True(t, result.Timestamp.Equal(ts))
}

func TestSignThenEmbedSeparately(t *testing.T) {
	priv, pub, err := watermark.GenerateKeyPair(watermark.SchemeRSA2048)
	require.NoError(t, err)

	docHash := sha256.Sum256([]byte("report.pdf"))
	p, err := watermark.NewPayload(docHash, "agency-2", time.Now(), "")
	require.NoError(t, err)

	signed, err := watermark.Sign(p, priv, watermark.SchemeRSA2048)
	require.NoError(t, err)

	marked, err := watermark.EmbedSigned(referenceImage(768, 768), signed)
	require.NoError(t, err)

	result, err := watermark.Verify(context.Background(), marked, pub)
	require.NoError(t, err)
	assert.Equal(t, watermark.StatusVerified, result.Status)
	assert.Equal(t, "agency-2", result.Issuer)
	assert.Empty(t, result.DocID)
}
