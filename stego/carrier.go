package stego

import (
	"errors"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// ErrEmptyImage is returned when a carrier has no pixels.
var ErrEmptyImage = errors.New("carrier image is empty")

// Carrier holds an image as float luminance/chrominance planes. The
// embedder mutates the luminance plane in place; extraction is read-only.
type Carrier struct {
	width  int
	height int
	y      []float64
	cb     []float64
	cr     []float64
}

// NewCarrier decodes img into YCbCr planes (JFIF conversion).
func NewCarrier(img image.Image) (*Carrier, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, ErrEmptyImage
	}

	c := &Carrier{
		width:  w,
		height: h,
		y:      make([]float64, w*h),
		cb:     make([]float64, w*h),
		cr:     make([]float64, w*h),
	}
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			r16, g16, b16, _ := img.At(bounds.Min.X+px, bounds.Min.Y+py).RGBA()
			r := float64(r16 >> 8)
			g := float64(g16 >> 8)
			b := float64(b16 >> 8)
			i := py*w + px
			c.y[i] = 0.299*r + 0.587*g + 0.114*b
			c.cb[i] = 128 - 0.168736*r - 0.331264*g + 0.5*b
			c.cr[i] = 128 + 0.5*r - 0.418688*g - 0.081312*b
		}
	}
	return c, nil
}

// Width returns the carrier width in pixels.
func (c *Carrier) Width() int { return c.width }

// Height returns the carrier height in pixels.
func (c *Carrier) Height() int { return c.height }

// Image renders the planes back to an NRGBA image.
func (c *Carrier) Image() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, c.width, c.height))
	for py := 0; py < c.height; py++ {
		for px := 0; px < c.width; px++ {
			i := py*c.width + px
			y := c.y[i]
			cb := c.cb[i] - 128
			cr := c.cr[i] - 128
			o := out.PixOffset(px, py)
			out.Pix[o+0] = clampByte(y + 1.402*cr)
			out.Pix[o+1] = clampByte(y - 0.344136*cb - 0.714136*cr)
			out.Pix[o+2] = clampByte(y + 1.772*cb)
			out.Pix[o+3] = 0xFF
		}
	}
	return out
}

// rescaled returns a copy of the carrier resampled by factor, used to test
// alignment hypotheses. The receiver is left untouched.
func (c *Carrier) rescaled(factor float64) (*Carrier, error) {
	if factor == 1.0 {
		return c, nil
	}
	w := int(math.Round(float64(c.width) * factor))
	h := int(math.Round(float64(c.height) * factor))
	if w < BlockSize || h < BlockSize {
		return nil, ErrEmptyImage
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), c.Image(), image.Rect(0, 0, c.width, c.height), draw.Over, nil)
	return NewCarrier(dst)
}

// loadBlock copies the 8x8 luminance block at pixel origin (ox, oy).
func (c *Carrier) loadBlock(ox, oy int, dst *block) {
	for y := 0; y < BlockSize; y++ {
		row := (oy+y)*c.width + ox
		copy(dst[y*BlockSize:(y+1)*BlockSize], c.y[row:row+BlockSize])
	}
}

// storeBlock writes a luminance block back at pixel origin (ox, oy),
// clamping to the displayable range.
func (c *Carrier) storeBlock(ox, oy int, src *block) {
	for y := 0; y < BlockSize; y++ {
		row := (oy+y)*c.width + ox
		for x := 0; x < BlockSize; x++ {
			v := src[y*BlockSize+x]
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			c.y[row+x] = v
		}
	}
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
