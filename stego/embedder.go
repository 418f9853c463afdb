package stego

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/provenmark/go-watermark-sdk/fec"
)

// ErrPayloadTooLarge is returned when the frame, after replication, exceeds
// the carrier's embedding capacity: not even one complete tile fits.
var ErrPayloadTooLarge = errors.New("payload too large for carrier")

// EmbedOpt configures embedding.
type EmbedOpt func(*embedOptions)

type embedOptions struct {
	step    float64
	workers int
}

func defaultEmbedOptions() embedOptions {
	return embedOptions{
		step:    DefaultStep,
		workers: runtime.GOMAXPROCS(0),
	}
}

// WithQuantizationStep overrides the index-modulation step size. Larger
// steps survive heavier recompression at the cost of visible distortion.
func WithQuantizationStep(step float64) EmbedOpt {
	return func(o *embedOptions) {
		if step > 0 {
			o.step = step
		}
	}
}

// WithWorkers bounds the number of parallel block workers.
func WithWorkers(n int) EmbedOpt {
	return func(o *embedOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// Embed writes the frame bitstream into the carrier's luminance blocks,
// mutating the carrier in place.
//
// The frame fills one tile of TileWidthBlocks columns in raster order, one
// coefficient pair per bit, and the tile is replicated at a fixed pitch
// across the whole plane so border cropping leaves complete copies. Blocks
// are independent, so tiles are processed in parallel; workers write
// disjoint pixel regions and need no locking.
func Embed(c *Carrier, frame *fec.Frame, opts ...EmbedOpt) error {
	if c == nil {
		return ErrEmptyImage
	}
	o := defaultEmbedOptions()
	for _, opt := range opts {
		opt(&o)
	}

	bits := frame.Bits()
	blocksX := c.width / BlockSize
	blocksY := c.height / BlockSize
	tileH := tileHeightBlocks(len(bits))
	if blocksX < TileWidthBlocks || blocksY < tileH {
		return ErrPayloadTooLarge
	}

	tilesX := blocksX / TileWidthBlocks
	tilesY := blocksY / tileH

	var g errgroup.Group
	g.SetLimit(o.workers)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			tx, ty := tx, ty
			g.Go(func() error {
				embedTile(c, bits, tx*TileWidthBlocks, ty*tileH, o.step)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to embed tiles: %w", err)
	}
	return nil
}

// embedTile writes the full bitstream into the tile whose top-left block is
// (originX, originY), in block units.
func embedTile(c *Carrier, bits []bool, originX, originY int, step float64) {
	var px, fr block
	blocks := (len(bits) + BitsPerBlock - 1) / BitsPerBlock

	for i := 0; i < blocks; i++ {
		bx := originX + i%TileWidthBlocks
		by := originY + i/TileWidthBlocks
		ox, oy := bx*BlockSize, by*BlockSize

		c.loadBlock(ox, oy, &px)
		forwardDCT(&px, &fr)

		for j := 0; j < BitsPerBlock; j++ {
			bitIdx := i*BitsPerBlock + j
			if bitIdx >= len(bits) {
				break
			}
			p := coeffPairs[j]
			a := p[0][0]*BlockSize + p[0][1]
			b := p[1][0]*BlockSize + p[1][1]
			d := fr[a] - fr[b]
			t := qimTarget(d, bits[bitIdx], step)
			delta := (t - d) / 2
			fr[a] += delta
			fr[b] -= delta
		}

		inverseDCT(&fr, &px)
		c.storeBlock(ox, oy, &px)
	}
}

// Capacity reports whether a frame of frameBits fits the given pixel
// dimensions at least once.
func Capacity(width, height, frameBits int) bool {
	blocksX := width / BlockSize
	blocksY := height / BlockSize
	return blocksX >= TileWidthBlocks && blocksY >= tileHeightBlocks(frameBits)
}
