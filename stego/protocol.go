// Package stego embeds and extracts frame bitstreams in the frequency
// domain of an image's luminance plane.
//
// All embedding locations and parameters below are public protocol
// constants, fixed per version. Extraction must work from the public key
// alone, so nothing in this package is secret; only the signing key held by
// the sig package's callers is.
package stego

// ProtocolVersion tags the constant set below. Embedder and extractor stay
// in lockstep by sharing it; there is no mutable protocol configuration.
const ProtocolVersion = 1

const (
	// BlockSize is the pixel width of a transform block.
	BlockSize = 8

	// BitsPerBlock is the number of coefficient pairs modulated per block.
	BitsPerBlock = 4

	// TileWidthBlocks is the fixed width of a frame tile in blocks. Tile
	// height follows from the frame length; tiles repeat at this pitch so
	// the extractor has a periodic alignment reference.
	TileWidthBlocks = 32

	// DefaultStep is the default quantization step for index modulation,
	// the primary invisibility/robustness trade-off knob.
	DefaultStep = 20.0
)

// Supported rescale range for geometric realignment.
const (
	MinScale  = 0.75
	MaxScale  = 1.25
	ScaleStep = 0.05
)

// coeffPairs lists the mid-frequency coefficient pairs modulated per block,
// as (row, col) frequency indices. Low frequencies are perceptually
// sensitive and high frequencies do not survive quantization; these pairs
// sit in the band that lossy recompression preserves. Pair members have
// near-equal quantization treatment in standard JPEG tables so compression
// shifts their difference the least.
var coeffPairs = [BitsPerBlock][2][2]int{
	{{1, 2}, {2, 1}},
	{{0, 2}, {2, 0}},
	{{1, 3}, {3, 1}},
	{{0, 3}, {3, 0}},
}

// tileHeightBlocks returns the tile height for a frame of the given bit
// length: frame bits fill tile blocks in raster order, BitsPerBlock each.
func tileHeightBlocks(frameBits int) int {
	blocks := (frameBits + BitsPerBlock - 1) / BitsPerBlock
	return (blocks + TileWidthBlocks - 1) / TileWidthBlocks
}

// scaleCandidates returns the rescale hypotheses for alignment search,
// ordered center-out so the untransformed case is tried first.
func scaleCandidates() []float64 {
	scales := []float64{1.0}
	for d := ScaleStep; d <= MaxScale-1.0+1e-9; d += ScaleStep {
		scales = append(scales, 1.0-d, 1.0+d)
	}
	return scales
}
