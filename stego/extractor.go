package stego

import (
	"context"
	"errors"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/provenmark/go-watermark-sdk/fec"
)

// ErrNoWatermark is returned when no frame can be located and decoded at
// any supported alignment. Sync search failure, uncorrectable FEC damage,
// and integrity-check mismatches all fold into it.
var ErrNoWatermark = errors.New("no watermark frame found")

// ExtractOpt configures extraction.
type ExtractOpt func(*extractOptions)

type extractOptions struct {
	step           float64
	workers        int
	maxCandidates  int
	phaseThreshold float64
	syncThreshold  float64
}

func defaultExtractOptions() extractOptions {
	return extractOptions{
		step:           DefaultStep,
		workers:        runtime.GOMAXPROCS(0),
		maxCandidates:  8,
		phaseThreshold: 0.57,
		syncThreshold:  0.5,
	}
}

// WithExtractStep overrides the quantization step assumed during readback.
// It must match the step the frame was embedded with.
func WithExtractStep(step float64) ExtractOpt {
	return func(o *extractOptions) {
		if step > 0 {
			o.step = step
		}
	}
}

// WithExtractWorkers bounds the number of parallel search workers.
func WithExtractWorkers(n int) ExtractOpt {
	return func(o *extractOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// errNotFound is the internal miss marker for one alignment hypothesis.
var errNotFound = errors.New("not found at this alignment")

// Extract locates, realigns, and decodes a frame from the carrier,
// returning the recovered message bytes. The carrier is never mutated and
// the call is safe for concurrent use.
//
// The search walks a fixed budget of alignment hypotheses: each supported
// rescale factor, center-out, then an 8x8 grid-phase search scored by
// quantization fit, then sync-marker correlation over candidate tile
// origins. Replicated tiles are combined by confidence-weighted vote before
// FEC decode. ctx cancellation aborts between hypotheses.
func Extract(ctx context.Context, c *Carrier, opts ...ExtractOpt) ([]byte, error) {
	if c == nil {
		return nil, ErrEmptyImage
	}
	o := defaultExtractOptions()
	for _, opt := range opts {
		opt(&o)
	}

	for _, scale := range scaleCandidates() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		work, err := c.rescaled(1.0 / scale)
		if err != nil {
			continue
		}
		msg, err := extractAligned(ctx, work, o)
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, errNotFound) {
			return nil, err
		}
	}
	return nil, ErrNoWatermark
}

// extractAligned runs the phase search, sync correlation, replica vote, and
// FEC decode on one rescale hypothesis.
func extractAligned(ctx context.Context, c *Carrier, o extractOptions) ([]byte, error) {
	px, py, score, err := searchPhase(ctx, c, o)
	if err != nil {
		return nil, err
	}
	if score < o.phaseThreshold {
		return nil, errNotFound
	}

	grid, err := computeSoftGrid(ctx, c, px, py, o)
	if err != nil {
		return nil, err
	}

	for _, cand := range syncCandidates(grid, o) {
		msgLen := voteLength(grid, cand.bx, cand.by)
		if msgLen <= 0 || msgLen > fec.MaxMessageSize {
			continue
		}
		frameBits := fec.BitLen(msgLen)
		tileH := tileHeightBlocks(frameBits)
		if cand.by+tileH > grid.blocksY {
			continue
		}
		bits := assembleBits(grid, cand.bx, cand.by, frameBits, tileH)
		msg, err := fec.Decode(bits)
		if err == nil {
			return msg, nil
		}
	}
	return nil, errNotFound
}

// searchPhase finds the block-grid phase (0..7 on each axis) whose sampled
// coefficient pairs sit closest to quantization bin centers. Hypotheses run
// in parallel with a final reduction to the best score.
func searchPhase(ctx context.Context, c *Carrier, o extractOptions) (int, int, float64, error) {
	var scores [BlockSize * BlockSize]float64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for py := 0; py < BlockSize; py++ {
		for px := 0; px < BlockSize; px++ {
			px, py := px, py
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				scores[py*BlockSize+px] = phaseScore(c, px, py, o.step)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return 0, 0, 0, err
	}

	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best % BlockSize, best / BlockSize, scores[best], nil
}

// phaseScore samples blocks across the grid at the given phase and returns
// the mean readback confidence. Watermarked grids score near 1 at the true
// phase; unmarked or misaligned grids hover around 0.5.
func phaseScore(c *Carrier, phaseX, phaseY int, step float64) float64 {
	blocksX := (c.width - phaseX) / BlockSize
	blocksY := (c.height - phaseY) / BlockSize
	if blocksX < 1 || blocksY < 1 {
		return 0
	}

	const sampleAxis = 16
	strideX := blocksX / sampleAxis
	if strideX < 1 {
		strideX = 1
	}
	strideY := blocksY / sampleAxis
	if strideY < 1 {
		strideY = 1
	}

	var px, fr block
	var sum float64
	var n int
	for by := 0; by < blocksY; by += strideY {
		for bx := 0; bx < blocksX; bx += strideX {
			c.loadBlock(phaseX+bx*BlockSize, phaseY+by*BlockSize, &px)
			forwardDCT(&px, &fr)
			for j := 0; j < BitsPerBlock; j++ {
				p := coeffPairs[j]
				d := fr[p[0][0]*BlockSize+p[0][1]] - fr[p[1][0]*BlockSize+p[1][1]]
				_, conf := qimRead(d, step)
				sum += conf
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// softGrid holds one signed confidence per (block, pair slot): positive for
// a 1 bit, negative for a 0 bit, magnitude in [0, 1].
type softGrid struct {
	blocksX int
	blocksY int
	vals    []float64
}

func (g *softGrid) at(bx, by, slot int) float64 {
	return g.vals[(by*g.blocksX+bx)*BitsPerBlock+slot]
}

// computeSoftGrid reads every block's coefficient pairs at the chosen
// phase. Block rows are independent and run in parallel; workers write
// disjoint slots of the value slice.
func computeSoftGrid(ctx context.Context, c *Carrier, phaseX, phaseY int, o extractOptions) (*softGrid, error) {
	blocksX := (c.width - phaseX) / BlockSize
	blocksY := (c.height - phaseY) / BlockSize
	if blocksX < 1 || blocksY < 1 {
		return nil, errNotFound
	}

	grid := &softGrid{
		blocksX: blocksX,
		blocksY: blocksY,
		vals:    make([]float64, blocksX*blocksY*BitsPerBlock),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for by := 0; by < blocksY; by++ {
		by := by
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var px, fr block
			for bx := 0; bx < blocksX; bx++ {
				c.loadBlock(phaseX+bx*BlockSize, phaseY+by*BlockSize, &px)
				forwardDCT(&px, &fr)
				for j := 0; j < BitsPerBlock; j++ {
					p := coeffPairs[j]
					d := fr[p[0][0]*BlockSize+p[0][1]] - fr[p[1][0]*BlockSize+p[1][1]]
					bit, conf := qimRead(d, o.step)
					if !bit {
						conf = -conf
					}
					grid.vals[(by*blocksX+bx)*BitsPerBlock+j] = conf
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return grid, nil
}

type syncCandidate struct {
	bx, by int
	corr   float64
}

// syncCandidates correlates every feasible tile origin against the public
// sync marker and returns the strongest peaks above threshold, best first.
func syncCandidates(grid *softGrid, o extractOptions) []syncCandidate {
	marker := fec.SyncMarkerBits()

	var cands []syncCandidate
	for by := 0; by < grid.blocksY; by++ {
		for bx := 0; bx+TileWidthBlocks <= grid.blocksX; bx++ {
			var dot, mag float64
			for k, want := range marker {
				v := grid.at(bx+k/BitsPerBlock, by, k%BitsPerBlock)
				if want {
					dot += v
				} else {
					dot -= v
				}
				mag += math.Abs(v)
			}
			corr := dot / (mag + 1e-9)
			if corr >= o.syncThreshold {
				cands = append(cands, syncCandidate{bx: bx, by: by, corr: corr})
			}
		}
	}

	sort.Slice(cands, func(i, j int) bool { return cands[i].corr > cands[j].corr })
	if len(cands) > o.maxCandidates {
		cands = cands[:o.maxCandidates]
	}
	return cands
}

// voteLength recovers the frame length field by majority vote across all
// horizontally replicated tile headers; the horizontal pitch is a protocol
// constant, so replicas are known before the length itself is.
func voteLength(grid *softGrid, bx, by int) int {
	syncBlocks := fec.SyncBits / BitsPerBlock
	var acc [fec.LengthBits]float64

	for rx := bx % TileWidthBlocks; rx+TileWidthBlocks <= grid.blocksX; rx += TileWidthBlocks {
		for k := 0; k < fec.LengthBits; k++ {
			bit := fec.SyncBits + k
			acc[k] += grid.at(rx+syncBlocks+k/BitsPerBlock, by, bit%BitsPerBlock)
		}
	}

	length := 0
	for k := 0; k < fec.LengthBits; k++ {
		length <<= 1
		if acc[k] > 0 {
			length |= 1
		}
	}
	return length
}

// assembleBits reads the frame bitstream from every complete replica tile
// congruent to the found origin and combines them by weighted vote.
func assembleBits(grid *softGrid, bx, by, frameBits, tileH int) []bool {
	acc := make([]float64, frameBits)

	for ry := by % tileH; ry+tileH <= grid.blocksY; ry += tileH {
		for rx := bx % TileWidthBlocks; rx+TileWidthBlocks <= grid.blocksX; rx += TileWidthBlocks {
			for k := 0; k < frameBits; k++ {
				i := k / BitsPerBlock
				acc[k] += grid.at(rx+i%TileWidthBlocks, ry+i/TileWidthBlocks, k%BitsPerBlock)
			}
		}
	}

	bits := make([]bool, frameBits)
	for k, v := range acc {
		bits[k] = v > 0
	}
	return bits
}
