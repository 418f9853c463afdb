package stego

import "math"

// Quantization index modulation over a coefficient-pair difference. The
// difference axis is divided into bins of the protocol step; even bins code
// a 0 bit, odd bins a 1 bit.

func binParity(b int64) bool {
	return ((b%2)+2)%2 == 1
}

// qimTarget returns the difference value nearest d whose bin parity encodes
// bit: the center of the current bin when its parity already matches,
// otherwise the nearer neighboring bin center.
func qimTarget(d float64, bit bool, step float64) float64 {
	b := int64(math.Floor(d / step))
	center := (float64(b) + 0.5) * step
	if binParity(b) == bit {
		return center
	}
	if d < center {
		return center - step
	}
	return center + step
}

// qimRead returns the bit coded by difference d and a confidence in [0, 1]:
// 1 at a bin center, 0 at a bin boundary.
func qimRead(d, step float64) (bool, float64) {
	b := int64(math.Floor(d / step))
	center := (float64(b) + 0.5) * step
	conf := 1 - 2*math.Abs(d-center)/step
	if conf < 0 {
		conf = 0
	}
	return binParity(b), conf
}
