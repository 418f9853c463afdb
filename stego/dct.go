package stego

import "math"

// Orthonormal 8x8 DCT-II and its inverse, computed separably with a
// precomputed basis table. Orthonormality keeps coefficient perturbations
// equal to pixel-domain energy, which the perceptual budget math relies on.

// dctBasis[x][u] = c(u) * cos((2x+1) * u * pi / 16)
var dctBasis [BlockSize][BlockSize]float64

func init() {
	for x := 0; x < BlockSize; x++ {
		for u := 0; u < BlockSize; u++ {
			c := math.Sqrt(2.0 / BlockSize)
			if u == 0 {
				c = math.Sqrt(1.0 / BlockSize)
			}
			dctBasis[x][u] = c * math.Cos(float64(2*x+1)*float64(u)*math.Pi/(2*BlockSize))
		}
	}
}

type block [BlockSize * BlockSize]float64

// forwardDCT transforms a pixel block into frequency coefficients, rows
// then columns.
func forwardDCT(src, dst *block) {
	var tmp block
	for y := 0; y < BlockSize; y++ {
		for u := 0; u < BlockSize; u++ {
			var s float64
			for x := 0; x < BlockSize; x++ {
				s += src[y*BlockSize+x] * dctBasis[x][u]
			}
			tmp[y*BlockSize+u] = s
		}
	}
	for u := 0; u < BlockSize; u++ {
		for v := 0; v < BlockSize; v++ {
			var s float64
			for y := 0; y < BlockSize; y++ {
				s += tmp[y*BlockSize+u] * dctBasis[y][v]
			}
			dst[v*BlockSize+u] = s
		}
	}
}

// inverseDCT transforms frequency coefficients back into pixels.
func inverseDCT(src, dst *block) {
	var tmp block
	for v := 0; v < BlockSize; v++ {
		for x := 0; x < BlockSize; x++ {
			var s float64
			for u := 0; u < BlockSize; u++ {
				s += src[v*BlockSize+u] * dctBasis[x][u]
			}
			tmp[v*BlockSize+x] = s
		}
	}
	for x := 0; x < BlockSize; x++ {
		for y := 0; y < BlockSize; y++ {
			var s float64
			for v := 0; v < BlockSize; v++ {
				s += tmp[v*BlockSize+x] * dctBasis[y][v]
			}
			dst[y*BlockSize+x] = s
		}
	}
}
