package fec

// Bit helpers shared by the frame codec and the transform-domain reader.
// Bits are ordered MSB first throughout the protocol.

// AppendUintBits appends the low n bits of v, most significant first.
func AppendUintBits(bits []bool, v uint64, n int) []bool {
	for i := n - 1; i >= 0; i-- {
		bits = append(bits, v>>uint(i)&1 == 1)
	}
	return bits
}

// AppendByteBits appends every byte of b, most significant bit first.
func AppendByteBits(bits []bool, b []byte) []bool {
	for _, v := range b {
		bits = AppendUintBits(bits, uint64(v), 8)
	}
	return bits
}

// PackBits packs bits into bytes, MSB first. A trailing partial byte is
// zero-padded.
func PackBits(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

// UintAt reads n bits starting at off, most significant first.
func UintAt(bits []bool, off, n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v <<= 1
		if bits[off+i] {
			v |= 1
		}
	}
	return v
}
