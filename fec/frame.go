// Package fec wraps a signed payload in a self-describing, redundantly coded
// frame. A frame carries a fixed public synchronization marker, a length
// field, Reed-Solomon coded payload shards, and CRC integrity checks so the
// extractor can cheaply reject corrupted decodes before attempting the
// costlier signature verification.
package fec

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/klauspost/reedsolomon"
)

// SyncMarker is the public 64-bit synchronization pattern, fixed per
// protocol version. It provides a grid-alignment reference, not secrecy.
const SyncMarker uint64 = 0xB7E151628AED2A6B

// Frame geometry constants. The shard split trades redundancy against
// embedding capacity: up to ParityShards corrupted shards per frame are
// recoverable once per-shard CRCs have marked them as erasures.
const (
	SyncBits     = 64
	LengthBits   = 16
	HeaderBits   = SyncBits + LengthBits
	DataShards   = 12
	ParityShards = 8
	TotalShards  = DataShards + ParityShards

	crcSize = 4

	// MaxMessageSize bounds the message carried by a single frame.
	MaxMessageSize = 2048
)

var (
	// ErrNoFrame is returned when no valid frame can be recovered. Sync
	// mismatch, implausible length, uncorrectable shard loss, and CRC
	// failure all fold into this error; the codec fails closed rather
	// than returning a corrupted payload.
	ErrNoFrame = errors.New("no valid frame")

	// ErrMessageTooLarge is returned at encode time for oversized messages.
	ErrMessageTooLarge = errors.New("message exceeds maximum frame size")
)

// Frame is an encoded forward-error-corrected message ready for embedding.
type Frame struct {
	msgLen int
	body   []byte
}

// Encode wraps msg in a frame: the message plus a CRC-32 is padded to the
// data-shard region, Reed-Solomon parity is computed, and each shard gets
// its own CRC-32 trailer.
func Encode(msg []byte) (*Frame, error) {
	if len(msg) == 0 {
		return nil, errors.New("message is empty")
	}
	if len(msg) > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}

	shardSize := shardSizeFor(len(msg))
	data := make([]byte, DataShards*shardSize)
	n := copy(data, msg)
	sum := crc32.ChecksumIEEE(msg)
	putUint32(data[n:], sum)

	shards := make([][]byte, TotalShards)
	for i := 0; i < DataShards; i++ {
		shards[i] = data[i*shardSize : (i+1)*shardSize]
	}
	for i := DataShards; i < TotalShards; i++ {
		shards[i] = make([]byte, shardSize)
	}

	enc, err := reedsolomon.New(DataShards, ParityShards)
	if err != nil {
		return nil, fmt.Errorf("failed to build erasure coder: %w", err)
	}
	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("failed to encode parity shards: %w", err)
	}

	var body bytes.Buffer
	for _, shard := range shards {
		body.Write(shard)
		var trailer [crcSize]byte
		putUint32(trailer[:], crc32.ChecksumIEEE(shard))
		body.Write(trailer[:])
	}

	return &Frame{msgLen: len(msg), body: body.Bytes()}, nil
}

// MessageLen returns the length of the framed message in bytes.
func (f *Frame) MessageLen() int { return f.msgLen }

// Bits returns the full frame bitstream: sync marker, length field, body.
func (f *Frame) Bits() []bool {
	bits := make([]bool, 0, BitLen(f.msgLen))
	bits = AppendUintBits(bits, SyncMarker, SyncBits)
	bits = AppendUintBits(bits, uint64(f.msgLen), LengthBits)
	bits = AppendByteBits(bits, f.body)
	return bits
}

// BitLen returns the total frame bit length for a message of msgLen bytes.
// The embedder sizes tiles with it; the extractor derives tile geometry from
// the recovered length field.
func BitLen(msgLen int) int {
	return HeaderBits + 8*TotalShards*(shardSizeFor(msgLen)+crcSize)
}

// SyncMarkerBits returns the marker as a bit slice, MSB first.
func SyncMarkerBits() []bool {
	return AppendUintBits(make([]bool, 0, SyncBits), SyncMarker, SyncBits)
}

func shardSizeFor(msgLen int) int {
	return (msgLen + crcSize + DataShards - 1) / DataShards
}

// Decode recovers the message from a full frame bitstream. The sync marker
// is allowed a small number of residual bit errors since the caller has
// already aligned on it; everything else must decode cleanly.
func Decode(bits []bool) ([]byte, error) {
	if len(bits) < HeaderBits {
		return nil, ErrNoFrame
	}

	mismatches := 0
	for i, want := range SyncMarkerBits() {
		if bits[i] != want {
			mismatches++
		}
	}
	if mismatches > SyncBits/8 {
		return nil, ErrNoFrame
	}

	msgLen := int(UintAt(bits, SyncBits, LengthBits))
	if msgLen == 0 || msgLen > MaxMessageSize {
		return nil, ErrNoFrame
	}
	if len(bits) < BitLen(msgLen) {
		return nil, ErrNoFrame
	}

	body := PackBits(bits[HeaderBits:BitLen(msgLen)])
	return DecodeBody(msgLen, body)
}

// DecodeBody recovers the message from the shard region of a frame whose
// length field has already been read. Shards failing their CRC are marked
// as erasures and reconstructed; beyond the correction radius, or on a
// failing message CRC, it returns ErrNoFrame.
func DecodeBody(msgLen int, body []byte) ([]byte, error) {
	if msgLen <= 0 || msgLen > MaxMessageSize {
		return nil, ErrNoFrame
	}
	shardSize := shardSizeFor(msgLen)
	if len(body) != TotalShards*(shardSize+crcSize) {
		return nil, ErrNoFrame
	}

	shards := make([][]byte, TotalShards)
	bad := 0
	for i := 0; i < TotalShards; i++ {
		off := i * (shardSize + crcSize)
		shard := body[off : off+shardSize]
		sum := getUint32(body[off+shardSize:])
		if crc32.ChecksumIEEE(shard) == sum {
			shards[i] = shard
		} else {
			bad++
		}
	}
	if bad > ParityShards {
		return nil, ErrNoFrame
	}

	if bad > 0 {
		enc, err := reedsolomon.New(DataShards, ParityShards)
		if err != nil {
			return nil, fmt.Errorf("failed to build erasure coder: %w", err)
		}
		if err := enc.Reconstruct(shards); err != nil {
			return nil, ErrNoFrame
		}
	}

	data := make([]byte, 0, DataShards*shardSize)
	for i := 0; i < DataShards; i++ {
		data = append(data, shards[i]...)
	}

	msg := data[:msgLen]
	if crc32.ChecksumIEEE(msg) != getUint32(data[msgLen:]) {
		return nil, ErrNoFrame
	}

	out := make([]byte, msgLen)
	copy(out, msg)
	return out, nil
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
