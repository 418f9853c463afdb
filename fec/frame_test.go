package fec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage(n int) []byte {
	rnd := rand.New(rand.NewSource(42))
	msg := make([]byte, n)
	rnd.Read(msg)
	return msg
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, n := range []int{1, 17, 140, 321, MaxMessageSize} {
		msg := testMessage(n)

		frame, err := Encode(msg)
		require.NoError(t, err)
		assert.Equal(t, n, frame.MessageLen())

		bits := frame.Bits()
		assert.Len(t, bits, BitLen(n))

		decoded, err := Decode(bits)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(msg, decoded))
	}
}

func TestEncodeRejectsBadSizes(t *testing.T) {
	_, err := Encode(nil)
	assert.Error(t, err)

	_, err = Encode(testMessage(MaxMessageSize + 1))
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

// corruptShards randomizes the bit region of n whole shards in the frame
// bitstream, simulating localized carrier damage.
func corruptShards(bits []bool, msgLen, n int) {
	rnd := rand.New(rand.NewSource(99))
	shardSize := shardSizeFor(msgLen)
	for s := 0; s < n; s++ {
		start := HeaderBits + s*(shardSize+crcSize)*8
		for i := 0; i < (shardSize+crcSize)*8; i++ {
			bits[start+i] = rnd.Intn(2) == 1
		}
	}
}

func TestDecodeCorrectsErasedShards(t *testing.T) {
	msg := testMessage(140)
	frame, err := Encode(msg)
	require.NoError(t, err)

	for bad := 1; bad <= ParityShards; bad++ {
		bits := frame.Bits()
		corruptShards(bits, len(msg), bad)

		decoded, err := Decode(bits)
		require.NoError(t, err, "expected recovery with %d corrupted shards", bad)
		assert.True(t, bytes.Equal(msg, decoded))
	}
}

func TestDecodeFailsClosedBeyondCorrectionRadius(t *testing.T) {
	msg := testMessage(140)
	frame, err := Encode(msg)
	require.NoError(t, err)

	bits := frame.Bits()
	corruptShards(bits, len(msg), ParityShards+1)

	_, err = Decode(bits)
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestDecodeRejectsSyncMismatch(t *testing.T) {
	msg := testMessage(64)
	frame, err := Encode(msg)
	require.NoError(t, err)

	bits := frame.Bits()
	// Flip well past the tolerated residual error count.
	for i := 0; i < SyncBits; i += 2 {
		bits[i] = !bits[i]
	}

	_, err = Decode(bits)
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestDecodeToleratesResidualSyncErrors(t *testing.T) {
	msg := testMessage(64)
	frame, err := Encode(msg)
	require.NoError(t, err)

	bits := frame.Bits()
	for i := 0; i < SyncBits/8; i++ {
		bits[i*7] = !bits[i*7]
	}

	decoded, err := Decode(bits)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(msg, decoded))
}

func TestDecodeRejectsImplausibleLength(t *testing.T) {
	msg := testMessage(64)
	frame, err := Encode(msg)
	require.NoError(t, err)

	bits := frame.Bits()
	// Force the length field to a value past MaxMessageSize.
	for i := SyncBits; i < SyncBits+LengthBits; i++ {
		bits[i] = true
	}

	_, err = Decode(bits)
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestDecodeRejectsRandomNoise(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	bits := make([]bool, BitLen(140))
	for i := range bits {
		bits[i] = rnd.Intn(2) == 1
	}

	_, err := Decode(bits)
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestBitHelpers(t *testing.T) {
	bits := AppendUintBits(nil, 0xA5, 8)
	assert.Equal(t, []bool{true, false, true, false, false, true, false, true}, bits)

	packed := PackBits(bits)
	assert.Equal(t, []byte{0xA5}, packed)

	assert.Equal(t, uint64(0xA5), UintAt(bits, 0, 8))

	roundTrip := AppendByteBits(nil, []byte{0xDE, 0xAD})
	assert.Equal(t, []byte{0xDE, 0xAD}, PackBits(roundTrip))
}
