package bitutil

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC8AgreesWithSlowDefinition(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 0; n <= 1024; n += 37 {
		payload := make([]byte, n)
		rng.Read(payload)
		assert.Equal(t, CRC8Slow(payload), CRC8(payload), "length %d", n)
	}
}

func TestCRC8KnownSample(t *testing.T) {
	assert.Equal(t, byte(0xF4), CRC8([]byte{0x01, 0x02, 0x03, 0x04}))
}

func TestCRC8EmptyPayload(t *testing.T) {
	assert.Equal(t, byte(0), CRC8(nil))
}

func TestReverseByteInvolution(t *testing.T) {
	for b := 0; b < 256; b++ {
		assert.Equal(t, byte(b), ReverseByte(ReverseByte(byte(b))))
	}
}

func TestReverseBytesPreservesLength(t *testing.T) {
	in := []byte{0x00, 0xFF, 0x0F, 0xA5}
	out := ReverseBytes(in)
	assert.Len(t, out, len(in))
	for i, b := range in {
		assert.Equal(t, reverseTable[b], out[i])
	}
}
