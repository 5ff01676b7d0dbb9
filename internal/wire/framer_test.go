package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLifesignExactBytes(t *testing.T) {
	assert.Equal(t, []byte{0x02, 0x23, 0x00, 0x00, 0x03}, EncodeLifesign())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := NewMessage(GetSerialNumber, []byte("ABC123"))
	encoded := Encode(msg)

	f := NewFramer(bytes.NewReader(encoded), nil)
	got, err := f.Next()
	require.NoError(t, err)
	assert.Equal(t, msg.MsgID, got.MsgID)
	assert.Equal(t, msg.Payload, got.Payload)
	assert.Equal(t, ETX, got.Fin)
}

func TestFramerResyncsAfterGarbagePrefix(t *testing.T) {
	garbage := []byte{0xFF, 0x00, 0x99}
	encoded := Encode(NewMessage(GetSerialNumber, []byte("X")))
	stream := append(append([]byte{}, garbage...), encoded...)

	f := NewFramer(bytes.NewReader(stream), nil)
	got, err := f.Next()
	require.NoError(t, err)
	assert.Equal(t, GetSerialNumber, got.MsgID)
	assert.Equal(t, []byte("X"), got.Payload)
}

func TestFramerSkipsOverlongPayloadAndRecovers(t *testing.T) {
	bad := []byte{byte(STX), byte(GetSerialNumber), 200, 0xAA, 0xBB, byte(ETX)}
	good := Encode(NewMessage(GetSerialNumber, []byte("ok")))
	stream := append(append([]byte{}, bad...), good...)

	f := NewFramer(bytes.NewReader(stream), nil)
	_, err := f.Next()
	assert.ErrorIs(t, err, ErrBadFrame)

	got, err := f.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), got.Payload)
}

func TestFramerDropsFrameWithBadCRC(t *testing.T) {
	frame := []byte{byte(STX), byte(GetSerialNumber), 1, 'Z', 0x00 /* wrong crc */, byte(ETX)}
	good := Encode(NewMessage(GetSerialNumber, []byte("ok")))
	stream := append(append([]byte{}, frame...), good...)

	f := NewFramer(bytes.NewReader(stream), nil)
	_, err := f.Next()
	assert.ErrorIs(t, err, ErrBadFrame)

	got, err := f.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), got.Payload)
}

func TestFramerDropsFrameWithBadTerminator(t *testing.T) {
	msg := NewMessage(GetSerialNumber, []byte("Z"))
	encoded := Encode(msg)
	encoded[len(encoded)-1] = 0x7F // neither ETX, ACK, nor NAK

	f := NewFramer(bytes.NewReader(encoded), nil)
	_, err := f.Next()
	assert.ErrorIs(t, err, ErrBadFrame)
}

func TestFramerPropagatesTransportErrorAsFatal(t *testing.T) {
	f := NewFramer(bytes.NewReader(nil), nil)
	_, err := f.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFramerMessagesLoopStopsOnTransportError(t *testing.T) {
	encoded := Encode(NewMessage(GetSerialNumber, []byte("x")))
	f := NewFramer(bytes.NewReader(encoded), nil)

	var received []Message
	err := f.Messages(func(m Message) { received = append(received, m) })
	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, received, 1)
	assert.Equal(t, []byte("x"), received[0].Payload)
}
