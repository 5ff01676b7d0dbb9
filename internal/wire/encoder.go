package wire

import "github.com/rgoulter/bhtlink/internal/bitutil"

// Encode renders m as the bytes to place on the wire: STX, msgid, length,
// payload, CRC-8 of the payload, and the terminator (ETX unless the caller
// set something else).
func Encode(m Message) []byte {
	fin := m.Fin
	if fin == 0 {
		fin = ETX
	}
	out := make([]byte, 0, 4+len(m.Payload))
	out = append(out, byte(STX), byte(m.MsgID), byte(len(m.Payload)))
	out = append(out, m.Payload...)
	out = append(out, bitutil.CRC8(m.Payload), byte(fin))
	return out
}

// EncodeLifesign renders the keepalive frame the link engine sends once per
// lifesign interval: an empty-payload Lifesign message.
func EncodeLifesign() []byte {
	return Encode(NewMessage(Lifesign, nil))
}
