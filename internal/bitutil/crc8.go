// Package bitutil implements the low-level bit manipulation primitives the
// BHT wire protocol is built on: a non-standard CRC-8 and a per-byte bit
// reversal, both driven by 256-entry lookup tables.
package bitutil

// crc8Slow computes the BHT CRC-8 one bit at a time. It is kept around only
// to generate crc8Table; callers should use CRC8 instead.
func crc8Slow(b byte) byte {
	crc := b
	for i := 0; i < 8; i++ {
		if crc&1 != 0 {
			crc = (crc >> 1) ^ 0x8C
		} else {
			crc = crc >> 1
		}
	}
	return crc
}

var crc8Table = func() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = crc8Slow(byte(i))
	}
	return t
}()

// CRC8 computes the BHT-specific CRC-8 (reflected polynomial 0x8C, initial
// value 0) over payload using the precomputed lookup table.
func CRC8(payload []byte) byte {
	var accum byte
	for _, b := range payload {
		accum = crc8Table[accum^b]
	}
	return accum
}

// CRC8Slow computes the same checksum without the lookup table, bit by bit.
// It exists to verify CRC8 agrees with the bitwise definition.
func CRC8Slow(payload []byte) byte {
	var crc byte
	for _, b := range payload {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0x8C
			} else {
				crc = crc >> 1
			}
		}
	}
	return crc
}
