package wire

import "math"

// parseNum reads a little-endian unsigned integer of 1..4 bytes from
// encoded. If invalid is non-nil and the raw value matches it, the result is
// math.NaN() ("missing"). If signed is true and the most significant byte's
// top bit is set, the value is reinterpreted as two's complement.
func parseNum(encoded []byte, signed bool, invalid *uint32) float64 {
	var num uint32
	for i := len(encoded) - 1; i >= 0; i-- {
		num = num*256 + uint32(encoded[i])
	}
	if invalid != nil && num == *invalid {
		return math.NaN()
	}
	if signed && encoded[len(encoded)-1] > 127 {
		return float64(int64(num) - int64(1)<<(8*uint(len(encoded))))
	}
	return float64(num)
}

func inval(v uint32) *uint32 { return &v }
