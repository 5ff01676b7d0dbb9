package wire

import (
	"math"

	"github.com/rgoulter/bhtlink/internal/bitutil"
)

// Signedness selects how a packed bit-field is interpreted once read.
type Signedness int

const (
	// Unsigned reads the raw bits as-is.
	Unsigned Signedness = iota
	// Signed sign-extends the raw bits as two's complement.
	Signed
	// Shifted centers the raw bits by subtracting 2^(width-1); a raw value
	// of exactly 0 decodes as "missing" (NaN). Used for waveform samples.
	Shifted
)

// bitReader reads successive little-endian bit-fields from a byte sequence
// whose individual bytes have already been bit-reversed, per the BHT
// bit-packing scheme: the least-significant bit of the first decoded
// value sits at bit 0 of the first byte, and successive fields consume
// successive bit positions.
type bitReader struct {
	data []byte
	pos  int // bit cursor
}

func newBitReader(reversed []byte) *bitReader {
	return &bitReader{data: reversed}
}

// readBits reads the next width bits (width <= 32) and returns them as an
// unsigned integer.
func (r *bitReader) readBits(width int) uint32 {
	var result uint32
	for i := 0; i < width; i++ {
		bitIdx := r.pos + i
		byteIdx := bitIdx / 8
		offset := uint(bitIdx % 8)
		if byteIdx < len(r.data) {
			bit := (r.data[byteIdx] >> offset) & 1
			result |= uint32(bit) << uint(i)
		}
	}
	r.pos += width
	return result
}

// readField reads a single field of the given width and signedness and
// returns its decoded value (NaN stands for "missing").
func (r *bitReader) readField(width int, kind Signedness) float64 {
	raw := r.readBits(width)
	switch kind {
	case Shifted:
		if raw == 0 {
			return math.NaN()
		}
		return float64(raw) - float64(uint32(1)<<uint(width-1))
	case Signed:
		if raw&(1<<uint(width-1)) != 0 {
			return float64(int64(raw) - int64(1)<<uint(width))
		}
		return float64(raw)
	default:
		return float64(raw)
	}
}

// unpackSequence decodes a chunk of bytes into valuesPerChunk fields of
// bitsPerVal bits each, honoring the value's signedness. The chunk is
// bit-reversed byte-wise before reading.
func unpackSequence(chunk []byte, valuesPerChunk, bitsPerVal int, kind Signedness) []float64 {
	reversed := bitutil.ReverseBytes(chunk)
	r := newBitReader(reversed)
	out := make([]float64, valuesPerChunk)
	for i := range out {
		out[i] = r.readField(bitsPerVal, kind)
	}
	return out
}

// field names a single packed field within a fixed-layout structure, in the
// order it appears in the bit stream.
type field struct {
	name  string
	width int
	kind  Signedness
}

// gpsPosLayout is the bit layout of the SummaryData V3 GPS position block
// (bytes 39..49 of the payload).
var gpsPosLayout = []field{
	{"lat_degrees", 7, Unsigned},
	{"lat_minutes", 6, Unsigned},
	{"lat_decimal_minutes", 14, Unsigned},
	{"lat_dir", 1, Signed},
	{"long_degrees", 8, Unsigned},
	{"long_minutes", 6, Unsigned},
	{"long_decimal_minutes", 14, Unsigned},
	{"long_dir", 1, Signed},
	{"qual_indication", 1, Unsigned},
	{"altitude", 15, Unsigned},
	{"horz_dilution_of_precision", 6, Unsigned},
}

// accelerometryLayout is the bit layout of the SummaryData V3 accelerometry
// block (bytes 51..71 of the payload).
var accelerometryLayout = []field{
	{"impulse_load", 20, Unsigned},
	{"walk_step_count", 18, Unsigned},
	{"run_step_count", 18, Unsigned},
	{"bound_count", 10, Unsigned},
	{"jump_count", 10, Unsigned},
	{"impact_count3g", 10, Unsigned},
	{"impact_count7g", 10, Unsigned},
	{"avg_rate_of_force_development", 12, Unsigned},
	{"avg_step_impulse", 10, Unsigned},
	{"avg_step_period", 10, Unsigned},
	{"last_jump_flight_time", 8, Unsigned},
	{"peak_accel_phi", 8, Unsigned},
	{"peak_accel_theta", 10, Signed},
}

// unpackLayout decodes a fixed field layout from raw (bit-reversed first)
// into a name->value map.
func unpackLayout(raw []byte, layout []field) map[string]float64 {
	reversed := bitutil.ReverseBytes(raw)
	r := newBitReader(reversed)
	out := make(map[string]float64, len(layout))
	for _, f := range layout {
		out[f.name] = r.readField(f.width, f.kind)
	}
	return out
}

// packLayout is the inverse of unpackLayout: it encodes values (by field
// name) back into a byte sequence of the given total bit width, matching
// the same per-byte bit reversal used on decode. It exists to exercise and
// verify bit-pack symmetry in tests.
func packLayout(values map[string]float64, layout []field) []byte {
	totalBits := 0
	for _, f := range layout {
		totalBits += f.width
	}
	totalBytes := (totalBits + 7) / 8
	out := make([]byte, totalBytes)

	pos := 0
	for _, f := range layout {
		raw := encodeField(values[f.name], f.width, f.kind)
		for i := 0; i < f.width; i++ {
			bitIdx := pos + i
			byteIdx := bitIdx / 8
			offset := uint(bitIdx % 8)
			bit := (raw >> uint(i)) & 1
			out[byteIdx] |= byte(bit) << offset
		}
		pos += f.width
	}
	return bitutil.ReverseBytes(out)
}

func encodeField(v float64, width int, kind Signedness) uint32 {
	switch kind {
	case Shifted:
		if math.IsNaN(v) {
			return 0
		}
		return uint32(v+float64(uint32(1)<<uint(width-1))) & ((1 << uint(width)) - 1)
	case Signed:
		iv := int64(v)
		return uint32(iv) & ((1 << uint(width)) - 1)
	default:
		return uint32(v) & ((1 << uint(width)) - 1)
	}
}
