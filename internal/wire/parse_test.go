package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generalDataPayload() []byte {
	p := make([]byte, 53)
	p[0] = 42               // seq no
	p[1], p[2] = 0xE6, 0x07 // year 2022 LE
	p[3] = 6                // month
	p[4] = 15               // day
	// heart rate = 72 bpm at offset 9..11
	p[9], p[10] = 72, 0
	// respiration rate sentinel -> NaN at offset 11..13
	p[11], p[12] = 0xFF, 0xFF
	// skin temperature signed -0.1*10=... use 250 (25.0C) at 13..15
	p[13], p[14] = 250, 0
	return p
}

func TestParseGeneralDataDecodesFieldsAndSentinels(t *testing.T) {
	payload := generalDataPayload()
	rec, err := parseGeneralData(payload)
	require.NoError(t, err)

	assert.Equal(t, float64(72), rec.HeartRateBPM)
	assert.True(t, math.IsNaN(rec.RespirationRateBPM))
	assert.InDelta(t, 25.0, rec.SkinTemperatureC, 1e-9)
	assert.Equal(t, 2022, rec.Header().Stamp.Year())
	assert.Equal(t, 15, rec.Header().Stamp.Day())
}

func TestParseGeneralDataRejectsWrongLength(t *testing.T) {
	_, err := parseGeneralData(make([]byte, 52))
	assert.Error(t, err)
}

func TestParseThroughDispatchMatchesDirectParse(t *testing.T) {
	payload := generalDataPayload()
	msg := Message{MsgID: GeneralDataPacket, Payload: payload, Fin: ETX}
	rec, err := Parse(msg)
	require.NoError(t, err)
	gd, ok := rec.(GeneralData)
	require.True(t, ok)
	assert.Equal(t, float64(72), gd.HeartRateBPM)
}

func TestParseWaveformHonoursShortFinalChunk(t *testing.T) {
	// breathing: 32-byte payload = 9 header + 23 waveform bytes (not a
	// multiple of 5): final chunk is short and must be zero-padded, not
	// dropped or panic.
	payload := make([]byte, 32)
	rec, err := parseWaveform(payload, BreathingWaveformPacket, 32, 5, 1000.0/56, Shifted, 1)
	require.NoError(t, err)
	// all-zero raw bits -> every "shifted" sample reads as missing (NaN)
	assert.NotEmpty(t, rec.Samples)
	for _, s := range rec.Samples {
		assert.True(t, math.IsNaN(s))
	}
}

func TestParseAccelWaveformDeinterleavesXYZ(t *testing.T) {
	payload := make([]byte, 84)
	rec, err := parseAccelWaveform(payload, AccelerometerPacket, Shifted, 1.0, 50)
	require.NoError(t, err)
	assert.Equal(t, len(rec.X), len(rec.Y))
	assert.Equal(t, len(rec.Y), len(rec.Z))
	assert.NotEmpty(t, rec.X)
}

func TestParseWaveformScalesECGSamplesToMillivolts(t *testing.T) {
	payload := make([]byte, 88)
	// first 10-bit field raw=1 (only its top bit set pre-reversal) -> shifted
	// decode is 1-512 = -511 raw units, scaled to mV by the ECG 0.025 factor.
	payload[9] = 0x80
	rec, err := parseWaveform(payload, ECGWaveformPacket, 88, 5, 250, Shifted, 0.025)
	require.NoError(t, err)
	require.NotEmpty(t, rec.Samples)
	assert.InDelta(t, -511*0.025, rec.Samples[0], 1e-9)
}

func TestParseAccelWaveform100MgUsesSignedTwosComplement(t *testing.T) {
	payload := make([]byte, 84)
	// all-zero raw bits: Shifted would read as NaN, Signed reads as zero.
	rec, err := parseAccelWaveform(payload, Accelerometer100MgPacket, Signed, 0.1, 50)
	require.NoError(t, err)
	require.NotEmpty(t, rec.X)
	assert.Equal(t, float64(0), rec.X[0])
}

func TestParseRtoRReadsSignedIntervals(t *testing.T) {
	payload := make([]byte, 45)
	// one interval = -1 as a signed 16-bit LE value (0xFFFF)
	payload[9], payload[10] = 0xFF, 0xFF
	rec, err := parseRtoR(payload)
	require.NoError(t, err)
	require.NotEmpty(t, rec.IntervalsMs)
	assert.Equal(t, float64(-1), rec.IntervalsMs[0])
}

func TestParseEventSplitsCodeAndData(t *testing.T) {
	payload := []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0x40, 0x00, 0xAA, 0xBB}
	rec, err := parseEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0040), rec.EventCode)
	assert.Equal(t, "button press", rec.EventName)
	assert.Equal(t, []byte{0xAA, 0xBB}, rec.EventData)
}

func TestParseEventUnknownCodeFallsBackToHexLabel(t *testing.T) {
	payload := []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0xFF, 0x7F}
	rec, err := parseEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "unknown:0x7fff", rec.EventName)
}

func TestBitPackSymmetryGPSLayout(t *testing.T) {
	values := map[string]float64{
		"lat_degrees": 37, "lat_minutes": 45, "lat_decimal_minutes": 1234,
		"lat_dir": -1, "long_degrees": 122, "long_minutes": 30,
		"long_decimal_minutes": 5678, "long_dir": -1, "qual_indication": 1,
		"altitude": 100, "horz_dilution_of_precision": 5,
	}
	packed := packLayout(values, gpsPosLayout)
	unpacked := unpackLayout(packed, gpsPosLayout)
	for k, v := range values {
		assert.InDelta(t, v, unpacked[k], 1e-9, "field %s", k)
	}
}

func TestBitPackSymmetryAccelerometryLayout(t *testing.T) {
	values := map[string]float64{
		"impulse_load": 100000, "walk_step_count": 5000, "run_step_count": 200,
		"bound_count": 10, "jump_count": 3, "impact_count3g": 50,
		"impact_count7g": 2, "avg_rate_of_force_development": 1000,
		"avg_step_impulse": 500, "avg_step_period": 300,
		"last_jump_flight_time": 100, "peak_accel_phi": 90, "peak_accel_theta": -90,
	}
	packed := packLayout(values, accelerometryLayout)
	unpacked := unpackLayout(packed, accelerometryLayout)
	for k, v := range values {
		assert.InDelta(t, v, unpacked[k], 1e-9, "field %s", k)
	}
}

func TestSummaryDataV2VersionDispatch(t *testing.T) {
	payload := make([]byte, 71)
	payload[9] = 2
	rec, err := parseSummaryData(payload)
	require.NoError(t, err)
	_, ok := rec.(SummaryDataV2)
	assert.True(t, ok)
}

func TestSummaryDataV3VersionDispatch(t *testing.T) {
	payload := make([]byte, 71)
	payload[9] = 3
	rec, err := parseSummaryData(payload)
	require.NoError(t, err)
	_, ok := rec.(SummaryDataV3)
	assert.True(t, ok)
}

func TestSummaryDataUnsupportedVersionErrors(t *testing.T) {
	payload := make([]byte, 71)
	payload[9] = 9
	_, err := parseSummaryData(payload)
	assert.Error(t, err)
}
