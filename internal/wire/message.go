package wire

import (
	"fmt"
	"time"
)

// Message is a single frame exchanged with the device: a message id, its raw
// payload, and the terminator marker it arrived (or will be sent) with.
type Message struct {
	MsgID   MessageID
	Payload []byte
	Fin     Marker
}

// NewMessage builds an outbound message with the default ETX terminator.
func NewMessage(id MessageID, payload []byte) Message {
	return Message{MsgID: id, Payload: payload, Fin: ETX}
}

// PayloadString decodes the payload as a UTF-8 string, trimming nothing —
// callers (e.g. serial-number queries) trim whitespace themselves.
func (m Message) PayloadString() string {
	return string(m.Payload)
}

// EnsureFinOK returns a protocol error if the message was not terminated by
// ACK or ETX (i.e. the device NAK'd the command).
func (m Message) EnsureFinOK() error {
	if m.Fin != ACK && m.Fin != ETX {
		return fmt.Errorf("wire: %s was NAK'd by device", m.MsgID)
	}
	return nil
}

func assertLength(name string, payload []byte, expected int, atLeast bool) error {
	if (atLeast && len(payload) < expected) || (!atLeast && len(payload) != expected) {
		rel := "exactly"
		if atLeast {
			rel = "at least"
		}
		return fmt.Errorf("wire: %s requires %s %d bytes of payload, got %d", name, rel, expected, len(payload))
	}
	return nil
}

// Header carries the 9-byte sequence number + timestamp prefix common to
// every periodic record.
type Header struct {
	SeqNo uint8
	Stamp time.Time
}

// parseHeader decodes the 9-byte header found at the start of every
// periodic message payload: 1-byte sequence number, 2-byte LE year, 1-byte
// month, 1-byte day, 4-byte LE milliseconds-of-day.
func parseHeader(payload []byte) Header {
	seqNo := payload[0]
	year := uint16(payload[1]) | uint16(payload[2])<<8
	month := payload[3]
	day := payload[4]
	msOfDay := uint32(payload[5]) | uint32(payload[6])<<8 | uint32(payload[7])<<16 | uint32(payload[8])<<24

	midnight := time.Date(int(year), time.Month(month), int(day), 0, 0, 0, 0, time.UTC)
	stamp := midnight.Add(time.Duration(msOfDay) * time.Millisecond)
	return Header{SeqNo: seqNo, Stamp: stamp}
}

// Record is implemented by every decoded, strongly-typed periodic message.
// Fields gives downstream consumers a generic key->value view without
// needing to know the concrete type, since every message kind has its own
// field set.
type Record interface {
	ID() MessageID
	Header() Header
	Fields() map[string]interface{}
}

type baseRecord struct {
	msgID  MessageID
	header Header
}

func (b baseRecord) ID() MessageID  { return b.msgID }
func (b baseRecord) Header() Header { return b.header }

// GeneralData is the decoded GeneralDataPacket (53-byte payload).
type GeneralData struct {
	baseRecord

	HeartRateBPM             float64
	RespirationRateBPM       float64
	SkinTemperatureC         float64
	PostureDeg               float64
	VMUActivity              float64
	PeakAccelerationG        float64
	BatteryVoltageV          float64
	BreathingWaveAmplitude   float64
	ECGAmplitudeV            float64
	ECGNoiseV                float64
	VerticalAccelMinG        float64
	VerticalAccelPeakG       float64
	LateralAccelMinG         float64
	LateralAccelPeakG        float64
	SagittalAccelMinG        float64
	SagittalAccelPeakG       float64
	SystemChannel            float64
	GSRnS                    float64
	ROG                      float64
	Alarm                    float64
	PhysioMonitorWorn        bool
	UIButtonPressed          bool
	HeartRateIsLowQuality    bool
	ExternalSensorsConnected bool
	BatteryPercent           int
}

func (g GeneralData) Fields() map[string]interface{} {
	return map[string]interface{}{
		"heart_rate": g.HeartRateBPM, "respiration_rate": g.RespirationRateBPM,
		"skin_temperature": g.SkinTemperatureC, "posture": g.PostureDeg,
		"vmu_activity": g.VMUActivity, "peak_acceleration": g.PeakAccelerationG,
		"battery_voltage": g.BatteryVoltageV, "breathing_wave_amplitude": g.BreathingWaveAmplitude,
		"ecg_amplitude": g.ECGAmplitudeV, "ecg_noise": g.ECGNoiseV,
		"vertical_accel_min": g.VerticalAccelMinG, "vertical_accel_peak": g.VerticalAccelPeakG,
		"lateral_accel_min": g.LateralAccelMinG, "lateral_accel_peak": g.LateralAccelPeakG,
		"sagittal_accel_min": g.SagittalAccelMinG, "sagittal_accel_peak": g.SagittalAccelPeakG,
		"system_channel": g.SystemChannel, "gsr": g.GSRnS, "rog": g.ROG, "alarm": g.Alarm,
		"physio_monitor_worn": g.PhysioMonitorWorn, "ui_button_pressed": g.UIButtonPressed,
		"heart_rate_is_low_quality":  g.HeartRateIsLowQuality,
		"external_sensors_connected": g.ExternalSensorsConnected,
		"battery_percent":            g.BatteryPercent,
	}
}

// statusInfo holds the bits common to SummaryData V2 and V3's status word.
type statusInfo struct {
	DeviceWornConfidence        float64
	ButtonPressed               bool
	NotFittedToGarment          bool
	HeartRateUnreliable         bool
	RespirationRateUnreliable   bool
	SkinTemperatureUnreliable   bool
	PostureUnreliable           bool
	ActivityUnreliable          bool
	HRVUnreliable               bool
	EstimatedCoreTempUnreliable bool
	USBPowerConnected           bool
	RestingStateDetected        bool
	ExternalSensorsConnected    bool
}

func decodeStatusInfo(raw uint32) statusInfo {
	return statusInfo{
		DeviceWornConfidence:        1 - float64(raw&3)/3,
		ButtonPressed:               raw&(1<<2) > 0,
		NotFittedToGarment:          raw&(1<<3) > 0,
		HeartRateUnreliable:         raw&(1<<4) > 0,
		RespirationRateUnreliable:   raw&(1<<5) > 0,
		SkinTemperatureUnreliable:   raw&(1<<6) > 0,
		PostureUnreliable:           raw&(1<<7) > 0,
		ActivityUnreliable:          raw&(1<<8) > 0,
		HRVUnreliable:               raw&(1<<9) > 0,
		EstimatedCoreTempUnreliable: raw&(1<<10) > 0,
		USBPowerConnected:           raw&(1<<11) > 0,
		RestingStateDetected:        raw&(1<<14) > 0,
		ExternalSensorsConnected:    raw&(1<<15) > 0,
	}
}

// SummaryDataV2 is the decoded SummaryDataPacket, version byte == 2.
type SummaryDataV2 struct {
	baseRecord
	statusInfo

	HeartRateBPM            float64
	RespirationRateBPM      float64
	SkinTemperatureC        float64
	PostureDeg              float64
	ActivityVMU             float64
	PeakAccelerationG       float64
	BatteryVoltageV         float64
	BatteryPercent          float64
	BreathingWaveAmplitude  float64
	BreathingWaveNoise      float64
	BreathingRateConfidence float64
	ECGAmplitudeV           float64
	ECGNoiseV               float64
	HeartRateConfidence     float64
	HeartRateVariability    float64
	SystemConfidence        float64
	GSRnS                   float64
	ROG                     float64
	VerticalAccelMinG       float64
	VerticalAccelPeakG      float64
	LateralAccelMinG        float64
	LateralAccelPeakG       float64
	SagittalAccelMinG       float64
	SagittalAccelPeakG      float64
	DeviceInternalTempC     float64
	LinkQualityPercent      float64
	RSSIdBm                 float64
	TxPowerdBm              float64
	EstimatedCoreTempC      float64
	AuxADCChan1             float64
	AuxADCChan2             float64
	AuxADCChan3             float64

	RespRateLow             float64
	RespRateHigh            float64
	BrAmplitudeLow          float64
	BrAmplitudeHigh         float64
	BrAmplitudeVarianceHigh float64
	BrSignalEvalState       float64
}

func (s SummaryDataV2) Fields() map[string]interface{} {
	return map[string]interface{}{
		"heart_rate": s.HeartRateBPM, "respiration_rate": s.RespirationRateBPM,
		"skin_temperature": s.SkinTemperatureC, "posture": s.PostureDeg,
		"activity": s.ActivityVMU, "peak_acceleration": s.PeakAccelerationG,
		"battery_voltage": s.BatteryVoltageV, "battery_percent": s.BatteryPercent,
		"breathing_wave_amplitude":  s.BreathingWaveAmplitude,
		"breathing_wave_noise":      s.BreathingWaveNoise,
		"breathing_rate_confidence": s.BreathingRateConfidence,
		"ecg_amplitude":             s.ECGAmplitudeV, "ecg_noise": s.ECGNoiseV,
		"heart_rate_confidence":  s.HeartRateConfidence,
		"heart_rate_variability": s.HeartRateVariability,
		"system_confidence":      s.SystemConfidence, "gsr": s.GSRnS, "rog": s.ROG,
		"vertical_accel_min": s.VerticalAccelMinG, "vertical_accel_peak": s.VerticalAccelPeakG,
		"lateral_accel_min": s.LateralAccelMinG, "lateral_accel_peak": s.LateralAccelPeakG,
		"sagittal_accel_min": s.SagittalAccelMinG, "sagittal_accel_peak": s.SagittalAccelPeakG,
		"device_internal_temp": s.DeviceInternalTempC, "link_quality": s.LinkQualityPercent,
		"rssi": s.RSSIdBm, "tx_power": s.TxPowerdBm,
		"estimated_core_temperature": s.EstimatedCoreTempC,
		"aux_adc_chan1":              s.AuxADCChan1, "aux_adc_chan2": s.AuxADCChan2, "aux_adc_chan3": s.AuxADCChan3,
		"resp_rate_low": s.RespRateLow, "resp_rate_high": s.RespRateHigh,
		"br_amplitude_low": s.BrAmplitudeLow, "br_amplitude_high": s.BrAmplitudeHigh,
		"br_amplitude_variance_high": s.BrAmplitudeVarianceHigh,
		"br_signal_eval_state":       s.BrSignalEvalState,
		"device_worn_confidence":     s.DeviceWornConfidence, "button_pressed": s.ButtonPressed,
		"not_fitted_to_garment": s.NotFittedToGarment,
	}
}

// SummaryDataV3 is the decoded SummaryDataPacket, version byte == 3. It adds
// a bit-packed GPS position block and a bit-packed accelerometry block.
type SummaryDataV3 struct {
	baseRecord
	statusInfo

	HeartRateBPM           float64
	RespirationRateBPM     float64
	PostureDeg             float64
	ActivityVMU            float64
	PeakAccelerationG      float64
	BatteryPercent         float64
	BreathingWaveAmplitude float64
	ECGAmplitudeV          float64
	ECGNoiseV              float64
	HeartRateConfidence    float64
	HeartRateVariability   float64
	ROG                    float64
	LinkQualityPercent     float64
	RSSIdBm                float64
	TxPowerdBm             float64
	EstimatedCoreTempC     float64

	LatDegrees              float64
	LatMinutes              float64
	LatDecimalMinutes       float64
	LatDir                  float64
	LongDegrees             float64
	LongMinutes             float64
	LongDecimalMinutes      float64
	LongDir                 float64
	QualIndication          float64
	AltitudeM               float64
	HorzDilutionOfPrecision float64
	GPSSpeed                float64

	ImpulseLoadNs                float64
	WalkStepCount                float64
	RunStepCount                 float64
	BoundCount                   float64
	JumpCount                    float64
	ImpactCount3g                float64
	ImpactCount7g                float64
	AvgRateOfForceDevelopmentNps float64
	AvgStepImpulseNs             float64
	AvgStepPeriodS               float64
	LastJumpFlightTimeS          float64
	PeakAccelPhiDeg              float64
	PeakAccelThetaDeg            float64
}

func (s SummaryDataV3) Fields() map[string]interface{} {
	return map[string]interface{}{
		"heart_rate": s.HeartRateBPM, "respiration_rate": s.RespirationRateBPM,
		"posture": s.PostureDeg, "activity": s.ActivityVMU,
		"peak_acceleration": s.PeakAccelerationG, "battery_percent": s.BatteryPercent,
		"breathing_wave_amplitude": s.BreathingWaveAmplitude,
		"ecg_amplitude":            s.ECGAmplitudeV, "ecg_noise": s.ECGNoiseV,
		"heart_rate_confidence":  s.HeartRateConfidence,
		"heart_rate_variability": s.HeartRateVariability, "rog": s.ROG,
		"link_quality": s.LinkQualityPercent, "rssi": s.RSSIdBm, "tx_power": s.TxPowerdBm,
		"estimated_core_temperature": s.EstimatedCoreTempC,
		"lat_degrees":                s.LatDegrees, "lat_minutes": s.LatMinutes,
		"lat_decimal_minutes": s.LatDecimalMinutes, "lat_dir": s.LatDir,
		"long_degrees": s.LongDegrees, "long_minutes": s.LongMinutes,
		"long_decimal_minutes": s.LongDecimalMinutes, "long_dir": s.LongDir,
		"qual_indication": s.QualIndication, "altitude": s.AltitudeM,
		"horz_dilution_of_precision": s.HorzDilutionOfPrecision, "gps_speed": s.GPSSpeed,
		"impulse_load": s.ImpulseLoadNs, "walk_step_count": s.WalkStepCount,
		"run_step_count": s.RunStepCount, "bound_count": s.BoundCount,
		"jump_count": s.JumpCount, "impact_count3g": s.ImpactCount3g,
		"impact_count7g":                s.ImpactCount7g,
		"avg_rate_of_force_development": s.AvgRateOfForceDevelopmentNps,
		"avg_step_impulse":              s.AvgStepImpulseNs, "avg_step_period": s.AvgStepPeriodS,
		"last_jump_flight_time": s.LastJumpFlightTimeS,
		"peak_accel_phi":        s.PeakAccelPhiDeg, "peak_accel_theta": s.PeakAccelThetaDeg,
		"device_worn_confidence": s.DeviceWornConfidence, "button_pressed": s.ButtonPressed,
	}
}

// WaveformSamples is a decoded fixed-rate waveform record shared by the ECG
// and breathing packets (single-channel). ECG samples are in mV; breathing
// samples are unitless raw amplitude.
type WaveformSamples struct {
	baseRecord
	SampleRateHz float64
	Samples      []float64 // NaN marks a "missing" (raw 0) sample
}

func (w WaveformSamples) Fields() map[string]interface{} {
	return map[string]interface{}{"samples": w.Samples, "sample_rate_hz": w.SampleRateHz}
}

// AccelWaveform is a decoded interleaved XYZ accelerometer waveform record.
type AccelWaveform struct {
	baseRecord
	SampleRateHz float64
	X, Y, Z      []float64
}

func (a AccelWaveform) Fields() map[string]interface{} {
	return map[string]interface{}{"x": a.X, "y": a.Y, "z": a.Z, "sample_rate_hz": a.SampleRateHz}
}

// RtoR is the decoded R-to-R interval record: 18 signed 16-bit samples.
type RtoR struct {
	baseRecord
	SampleRateHz float64
	IntervalsMs  []float64
}

func (r RtoR) Fields() map[string]interface{} {
	return map[string]interface{}{"intervals_ms": r.IntervalsMs, "sample_rate_hz": r.SampleRateHz}
}

// eventNames maps known event codes (the raw 16-bit wire value, not a
// sequential index) to a human-readable description.
var eventNames = map[uint16]string{
	0x0040: "button press", 0x0041: "emergency button", 0x0080: "battery low",
	0x00C0: "self-test result", 0x1000: "ROG change", 0x1040: "worn-status change",
	0x1080: "HR-reliability change", 0x10C0: "fall", 0x1100: "jump", 0x1140: "dash",
}

func eventName(code uint16) string {
	if name, ok := eventNames[code]; ok {
		return name
	}
	return fmt.Sprintf("unknown:%#04x", code)
}

// Event is a decoded EventPacket.
type Event struct {
	baseRecord
	EventCode uint16
	EventName string
	EventData []byte
}

func (e Event) Fields() map[string]interface{} {
	return map[string]interface{}{
		"event_code": e.EventCode, "event_name": e.EventName, "event_data": e.EventData,
	}
}

// Generic is a catch-all record for known, recognized message ids that have
// no dedicated payload parser (e.g. queries' raw replies are exposed via
// Message directly and never reach this type).
type Generic struct {
	baseRecord
	Raw []byte
}

func (g Generic) Fields() map[string]interface{} {
	return map[string]interface{}{"raw": g.Raw}
}
