package wire

import (
	"fmt"
	"math"
)

var nanValue = math.NaN()

// Parse decodes a framed message's payload into a strongly-typed Record
// when its id is one this module understands. Unrecognized but known
// message ids decode to a Generic record; ids outside the closed
// enumeration are rejected by the framer before Parse is ever called.
func Parse(m Message) (Record, error) {
	switch m.MsgID {
	case GeneralDataPacket:
		return parseGeneralData(m.Payload)
	case SummaryDataPacket:
		return parseSummaryData(m.Payload)
	case ECGWaveformPacket:
		return parseWaveform(m.Payload, ECGWaveformPacket, 88, 5, 250, Shifted, 0.025)
	case BreathingWaveformPacket:
		return parseWaveform(m.Payload, BreathingWaveformPacket, 32, 5, 1000.0/56, Shifted, 1)
	case AccelerometerPacket:
		return parseAccelWaveform(m.Payload, AccelerometerPacket, Shifted, 1, 50)
	case Accelerometer100MgPacket:
		return parseAccelWaveform(m.Payload, Accelerometer100MgPacket, Signed, 0.1, 50)
	case RtoRPacket:
		return parseRtoR(m.Payload)
	case EventPacket:
		return parseEvent(m.Payload)
	default:
		return Generic{baseRecord: baseRecord{msgID: m.MsgID}, Raw: m.Payload}, nil
	}
}

func parseGeneralData(payload []byte) (GeneralData, error) {
	if err := assertLength("GeneralData", payload, 53, false); err != nil {
		return GeneralData{}, err
	}
	h := parseHeader(payload)
	status := uint32(parseNum(payload[51:53], false, nil))
	g := GeneralData{
		baseRecord:             baseRecord{msgID: GeneralDataPacket, header: h},
		HeartRateBPM:           parseNum(payload[9:11], false, inval(0xFFFF)),
		RespirationRateBPM:     parseNum(payload[11:13], false, inval(0xFFFF)) * 0.1,
		SkinTemperatureC:       parseNum(payload[13:15], true, inval(0x8000)) * 0.1,
		PostureDeg:             parseNum(payload[15:17], true, inval(0x8000)),
		VMUActivity:            parseNum(payload[17:19], false, inval(0xFFFF)) * 0.01,
		PeakAccelerationG:      parseNum(payload[19:21], false, inval(0xFFFF)) * 0.01,
		BatteryVoltageV:        parseNum(payload[21:23], false, inval(0xFFFF)) * 0.001,
		BreathingWaveAmplitude: parseNum(payload[23:25], false, inval(0xFFFF)),
		ECGAmplitudeV:          parseNum(payload[25:27], false, inval(0xFFFF)) * 0.000001,
		ECGNoiseV:              parseNum(payload[27:29], false, inval(0xFFFF)) * 0.000001,
		VerticalAccelMinG:      parseNum(payload[29:31], true, inval(0x8000)) * 0.01,
		VerticalAccelPeakG:     parseNum(payload[31:33], true, inval(0x8000)) * 0.01,
		LateralAccelMinG:       parseNum(payload[33:35], true, inval(0x8000)) * 0.01,
		LateralAccelPeakG:      parseNum(payload[35:37], true, inval(0x8000)) * 0.01,
		SagittalAccelMinG:      parseNum(payload[37:39], true, inval(0x8000)) * 0.01,
		SagittalAccelPeakG:     parseNum(payload[39:41], true, inval(0x8000)) * 0.01,
		SystemChannel:          parseNum(payload[41:43], false, nil),
		GSRnS:                  parseNum(payload[43:45], false, inval(0xFFFF)),
		ROG:                    parseNum(payload[49:51], false, inval(0xFFFF)),
		Alarm:                  parseNum(payload[49:51], false, inval(0xFFFF)),
	}
	g.PhysioMonitorWorn = status&(1<<15) > 0
	g.UIButtonPressed = status&(1<<14) > 0
	g.HeartRateIsLowQuality = status&(1<<13) > 0
	g.ExternalSensorsConnected = status&(1<<12) > 0
	g.BatteryPercent = int(status & 127)
	return g, nil
}

func parseSummaryData(payload []byte) (Record, error) {
	if err := assertLength("SummaryData", payload, 71, false); err != nil {
		return nil, err
	}
	switch payload[9] {
	case 2:
		return parseSummaryDataV2(payload)
	case 3:
		return parseSummaryDataV3(payload)
	default:
		return nil, fmt.Errorf("wire: unsupported summary data packet version %d", payload[9])
	}
}

func parseSummaryDataV2(payload []byte) (SummaryDataV2, error) {
	h := parseHeader(payload)
	statusWord := uint32(parseNum(payload[56:58], false, inval(0)))
	extStatus := uint32(parseNum(payload[69:71], false, inval(0xFFFF)))

	s := SummaryDataV2{
		baseRecord:              baseRecord{msgID: SummaryDataPacket, header: h},
		statusInfo:              decodeStatusInfo(statusWord),
		HeartRateBPM:            parseNum(payload[10:12], false, inval(0xFFFF)),
		RespirationRateBPM:      parseNum(payload[12:14], false, inval(0xFFFF)) * 0.1,
		SkinTemperatureC:        parseNum(payload[14:16], true, inval(0x8000)) * 0.1,
		PostureDeg:              parseNum(payload[16:18], true, inval(0x8000)),
		ActivityVMU:             parseNum(payload[18:20], false, inval(0xFFFF)) * 0.01,
		PeakAccelerationG:       parseNum(payload[20:22], false, inval(0xFFFF)) * 0.01,
		BatteryVoltageV:         parseNum(payload[22:24], false, inval(0xFFFF)) * 0.001,
		BatteryPercent:          parseNum(payload[24:25], false, inval(0xFF)),
		BreathingWaveAmplitude:  parseNum(payload[25:27], false, inval(0xFFFF)),
		BreathingWaveNoise:      parseNum(payload[27:29], false, inval(0xFFFF)),
		BreathingRateConfidence: parseNum(payload[29:30], false, inval(0xFF)),
		ECGAmplitudeV:           parseNum(payload[30:32], false, inval(0xFFFF)) * 0.000001,
		ECGNoiseV:               parseNum(payload[32:34], false, inval(0xFFFF)) * 0.000001,
		HeartRateConfidence:     parseNum(payload[34:35], false, inval(0xFF)),
		HeartRateVariability:    parseNum(payload[35:37], false, inval(0xFFFF)),
		SystemConfidence:        parseNum(payload[37:38], false, inval(0xFF)),
		GSRnS:                   parseNum(payload[38:40], false, inval(0xFFFF)),
		ROG:                     parseNum(payload[40:42], false, inval(0)),
		VerticalAccelMinG:       parseNum(payload[42:44], true, inval(0x8000)) * 0.01,
		VerticalAccelPeakG:      parseNum(payload[44:46], true, inval(0x8000)) * 0.01,
		LateralAccelMinG:        parseNum(payload[46:48], true, inval(0x8000)) * 0.01,
		LateralAccelPeakG:       parseNum(payload[48:50], true, inval(0x8000)) * 0.01,
		SagittalAccelMinG:       parseNum(payload[50:52], true, inval(0x8000)) * 0.01,
		SagittalAccelPeakG:      parseNum(payload[52:54], true, inval(0x8000)) * 0.01,
		DeviceInternalTempC:     parseNum(payload[54:56], true, inval(0x8000)) * 0.1,
		LinkQualityPercent:      parseNum(payload[58:59], false, inval(0xFF)) / 254 * 100,
		RSSIdBm:                 parseNum(payload[59:60], true, inval(0x80)),
		TxPowerdBm:              parseNum(payload[60:61], true, inval(0x80)),
		EstimatedCoreTempC:      parseNum(payload[61:63], false, inval(0xFFFF)) * 0.1,
		AuxADCChan1:             parseNum(payload[63:65], false, inval(0xFFFF)),
		AuxADCChan2:             parseNum(payload[65:67], false, inval(0xFFFF)),
		AuxADCChan3:             parseNum(payload[67:69], false, inval(0xFFFF)),
	}

	// NaN wins whenever the word says its own flags aren't valid: each
	// derived flag is only meaningful when bit 15 is set.
	validFlags := extStatus&(1<<15) == 0
	bit := func(n uint) float64 {
		if !validFlags {
			return nanValue
		}
		if extStatus&(1<<n) > 0 {
			return 1
		}
		return 0
	}
	s.RespRateLow = bit(0)
	s.RespRateHigh = bit(1)
	s.BrAmplitudeLow = bit(2)
	s.BrAmplitudeHigh = bit(3)
	s.BrAmplitudeVarianceHigh = bit(4)
	if validFlags {
		s.BrSignalEvalState = float64((extStatus >> 5) & 3)
	} else {
		s.BrSignalEvalState = nanValue
	}
	return s, nil
}

func parseSummaryDataV3(payload []byte) (SummaryDataV3, error) {
	h := parseHeader(payload)
	statusWord := uint32(parseNum(payload[32:34], false, inval(0)))
	coreTemp := parseNum(payload[37:39], false, inval(0xFFFF)) * 0.1

	gps := unpackLayout(payload[39:49], gpsPosLayout)
	gpsSpeed := float64(uint32(parseNum(payload[49:51], false, nil)) & 0x3FFF)
	accel := unpackLayout(payload[51:71], accelerometryLayout)

	s := SummaryDataV3{
		baseRecord:             baseRecord{msgID: SummaryDataPacket, header: h},
		statusInfo:             decodeStatusInfo(statusWord),
		HeartRateBPM:           parseNum(payload[10:12], false, inval(0xFFFF)),
		RespirationRateBPM:     parseNum(payload[12:14], false, inval(0xFFFF)) * 0.1,
		PostureDeg:             parseNum(payload[14:16], true, inval(0x8000)),
		ActivityVMU:            parseNum(payload[16:18], false, inval(0xFFFF)) * 0.01,
		PeakAccelerationG:      parseNum(payload[18:20], false, inval(0xFFFF)) * 0.01,
		BatteryPercent:         parseNum(payload[20:21], false, nil),
		BreathingWaveAmplitude: parseNum(payload[21:23], false, inval(0xFFFF)),
		ECGAmplitudeV:          parseNum(payload[23:25], false, inval(0xFFFF)) * 0.000001,
		ECGNoiseV:              parseNum(payload[25:27], false, inval(0xFFFF)) * 0.000001,
		HeartRateConfidence:    parseNum(payload[27:28], false, nil),
		HeartRateVariability:   parseNum(payload[28:30], false, inval(0xFFFF)),
		ROG:                    parseNum(payload[30:32], false, inval(0)),
		LinkQualityPercent:     parseNum(payload[34:35], false, inval(0xFF)) / 254 * 100,
		RSSIdBm:                parseNum(payload[35:36], true, inval(0x80)),
		TxPowerdBm:             parseNum(payload[36:37], true, inval(0x80)),
		EstimatedCoreTempC:     coreTemp,

		LatDegrees:              gps["lat_degrees"],
		LatMinutes:              gps["lat_minutes"],
		LatDecimalMinutes:       gps["lat_decimal_minutes"],
		LatDir:                  gps["lat_dir"],
		LongDegrees:             gps["long_degrees"],
		LongMinutes:             gps["long_minutes"],
		LongDecimalMinutes:      gps["long_decimal_minutes"],
		LongDir:                 gps["long_dir"],
		QualIndication:          gps["qual_indication"],
		AltitudeM:               gps["altitude"],
		HorzDilutionOfPrecision: gps["horz_dilution_of_precision"],
		GPSSpeed:                gpsSpeed,

		ImpulseLoadNs:                accel["impulse_load"],
		WalkStepCount:                accel["walk_step_count"],
		RunStepCount:                 accel["run_step_count"],
		BoundCount:                   accel["bound_count"],
		JumpCount:                    accel["jump_count"],
		ImpactCount3g:                accel["impact_count3g"],
		ImpactCount7g:                accel["impact_count7g"],
		AvgRateOfForceDevelopmentNps: accel["avg_rate_of_force_development"] * 0.01,
		AvgStepImpulseNs:             accel["avg_step_impulse"] * 0.01,
		AvgStepPeriodS:               accel["avg_step_period"] * 0.001,
		LastJumpFlightTimeS:          accel["last_jump_flight_time"] * 0.01,
		PeakAccelPhiDeg:              accel["peak_accel_phi"],
		PeakAccelThetaDeg:            accel["peak_accel_theta"],
	}
	return s, nil
}

// parseWaveform decodes a single-channel fixed-rate waveform (ECG or
// breathing): each bytesPerChunk-byte chunk packs valuesPerChunk = bytesPerChunk*4/5
// 10-bit samples. A short final chunk is zero-padded before unpacking. mvScale
// converts a decoded sample to its final unit (0.025 mV/LSB for ECG, 1 for
// breathing, which has no documented scale factor).
func parseWaveform(payload []byte, id MessageID, expectedLen, bytesPerChunk int, srate float64, kind Signedness, mvScale float64) (WaveformSamples, error) {
	if err := assertLength(id.String(), payload, expectedLen, false); err != nil {
		return WaveformSamples{}, err
	}
	h := parseHeader(payload)
	valuesPerChunk := bytesPerChunk * 4 / 5
	var samples []float64
	for ofs := 9; ofs < len(payload); ofs += bytesPerChunk {
		end := ofs + bytesPerChunk
		var chunk []byte
		if end <= len(payload) {
			chunk = payload[ofs:end]
		} else {
			chunk = make([]byte, bytesPerChunk)
			copy(chunk, payload[ofs:])
		}
		for _, v := range unpackSequence(chunk, valuesPerChunk, 10, kind) {
			samples = append(samples, v*mvScale)
		}
	}
	return WaveformSamples{
		baseRecord:   baseRecord{msgID: id, header: h},
		SampleRateHz: srate,
		Samples:      samples,
	}, nil
}

// parseAccelWaveform decodes an interleaved XYZ accelerometer waveform: each
// 15-byte chunk packs 12 10-bit samples as 4 XYZ triples, decoded with kind
// (Shifted for the regular 1g-resolution stream, Signed two's-complement for
// the 100mg-resolution stream). scale is applied after unpacking (1.0 for
// the 1g-resolution stream, 0.1 for the 100mg-resolution stream).
func parseAccelWaveform(payload []byte, id MessageID, kind Signedness, scale, srate float64) (AccelWaveform, error) {
	if err := assertLength(id.String(), payload, 84, false); err != nil {
		return AccelWaveform{}, err
	}
	h := parseHeader(payload)
	const bytesPerChunk = 15
	const valuesPerChunk = 12
	var waveform []float64
	for ofs := 9; ofs < len(payload); ofs += bytesPerChunk {
		end := ofs + bytesPerChunk
		var chunk []byte
		if end <= len(payload) {
			chunk = payload[ofs:end]
		} else {
			chunk = make([]byte, bytesPerChunk)
			copy(chunk, payload[ofs:])
		}
		waveform = append(waveform, unpackSequence(chunk, valuesPerChunk, 10, kind)...)
	}
	x := make([]float64, 0, len(waveform)/3+1)
	y := make([]float64, 0, len(waveform)/3+1)
	z := make([]float64, 0, len(waveform)/3+1)
	for i := 0; i < len(waveform); i += 3 {
		x = append(x, waveform[i]*scale)
		if i+1 < len(waveform) {
			y = append(y, waveform[i+1]*scale)
		}
		if i+2 < len(waveform) {
			z = append(z, waveform[i+2]*scale)
		}
	}
	return AccelWaveform{
		baseRecord:   baseRecord{msgID: id, header: h},
		SampleRateHz: srate,
		X:            x,
		Y:            y,
		Z:            z,
	}, nil
}

// parseRtoR decodes the R-to-R interval record, treating each 16-bit sample
// as signed two's complement: the device alternates the sign from one R-peak
// to the next, so the sign bit is significant, not noise.
func parseRtoR(payload []byte) (RtoR, error) {
	if err := assertLength("RtoR", payload, 45, false); err != nil {
		return RtoR{}, err
	}
	h := parseHeader(payload)
	var intervals []float64
	for ofs := 9; ofs+1 < len(payload); ofs += 2 {
		intervals = append(intervals, parseNum(payload[ofs:ofs+2], true, nil))
	}
	return RtoR{
		baseRecord:   baseRecord{msgID: RtoRPacket, header: h},
		SampleRateHz: 1000.0 / 56,
		IntervalsMs:  intervals,
	}, nil
}

func parseEvent(payload []byte) (Event, error) {
	if err := assertLength("Event", payload, 11, true); err != nil {
		return Event{}, err
	}
	h := parseHeader(payload)
	code := uint16(parseNum(payload[9:11], false, nil))
	return Event{
		baseRecord: baseRecord{msgID: EventPacket, header: h},
		EventCode:  code,
		EventName:  eventName(code),
		EventData:  append([]byte(nil), payload[11:]...),
	}, nil
}
