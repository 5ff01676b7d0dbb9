// Package wire implements the BHT byte protocol: framing constants, message
// identifiers, the bit-packing decoder, the typed message model, per-message
// payload parsers, the byte-stream framer, and the encoder. This is the
// protocol codec half of the link subsystem; internal/link drives the
// transport around it.
package wire

import "fmt"

// Marker is a single framing control byte: STX/ETX/ACK/NAK.
type Marker byte

const (
	STX Marker = 0x02 // start of a frame
	ETX Marker = 0x03 // successful unsolicited/periodic frame terminator
	ACK Marker = 0x06 // successful command-reply terminator
	NAK Marker = 0x15 // failed command-reply terminator
)

// IsValidFin reports whether m is one of the three valid frame terminators.
func IsValidFin(m Marker) bool {
	return m == ETX || m == ACK || m == NAK
}

// MessageID enumerates every known message identifier, both the periodic
// data kinds the device streams and the commands a consumer can issue.
type MessageID byte

const (
	// --- periodic data packets sent by the device (once enabled) ---

	Lifesign                  MessageID = 0x23
	GeneralDataPacket         MessageID = 0x20
	BreathingWaveformPacket   MessageID = 0x21
	ECGWaveformPacket         MessageID = 0x22
	RtoRPacket                MessageID = 0x24
	AccelerometerPacket       MessageID = 0x25
	BluetoothDeviceDataPacket MessageID = 0x27
	ExtendedDataPacket        MessageID = 0x28
	Accelerometer100MgPacket  MessageID = 0x2A
	SummaryDataPacket         MessageID = 0x2B
	EventPacket               MessageID = 0x2C
	LoggingDataPacket         MessageID = 0x3F
	LiveLogAccessDataPacket   MessageID = 0x60

	// --- stream transmit-state toggles (payload is 0 or 1, unless noted) ---

	SetGeneralDataPacketTransmitState        MessageID = 0x14
	SetBreathingWaveformPacketTransmitState  MessageID = 0x15
	SetECGWaveformPacketTransmitState        MessageID = 0x16
	SetRtoRDataPacketTransmitState           MessageID = 0x19
	SetAccelerometerPacketTransmitState      MessageID = 0x1E
	SetAccelerometer100mgPacketTransmitState MessageID = 0xBC
	SetExtendedDataPacketTransmitState       MessageID = 0xB8
	SetSummaryDataPacketUpdateRate           MessageID = 0xBD // payload: [interval, 0]

	// --- queries (no payload unless noted) ---

	GetRTCDateTime                MessageID = 0x08
	GetBootSoftwareVersion        MessageID = 0x09
	GetApplicationSoftwareVersion MessageID = 0x0A
	GetSerialNumber               MessageID = 0x0B
	GetHardwarePartNumber         MessageID = 0x0C
	GetBootloaderPartNumber       MessageID = 0x0D
	GetApplicationPartNumber      MessageID = 0x0E
	GetUnitMACAddress             MessageID = 0x12
	GetUnitBluetoothFriendlyName  MessageID = 0x17
	GetBluetoothUserConfig        MessageID = 0xA3
	GetBTLinkConfig               MessageID = 0xA5
	GetBioHarnessUserConfig       MessageID = 0xA7
	GetBatteryStatus              MessageID = 0xAC
	GetAccelerometerAxisMapping   MessageID = 0xB5
	GetAlgorithmConfig            MessageID = 0xB7
	GetROGSettings                MessageID = 0x9C
	GetSubjectInfoSettings        MessageID = 0xBF
	GetRemoteMACAddressAndPIN     MessageID = 0xD1
	GetNetworkID                  MessageID = 0x11
	GetRemoteDeviceDescription    MessageID = 0xD4

	// --- benign configuration ---

	SetRTCDateTime MessageID = 0x07
	SetNetworkID   MessageID = 0x10

	// --- not-so-benign commands (recognized but not exercised by this module) ---

	SetBluetoothUserConfig      MessageID = 0xA2
	SetBTLinkConfig             MessageID = 0xA4
	SetBioHarnessUserConfig     MessageID = 0xA6
	RebootUnit                  MessageID = 0x1F
	SetROGSettings              MessageID = 0x9B
	BluetoothPeripheralMessage  MessageID = 0xB0
	ResetConfiguration          MessageID = 0xB3
	SetAccelerometerAxisMapping MessageID = 0xB4
	SetAlgorithmConfig          MessageID = 0xB6
	SetBioHarnessUserConfigItem MessageID = 0xB9
	SetSubjectInfoSettings      MessageID = 0xBE
	SetRemoteMACAddressAndPIN   MessageID = 0xD0

	// --- log access ---

	GetSupportedLogFormats MessageID = 0xD5
	ReadLoggingData        MessageID = 0x01
	SendLoggingData        MessageID = 0xE2
	DeleteLogfile          MessageID = 0x02
	LiveLogAccessCommand   MessageID = 0xE5
)

// knownMessageIDs is the closed set of identifiers the framer recognizes.
var knownMessageIDs = map[MessageID]string{
	Lifesign:                  "Lifesign",
	GeneralDataPacket:         "GeneralDataPacket",
	BreathingWaveformPacket:   "BreathingWaveformPacket",
	ECGWaveformPacket:         "ECGWaveformPacket",
	RtoRPacket:                "RtoRPacket",
	AccelerometerPacket:       "AccelerometerPacket",
	BluetoothDeviceDataPacket: "BluetoothDeviceDataPacket",
	ExtendedDataPacket:        "ExtendedDataPacket",
	Accelerometer100MgPacket:  "Accelerometer100MgPacket",
	SummaryDataPacket:         "SummaryDataPacket",
	EventPacket:               "EventPacket",
	LoggingDataPacket:         "LoggingDataPacket",
	LiveLogAccessDataPacket:   "LiveLogAccessDataPacket",

	SetGeneralDataPacketTransmitState:        "SetGeneralDataPacketTransmitState",
	SetBreathingWaveformPacketTransmitState:  "SetBreathingWaveformPacketTransmitState",
	SetECGWaveformPacketTransmitState:        "SetECGWaveformPacketTransmitState",
	SetRtoRDataPacketTransmitState:           "SetRtoRDataPacketTransmitState",
	SetAccelerometerPacketTransmitState:      "SetAccelerometerPacketTransmitState",
	SetAccelerometer100mgPacketTransmitState: "SetAccelerometer100mgPacketTransmitState",
	SetExtendedDataPacketTransmitState:       "SetExtendedDataPacketTransmitState",
	SetSummaryDataPacketUpdateRate:           "SetSummaryDataPacketUpdateRate",

	GetRTCDateTime:                "GetRTCDateTime",
	GetBootSoftwareVersion:        "GetBootSoftwareVersion",
	GetApplicationSoftwareVersion: "GetApplicationSoftwareVersion",
	GetSerialNumber:               "GetSerialNumber",
	GetHardwarePartNumber:         "GetHardwarePartNumber",
	GetBootloaderPartNumber:       "GetBootloaderPartNumber",
	GetApplicationPartNumber:      "GetApplicationPartNumber",
	GetUnitMACAddress:             "GetUnitMACAddress",
	GetUnitBluetoothFriendlyName:  "GetUnitBluetoothFriendlyName",
	GetBluetoothUserConfig:        "GetBluetoothUserConfig",
	GetBTLinkConfig:               "GetBTLinkConfig",
	GetBioHarnessUserConfig:       "GetBioHarnessUserConfig",
	GetBatteryStatus:              "GetBatteryStatus",
	GetAccelerometerAxisMapping:   "GetAccelerometerAxisMapping",
	GetAlgorithmConfig:            "GetAlgorithmConfig",
	GetROGSettings:                "GetROGSettings",
	GetSubjectInfoSettings:        "GetSubjectInfoSettings",
	GetRemoteMACAddressAndPIN:     "GetRemoteMACAddressAndPIN",
	GetNetworkID:                  "GetNetworkID",
	GetRemoteDeviceDescription:    "GetRemoteDeviceDescription",

	SetRTCDateTime: "SetRTCDateTime",
	SetNetworkID:   "SetNetworkID",

	SetBluetoothUserConfig:      "SetBluetoothUserConfig",
	SetBTLinkConfig:             "SetBTLinkConfig",
	SetBioHarnessUserConfig:     "SetBioHarnessUserConfig",
	RebootUnit:                  "RebootUnit",
	SetROGSettings:              "SetROGSettings",
	BluetoothPeripheralMessage:  "BluetoothPeripheralMessage",
	ResetConfiguration:          "ResetConfiguration",
	SetAccelerometerAxisMapping: "SetAccelerometerAxisMapping",
	SetAlgorithmConfig:          "SetAlgorithmConfig",
	SetBioHarnessUserConfigItem: "SetBioHarnessUserConfigItem",
	SetSubjectInfoSettings:      "SetSubjectInfoSettings",
	SetRemoteMACAddressAndPIN:   "SetRemoteMACAddressAndPIN",

	GetSupportedLogFormats: "GetSupportedLogFormats",
	ReadLoggingData:        "ReadLoggingData",
	SendLoggingData:        "SendLoggingData",
	DeleteLogfile:          "DeleteLogfile",
	LiveLogAccessCommand:   "LiveLogAccessCommand",
}

// Known reports whether id is part of the closed enumeration of message ids.
func (id MessageID) Known() bool {
	_, ok := knownMessageIDs[id]
	return ok
}

// String renders a human-readable name, falling back to the raw hex value
// for ids outside the closed enumeration.
func (id MessageID) String() string {
	if name, ok := knownMessageIDs[id]; ok {
		return name
	}
	return fmt.Sprintf("%#02x", byte(id))
}

// PeriodicMessageIDs are the message kinds the device emits repeatedly once
// their corresponding stream is toggled on.
var PeriodicMessageIDs = []MessageID{
	GeneralDataPacket, BreathingWaveformPacket, ECGWaveformPacket,
	RtoRPacket, AccelerometerPacket, BluetoothDeviceDataPacket,
	ExtendedDataPacket, Accelerometer100MgPacket, SummaryDataPacket,
	EventPacket, LoggingDataPacket, LiveLogAccessDataPacket,
}

func isPeriodic(id MessageID) bool {
	for _, p := range PeriodicMessageIDs {
		if p == id {
			return true
		}
	}
	return false
}

// IsPeriodic reports whether id is a periodic (streaming) data kind.
func (id MessageID) IsPeriodic() bool {
	return isPeriodic(id)
}

// TransmitState2DataPacket maps a "set transmit state" command id to the
// data packet id it toggles.
var TransmitState2DataPacket = map[MessageID]MessageID{
	SetGeneralDataPacketTransmitState:        GeneralDataPacket,
	SetBreathingWaveformPacketTransmitState:  BreathingWaveformPacket,
	SetECGWaveformPacketTransmitState:        ECGWaveformPacket,
	SetRtoRDataPacketTransmitState:           RtoRPacket,
	SetAccelerometerPacketTransmitState:      AccelerometerPacket,
	SetAccelerometer100mgPacketTransmitState: Accelerometer100MgPacket,
	SetExtendedDataPacketTransmitState:       ExtendedDataPacket,
	SetSummaryDataPacketUpdateRate:           SummaryDataPacket,
}
