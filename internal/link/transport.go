// Package link owns the single RFCOMM socket to a BioHarness device: the
// reconnect loop, the transmit/receive loop with its keepalive lifesign, and
// the send queue it exposes to higher layers.
package link

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Transport is the byte-stream connection to the device. A paired RFCOMM
// channel is exposed by the kernel as a tty device (/dev/rfcommN on
// Linux), so it is opened the same way a USB-serial ECU or GPS link is: as
// a serial port, just without baud-rate negotiation.
type Transport interface {
	io.ReadWriteCloser
}

// RFCOMMConfig names the bound RFCOMM tty device to open.
type RFCOMMConfig struct {
	Device      string        `yaml:"device" json:"device"`
	ReadTimeout time.Duration `yaml:"read_timeout" json:"readTimeout"`
}

// DefaultReadTimeout bounds a single blocking read so the transmit/receive
// loop can still notice shutdown signals and queued outbound messages
// promptly even when the device is silent.
const DefaultReadTimeout = 250 * time.Millisecond

// OpenRFCOMM opens the bound RFCOMM channel as a serial port. BHT links
// don't negotiate a baud rate (RFCOMM is a reliable byte stream over
// L2CAP), but go.bug.st/serial requires a Mode; 115200/8/N/1 matches the
// typical bioharness profile default and is harmless for RFCOMM, which
// ignores it.
func OpenRFCOMM(cfg RFCOMMConfig) (Transport, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("link: failed to open %s: %w", cfg.Device, err)
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("link: failed to set read timeout on %s: %w", cfg.Device, err)
	}
	return port, nil
}
