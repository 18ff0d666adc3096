// Package serialport opens serial devices for the sender and applies baud rates
// the portable driver cannot.
//
// The portable path goes through go.bug.st/serial. Rates the termios speed table
// does not carry are set by a platform [BaudConfigurator] that talks to the
// device driver directly.
package serialport

import (
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the transport the sender reads from and writes to.
//
// A read that times out returns 0 bytes and a nil error.
type Port interface {
	io.ReadWriteCloser
	SetMode(mode *serial.Mode) error
	SetReadTimeout(t time.Duration) error
}

// Opener opens the named device with the given mode.
type Opener func(device string, mode *serial.Mode) (Port, error)

var _ Opener = Open

// Open opens a serial device through go.bug.st/serial.
func Open(device string, mode *serial.Mode) (Port, error) {
	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// DefaultBaudRate is the rate a port is opened with before the requested rate is applied.
const DefaultBaudRate = 9600

// Mode returns an 8 data bit, 1 stop bit mode with the given parity at DefaultBaudRate.
func Mode(parity serial.Parity) *serial.Mode {
	return &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   parity,
		StopBits: serial.OneStopBit,
	}
}

// SetBaudRate sets the baud rate of an open port, keeping its other settings.
func SetBaudRate(p Port, mode *serial.Mode, rate int) error {
	m := *mode
	m.BaudRate = rate
	if err := p.SetMode(&m); err != nil {
		return err
	}
	mode.BaudRate = rate

	return nil
}
