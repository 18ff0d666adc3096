package serialport

import (
	"errors"
	"fmt"
)

var (
	ErrBaudMismatch          = errors.New("serialport: achievable baud rate too far from requested")
	ErrCustomBaudUnsupported = errors.New("serialport: custom baud rates are not supported on this platform")
)

// baudTolerancePercent is how far the achieved rate may drift from the requested one.
const baudTolerancePercent = 2

// BaudConfigurator applies a baud rate to a device at driver level.
//
// It is the fallback for rates the portable driver rejects. The device must
// already be open elsewhere; the configurator opens its own handle to the same
// node, so the setting applies to the open port.
type BaudConfigurator interface {
	ConfigureBaud(device string, rate int) error
}

// BaudConfiguratorFunc adapts a function to BaudConfigurator.
type BaudConfiguratorFunc func(device string, rate int) error

func (f BaudConfiguratorFunc) ConfigureBaud(device string, rate int) error {
	return f(device, rate)
}

// NewBaudConfigurator returns the configurator for the running platform.
func NewBaudConfigurator() BaudConfigurator {
	return platformConfigurator{}
}

// VerifyBaud checks that actual is within tolerance of the requested rate.
func VerifyBaud(requested, actual int) error {
	if requested <= 0 {
		return fmt.Errorf("%w: invalid rate %d", ErrBaudMismatch, requested)
	}

	lo := requested * (100 - baudTolerancePercent) / 100
	hi := requested * (100 + baudTolerancePercent) / 100
	if actual < lo || actual > hi {
		return fmt.Errorf("%w: requested %d, closest %d", ErrBaudMismatch, requested, actual)
	}

	return nil
}

// customDivisor returns the UART clock divisor closest to rate and the rate it yields.
func customDivisor(baudBase, rate int) (divisor int, actual int, err error) {
	if rate <= 0 || baudBase <= 0 {
		return 0, 0, fmt.Errorf("%w: base %d, rate %d", ErrBaudMismatch, baudBase, rate)
	}

	divisor = (baudBase + rate/2) / rate
	if divisor == 0 {
		return 0, 0, fmt.Errorf("%w: rate %d exceeds base %d", ErrBaudMismatch, rate, baudBase)
	}

	actual = baudBase / divisor
	if err := VerifyBaud(rate, actual); err != nil {
		return divisor, actual, err
	}

	return divisor, actual, nil
}
