//go:build !linux && !darwin

package serialport

type platformConfigurator struct{}

func (platformConfigurator) ConfigureBaud(string, int) error {
	return ErrCustomBaudUnsupported
}
