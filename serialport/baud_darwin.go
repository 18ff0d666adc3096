//go:build darwin

package serialport

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// iossioSpeed is IOSSIOSPEED from IOKit/serial/ioss.h, _IOW('T', 2, speed_t).
const iossioSpeed = 0x80085402

type platformConfigurator struct{}

func (platformConfigurator) ConfigureBaud(device string, rate int) error {
	if rate <= 0 {
		return fmt.Errorf("%w: invalid rate %d", ErrBaudMismatch, rate)
	}

	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", device, err)
	}
	defer unix.Close(fd)

	speed := uint64(rate)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(iossioSpeed), uintptr(unsafe.Pointer(&speed)))
	if errno != 0 {
		return fmt.Errorf("set speed: %w", errno)
	}

	return nil
}
