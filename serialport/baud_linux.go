//go:build linux

package serialport

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	asyncSpdMask = 0x1030
	asyncSpdCust = 0x0030
)

// serialStruct mirrors struct serial_struct from linux/serial.h.
type serialStruct struct {
	Type          int32
	Line          int32
	Port          uint32
	Irq           int32
	Flags         int32
	XmitFifoSize  int32
	CustomDivisor int32
	BaudBase      int32
	CloseDelay    uint16
	IoType        int8
	ReservedChar  [1]int8
	Hub6          int32
	ClosingWait   uint16
	ClosingWait2  uint16
	IomemBase     uintptr
	IomemRegShift uint16
	PortHigh      uint32
	IomapBase     uintptr
}

type platformConfigurator struct{}

// ConfigureBaud programs a custom divisor: the termios speed is set to the
// B38400 alias and the driver is told to replace it with baud_base/divisor.
func (platformConfigurator) ConfigureBaud(device string, rate int) error {
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", device, err)
	}
	defer unix.Close(fd)

	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}
	tio.Cflag = (tio.Cflag &^ unix.CBAUD) | unix.B38400
	tio.Ispeed = unix.B38400
	tio.Ospeed = unix.B38400

	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH); err != nil {
		return fmt.Errorf("flush input: %w", err)
	}
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}

	var ss serialStruct
	if err := serialIoctl(fd, unix.TIOCGSERIAL, &ss); err != nil {
		return fmt.Errorf("get serial info: %w", err)
	}

	divisor, _, err := customDivisor(int(ss.BaudBase), rate)
	if err != nil {
		return err
	}
	ss.Flags = (ss.Flags &^ asyncSpdMask) | asyncSpdCust
	ss.CustomDivisor = int32(divisor)
	ss.ReservedChar[0] = 0

	if err := serialIoctl(fd, unix.TIOCSSERIAL, &ss); err != nil {
		return fmt.Errorf("set serial info: %w", err)
	}

	return nil
}

func serialIoctl(fd int, req uint, ss *serialStruct) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(unsafe.Pointer(ss)))
	if errno != 0 {
		return errno
	}

	return nil
}
