package sender

import "errors"

var (
	// ErrConfigNil indicates that a nil Config was provided.
	ErrConfigNil = errors.New("sender: config is nil")

	// ErrInvalidConfig indicates that an option was given a value outside its valid range.
	ErrInvalidConfig = errors.New("sender: invalid config")
)

// Connection errors.
var (
	// ErrConnectFailed wraps every failure of Connect.
	ErrConnectFailed = errors.New("sender: connect failed")

	// ErrAlreadyOpen indicates that Connect was called on an open sender.
	ErrAlreadyOpen = errors.New("sender: already open")

	// ErrInvalidBaudRate indicates a baud rate that is zero or negative.
	ErrInvalidBaudRate = errors.New("sender: invalid baud rate")

	// ErrBaudRate indicates that the device rejected the requested baud rate
	// through both the portable and the driver level path.
	ErrBaudRate = errors.New("sender: failed to set baud rate")

	// ErrCloseFailed is returned by Disconnect when the error flag was set while open.
	ErrCloseFailed = errors.New("sender: error while closing the device")

	// ErrCloseTimeout indicates that the I/O loop did not stop within the close timeout.
	ErrCloseTimeout = errors.New("sender: close timeout")

	// ErrCanceled indicates that the parent context of the sender was canceled while open.
	ErrCanceled = errors.New("sender: canceled")

	// ErrNotOpen indicates that the sender was closed while waiting.
	ErrNotOpen = errors.New("sender: not open")
)

// Protocol errors.
var (
	// ErrTransport wraps read, write and close failures of the serial port.
	ErrTransport = errors.New("sender: transport error")

	// ErrResendParse indicates a resend request without a usable line number.
	ErrResendParse = errors.New("sender: cannot parse resend request")
)
