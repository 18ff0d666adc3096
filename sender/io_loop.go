package sender

import (
	"fmt"

	"github.com/arloliu/go-gcode/serialport"
)

// readBufferSize is the size of the buffer each port read fills.
const readBufferSize = 1024

// startIOLoop starts the I/O loop of port as a managed task.
//
// The loop alternates between running jobs posted by other goroutines and
// reading from the port with the poll timeout, so a posted close is picked up
// within one poll timeout.
func (s *Sender) startIOLoop(port serialport.Port) error {
	lr := &lineReader{}
	buf := make([]byte, readBufferSize)

	return s.taskMgr.Start("ioLoop", func() bool {
		return s.ioLoopIteration(port, lr, buf)
	})
}

// ioLoopIteration performs a single iteration of the I/O loop. The loop stops
// as soon as port is no longer the port of the sender, so a loop outliving a
// Disconnect never handles input of the next connection.
func (s *Sender) ioLoopIteration(port serialport.Port, lr *lineReader, buf []byte) bool {
	select {
	case job := <-s.jobs:
		return s.runOnLoop(job)
	default:
	}

	n, err := port.Read(buf)
	if n == 0 && err == nil {
		// timeout with no data, keep polling
		return s.ownsPort(port)
	}

	return s.runOnLoop(func() bool {
		handle := func(line string) bool { return s.handleLine(port, line) }
		if n > 0 && !lr.feed(buf[:n], handle, s.lineOverflow) {
			return false
		}

		if err != nil {
			return s.readFailed(err)
		}

		return s.ownsPort(port)
	})
}

func (s *Sender) runOnLoop(fn func() bool) bool {
	s.onLoop.Store(true)
	defer s.onLoop.Store(false)

	return fn()
}

func (s *Sender) ownsPort(port serialport.Port) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.st.port == port
}

func (s *Sender) readFailed(err error) bool {
	if s.isExpectedCloseErr() {
		s.logger.Debug("read stopped by close", "error", err)
		return false
	}

	wrapped := fmt.Errorf("%w: read: %w", ErrTransport, err)
	s.metrics.incTransportErrors()
	s.logger.Error("failed to read from device", "device", s.Device(), "error", wrapped)
	s.fail(wrapped)
	s.report(Diagnostic{Kind: DiagTransportError, Err: wrapped})

	return s.doClose()
}

func (s *Sender) lineOverflow(n int) {
	s.metrics.incLinesIgnored()
	s.logger.Warn("discarding unterminated input", "bytes", n)
}

// doClose closes the port from the I/O loop and stops the loop.
func (s *Sender) doClose() bool {
	s.closePort()

	return false
}
