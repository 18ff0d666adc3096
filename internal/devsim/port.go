package devsim

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/arloliu/go-gcode/serialport"
	"go.bug.st/serial"
)

// ErrUnsupportedBaud is returned by SetMode for rates above the configured maximum.
var ErrUnsupportedBaud = errors.New("devsim: baud rate not supported by port")

// pipePort is the host end of a simulated serial line.
type pipePort struct {
	conn    net.Conn
	dev     *Device
	mu      sync.Mutex
	timeout time.Duration
}

var _ serialport.Port = (*pipePort)(nil)

func (p *pipePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	timeout := p.timeout
	p.mu.Unlock()

	if timeout > 0 {
		if err := p.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return 0, err
		}
	}

	n, err := p.conn.Read(b)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}

	return n, err
}

func (p *pipePort) Write(b []byte) (int, error) {
	return p.conn.Write(b)
}

func (p *pipePort) Close() error {
	return p.conn.Close()
}

func (p *pipePort) SetMode(mode *serial.Mode) error {
	if maxRate := p.dev.opts.maxBaudRate; maxRate > 0 && mode.BaudRate > maxRate {
		return fmt.Errorf("%w: %d", ErrUnsupportedBaud, mode.BaudRate)
	}
	p.dev.recordMode(*mode)

	return nil
}

func (p *pipePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.timeout = t

	return nil
}
