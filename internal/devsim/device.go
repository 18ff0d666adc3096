// Package devsim simulates a line-numbered G-code controller on an in-memory pipe.
//
// The device verifies the checksum and line number of every frame it receives
// and answers the way Marlin-class firmware does: "ok" for an accepted line,
// "Resend: N" for a line it wants again. It is used by tests and by the
// command line tool's simulation mode.
package devsim

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/arloliu/go-gcode/frame"
	"github.com/arloliu/go-gcode/logger"
	"github.com/arloliu/go-gcode/serialport"
	"go.bug.st/serial"
)

// ErrNotOpen is returned when the device is used before the host opened it.
var ErrNotOpen = errors.New("devsim: device not open")

const outboxSize = 256

type options struct {
	banner      string
	autoReply   bool
	maxBaudRate int
	rejects     map[uint64]int
	openErr     error
	logger      logger.Logger
}

// Option configures a Device.
type Option func(*options)

// WithBanner makes the device print banner each time it is opened, the way a
// controller announces itself after the reset triggered by opening the port.
func WithBanner(banner string) Option {
	return func(o *options) { o.banner = banner }
}

// WithAutoReply controls whether the device validates and answers frames.
// Defaults to true. A device without auto reply only records what it receives
// and answers through Send.
func WithAutoReply(enabled bool) Option {
	return func(o *options) { o.autoReply = enabled }
}

// WithMaxBaudRate makes SetMode reject rates above rate.
func WithMaxBaudRate(rate int) Option {
	return func(o *options) { o.maxBaudRate = rate }
}

// WithLineNoise makes the device request the given line numbers once more
// after their first valid reception, as if the line arrived corrupted.
func WithLineNoise(seqs ...uint64) Option {
	return func(o *options) {
		for _, seq := range seqs {
			o.rejects[seq]++
		}
	}
}

// WithOpenError makes every open attempt fail with err.
func WithOpenError(err error) Option {
	return func(o *options) { o.openErr = err }
}

// WithLogger sets the logger of the device.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Device is a simulated controller. The zero value is not usable; create one with New.
type Device struct {
	opts options

	mu       sync.Mutex
	sess     *session
	opens    int
	modes    []serial.Mode
	baud     []int
	lines    []string
	received []frame.Frame
	accepted []frame.Frame
}

type session struct {
	conn     net.Conn
	outbox   chan string
	done     chan struct{}
	once     sync.Once
	expected uint64
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// New creates a simulated device.
func New(opts ...Option) *Device {
	d := &Device{
		opts: options{
			autoReply: true,
			rejects: make(map[uint64]int),
			logger:  logger.GetLogger(),
		},
	}
	for _, opt := range opts {
		opt(&d.opts)
	}

	return d
}

// Opener returns a serialport.Opener connected to this device. Every open
// replaces the previous line, so the device only talks to the newest port.
func (d *Device) Opener() serialport.Opener {
	return func(device string, mode *serial.Mode) (serialport.Port, error) {
		if d.opts.openErr != nil {
			return nil, fmt.Errorf("open %s: %w", device, d.opts.openErr)
		}

		host, dev := net.Pipe()
		sess := &session{
			conn:     dev,
			outbox:   make(chan string, outboxSize),
			done:     make(chan struct{}),
			expected: 1,
		}

		d.mu.Lock()
		prev := d.sess
		d.sess = sess
		d.opens++
		d.mu.Unlock()

		if prev != nil {
			prev.close()
		}

		port := &pipePort{conn: host, dev: d}
		if mode != nil {
			if err := port.SetMode(mode); err != nil {
				sess.close()
				_ = host.Close()

				return nil, err
			}
		}

		go d.writeLoop(sess)
		go d.readLoop(sess)

		if d.opts.banner != "" {
			sess.outbox <- d.opts.banner
		}

		return port, nil
	}
}

// BaudConfigurator returns a configurator that records the rates applied through it.
func (d *Device) BaudConfigurator() serialport.BaudConfigurator {
	return serialport.BaudConfiguratorFunc(func(_ string, rate int) error {
		d.mu.Lock()
		defer d.mu.Unlock()

		d.baud = append(d.baud, rate)

		return nil
	})
}

// Send writes line to the host, appending the terminator.
func (d *Device) Send(line string) error {
	d.mu.Lock()
	sess := d.sess
	d.mu.Unlock()

	if sess == nil {
		return ErrNotOpen
	}

	select {
	case <-sess.done:
		return ErrNotOpen
	default:
	}

	select {
	case sess.outbox <- line:
		return nil
	case <-sess.done:
		return ErrNotOpen
	}
}

// Close drops the line to the host.
func (d *Device) Close() error {
	d.mu.Lock()
	sess := d.sess
	d.sess = nil
	d.mu.Unlock()

	if sess != nil {
		sess.close()
	}

	return nil
}

// OpenCount returns how many times the device has been opened.
func (d *Device) OpenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.opens
}

// Modes returns every mode applied to the device's ports, in order.
func (d *Device) Modes() []serial.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]serial.Mode(nil), d.modes...)
}

// CustomBaudRates returns the rates applied through BaudConfigurator.
func (d *Device) CustomBaudRates() []int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]int(nil), d.baud...)
}

// Lines returns every raw line received from the host, without terminator.
func (d *Device) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.lines...)
}

// Received returns every frame the device decoded, including rejected ones.
func (d *Device) Received() []frame.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]frame.Frame(nil), d.received...)
}

// Accepted returns the frames the device accepted, in line number order.
func (d *Device) Accepted() []frame.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]frame.Frame(nil), d.accepted...)
}

// AcceptedPayloads returns the payloads of the accepted frames.
func (d *Device) AcceptedPayloads() []string {
	frames := d.Accepted()
	payloads := make([]string, 0, len(frames))
	for _, f := range frames {
		payloads = append(payloads, f.Payload)
	}

	return payloads
}

func (d *Device) recordMode(mode serial.Mode) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.modes = append(d.modes, mode)
}

func (d *Device) writeLoop(sess *session) {
	for {
		select {
		case <-sess.done:
			return
		case line := <-sess.outbox:
			if _, err := sess.conn.Write([]byte(line + "\n")); err != nil {
				sess.close()
				return
			}
		}
	}
}

func (d *Device) readLoop(sess *session) {
	defer sess.close()

	reader := bufio.NewReader(sess.conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		for _, reply := range d.handle(sess, strings.TrimRight(line, "\r\n")) {
			select {
			case sess.outbox <- reply:
			case <-sess.done:
				return
			}
		}
	}
}

// handle validates one incoming frame and returns the replies for it.
func (d *Device) handle(sess *session, line string) []string {
	f, err := frame.Parse(line)

	d.mu.Lock()
	d.lines = append(d.lines, line)
	if !errors.Is(err, frame.ErrMalformed) {
		d.received = append(d.received, f)
	}
	d.mu.Unlock()

	if !d.opts.autoReply {
		return nil
	}

	if errors.Is(err, frame.ErrMalformed) {
		d.opts.logger.Debug("devsim: malformed frame", "line", line, "error", err)
		return []string{
			fmt.Sprintf("Error:No Line Number with checksum, Last Line: %d", sess.expected-1),
			fmt.Sprintf("Resend: %d", sess.expected),
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case err != nil:
		d.opts.logger.Debug("devsim: checksum mismatch", "seq", f.Seq, "error", err)
		return []string{
			fmt.Sprintf("Error:checksum mismatch, Last Line: %d", sess.expected-1),
			fmt.Sprintf("Resend: %d", sess.expected),
		}

	case f.Seq != sess.expected:
		return []string{
			fmt.Sprintf("Error:Line Number is not Last Line Number+1, Last Line: %d", sess.expected-1),
			fmt.Sprintf("Resend: %d", sess.expected),
		}

	case d.opts.rejects[f.Seq] > 0:
		d.opts.rejects[f.Seq]--
		return []string{fmt.Sprintf("Resend: %d", f.Seq)}
	}

	sess.expected++
	d.accepted = append(d.accepted, f)

	return []string{"ok"}
}
