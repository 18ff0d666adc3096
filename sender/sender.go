package sender

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-gcode/internal/queue"
	"github.com/arloliu/go-gcode/internal/task"
	"github.com/arloliu/go-gcode/logger"
	"github.com/arloliu/go-gcode/serialport"
	"github.com/puzpuzpuz/xsync/v3"
	"go.bug.st/serial"
)

// jobQueueSize is the capacity of the channel of jobs posted to the I/O loop.
const jobQueueSize = 4

// Sender streams lines to one serial device with ack/resend flow control.
//
// Every method is safe for concurrent use. Lines may be queued before Connect;
// they are sent once the device announces itself.
type Sender struct {
	cfg     *Config
	logger  logger.Logger
	opState AtomicOpState
	taskMgr *task.Manager

	// lifeMu serializes Connect and Disconnect.
	lifeMu sync.Mutex

	// mu guards st, device and baudRate. cond is signaled on every change of
	// st that a waiter may observe.
	mu       sync.Mutex
	cond     *sync.Cond
	st       protoState
	device   string
	baudRate int

	// writeMu serializes writes to the port. It is never held together with mu.
	writeMu sync.Mutex

	// jobs is drained by the I/O loop before each read. A job returning false stops the loop.
	jobs chan func() bool

	// onLoop is set while the I/O loop handles input, a read error or a job,
	// the only time it invokes handlers.
	onLoop atomic.Bool

	diagID       atomic.Uint64
	diagHandlers *xsync.MapOf[uint64, DiagnosticHandler]

	metrics Metrics
}

// protoState is the protocol state machine, guarded by Sender.mu.
type protoState struct {
	queue *queue.SliceQueue[string]
	// port is nil once the transport has been closed.
	port serialport.Port

	paused    bool
	connected bool
	// canSend is true when nothing is in flight and the device is ready.
	canSend bool
	// inFlight is true while the head of the queue waits for its acknowledgment.
	inFlight bool
	// resending is true when the next frame answers a resend request.
	resending bool
	// sent is the line number of the last frame sent.
	sent uint64

	errFlag bool
	lastErr error
}

// New creates a Sender with the given parent context and configuration.
//
// Canceling ctx is fatal to an open connection: the port is closed and the error
// flag is set, as for a read failure. Disconnect must still be called, and no
// later Connect succeeds.
func New(ctx context.Context, cfg *Config) (*Sender, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	s := &Sender{
		cfg:          cfg,
		logger:       cfg.logger,
		taskMgr:      task.NewManager(ctx, cfg.logger),
		jobs:         make(chan func() bool, jobQueueSize),
		diagHandlers: xsync.NewMapOf[uint64, DiagnosticHandler](),
	}
	s.cond = sync.NewCond(&s.mu)
	s.st.queue = queue.NewSliceQueue[string](cfg.queueCapacity)

	context.AfterFunc(ctx, func() { s.contextDone(ctx) })

	return s, nil
}

// GetLogger returns the logger of the sender.
func (s *Sender) GetLogger() logger.Logger {
	return s.logger
}

// GetMetrics returns the counters of the sender.
func (s *Sender) GetMetrics() *Metrics {
	return &s.metrics
}

// Connect opens device at baudRate and starts reading from it.
//
// The port is first opened with odd parity and then reopened without parity,
// which resets the line on adapters that otherwise come up in a stale state.
// The baud rate is applied after each open, through the portable driver first
// and the platform BaudConfigurator when the driver rejects the rate.
//
// Connect returns once the port is open; the device is not connected until it
// sends its handshake banner, see WaitConnected. Lines queued before Connect
// are kept. Every failure wraps ErrConnectFailed and sets the error flag.
func (s *Sender) Connect(device string, baudRate int) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if baudRate <= 0 {
		return fmt.Errorf("%w: %w: %d", ErrConnectFailed, ErrInvalidBaudRate, baudRate)
	}

	if !s.opState.ToOpening() {
		return fmt.Errorf("%w: %w: %s is %s", ErrConnectFailed, ErrAlreadyOpen, s.Device(), s.opState.String())
	}

	s.mu.Lock()
	s.st.errFlag = false
	s.st.lastErr = nil
	s.mu.Unlock()

	s.logger.Debug("open serial port", "device", device, "baud_rate", baudRate)

	port, err := s.openPort(device, baudRate)
	if err != nil {
		return s.connectFailed(device, err)
	}

	s.mu.Lock()
	s.st.port = port
	s.st.connected = false
	s.st.canSend = false
	s.st.inFlight = false
	s.st.resending = false
	s.st.sent = 0
	s.device = device
	s.baudRate = baudRate
	s.mu.Unlock()

	s.drainJobs()
	s.opState.ToOpened()

	if err := s.startIOLoop(port); err != nil {
		s.mu.Lock()
		s.st.port = nil
		s.mu.Unlock()
		_ = port.Close()

		return s.connectFailed(device, err)
	}

	s.logger.Info("serial port opened", "device", device, "baud_rate", baudRate)

	return nil
}

func (s *Sender) connectFailed(device string, err error) error {
	s.opState.Set(ClosedState)
	s.setError(err)
	s.logger.Error("failed to connect", "device", device, "error", err)

	return fmt.Errorf("%w: %w", ErrConnectFailed, err)
}

// openPort runs the open, configure, close, reopen sequence and returns the
// port ready for streaming.
func (s *Sender) openPort(device string, baudRate int) (serialport.Port, error) {
	mode := serialport.Mode(serial.OddParity)
	port, err := s.cfg.opener(device, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrTransport, device, err)
	}

	if err := s.setBaudRate(port, mode, device, baudRate); err != nil {
		_ = port.Close()
		return nil, err
	}

	if err := port.Close(); err != nil {
		return nil, fmt.Errorf("%w: close %s: %w", ErrTransport, device, err)
	}

	mode = serialport.Mode(serial.NoParity)
	port, err = s.cfg.opener(device, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: reopen %s: %w", ErrTransport, device, err)
	}

	// reopening resets the line settings, so the rate is applied again
	if err := s.setBaudRate(port, mode, device, baudRate); err != nil {
		_ = port.Close()
		return nil, err
	}

	if err := port.SetReadTimeout(s.cfg.pollTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("%w: set read timeout: %w", ErrTransport, err)
	}

	return port, nil
}

func (s *Sender) setBaudRate(port serialport.Port, mode *serial.Mode, device string, baudRate int) error {
	err := serialport.SetBaudRate(port, mode, baudRate)
	if err == nil {
		return nil
	}

	s.logger.Debug("baud rate rejected by driver, configuring divisor", "device", device, "baud_rate", baudRate, "error", err)

	if cerr := s.cfg.baudConfigurator.ConfigureBaud(device, baudRate); cerr != nil {
		return fmt.Errorf("%w: %d: %w", ErrBaudRate, baudRate, cerr)
	}

	return nil
}

// Disconnect closes the port and stops the I/O loop. It is a no-op when the
// sender is not open or another Disconnect is in progress.
//
// The close itself runs on the I/O loop; Disconnect waits for the loop to stop,
// bounded by the close timeout, then clears the queue and the protocol state.
// Handlers invoked for the input being handled when Disconnect is called may still
// complete; no later input reaches them. If an error occurred while open,
// including a failure to close the port, the returned error wraps ErrCloseFailed.
//
// Handlers may call Disconnect. Called from the I/O loop, Disconnect closes the
// port in place and returns without waiting; the loop stops once the handler
// returns.
func (s *Sender) Disconnect() error {
	// reentered from a handler the close invoked
	if s.opState.IsClosing() {
		return nil
	}

	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if !s.opState.IsOpened() {
		return nil
	}
	s.opState.ToClosing()

	s.mu.Lock()
	s.st.connected = false
	s.st.canSend = false
	device := s.device
	s.mu.Unlock()

	switch {
	case s.onLoop.Load():
		// the loop cannot be joined from one of its own handlers
		s.logger.Debug("disconnect from the I/O loop", "device", device)
	case s.joinIOLoop():
	default:
		s.logger.Error("close timeout", "device", device, "timeout", s.cfg.closeTimeout)
		s.setError(fmt.Errorf("%w: %s", ErrCloseTimeout, s.cfg.closeTimeout))
		s.taskMgr.Stop()
	}

	// the loop has stopped, is the caller, or will only observe the canceled context
	s.closePort()

	s.mu.Lock()
	s.st.queue.Reset()
	s.st.paused = false
	s.st.canSend = false
	s.st.inFlight = false
	s.st.resending = false
	s.st.sent = 0
	errFlag, lastErr := s.st.errFlag, s.st.lastErr
	s.cond.Broadcast()
	s.mu.Unlock()

	s.opState.ToClosed()

	if errFlag {
		s.logger.Warn("serial port closed with error", "device", device, "error", lastErr)
		if lastErr != nil {
			return fmt.Errorf("%w: %w", ErrCloseFailed, lastErr)
		}

		return ErrCloseFailed
	}

	s.logger.Info("serial port closed", "device", device)

	return nil
}

// joinIOLoop asks the I/O loop to close the port and waits for it to stop.
func (s *Sender) joinIOLoop() bool {
	s.post(s.doClose)

	return s.taskMgr.WaitTimeout(s.cfg.closeTimeout)
}

// contextDone fails an open connection when the parent context of the sender
// is canceled, since the I/O loop stops without closing the port.
func (s *Sender) contextDone(ctx context.Context) {
	if !s.opState.IsOpened() {
		return
	}

	err := fmt.Errorf("%w: %w", ErrCanceled, context.Cause(ctx))
	s.logger.Error("sender context canceled", "device", s.Device(), "error", err)
	s.fail(err)
	s.closePort()
}

// IsOpen reports whether the port is open.
func (s *Sender) IsOpen() bool {
	return s.opState.IsOpened()
}

// IsConnected reports whether the device has sent its handshake banner.
func (s *Sender) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.st.connected
}

// ErrorStatus reports whether a fatal error occurred since the last Connect.
func (s *Sender) ErrorStatus() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.st.errFlag
}

// Err returns the first fatal error since the last Connect, or nil.
func (s *Sender) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.st.lastErr
}

// Device returns the device path of the current or last connection.
func (s *Sender) Device() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.device
}

// BaudRate returns the baud rate of the current or last connection.
func (s *Sender) BaudRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.baudRate
}

// WaitConnected waits until the device has sent its handshake banner or ctx is done.
func (s *Sender) WaitConnected(ctx context.Context) error {
	return s.waitFor(ctx, func(st *protoState) bool { return st.connected })
}

// WaitQueueEmpty waits until every queued line has been acknowledged or ctx is done.
func (s *Sender) WaitQueueEmpty(ctx context.Context) error {
	return s.waitFor(ctx, func(st *protoState) bool { return st.queue.IsEmpty() })
}

// waitFor waits for cond to hold. It fails early when a fatal error is flagged
// or the sender is closed.
func (s *Sender) waitFor(ctx context.Context, cond func(st *protoState) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopFunc := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stopFunc()

	for {
		if cond(&s.st) {
			return nil
		}

		if s.st.errFlag {
			if s.st.lastErr != nil {
				return s.st.lastErr
			}

			return ErrTransport
		}

		if s.opState.IsClosed() || s.opState.IsClosing() {
			return ErrNotOpen
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		s.cond.Wait()
	}
}

// setError flags a fatal error. The first error is kept.
func (s *Sender) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setErrorLocked(err)
}

func (s *Sender) setErrorLocked(err error) {
	s.st.errFlag = true
	if s.st.lastErr == nil {
		s.st.lastErr = err
	}
	s.cond.Broadcast()
}

// closePort closes the port if it is still open and reports whether it was.
func (s *Sender) closePort() bool {
	s.mu.Lock()
	port := s.st.port
	s.st.port = nil
	s.mu.Unlock()

	if port == nil {
		return false
	}

	if err := port.Close(); err != nil {
		s.metrics.incTransportErrors()
		wrapped := fmt.Errorf("%w: close: %w", ErrTransport, err)
		s.setError(wrapped)
		s.report(Diagnostic{Kind: DiagTransportError, Err: wrapped})
	}

	return true
}

// post hands a job to the I/O loop without blocking.
func (s *Sender) post(job func() bool) {
	select {
	case s.jobs <- job:
	default:
		s.logger.Debug("job queue full, dropping job")
	}
}

func (s *Sender) drainJobs() {
	for {
		select {
		case <-s.jobs:
		default:
			return
		}
	}
}

// isExpectedCloseErr reports whether a read error comes from a port that was
// closed on purpose.
func (s *Sender) isExpectedCloseErr() bool {
	if s.opState.IsClosing() || s.opState.IsClosed() {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.st.port == nil
}
