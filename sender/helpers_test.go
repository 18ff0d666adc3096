package sender

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-gcode/internal/devsim"
	"github.com/arloliu/go-gcode/serialport"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

const (
	testDevice   = "/dev/ttySIM0"
	testBaudRate = 115200

	waitTimeout = 2 * time.Second
	quietPeriod = 30 * time.Millisecond
	tick        = time.Millisecond
)

var errInjected = errors.New("injected failure")

// newTestSender creates a Sender wired to dev with short timeouts suitable for tests.
func newTestSender(t *testing.T, dev *devsim.Device, opts ...Option) *Sender {
	t.Helper()

	defaults := []Option{
		WithOpener(dev.Opener()),
		WithBaudConfigurator(dev.BaudConfigurator()),
		WithPollTimeout(5 * time.Millisecond),
		WithCloseTimeout(time.Second),
	}

	cfg, err := NewConfig(append(defaults, opts...)...)
	require.NoError(t, err)

	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Disconnect() })

	return s
}

// connectTestSender creates a Sender and opens it on dev.
func connectTestSender(t *testing.T, dev *devsim.Device, opts ...Option) *Sender {
	t.Helper()

	s := newTestSender(t, dev, opts...)
	require.NoError(t, s.Connect(testDevice, testBaudRate))
	require.True(t, s.IsOpen())

	return s
}

// handshake makes dev announce itself and waits for s to see it.
func handshake(t *testing.T, s *Sender, dev *devsim.Device, banner string) {
	t.Helper()

	reply(t, s, dev, banner)
	require.True(t, s.IsConnected())
}

// testContext returns a context bounded by waitTimeout.
func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	t.Cleanup(cancel)

	return ctx
}

// waitLines waits until dev has received at least n lines and returns them.
func waitLines(t *testing.T, dev *devsim.Device, n int) []string {
	t.Helper()

	require.Eventually(t, func() bool { return len(dev.Lines()) >= n }, waitTimeout, tick)

	return dev.Lines()
}

// reply sends line from dev and waits until s has processed it. Every line the
// device sends must go through reply for the wait to be exact.
func reply(t *testing.T, s *Sender, dev *devsim.Device, line string) {
	t.Helper()

	before := s.GetMetrics().LinesReceived.Load()
	require.NoError(t, dev.Send(line))
	require.Eventually(t, func() bool { return s.GetMetrics().LinesReceived.Load() > before }, waitTimeout, tick)
}

// diagRecorder collects the diagnostics reported by a Sender.
type diagRecorder struct {
	mu    sync.Mutex
	diags []Diagnostic
}

func recordDiagnostics(s *Sender) *diagRecorder {
	r := &diagRecorder{}
	s.AddDiagnosticHandler(func(d Diagnostic) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.diags = append(r.diags, d)
	})

	return r
}

func (r *diagRecorder) get() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Diagnostic(nil), r.diags...)
}

func (r *diagRecorder) kinds() []DiagKind {
	var kinds []DiagKind
	for _, d := range r.get() {
		kinds = append(kinds, d.Kind)
	}

	return kinds
}

// faultPort wraps a port and fails its writes or close on demand.
type faultPort struct {
	serialport.Port
	failWrites atomic.Bool
	failClose  atomic.Bool
	closed     atomic.Bool
}

func (p *faultPort) Write(b []byte) (int, error) {
	if p.failWrites.Load() {
		return 0, errInjected
	}

	return p.Port.Write(b)
}

func (p *faultPort) Close() error {
	p.closed.Store(true)
	err := p.Port.Close()
	if p.failClose.Load() {
		return errInjected
	}

	return err
}

// faultOpener opens ports through dev and keeps the last one opened.
type faultOpener struct {
	dev *devsim.Device

	mu   sync.Mutex
	last *faultPort
}

func (o *faultOpener) open(device string, mode *serial.Mode) (serialport.Port, error) {
	p, err := o.dev.Opener()(device, mode)
	if err != nil {
		return nil, err
	}

	fp := &faultPort{Port: p}
	o.mu.Lock()
	o.last = fp
	o.mu.Unlock()

	return fp, nil
}

func (o *faultOpener) port() *faultPort {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.last
}
