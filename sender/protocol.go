package sender

import (
	"fmt"
	"io"
	"strings"

	"github.com/arloliu/go-gcode/frame"
	"github.com/arloliu/go-gcode/serialport"
)

// Send appends line to the outbound queue and sends it when the device is ready.
func (s *Sender) Send(line string) {
	s.mu.Lock()
	s.st.queue.Enqueue(line)
	s.mu.Unlock()

	s.trySend()
}

// SendLines appends lines to the outbound queue as one batch, keeping their order.
func (s *Sender) SendLines(lines []string) {
	if len(lines) == 0 {
		return
	}

	s.mu.Lock()
	s.st.queue.Enqueue(lines...)
	s.mu.Unlock()

	s.trySend()
}

// PauseQueue stops sending new frames. A frame already in flight still completes.
func (s *Sender) PauseQueue() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.paused = true
}

// ResumeQueue resumes sending.
func (s *Sender) ResumeQueue() {
	s.mu.Lock()
	s.st.paused = false
	s.mu.Unlock()

	s.trySend()
}

// IsPaused reports whether the queue is paused.
func (s *Sender) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.st.paused
}

// QueueSize returns the number of lines not yet acknowledged, the one in flight included.
func (s *Sender) QueueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.st.queue.Length()
}

// LineNumber returns the line number of the last frame sent.
func (s *Sender) LineNumber() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.st.sent
}

// trySend sends the head of the queue if the protocol allows it. The frame is
// built under the state lock and written outside of it.
func (s *Sender) trySend() {
	s.mu.Lock()
	port, wire, resend, ok := s.nextFrameLocked()
	s.mu.Unlock()

	if ok {
		s.write(port, wire, resend)
	}
}

func (s *Sender) nextFrameLocked() (port serialport.Port, wire string, resend bool, ok bool) {
	st := &s.st
	if !st.canSend || st.paused || st.port == nil {
		return nil, "", false, false
	}

	line, ok := st.queue.Peek()
	if !ok {
		return nil, "", false, false
	}

	st.sent++
	st.canSend = false
	st.inFlight = true
	resend = st.resending
	st.resending = false

	return st.port, frame.Encode(st.sent, line), resend, true
}

func (s *Sender) write(port serialport.Port, wire string, resend bool) {
	s.writeMu.Lock()
	n, err := io.WriteString(port, wire)
	s.writeMu.Unlock()

	if n > 0 {
		s.metrics.addBytesWritten(n)
	}
	if err != nil {
		s.writeFailed(port, err)
		return
	}

	s.metrics.incFramesSent()
	if resend {
		s.metrics.incFramesResent()
	}
	s.logger.Debug("frame sent", "frame", strings.TrimSuffix(wire, "\n"), "resend", resend)
}

// writeFailed flags the error and hands the close to the I/O loop, which may be
// the calling goroutine itself.
func (s *Sender) writeFailed(port serialport.Port, err error) {
	s.mu.Lock()
	current := s.st.port == port
	s.mu.Unlock()

	if !current || s.opState.IsClosing() {
		s.logger.Debug("write to closed port", "error", err)
		return
	}

	wrapped := fmt.Errorf("%w: write: %w", ErrTransport, err)
	s.metrics.incTransportErrors()
	s.logger.Error("failed to write frame", "device", s.Device(), "error", wrapped)
	s.fail(wrapped)
	s.report(Diagnostic{Kind: DiagTransportError, Sent: s.LineNumber(), Err: wrapped})
	s.post(s.doClose)
}

// fail flags a fatal error and stops the flow of frames.
func (s *Sender) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failLocked(err)
}

func (s *Sender) failLocked(err error) {
	s.st.connected = false
	s.st.canSend = false
	s.setErrorLocked(err)
}

// handleLine runs the protocol state machine for one line read from port. It
// returns false when the line was fatal or port is no longer the port of the
// sender, and the I/O loop must stop.
func (s *Sender) handleLine(port serialport.Port, line string) bool {
	defer s.metrics.incLinesReceived()

	var (
		send     bool
		diag     *Diagnostic
		fatalErr error
	)

	s.mu.Lock()
	if s.st.port != port {
		s.mu.Unlock()
		s.logger.Debug("dropping line read from closed port", "line", line)

		return false
	}

	kind := classifyReply(line, s.st.connected)
	switch kind {
	case replyHandshake:
		s.st.connected = true
		s.st.canSend = true
		send = true
		s.cond.Broadcast()

	case replyAck:
		if !s.st.inFlight {
			diag = &Diagnostic{Kind: DiagUnexpectedAck, Line: line, Sent: s.st.sent}
			break
		}
		s.st.queue.Dequeue()
		s.st.inFlight = false
		s.st.canSend = true
		send = true
		s.metrics.incAcks()
		s.cond.Broadcast()

	case replyResend:
		s.metrics.incResendRequests()
		requested, err := parseResend(line)
		switch {
		case err != nil:
			fatalErr = err
			s.failLocked(err)
		case s.st.sent > 0 && requested == s.st.sent:
			s.st.sent--
			s.st.canSend = true
			s.st.inFlight = false
			s.st.resending = true
			send = true
		default:
			s.metrics.incDesyncs()
			diag = &Diagnostic{Kind: DiagResendMismatch, Line: line, Requested: requested, Sent: s.st.sent}
		}

	default:
		s.metrics.incLinesIgnored()
	}
	s.mu.Unlock()

	if h := s.cfg.inboundHandler; h != nil {
		h(line)
	}

	if fatalErr != nil {
		s.logger.Error("invalid resend request", "line", line, "error", fatalErr)
		s.report(Diagnostic{Kind: DiagParseError, Line: line, Err: fatalErr})

		return s.doClose()
	}

	if diag != nil {
		switch diag.Kind {
		case DiagResendMismatch:
			s.logger.Warn("cannot resend line", "requested", diag.Requested, "last_sent", diag.Sent)
		case DiagUnexpectedAck:
			s.logger.Debug("ack with no frame in flight", "line", line)
		}
		s.report(*diag)
	}

	if kind == replyHandshake {
		s.logger.Info("device connected", "device", s.Device(), "banner", line)
	}

	if send {
		s.trySend()
	}

	return true
}
