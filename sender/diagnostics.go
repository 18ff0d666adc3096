package sender

import "fmt"

// DiagKind classifies a Diagnostic.
type DiagKind int

const (
	// DiagResendMismatch reports a resend request for a line other than the last one sent.
	// The request is not honored and the connection stays open.
	DiagResendMismatch DiagKind = iota + 1
	// DiagUnexpectedAck reports an acknowledgment received while no frame was in flight.
	DiagUnexpectedAck
	// DiagTransportError reports a read, write or close failure of the port.
	DiagTransportError
	// DiagParseError reports a resend request without a usable line number.
	DiagParseError
)

func (k DiagKind) String() string {
	switch k {
	case DiagResendMismatch:
		return "resend-mismatch"
	case DiagUnexpectedAck:
		return "unexpected-ack"
	case DiagTransportError:
		return "transport-error"
	case DiagParseError:
		return "parse-error"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Diagnostic describes a protocol anomaly observed by a Sender.
type Diagnostic struct {
	Kind DiagKind
	// Line is the inbound line that caused the diagnostic, if any.
	Line string
	// Requested is the line number the device asked for.
	Requested uint64
	// Sent is the line number of the last frame sent.
	Sent uint64
	Err  error
}

// DiagnosticHandler receives diagnostics.
//
// Note: the handler is invoked synchronously on the goroutine that observed the
// anomaly, usually the I/O loop. Take care with long-running implementations.
type DiagnosticHandler func(d Diagnostic)

// AddDiagnosticHandler registers h and returns an id for RemoveDiagnosticHandler.
func (s *Sender) AddDiagnosticHandler(h DiagnosticHandler) uint64 {
	id := s.diagID.Add(1)
	s.diagHandlers.Store(id, h)

	return id
}

// RemoveDiagnosticHandler unregisters the handler with the given id.
func (s *Sender) RemoveDiagnosticHandler(id uint64) {
	s.diagHandlers.Delete(id)
}

func (s *Sender) report(d Diagnostic) {
	s.diagHandlers.Range(func(id uint64, h DiagnosticHandler) bool {
		s.invokeDiagHandler(id, h, d)
		return true
	})
}

func (s *Sender) invokeDiagHandler(id uint64, h DiagnosticHandler, d Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in diagnostic handler", "id", id, "kind", d.Kind.String(), "panic", r)
		}
	}()

	h(d)
}
