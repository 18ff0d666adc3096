package sender

import "sync/atomic"

// Metrics contains atomic counters of a Sender.
// The counters can be used as the value of a prometheus CounterFunc.
type Metrics struct {
	// FramesSent is the number of frames written, resends included.
	FramesSent atomic.Uint64
	// FramesResent is the number of frames written again after a resend request.
	FramesResent atomic.Uint64
	// BytesWritten is the number of bytes written to the port.
	BytesWritten atomic.Uint64

	// Acks is the number of acknowledgments that released a frame.
	Acks atomic.Uint64
	// ResendRequests is the number of resend requests received.
	ResendRequests atomic.Uint64
	// Desyncs is the number of resend requests for a line other than the last one sent.
	Desyncs atomic.Uint64

	// LinesReceived is the number of complete lines read from the device.
	LinesReceived atomic.Uint64
	// LinesIgnored is the number of lines that had no protocol meaning.
	LinesIgnored atomic.Uint64

	// TransportErrors is the number of read, write and close failures.
	TransportErrors atomic.Uint64
}

func (m *Metrics) incFramesSent() { m.FramesSent.Add(1) }
func (m *Metrics) incFramesResent() { m.FramesResent.Add(1) }
func (m *Metrics) addBytesWritten(n int) { m.BytesWritten.Add(uint64(n)) }
func (m *Metrics) incAcks() { m.Acks.Add(1) }
func (m *Metrics) incResendRequests() { m.ResendRequests.Add(1) }
func (m *Metrics) incDesyncs() { m.Desyncs.Add(1) }
func (m *Metrics) incLinesReceived() { m.LinesReceived.Add(1) }
func (m *Metrics) incLinesIgnored() { m.LinesIgnored.Add(1) }
func (m *Metrics) incTransportErrors() { m.TransportErrors.Add(1) }
