package frame

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// CommentChar starts a comment that runs to the end of the line.
	CommentChar = ';'
	// LinePrefix precedes the sequence number of every frame.
	LinePrefix = 'N'
	// ChecksumSeparator separates the payload from the checksum.
	ChecksumSeparator = '*'
	// Terminator ends every frame.
	Terminator = '\n'
)

var (
	ErrMalformed        = errors.New("frame: malformed frame")
	ErrChecksumMismatch = errors.New("frame: checksum mismatch")
)

// Frame is one checksum-protected, sequence-numbered command line.
type Frame struct {
	Seq      uint64
	Payload  string
	Checksum int
}

// New builds the frame for line with sequence number seq.
func New(seq uint64, line string) Frame {
	payload := Payload(line)

	return Frame{Seq: seq, Payload: payload, Checksum: Checksum(payload)}
}

// String returns the wire representation of the frame, including the terminator.
func (f Frame) String() string {
	var sb strings.Builder
	sb.Grow(len(f.Payload) + 24)

	sb.WriteByte(LinePrefix)
	sb.WriteString(strconv.FormatUint(f.Seq, 10))
	sb.WriteByte(' ')
	sb.WriteString(f.Payload)
	sb.WriteByte(ChecksumSeparator)
	sb.WriteString(strconv.Itoa(f.Checksum))
	sb.WriteByte(Terminator)

	return sb.String()
}

// Encode returns the wire frame for line with sequence number seq.
func Encode(seq uint64, line string) string {
	return New(seq, line).String()
}

// asciiSpace is the set of bytes Payload trims. Unicode spaces are payload.
const asciiSpace = " \t\n\v\f\r"

// Payload strips a trailing comment from line and trims surrounding ASCII whitespace.
func Payload(line string) string {
	if i := strings.IndexByte(line, CommentChar); i >= 0 {
		line = line[:i]
	}

	return strings.Trim(line, asciiSpace)
}

// Checksum returns the XOR of all bytes of payload.
func Checksum(payload string) int {
	cs := 0
	for i := 0; i < len(payload); i++ {
		cs ^= int(payload[i])
	}

	return cs
}

// Parse decodes a wire frame and verifies its checksum.
//
// The trailing terminator and any carriage return are optional. A frame that
// cannot be split into its parts returns ErrMalformed; a frame whose checksum
// does not match its payload returns the decoded frame together with
// ErrChecksumMismatch, so the receiver can still request the line by number.
func Parse(wire string) (Frame, error) {
	wire = strings.TrimRight(wire, "\r\n")

	if len(wire) < 2 || wire[0] != LinePrefix {
		return Frame{}, fmt.Errorf("%w: missing line number in %q", ErrMalformed, wire)
	}

	sp := strings.IndexByte(wire, ' ')
	if sp < 0 {
		return Frame{}, fmt.Errorf("%w: missing payload separator in %q", ErrMalformed, wire)
	}

	seq, err := strconv.ParseUint(wire[1:sp], 10, 64)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: invalid line number in %q: %w", ErrMalformed, wire, err)
	}

	star := strings.LastIndexByte(wire, ChecksumSeparator)
	if star < sp {
		return Frame{Seq: seq}, fmt.Errorf("%w: missing checksum in %q", ErrMalformed, wire)
	}

	cs, err := strconv.Atoi(wire[star+1:])
	if err != nil {
		return Frame{Seq: seq}, fmt.Errorf("%w: invalid checksum in %q: %w", ErrMalformed, wire, err)
	}

	f := Frame{Seq: seq, Payload: wire[sp+1 : star], Checksum: cs}
	if want := Checksum(f.Payload); want != cs {
		return f, fmt.Errorf("%w: line %d: got %d, want %d", ErrChecksumMismatch, seq, cs, want)
	}

	return f, nil
}
