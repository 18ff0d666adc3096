package sender

import (
	"fmt"
	"strconv"
	"strings"
)

// Inbound line prefixes.
const (
	handshakeStart = "start"
	handshakeGrbl  = "Grbl "
	ackPrefix      = "ok"
	resendLong     = "resend"
	resendShort    = "rs"
)

type replyKind int

const (
	replyOther replyKind = iota
	replyHandshake
	replyAck
	replyResend
)

func (k replyKind) String() string {
	switch k {
	case replyHandshake:
		return "handshake"
	case replyAck:
		return "ack"
	case replyResend:
		return "resend"
	default:
		return "other"
	}
}

// classifyReply returns what an inbound line means to the protocol. The
// handshake banner only counts while not connected.
func classifyReply(line string, connected bool) replyKind {
	switch {
	case !connected && (strings.HasPrefix(line, handshakeStart) || strings.HasPrefix(line, handshakeGrbl)):
		return replyHandshake
	case strings.HasPrefix(line, ackPrefix):
		return replyAck
	case hasPrefixFold(line, resendLong) || hasPrefixFold(line, resendShort):
		return replyResend
	default:
		return replyOther
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// parseResend extracts the first run of digits of a resend request.
func parseResend(line string) (uint64, error) {
	start := strings.IndexFunc(line, isDigit)
	if start < 0 {
		return 0, fmt.Errorf("%w: no line number in %q", ErrResendParse, line)
	}

	end := start
	for end < len(line) && isDigit(rune(line[end])) {
		end++
	}

	n, err := strconv.ParseUint(line[start:end], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrResendParse, line, err)
	}

	return n, nil
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
