package sender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyReply(t *testing.T) {
	tests := []struct {
		line      string
		connected bool
		expected  replyKind
	}{
		{line: "start", expected: replyHandshake},
		{line: "start", connected: true, expected: replyOther},
		{line: "Grbl 1.1h ['$' for help]", expected: replyHandshake},
		{line: "Grbl 1.1h ['$' for help]", connected: true, expected: replyOther},
		{line: "Grbl", expected: replyOther},
		{line: "grbl 1.1h", expected: replyOther},
		{line: "ok", connected: true, expected: replyAck},
		{line: "ok T:210.0 /210.0", connected: true, expected: replyAck},
		{line: "ok", expected: replyAck},
		{line: "OK", connected: true, expected: replyOther},
		{line: "resend 5", connected: true, expected: replyResend},
		{line: "Resend: 5", connected: true, expected: replyResend},
		{line: "RESEND 5", connected: true, expected: replyResend},
		{line: "rs 5", connected: true, expected: replyResend},
		{line: "RS N5", connected: true, expected: replyResend},
		{line: "echo:busy: processing", connected: true, expected: replyOther},
		{line: "Error:checksum mismatch, Last Line: 4", connected: true, expected: replyOther},
		{line: "", connected: true, expected: replyOther},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyReply(tt.line, tt.connected))
		})
	}
}

func TestParseResend(t *testing.T) {
	tests := []struct {
		line     string
		expected uint64
	}{
		{line: "resend 5", expected: 5},
		{line: "Resend: 12", expected: 12},
		{line: "rs N7", expected: 7},
		{line: "rs 42 extra 9", expected: 42},
		{line: "resend:0", expected: 0},
		{line: "Resend: 18446744073709551615", expected: ^uint64(0)},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			n, err := parseResend(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n)
		})
	}
}

func TestParseResend_Invalid(t *testing.T) {
	for _, line := range []string{"resend", "rs", "Resend: N", "resend 18446744073709551616"} {
		t.Run(line, func(t *testing.T) {
			_, err := parseResend(line)
			require.ErrorIs(t, err, ErrResendParse)
		})
	}
}

func TestReplyKind_String(t *testing.T) {
	assert.Equal(t, "handshake", replyHandshake.String())
	assert.Equal(t, "ack", replyAck.String())
	assert.Equal(t, "resend", replyResend.String())
	assert.Equal(t, "other", replyOther.String())
}

func TestDiagKind_String(t *testing.T) {
	assert.Equal(t, "resend-mismatch", DiagResendMismatch.String())
	assert.Equal(t, "unexpected-ack", DiagUnexpectedAck.String())
	assert.Equal(t, "transport-error", DiagTransportError.String())
	assert.Equal(t, "parse-error", DiagParseError.String())
	assert.Equal(t, "unknown(0)", DiagKind(0).String())
}
