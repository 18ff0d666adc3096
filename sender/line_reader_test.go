package sender

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func collect(lines *[]string) func(string) bool {
	return func(line string) bool {
		*lines = append(*lines, line)
		return true
	}
}

func TestLineReader_Split(t *testing.T) {
	var lr lineReader
	var lines []string

	assert.True(t, lr.feed([]byte("ok\r\nstart\n"), collect(&lines), nil))
	assert.Equal(t, []string{"ok", "start"}, lines)
	assert.Zero(t, lr.pending())
}

func TestLineReader_PartialLines(t *testing.T) {
	var lr lineReader
	var lines []string

	lr.feed([]byte("Gr"), collect(&lines), nil)
	assert.Empty(t, lines)
	assert.Equal(t, 2, lr.pending())

	lr.feed([]byte("bl 1.1h\r"), collect(&lines), nil)
	assert.Empty(t, lines)

	lr.feed([]byte("\nok\nrs"), collect(&lines), nil)
	assert.Equal(t, []string{"Grbl 1.1h", "ok"}, lines)
	assert.Equal(t, 2, lr.pending())

	lr.feed([]byte(" 4\n"), collect(&lines), nil)
	assert.Equal(t, []string{"Grbl 1.1h", "ok", "rs 4"}, lines)
}

func TestLineReader_EmptyLine(t *testing.T) {
	var lr lineReader
	var lines []string

	lr.feed([]byte("\n\r\n"), collect(&lines), nil)
	assert.Equal(t, []string{"", ""}, lines)
}

func TestLineReader_Stop(t *testing.T) {
	var lr lineReader
	var lines []string

	stopAtResend := func(line string) bool {
		lines = append(lines, line)
		return line != "resend"
	}

	assert.False(t, lr.feed([]byte("ok\nresend\nok\n"), stopAtResend, nil))
	assert.Equal(t, []string{"ok", "resend"}, lines)
	assert.Equal(t, len("ok\n"), lr.pending())
}

func TestLineReader_Overflow(t *testing.T) {
	var lr lineReader
	var lines []string
	var dropped int

	lr.feed([]byte(strings.Repeat("x", maxLineLength+1)), collect(&lines), func(n int) { dropped = n })
	assert.Equal(t, maxLineLength+1, dropped)
	assert.Zero(t, lr.pending())

	lr.feed([]byte("ok\n"), collect(&lines), nil)
	assert.Equal(t, []string{"ok"}, lines)
}
