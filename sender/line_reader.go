package sender

import "bytes"

// maxLineLength bounds the read buffer when the device never sends a terminator.
const maxLineLength = 4096

// lineReader splits the byte stream read from the port into lines. It is owned
// by the I/O loop and is not goroutine-safe.
type lineReader struct {
	buf []byte
}

// feed appends data and calls fn for each complete line, without the trailing
// "\r\n". It stops and returns false as soon as fn does. A partial line longer
// than maxLineLength is dropped and its length passed to overflow.
func (lr *lineReader) feed(data []byte, fn func(line string) bool, overflow func(n int)) bool {
	lr.buf = append(lr.buf, data...)

	start := 0
	for {
		i := bytes.IndexByte(lr.buf[start:], '\n')
		if i < 0 {
			break
		}

		line := string(bytes.TrimRight(lr.buf[start:start+i], "\r"))
		start += i + 1

		if !fn(line) {
			lr.compact(start)
			return false
		}
	}
	lr.compact(start)

	if len(lr.buf) > maxLineLength {
		if overflow != nil {
			overflow(len(lr.buf))
		}
		lr.buf = lr.buf[:0]
	}

	return true
}

// compact drops the first n consumed bytes.
func (lr *lineReader) compact(n int) {
	if n == 0 {
		return
	}
	m := copy(lr.buf, lr.buf[n:])
	lr.buf = lr.buf[:m]
}

// pending returns the number of buffered bytes of an incomplete line.
func (lr *lineReader) pending() int {
	return len(lr.buf)
}
