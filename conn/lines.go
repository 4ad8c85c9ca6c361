package conn

import "github.com/drake/telnetd/event"

// emitLines appends p to the connection's line buffer and emits one
// Data event followed by one LineEnding event for every complete line
// now buffered, per spec §6's line-oriented read mode. Bytes after the
// last terminator stay in the buffer for the next call. A lone
// trailing CR is held back too, since the next byte decides whether it
// completes a CRLF pair or terminates the line on its own.
func (c *Conn) emitLines(p []byte) {
	c.lineBuf = append(c.lineBuf, p...)

	for {
		buf := c.lineBuf
		i := indexCROrLF(buf)
		if i < 0 {
			return
		}

		if buf[i] == '\n' {
			c.emitLine(buf[:i], event.LF)
			c.lineBuf = append([]byte(nil), buf[i+1:]...)
			continue
		}

		if i+1 == len(buf) {
			return
		}
		if buf[i+1] == '\n' {
			c.emitLine(buf[:i], event.CRLF)
			c.lineBuf = append([]byte(nil), buf[i+2:]...)
			continue
		}
		c.emitLine(buf[:i], event.CR)
		c.lineBuf = append([]byte(nil), buf[i+1:]...)
	}
}

func (c *Conn) emitLine(line []byte, ending event.Ending) {
	c.emitEvent(event.Event{Kind: event.Data, Bytes: line})
	c.emitEvent(event.Event{Kind: event.LineEnding, Ending: ending})
}

func indexCROrLF(buf []byte) int {
	for i, b := range buf {
		if b == '\r' || b == '\n' {
			return i
		}
	}
	return -1
}
