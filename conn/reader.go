package conn

import (
	"errors"
	"fmt"
	"io"

	"github.com/drake/telnetd/event"
	"github.com/drake/telnetd/option"
	"github.com/drake/telnetd/telnet"
)

// readLoop owns the read half of the transport and the decoder. It is
// the sole writer of the decoder's state and the sole owner of src
// (which direction-switches to a telnet.Compressor once MCCP3
// activates), mirroring the teacher's own single-goroutine readLoop
// that owned its Parser.
func (c *Conn) readLoop() {
	defer c.shutdown()

	var src io.Reader = c.netConn
	var consecutiveDecompressErrors int
	buf := make([]byte, 4096)

	for {
		n, err := src.Read(buf)
		if err != nil {
			if _, ok := src.(*telnet.Compressor); ok {
				// The peer's MCCP3 stream failed mid-session, not just at
				// activation. Same recovery as processRead's inflate-init
				// failure: signal DONT MCCP3, count it, and only give up
				// after a second consecutive failure.
				if c.handleDecompressError(err, &consecutiveDecompressErrors) {
					return
				}
				src = c.netConn
				continue
			}
			c.handleReadError(err)
			return
		}
		if n == 0 {
			continue
		}

		c.stats.bytesRead.Add(uint64(n))
		c.stats.touch()

		newSrc, fatal := c.processRead(buf[:n], src, &consecutiveDecompressErrors)
		if fatal {
			return
		}
		src = newSrc
	}
}

// processRead decodes p (re-decoding any unauthorized-MCCP tail
// bytes), applying at most one genuine inbound compression activation
// along the way, and returns the reader's new source (unchanged unless
// MCCP3 just activated).
func (c *Conn) processRead(p []byte, src io.Reader, consecutiveDecompressErrors *int) (io.Reader, bool) {
	for {
		frames, tail := c.decoder.Decode(p)

		var inbound *option.CompressSignal
		for _, f := range frames {
			c.stats.framesRead.Add(1)
			if sig := c.dispatchFrame(f); sig != nil {
				inbound = sig
			}
		}

		if inbound == nil {
			if len(tail) == 0 {
				return src, false
			}
			// The decoder split here because an MCCP2/MCCP3 subneg
			// closed, but the engine did not authorize an activation
			// (e.g. a client sending MCCP2, which this core never
			// enables on the remote view). The tail bytes are
			// ordinary uncompressed wire bytes; keep decoding them.
			p = tail
			continue
		}

		newSrc, err := telnet.NewInflator(tail, src)
		if err != nil {
			if c.handleDecompressError(err, consecutiveDecompressErrors) {
				return src, true
			}
			p = tail
			continue
		}
		*consecutiveDecompressErrors = 0
		return newSrc, false
	}
}

// handleDecompressError records one failed attempt to read or activate
// the peer's compressed stream, tells the engine to fall back (DONT
// MCCP3), and reports whether the stream is unrecoverable.
// Two consecutive failures without an intervening success means the
// peer never heeded the first signal, or the stream itself is beyond
// repair; the caller tears the connection down in that case (spec
// §4.3/§7). A single failure is logged and left to the caller to retry
// against a plain transport read.
func (c *Conn) handleDecompressError(err error, consecutiveDecompressErrors *int) bool {
	*consecutiveDecompressErrors++
	c.log.Printf("conn %s: %v", c.id, fmt.Errorf("%w: %v", ErrDecompressError, err))
	c.mu.Lock()
	out := c.engine.RequestRemote(telnet.OptMCCP3, false)
	c.mu.Unlock()
	c.enqueueEngineFrames(out)

	if *consecutiveDecompressErrors < 2 {
		return false
	}
	c.emitEvent(event.Event{Kind: event.Disconnected})
	return true
}

// dispatchFrame turns one decoded telnet.Frame into engine calls, host
// events, and queued replies, returning an inbound compression
// activation signal if this frame's sub-negotiation triggered one.
func (c *Conn) dispatchFrame(f telnet.Frame) *option.CompressSignal {
	switch f.Kind {
	case telnet.KindData:
		if c.lineMode {
			c.emitLines(f.Data)
		} else {
			c.emitEvent(event.Event{Kind: event.Data, Bytes: f.Data})
		}

	case telnet.KindEndOfRecord:
		c.emitEvent(event.Event{Kind: event.EndOfRecord})

	case telnet.KindCommand, telnet.KindGoAhead, telnet.KindInterruptProcess, telnet.KindDataMark,
		telnet.KindBreak, telnet.KindAbortOutput, telnet.KindAreYouThere, telnet.KindEraseChar,
		telnet.KindEraseLine, telnet.KindNop:
		c.emitEvent(event.Event{Kind: event.Command, Command: commandByte(f)})

	case telnet.KindNegotiation:
		c.mu.Lock()
		out := c.engine.Receive(f.Verb, f.Option)
		c.mu.Unlock()
		c.enqueueEngineFrames(out)

	case telnet.KindSubNeg:
		c.mu.Lock()
		out := c.engine.ReceiveSubNegotiation(f.Option, f.Payload)
		c.mu.Unlock()
		return c.enqueueEngineFrames(out)
	}
	return nil
}

func commandByte(f telnet.Frame) byte {
	switch f.Kind {
	case telnet.KindGoAhead:
		return telnet.GA
	case telnet.KindInterruptProcess:
		return telnet.IP
	case telnet.KindDataMark:
		return telnet.DM
	case telnet.KindBreak:
		return telnet.BRK
	case telnet.KindAbortOutput:
		return telnet.AO
	case telnet.KindAreYouThere:
		return telnet.AYT
	case telnet.KindEraseChar:
		return telnet.EC
	case telnet.KindEraseLine:
		return telnet.EL
	case telnet.KindNop:
		return telnet.NOP
	default:
		return f.Command
	}
}

func (c *Conn) handleReadError(err error) {
	if errors.Is(err, io.EOF) {
		c.log.Printf("conn %s: %v", c.id, ErrTransportEOF)
	} else {
		c.log.Printf("conn %s: %v", c.id, fmt.Errorf("%w: %v", ErrTransportError, err))
	}
	c.emitEvent(event.Event{Kind: event.Disconnected})
}
