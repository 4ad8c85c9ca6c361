package conn

import (
	"bytes"
	"io"

	"github.com/drake/telnetd/event"
	"github.com/drake/telnetd/telnet"
)

// writeLoop owns the write half of the transport. It is the sole
// owner of dst (which direction-switches to a telnet.Compressor once
// MCCP2 activates) and of the flush-strategy bookkeeping, mirroring
// the teacher's own single-goroutine writeLoop.
//
// It drains replyQ (option-engine replies) ahead of writeQ
// (application sends) every iteration, per spec §4.4: a peer's
// negotiation reply must stay responsive even when the host has a
// large backlog of its own sends queued.
func (c *Conn) writeLoop(transport io.Writer) {
	var dst io.Writer = transport
	var compressor *telnet.Compressor
	pendingSinceFlush := 0

	for {
		item, ok := c.nextWriteItem()
		if !ok {
			if compressor != nil {
				compressor.Close()
			}
			return
		}

		if len(item.bytes) > 0 {
			n, err := dst.Write(item.bytes)
			if err != nil {
				c.log.Printf("conn %s: write error: %v", c.id, err)
				c.emitEvent(event.Event{Kind: event.Disconnected})
				c.shutdown()
				if compressor != nil {
					compressor.Close()
				}
				return
			}
			c.stats.bytesWritten.Add(uint64(n))
			c.stats.framesWritten.Add(1)
			c.stats.touch()
			pendingSinceFlush += n
		}

		if item.activateOutbound != nil {
			compressor = telnet.NewDeflator(transport)
			dst = compressor
			pendingSinceFlush = 0
		}

		if c.shouldFlush(item, pendingSinceFlush) {
			if compressor != nil {
				if err := compressor.Flush(); err != nil {
					c.log.Printf("conn %s: flush error: %v", c.id, err)
				}
			}
			pendingSinceFlush = 0
		}
	}
}

// nextWriteItem returns the next item to write, preferring replyQ over
// writeQ, and reports false once the connection has closed. Items
// still buffered in either queue at that point are discarded, not
// written.
func (c *Conn) nextWriteItem() (writeItem, bool) {
	select {
	case item := <-c.replyQ.out:
		return item, true
	default:
	}

	select {
	case item := <-c.replyQ.out:
		return item, true
	case item := <-c.writeQ.out:
		return item, true
	case <-c.closed:
		return writeItem{}, false
	}
}

func (c *Conn) shouldFlush(item writeItem, pendingSinceFlush int) bool {
	if item.forceFlush {
		return true
	}
	c.flushMu.Lock()
	strategy := c.flush
	c.flushMu.Unlock()

	switch strategy.kind {
	case flushImmediate:
		return true
	case flushOnNewline:
		return bytes.ContainsRune(item.bytes, '\n')
	case flushOnThreshold:
		return pendingSinceFlush >= strategy.threshold
	default: // flushManual
		return false
	}
}
