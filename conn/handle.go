package conn

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/drake/telnetd/event"
	"github.com/drake/telnetd/option"
	"github.com/drake/telnetd/telnet"
)

// TerminalCommand is a structured Telnet command a host can pass to
// Handle.Send without constructing a telnet.Frame itself.
type TerminalCommand int

const (
	CmdEndOfRecord TerminalCommand = iota
	CmdGoAhead
	CmdNop
	CmdInterruptProcess
	CmdDataMark
	CmdBreak
	CmdAbortOutput
	CmdAreYouThere
	CmdEraseChar
	CmdEraseLine
)

func (cmd TerminalCommand) frame() telnet.Frame {
	switch cmd {
	case CmdEndOfRecord:
		return telnet.EndOfRecord
	case CmdGoAhead:
		return telnet.GoAhead
	case CmdNop:
		return telnet.Nop
	case CmdInterruptProcess:
		return telnet.InterruptProcess
	case CmdDataMark:
		return telnet.DataMark
	case CmdBreak:
		return telnet.Break
	case CmdAbortOutput:
		return telnet.AbortOutput
	case CmdAreYouThere:
		return telnet.AreYouThere
	case CmdEraseChar:
		return telnet.EraseChar
	case CmdEraseLine:
		return telnet.EraseLine
	default:
		return telnet.Nop
	}
}

// Handle is the host application's entire interface to a connection.
// All methods are safe for concurrent use.
type Handle struct {
	c *Conn
}

// ID returns the connection's opaque identity.
func (h *Handle) ID() uuid.UUID { return h.c.ID() }

// Send queues item for writing. item must be a string, a []byte, a
// TerminalCommand, or a telnet.Frame; any other type returns an error
// without queuing anything. forceFlush writes through outbound
// compression immediately regardless of the connection's
// FlushStrategy.
func (h *Handle) Send(item any, forceFlush bool) error {
	var f telnet.Frame
	switch v := item.(type) {
	case string:
		f = telnet.Data([]byte(v))
	case []byte:
		f = telnet.Data(v)
	case TerminalCommand:
		f = v.frame()
	case telnet.Frame:
		f = v
	default:
		return fmt.Errorf("%w: unsupported item type %T", ErrSendError, item)
	}

	select {
	case <-h.c.closed:
		return ErrChannelClosed
	default:
	}

	h.c.writeQ.push(writeItem{bytes: telnet.Encode(nil, f), forceFlush: forceFlush})
	return nil
}

// Flush forces a compressed stream's pending bytes out to the
// transport on the writer's next turn, regardless of FlushStrategy.
func (h *Handle) Flush() error {
	select {
	case <-h.c.closed:
		return ErrChannelClosed
	default:
	}
	h.c.writeQ.push(writeItem{forceFlush: true})
	return nil
}

// SetFlushStrategy changes when the writer auto-flushes a compressed
// stream. It takes effect for items written after the call.
func (h *Handle) SetFlushStrategy(s FlushStrategy) {
	h.c.flushMu.Lock()
	h.c.flush = s
	h.c.flushMu.Unlock()
}

// NextEvent blocks until a TerminalEvent is available or the
// connection closes. The Disconnected event queued by the closing
// worker is delivered before ErrChannelClosed, since hostEvents is
// drained in FIFO order and is itself never closed; a worker that
// finds the connection already closed queues it only if hostEvents
// has room for it.
func (h *Handle) NextEvent() (event.Event, error) {
	select {
	case ev := <-h.c.hostEvents:
		return ev, nil
	case <-h.c.closed:
		select {
		case ev := <-h.c.hostEvents:
			return ev, nil
		default:
			return event.Event{}, ErrChannelClosed
		}
	}
}

// IsOptionEnabled reports whether opt is currently negotiated YES on
// the given side.
func (h *Handle) IsOptionEnabled(opt byte, side option.Side) bool {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	return h.c.engine.IsEnabled(opt, side)
}

// WindowSize returns the most recently negotiated NAWS dimensions.
func (h *Handle) WindowSize() (width, height int) {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	s := h.c.engine.Status()
	return s.Width, s.Height
}

// TerminalType returns the most recent TTYPE name reported, if any.
func (h *Handle) TerminalType() string {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	s := h.c.engine.Status()
	if len(s.TerminalTypes) == 0 {
		return ""
	}
	return s.TerminalTypes[len(s.TerminalTypes)-1]
}

// RequestOption asks the engine to enable or disable opt on side,
// for hosts that need to renegotiate mid-connection (e.g. toggling
// server-side echo).
func (h *Handle) RequestOption(opt byte, side option.Side, enable bool) {
	h.c.mu.Lock()
	var out []option.Frame
	if side == option.Local {
		out = h.c.engine.RequestLocal(opt, enable)
	} else {
		out = h.c.engine.RequestRemote(opt, enable)
	}
	h.c.mu.Unlock()
	h.c.enqueueEngineFrames(out)
}

// UserData returns the opaque per-connection value a host previously
// stored with SetUserData, or nil.
func (h *Handle) UserData() any {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	return h.c.userData
}

// SetUserData stores an opaque per-connection value (e.g. a player
// object) the core never reads or interprets.
func (h *Handle) SetUserData(v any) {
	h.c.mu.Lock()
	h.c.userData = v
	h.c.mu.Unlock()
}

// Stats returns a snapshot of the connection's activity counters.
func (h *Handle) Stats() Stats {
	return h.c.stats.snapshot(len(h.c.hostEvents), cap(h.c.hostEvents), h.c.writeQ.len()+h.c.replyQ.len())
}

// Close terminates both workers and the underlying transport.
func (h *Handle) Close() error {
	h.c.shutdown()
	return nil
}
