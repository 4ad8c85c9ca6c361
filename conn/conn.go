// Package conn implements the split connection runtime (spec §5): one
// reader worker and one writer worker per connection, communicating
// with the host application through a bounded event channel and an
// unbounded write-request queue. It wires together package telnet
// (framing and compression) and package option (Q-Method negotiation)
// behind a single Handle.
package conn

import (
	"log"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/drake/telnetd/event"
	"github.com/drake/telnetd/metrics"
	"github.com/drake/telnetd/option"
	"github.com/drake/telnetd/telnet"
)

// DefaultHostQueueDepth is the capacity of the host-facing event
// channel. A slow host reader applies backpressure all the way down
// to the socket, same as the teacher's own bounded outputChan.
const DefaultHostQueueDepth = 256

// NegotiationRequest is one option the runtime offers or requests as
// soon as its workers start, before any peer traffic has arrived.
type NegotiationRequest struct {
	Option byte
	Side   option.Side
	Enable bool
}

// DefaultNegotiations is the handshake a typical MUD server opens
// with: offer window size and terminal type discovery, suppress
// go-ahead, and offer our own compression.
var DefaultNegotiations = []NegotiationRequest{
	{Option: telnet.OptSuppressGoAhead, Side: option.Local, Enable: true},
	{Option: telnet.OptNAWS, Side: option.Remote, Enable: true},
	{Option: telnet.OptTerminalType, Side: option.Remote, Enable: true},
	{Option: telnet.OptNewEnviron, Side: option.Remote, Enable: true},
	{Option: telnet.OptCharset, Side: option.Remote, Enable: true},
	{Option: telnet.OptMCCP2, Side: option.Local, Enable: true},
	{Option: telnet.OptMSSP, Side: option.Local, Enable: true},
	{Option: telnet.OptMSDP, Side: option.Remote, Enable: true},
	{Option: telnet.OptGMCP, Side: option.Remote, Enable: true},
}

// Config configures a new Conn. The zero value of every field selects
// the documented default.
type Config struct {
	Handlers     map[byte]option.Handler // nil selects option.DefaultHandlers(option.MSSPHandler{})
	Negotiations []NegotiationRequest    // nil selects DefaultNegotiations
	HostQueueCap int                     // 0 selects DefaultHostQueueDepth
	Flush        FlushStrategy           // zero value is Manual
	Sink         metrics.Sink            // nil selects metrics.NoOp{}
	Logger       *log.Logger             // nil selects a logger writing to log.Default()'s writer

	// LineMode switches the reader from raw byte-stream Data events to
	// the line-oriented mode described in spec §6: incoming bytes are
	// buffered until a CR, LF, or CRLF terminator completes a line, at
	// which point a Data event carrying the line (terminator stripped)
	// is followed by a LineEnding event naming which terminator it was.
	LineMode bool
}

// Conn drives one Telnet connection: its transport, its Q-Method
// engine, and the two worker goroutines reading and writing it. Use
// New to construct one and Handle to interact with it from host code.
type Conn struct {
	id      uuid.UUID
	netConn net.Conn

	mu       sync.Mutex
	engine   *option.Engine
	userData any

	decoder telnet.Decoder

	lineMode bool
	lineBuf  []byte

	hostEvents chan event.Event
	writeQ     *unboundedQueue // application Handle.Send requests
	replyQ     *unboundedQueue // option-engine replies; drained ahead of writeQ (spec §4.4)

	flushMu sync.Mutex
	flush   FlushStrategy

	stats statCounters
	sink  metrics.Sink
	log   *log.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a Conn over an already-accepted transport and starts its
// reader and writer workers. The returned Handle is the host's only
// interface to it.
func New(transport net.Conn, cfg Config) *Handle {
	if cfg.HostQueueCap == 0 {
		cfg.HostQueueCap = DefaultHostQueueDepth
	}
	if cfg.Handlers == nil {
		cfg.Handlers = option.DefaultHandlers(option.MSSPHandler{})
	}
	if cfg.Negotiations == nil {
		cfg.Negotiations = DefaultNegotiations
	}
	if cfg.Sink == nil {
		cfg.Sink = metrics.NoOp{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	closed := make(chan struct{})
	c := &Conn{
		id:         uuid.New(),
		netConn:    transport,
		engine:     option.NewEngine(cfg.Handlers, cfg.Logger),
		lineMode:   cfg.LineMode,
		hostEvents: make(chan event.Event, cfg.HostQueueCap),
		flush:      cfg.Flush,
		sink:       cfg.Sink,
		log:        cfg.Logger,
		closed:     closed,
	}
	c.writeQ = newUnboundedQueue(closed)
	c.replyQ = newUnboundedQueue(closed)

	for _, req := range cfg.Negotiations {
		c.mu.Lock()
		var out []option.Frame
		if req.Side == option.Local {
			out = c.engine.RequestLocal(req.Option, req.Enable)
		} else {
			out = c.engine.RequestRemote(req.Option, req.Enable)
		}
		c.mu.Unlock()
		c.enqueueEngineFrames(out) // no peer traffic yet: never yields an inbound signal
	}

	h := &Handle{c: c}
	go c.readLoop()
	go c.writeLoop(transport)
	return h
}

// ID returns the connection's opaque identity.
func (c *Conn) ID() uuid.UUID { return c.id }

// shutdown closes the closed signal exactly once, unblocking any
// goroutine parked in emitEvent or a Handle call, and reports the
// connection's final Stats to its Sink.
func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.netConn.Close()
		c.sink.Observe(metrics.Snapshot{
			Conn:          c.id,
			BytesRead:     c.stats.bytesRead.Load(),
			BytesWritten:  c.stats.bytesWritten.Load(),
			FramesRead:    c.stats.framesRead.Load(),
			FramesWritten: c.stats.framesWritten.Load(),
		})
	})
}

// emitEvent queues ev for the host, blocking while hostEvents is full.
// Once the connection has closed, ev is still queued if hostEvents has
// room for it and dropped otherwise.
func (c *Conn) emitEvent(ev event.Event) {
	select {
	case c.hostEvents <- ev:
		return
	default:
	}
	select {
	case c.hostEvents <- ev:
	case <-c.closed:
	}
}

// enqueueEngineFrames translates the engine's reply Frames into wire
// writes and host events. Wire frames are queued on replyQ, the
// high-priority channel the writer drains ahead of application sends
// (spec §4.4), so a peer's negotiation or sub-negotiation never waits
// behind a backlog of Handle.Send calls.
//
// A Compress frame immediately following a Wire frame (MCCP2: our own
// activation) cannot be applied here: this method may run on the
// reader goroutine (processing the peer's DO MCCP2) or the
// constructor goroutine, neither of which owns the write side. Instead
// the pair is queued as a single writeItem so the writer activates
// outbound compression itself, right after it writes that subneg,
// preserving ordering against whatever else the writer has queued.
//
// A lone Compress frame (MCCP3: the peer's own activation, detected by
// the reader mid-decode) is returned to the caller instead of applied
// here, since only the reader — which alone owns the read side and
// alone holds the decoder's tail bytes for this call — can actually
// perform the swap.
func (c *Conn) enqueueEngineFrames(frames []option.Frame) *option.CompressSignal {
	var inbound *option.CompressSignal
	for i := 0; i < len(frames); i++ {
		f := frames[i]
		switch {
		case f.Wire != nil:
			item := writeItem{bytes: telnet.Encode(nil, *f.Wire), forceFlush: true}
			if i+1 < len(frames) && frames[i+1].Compress != nil && frames[i+1].Compress.Dir == telnet.Outbound {
				item.activateOutbound = frames[i+1].Compress
				i++
			}
			c.replyQ.push(item)
		case f.Event != nil:
			c.emitEvent(event.FromOption(f.Event))
		case f.Compress != nil:
			inbound = f.Compress
		}
	}
	return inbound
}
