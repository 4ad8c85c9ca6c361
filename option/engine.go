package option

import (
	"fmt"

	"github.com/drake/telnetd/telnet"
)

// step is the full RFC 1143 Q-Method table, one entry per (state,
// action) pair. It is checked against spec §4.2 cell by cell; the
// fsmWantYesOpposite/actionReceivePlus row is the one place the table
// calls for visiting YES and immediately leaving it again (see the
// comment there).
func step(cur fsm, supported bool, act action) stepResult {
	switch cur {
	case fsmNO:
		switch act {
		case actionRequestPlus:
			return stepResult{next: fsmWantYesEmpty, send: true, sendPlus: true}
		case actionRequestMinus:
			return stepResult{next: fsmNO}
		case actionReceivePlus:
			if supported {
				return stepResult{next: fsmYES, send: true, sendPlus: true, reachedYes: true}
			}
			return stepResult{next: fsmNO, send: true, sendPlus: false}
		case actionReceiveMinus:
			return stepResult{next: fsmNO}
		}

	case fsmYES:
		switch act {
		case actionRequestPlus:
			return stepResult{next: fsmYES}
		case actionRequestMinus:
			return stepResult{next: fsmWantNoEmpty, send: true, sendPlus: false, leftYes: true}
		case actionReceivePlus:
			return stepResult{next: fsmYES}
		case actionReceiveMinus:
			return stepResult{next: fsmNO, leftYes: true}
		}

	case fsmWantNoEmpty:
		switch act {
		case actionRequestPlus:
			return stepResult{next: fsmWantNoOpposite}
		case actionRequestMinus:
			return stepResult{next: fsmWantNoEmpty, errored: true}
		case actionReceivePlus:
			return stepResult{next: fsmNO, errored: true}
		case actionReceiveMinus:
			return stepResult{next: fsmNO}
		}

	case fsmWantNoOpposite:
		switch act {
		case actionRequestPlus:
			return stepResult{next: fsmWantNoOpposite}
		case actionRequestMinus:
			return stepResult{next: fsmWantNoEmpty}
		case actionReceivePlus:
			return stepResult{next: fsmYES, errored: true, reachedYes: true}
		case actionReceiveMinus:
			return stepResult{next: fsmWantYesEmpty, send: true, sendPlus: true}
		}

	case fsmWantYesEmpty:
		switch act {
		case actionRequestPlus:
			return stepResult{next: fsmWantYesEmpty}
		case actionRequestMinus:
			return stepResult{next: fsmWantYesOpposite}
		case actionReceivePlus:
			return stepResult{next: fsmYES, reachedYes: true}
		case actionReceiveMinus:
			return stepResult{next: fsmNO}
		}

	case fsmWantYesOpposite:
		switch act {
		case actionRequestPlus:
			return stepResult{next: fsmWantYesEmpty}
		case actionRequestMinus:
			return stepResult{next: fsmWantYesOpposite, errored: true}
		case actionReceivePlus:
			// The peer agrees right when we'd already changed our mind
			// and want it off again: the option is briefly enabled (the
			// bootstrap handler still runs) and a disable request is
			// sent immediately, landing in WANTNO_EMPTY rather than
			// resting in YES.
			return stepResult{next: fsmWantNoEmpty, send: true, sendPlus: false, reachedYes: true, leftYes: true}
		case actionReceiveMinus:
			return stepResult{next: fsmWantNoEmpty, send: true, sendPlus: false}
		}
	}
	return stepResult{next: cur}
}

// view holds one side's (local or remote) negotiation state for one
// option.
type view struct {
	state     fsm
	supported bool
}

// pair is the full negotiation record for a single option code: its
// independent local and remote views, per spec §4.2.
type pair struct {
	local  view
	remote view
}

// Reply is a negotiation message the engine wants sent back to the
// peer: IAC <verb> <option>.
type Reply struct {
	Verb   byte
	Option byte
}

// Logger receives diagnostic lines for protocol violations and
// negotiation churn that the engine itself does not otherwise surface.
// It is satisfied by *log.Logger, matching the rest of the ambient
// stack (see DESIGN.md).
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Engine tracks the Q-Method state of every option for one connection
// and dispatches sub-negotiation payloads to registered Handlers once
// an option is enabled. It is not safe for concurrent use; callers
// serialize access to one Engine per connection (see package conn).
type Engine struct {
	pairs    map[byte]*pair
	handlers map[byte]Handler
	status   *Status
	log      Logger
}

// Handler implements the sub-negotiation behavior for one option: what
// to do when the option becomes enabled (Bootstrap) and how to process
// payload bytes arriving under it (Receive).
type Handler interface {
	// Bootstrap runs once when the option's view transitions into YES.
	// side indicates whether it was our own local option or the peer's
	// that just enabled.
	Bootstrap(e *Engine, side Side) []Frame
	// Receive processes one sub-negotiation payload for this option.
	Receive(e *Engine, payload []byte) []Frame
}

// Frame is something the engine wants written to the wire, delivered to
// the host as an event, or applied to a connection's compression
// state; the conn package translates these into telnet.Frame writes,
// TerminalEvent deliveries, and telnet.Compressor activations
// respectively. At most one field is set.
type Frame struct {
	Wire     *telnet.Frame
	Event    *Event
	Compress *CompressSignal
}

// CompressSignal tells the conn layer to activate compression on one
// direction. When it accompanies a Wire frame in the same Bootstrap
// result, the conn writer applies it only after that frame has been
// written (see MCCP2Handler). When it stands alone, it applies starting
// at the transport position the framer had already reached when the
// activating sub-negotiation was decoded (see MCCP3Handler).
type CompressSignal struct {
	Dir    telnet.Direction
	Option byte
}

// DefaultSupportedLocal and DefaultSupportedRemote list the options the
// spec requires the engine to recognize out of the box. Host
// applications may extend either set via Engine.SetSupported before
// negotiation begins.
var DefaultSupportedLocal = []byte{
	telnet.OptEcho, telnet.OptSuppressGoAhead, telnet.OptTerminalType, telnet.OptEndOfRecord,
	telnet.OptNAWS, telnet.OptNewEnviron, telnet.OptCharset, telnet.OptMSDP,
	telnet.OptMSSP, telnet.OptMCCP2, telnet.OptMCCP3, telnet.OptGMCP,
}

var DefaultSupportedRemote = []byte{
	telnet.OptSuppressGoAhead, telnet.OptTerminalType, telnet.OptEndOfRecord,
	telnet.OptNAWS, telnet.OptNewEnviron, telnet.OptCharset, telnet.OptMSDP,
	telnet.OptMSSP, telnet.OptMCCP3, telnet.OptGMCP,
}

// NewEngine constructs an Engine with the spec's default supported
// option set and the given Handlers registered by option code. A nil
// logger installs a no-op Logger.
func NewEngine(handlers map[byte]Handler, log Logger) *Engine {
	if log == nil {
		log = nopLogger{}
	}
	e := &Engine{
		pairs:    make(map[byte]*pair),
		handlers: handlers,
		status:   newStatus(),
		log:      log,
	}
	for _, opt := range DefaultSupportedLocal {
		e.pair(opt).local.supported = true
	}
	for _, opt := range DefaultSupportedRemote {
		e.pair(opt).remote.supported = true
	}
	return e
}

// Status exposes the cached negotiation-derived values (window size,
// terminal type, charset, NEW-ENVIRON variables).
func (e *Engine) Status() *Status { return e.status }

func (e *Engine) pair(opt byte) *pair {
	p, ok := e.pairs[opt]
	if !ok {
		p = &pair{}
		e.pairs[opt] = p
	}
	return p
}

// SetSupported declares whether opt is supported on the given side. It
// must be called before negotiation begins for opt to take effect,
// matching the spec's "supported set is fixed at connection start"
// simplification.
func (e *Engine) SetSupported(opt byte, side Side, supported bool) {
	v := e.sideView(opt, side)
	v.supported = supported
}

func (e *Engine) sideView(opt byte, side Side) *view {
	p := e.pair(opt)
	if side == Local {
		return &p.local
	}
	return &p.remote
}

// IsEnabled reports whether opt is currently YES on the given side.
func (e *Engine) IsEnabled(opt byte, side Side) bool {
	p, ok := e.pairs[opt]
	if !ok {
		return false
	}
	if side == Local {
		return p.local.state == fsmYES
	}
	return p.remote.state == fsmYES
}

// RequestLocal asks the engine to enable (enable=true) or disable our
// own use of opt, sending WILL/WONT as needed.
func (e *Engine) RequestLocal(opt byte, enable bool) []Frame {
	return e.request(opt, Local, enable)
}

// RequestRemote asks the engine to request the peer enable or disable
// opt, sending DO/DONT as needed.
func (e *Engine) RequestRemote(opt byte, enable bool) []Frame {
	return e.request(opt, Remote, enable)
}

func (e *Engine) request(opt byte, side Side, enable bool) []Frame {
	v := e.sideView(opt, side)
	act := actionRequestMinus
	if enable {
		act = actionRequestPlus
	}
	r := step(v.state, v.supported, act)
	return e.apply(opt, side, v, r)
}

// Receive processes one negotiation verb (WILL/WONT/DO/DONT) for opt
// arriving from the peer, returning any Frames (wire replies and/or
// OptionChanged events) the caller should act on.
func (e *Engine) Receive(verb byte, opt byte) []Frame {
	var side Side
	var act action
	switch verb {
	case telnet.WILL:
		side, act = Remote, actionReceivePlus
	case telnet.WONT:
		side, act = Remote, actionReceiveMinus
	case telnet.DO:
		side, act = Local, actionReceivePlus
	case telnet.DONT:
		side, act = Local, actionReceiveMinus
	default:
		return nil
	}

	v := e.sideView(opt, side)
	r := step(v.state, v.supported, act)
	return e.apply(opt, side, v, r)
}

func (e *Engine) apply(opt byte, side Side, v *view, r stepResult) []Frame {
	prev := v.state
	v.state = r.next

	var out []Frame
	if r.errored {
		e.log.Printf("option: illegal %s transition for option %d from %s (ignored, no reply)", side, opt, prev)
	}
	if r.send {
		verb := sendVerb(side, r.sendPlus)
		out = append(out, Frame{Wire: wireFramePtr(telnet.Negotiation(verb, opt))})
	}
	if r.reachedYes {
		out = append(out, Frame{Event: &Event{Kind: EventOptionChanged, Option: opt, Side: side, Enabled: true}})
		if h, ok := e.handlers[opt]; ok {
			out = append(out, h.Bootstrap(e, side)...)
		}
	}
	if r.leftYes {
		out = append(out, Frame{Event: &Event{Kind: EventOptionChanged, Option: opt, Side: side, Enabled: false}})
	}
	return out
}

// sendVerb maps a view + polarity to the concrete byte the wire sends:
// local sends WILL/WONT, remote sends DO/DONT.
func sendVerb(side Side, plus bool) byte {
	if side == Local {
		if plus {
			return telnet.WILL
		}
		return telnet.WONT
	}
	if plus {
		return telnet.DO
	}
	return telnet.DONT
}

func wireFramePtr(f telnet.Frame) *telnet.Frame { return &f }

// ReceiveSubNegotiation dispatches a completed sub-negotiation payload
// to the registered Handler for opt, if any and if the option is
// presently enabled on at least one side. Payloads for options with no
// handler, or no negotiated enablement, are dropped per spec §4.2
// ("sub-negotiation for an option neither side has enabled is
// ignored").
func (e *Engine) ReceiveSubNegotiation(opt byte, payload []byte) []Frame {
	if !e.IsEnabled(opt, Local) && !e.IsEnabled(opt, Remote) {
		e.log.Printf("option: sub-negotiation for disabled option %d dropped", opt)
		return nil
	}
	h, ok := e.handlers[opt]
	if !ok {
		return nil
	}
	return h.Receive(e, payload)
}

// String renders the current negotiation state of every tracked option,
// for debugging and tests.
func (e *Engine) String() string {
	s := ""
	for opt, p := range e.pairs {
		s += fmt.Sprintf("opt=%d local=%s remote=%s\n", opt, p.local.state, p.remote.state)
	}
	return s
}
