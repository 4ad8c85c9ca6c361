// Package option implements the RFC 1143 Q-Method option negotiation
// state machine on top of package telnet's framer, plus the
// sub-negotiation handlers (NAWS, TTYPE, NEW-ENVIRON, CHARSET, MSSP,
// GMCP, MSDP, MCCP2/3) the spec's option engine dispatches once an
// option reaches the enabled (YES) state. EOR is negotiated like any
// other option but has no handler.
package option

// fsm is one option's state from a single view (local or remote). The
// names match RFC 1143 exactly so the transition table in engine.go can
// be checked against the spec line by line.
type fsm int

const (
	fsmNO fsm = iota
	fsmYES
	fsmWantNoEmpty
	fsmWantNoOpposite
	fsmWantYesEmpty
	fsmWantYesOpposite
)

func (s fsm) String() string {
	switch s {
	case fsmNO:
		return "NO"
	case fsmYES:
		return "YES"
	case fsmWantNoEmpty:
		return "WANTNO_EMPTY"
	case fsmWantNoOpposite:
		return "WANTNO_OPPOSITE"
	case fsmWantYesEmpty:
		return "WANTYES_EMPTY"
	case fsmWantYesOpposite:
		return "WANTYES_OPPOSITE"
	}
	return "?"
}

// Side identifies which of the two independent per-option views a
// transition applies to.
type Side int

const (
	// Local is "what we do": driven by our own enable/disable requests
	// (which send WILL/WONT) and by the peer's DO/DONT.
	Local Side = iota
	// Remote is "what the peer does": driven by our requests that the
	// peer change (which send DO/DONT) and by the peer's WILL/WONT.
	Remote Side = iota + 1
)

func (s Side) String() string {
	if s == Local {
		return "local"
	}
	return "remote"
}

type action int

const (
	actionRequestPlus action = iota
	actionRequestMinus
	actionReceivePlus
	actionReceiveMinus
)

// stepResult is the outcome of one Q-Method transition: the new state,
// whether a reply should be sent (and its polarity), whether the input
// was illegal (logged only, per spec §4.2), and whether this step
// enables or disables the option (crossing into or out of fsmYES).
type stepResult struct {
	next       fsm
	send       bool
	sendPlus   bool
	errored    bool
	reachedYes bool
	leftYes    bool
}
