// Package event defines the host-facing TerminalEvent stream: the
// exhaustive set of notifications package conn delivers to an
// application driving a connection.
package event

import "github.com/drake/telnetd/option"

// Kind identifies which TerminalEvent variant an Event holds.
type Kind int

const (
	// Data carries application bytes received on the connection.
	Data Kind = iota
	// LineEnding marks an explicit line terminator, only produced when
	// the host configured a line-oriented read mode.
	LineEnding
	// Command carries an untranslated Telnet command byte (e.g. GA, IP).
	Command
	// EndOfRecord marks an IAC EOR boundary.
	EndOfRecord
	// WindowSize reports a NAWS update.
	WindowSize
	// TerminalType reports a TTYPE cycle response.
	TerminalType
	// Environ reports parsed NEW-ENVIRON variables.
	Environ
	// OptionChanged reports a Q-Method option crossing into or out of YES.
	OptionChanged
	// Gmcp carries a verbatim GMCP sub-negotiation payload.
	Gmcp
	// Msdp carries a verbatim MSDP sub-negotiation payload.
	Msdp
	// Disconnected marks the end of the connection's event stream.
	Disconnected
)

func (k Kind) String() string {
	switch k {
	case Data:
		return "Data"
	case LineEnding:
		return "LineEnding"
	case Command:
		return "Command"
	case EndOfRecord:
		return "EndOfRecord"
	case WindowSize:
		return "WindowSize"
	case TerminalType:
		return "TerminalType"
	case Environ:
		return "Environ"
	case OptionChanged:
		return "OptionChanged"
	case Gmcp:
		return "Gmcp"
	case Msdp:
		return "Msdp"
	case Disconnected:
		return "Disconnected"
	}
	return "?"
}

// Ending enumerates the explicit line terminators a line-oriented host
// configuration recognizes.
type Ending int

const (
	NoEnding Ending = iota
	CR
	LF
	CRLF
)

// Event is one TerminalEvent delivered to the host. Only the fields
// relevant to Kind are populated.
type Event struct {
	Kind Kind

	Bytes []byte // Data, Gmcp (data), Msdp

	Ending Ending // LineEnding

	Command byte // Command

	Width, Height int // WindowSize

	TerminalType string                  // TerminalType
	MTTS         option.MTTSCapabilities // TerminalType

	Environ map[string]string // Environ

	Option  byte        // OptionChanged
	Side    option.Side // OptionChanged
	Enabled bool        // OptionChanged

	Package string // Gmcp
}

// FromOption converts an option.Event (produced by the Q-Method engine
// and its sub-negotiation handlers) into the corresponding host-facing
// Event.
func FromOption(e *option.Event) Event {
	switch e.Kind {
	case option.EventOptionChanged:
		return Event{Kind: OptionChanged, Option: e.Option, Side: e.Side, Enabled: e.Enabled}
	case option.EventWindowSize:
		return Event{Kind: WindowSize, Width: e.Width, Height: e.Height}
	case option.EventTerminalType:
		return Event{Kind: TerminalType, TerminalType: e.TerminalType, MTTS: e.MTTS}
	case option.EventEnviron:
		return Event{Kind: Environ, Environ: e.Environ}
	case option.EventGmcp:
		return Event{Kind: Gmcp, Package: e.Package, Bytes: e.Bytes}
	case option.EventMsdp:
		return Event{Kind: Msdp, Bytes: e.Bytes}
	case option.EventEndOfRecord:
		return Event{Kind: EndOfRecord}
	}
	return Event{Kind: Data}
}
