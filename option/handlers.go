package option

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/drake/telnetd/telnet"
)

// NAWSHandler implements RFC 1073 Negotiate About Window Size: a
// single 4-byte payload, no bootstrap action (the DO NAWS offer itself
// is enough to prompt the client to send its size and again on every
// resize).
type NAWSHandler struct{}

func (NAWSHandler) Bootstrap(e *Engine, side Side) []Frame { return nil }

func (NAWSHandler) Receive(e *Engine, payload []byte) []Frame {
	if len(payload) != 4 {
		return nil
	}
	width := int(payload[0])<<8 | int(payload[1])
	height := int(payload[2])<<8 | int(payload[3])
	e.status.Width, e.status.Height = width, height
	return []Frame{{Event: &Event{Kind: EventWindowSize, Width: width, Height: height}}}
}

// TTYPEHandler implements RFC 1091 terminal type, including the MTTS
// extension's "MTTS <bitmask>" third response.
type TTYPEHandler struct{}

func (TTYPEHandler) Bootstrap(e *Engine, side Side) []Frame {
	if side != Remote {
		return nil
	}
	return []Frame{{Wire: wireFramePtr(telnet.SubNeg(telnet.OptTerminalType, []byte{telnet.OpSEND}))}}
}

func (TTYPEHandler) Receive(e *Engine, payload []byte) []Frame {
	if len(payload) == 0 || payload[0] != telnet.OpIS {
		return nil
	}
	name := string(payload[1:])

	if rest, ok := strings.CutPrefix(name, "MTTS "); ok {
		if n, err := strconv.Atoi(rest); err == nil {
			e.status.MTTS = e.status.classifyMTTS(n)
			return []Frame{{Event: &Event{Kind: EventTerminalType, TerminalType: name, MTTS: e.status.MTTS}}}
		}
	}

	e.status.TerminalTypes = append(e.status.TerminalTypes, name)
	return []Frame{{Event: &Event{Kind: EventTerminalType, TerminalType: name}}}
}

// NewEnvironHandler implements RFC 1572 NEW-ENVIRON, requesting every
// variable on enablement and parsing the VAR/VALUE/USERVAR/ESC token
// stream the peer replies with.
type NewEnvironHandler struct{}

func (NewEnvironHandler) Bootstrap(e *Engine, side Side) []Frame {
	if side != Remote {
		return nil
	}
	// An empty SEND (no VAR/USERVAR tokens after it) asks for every
	// variable the peer is willing to disclose.
	return []Frame{{Wire: wireFramePtr(telnet.SubNeg(telnet.OptNewEnviron, []byte{telnet.OpSEND}))}}
}

func (NewEnvironHandler) Receive(e *Engine, payload []byte) []Frame {
	if len(payload) == 0 || payload[0] != telnet.OpIS {
		return nil
	}
	env := parseEnviron(payload[1:])
	for k, v := range env {
		e.status.Environ[k] = v
	}
	return []Frame{{Event: &Event{Kind: EventEnviron, Environ: env}}}
}

// parseEnviron walks a NEW-ENVIRON token stream (VAR/USERVAR name
// tokens each followed by an optional VALUE token), unescaping ESC
// sequences, into a name->value map. Malformed trailing tokens are
// dropped rather than causing a panic.
func parseEnviron(tokens []byte) map[string]string {
	out := make(map[string]string)
	i := 0
	readField := func() (string, bool) {
		var b []byte
		for i < len(tokens) {
			switch tokens[i] {
			case telnet.EnvVAR, telnet.EnvVALUE, telnet.EnvUSERVAR:
				return string(b), true
			case telnet.EnvESC:
				if i+1 < len(tokens) {
					b = append(b, tokens[i+1])
					i += 2
					continue
				}
				i++
			default:
				b = append(b, tokens[i])
				i++
			}
		}
		return string(b), len(b) > 0
	}

	for i < len(tokens) {
		kind := tokens[i]
		if kind != telnet.EnvVAR && kind != telnet.EnvUSERVAR {
			i++
			continue
		}
		i++
		name, ok := readField()
		if !ok {
			continue
		}
		value := ""
		if i < len(tokens) && tokens[i] == telnet.EnvVALUE {
			i++
			value, _ = readField()
		}
		out[name] = value
	}
	return out
}

// CharsetHandler implements RFC 2066's REQUEST/ACCEPTED/REJECTED
// exchange, validating candidate names against the IANA charset
// registry rather than attempting any transcoding (a Non-goal).
type CharsetHandler struct{}

func (CharsetHandler) Bootstrap(e *Engine, side Side) []Frame { return nil }

func (CharsetHandler) Receive(e *Engine, payload []byte) []Frame {
	if len(payload) == 0 || payload[0] != telnet.CharsetRequest {
		return nil
	}
	rest := payload[1:]
	if len(rest) == 0 {
		return []Frame{{Wire: wireFramePtr(telnet.SubNeg(telnet.OptCharset, []byte{telnet.CharsetRejected}))}}
	}
	sep := rest[0]
	names := strings.Split(string(rest[1:]), string(sep))

	for _, name := range names {
		if name == "" {
			continue
		}
		if _, err := ianaindex.IANA.Encoding(name); err == nil {
			e.status.Charset = name
			reply := append([]byte{telnet.CharsetAccepted}, name...)
			return []Frame{{Wire: wireFramePtr(telnet.SubNeg(telnet.OptCharset, reply))}}
		}
	}
	return []Frame{{Wire: wireFramePtr(telnet.SubNeg(telnet.OptCharset, []byte{telnet.CharsetRejected}))}}
}

// MSSPHandler sends the server's status variables once the option is
// enabled; MSSP is encode-only from the server's side so Receive is
// unused.
type MSSPHandler struct {
	// Vars supplies the variable/value groups to send. Multiple values
	// for one variable name are encoded as repeated VAL groups without
	// an intervening VAR, per the MSSP draft.
	Vars map[string][]string
}

func (h MSSPHandler) Bootstrap(e *Engine, side Side) []Frame {
	if side != Local {
		return nil
	}
	var payload []byte
	for name, values := range h.Vars {
		payload = append(payload, telnet.MSSPVar)
		payload = append(payload, name...)
		for _, v := range values {
			payload = append(payload, telnet.MSSPVal)
			payload = append(payload, v...)
		}
	}
	return []Frame{{Wire: wireFramePtr(telnet.SubNeg(telnet.OptMSSP, payload))}}
}

func (MSSPHandler) Receive(e *Engine, payload []byte) []Frame { return nil }

// GMCPHandler passes Generic MUD Communication Protocol payloads to
// the host untouched; the core does not parse the JSON body.
type GMCPHandler struct{}

func (GMCPHandler) Bootstrap(e *Engine, side Side) []Frame { return nil }

func (GMCPHandler) Receive(e *Engine, payload []byte) []Frame {
	pkg, data, _ := strings.Cut(string(payload), " ")
	return []Frame{{Event: &Event{Kind: EventGmcp, Package: pkg, Bytes: []byte(data)}}}
}

// MSDPHandler passes MUD Server Data Protocol payloads to the host
// verbatim; the typed key/value encoding is a host-application concern.
type MSDPHandler struct{}

func (MSDPHandler) Bootstrap(e *Engine, side Side) []Frame { return nil }

func (MSDPHandler) Receive(e *Engine, payload []byte) []Frame {
	return []Frame{{Event: &Event{Kind: EventMsdp, Bytes: append([]byte(nil), payload...)}}}
}

// MCCP2Handler activates outbound compression: the server enables its
// own MCCP2 option, so Bootstrap fires with side == Local and writes
// the activating empty sub-negotiation itself, followed by a
// CompressSignal the conn writer applies to everything queued
// after it.
type MCCP2Handler struct{}

func (MCCP2Handler) Bootstrap(e *Engine, side Side) []Frame {
	if side != Local {
		return nil
	}
	return []Frame{
		{Wire: wireFramePtr(telnet.SubNeg(telnet.OptMCCP2, nil))},
		{Compress: &CompressSignal{Dir: telnet.Outbound, Option: telnet.OptMCCP2}},
	}
}

func (MCCP2Handler) Receive(e *Engine, payload []byte) []Frame { return nil }

// MCCP3Handler activates inbound compression: MCCP3 is offered by the
// peer (client), so it reaches YES on the Remote view, but activation
// itself waits for the peer to actually send the empty sub-negotiation
// rather than firing at Bootstrap time (the client may delay it).
type MCCP3Handler struct{}

func (MCCP3Handler) Bootstrap(e *Engine, side Side) []Frame { return nil }

func (MCCP3Handler) Receive(e *Engine, payload []byte) []Frame {
	return []Frame{{Compress: &CompressSignal{Dir: telnet.Inbound, Option: telnet.OptMCCP3}}}
}

// DefaultHandlers returns the handler set the spec requires wired in
// by default, keyed by option code. mssp.Vars may be nil to send no
// variables.
func DefaultHandlers(mssp MSSPHandler) map[byte]Handler {
	return map[byte]Handler{
		telnet.OptNAWS:         NAWSHandler{},
		telnet.OptTerminalType: TTYPEHandler{},
		telnet.OptNewEnviron:   NewEnvironHandler{},
		telnet.OptCharset:      CharsetHandler{},
		telnet.OptMSSP:         mssp,
		telnet.OptGMCP:         GMCPHandler{},
		telnet.OptMSDP:         MSDPHandler{},
		telnet.OptMCCP2:        MCCP2Handler{},
		telnet.OptMCCP3:        MCCP3Handler{},
	}
}
