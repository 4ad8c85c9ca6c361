package option

import (
	"testing"

	"github.com/drake/telnetd/telnet"
)

func TestUnsupportedOptionRefusedFromNO(t *testing.T) {
	e := NewEngine(nil, nil)
	const unsupported byte = 199 // not in DefaultSupportedLocal

	replies := e.Receive(telnet.WILL, unsupported)
	if len(replies) != 1 || replies[0].Wire == nil {
		t.Fatalf("expected a single wire reply, got %+v", replies)
	}
	w := replies[0].Wire
	if w.Verb != telnet.DONT || w.Option != unsupported {
		t.Fatalf("expected DONT for unsupported option, got verb=%d opt=%d", w.Verb, w.Option)
	}
	if e.IsEnabled(unsupported, Remote) {
		t.Fatalf("unsupported option must not become enabled")
	}
}

func TestSupportedOptionEnablesOnReceivePlus(t *testing.T) {
	e := NewEngine(nil, nil)
	replies := e.Receive(telnet.WILL, telnet.OptNAWS)
	if len(replies) != 2 {
		t.Fatalf("expected wire DO + OptionChanged event, got %+v", replies)
	}
	if replies[0].Wire == nil || replies[0].Wire.Verb != telnet.DO || replies[0].Wire.Option != telnet.OptNAWS {
		t.Fatalf("expected DO NAWS reply, got %+v", replies[0])
	}
	if replies[1].Event == nil || replies[1].Event.Kind != EventOptionChanged || !replies[1].Event.Enabled {
		t.Fatalf("expected OptionChanged(enabled) event, got %+v", replies[1])
	}
	if !e.IsEnabled(telnet.OptNAWS, Remote) {
		t.Fatalf("NAWS should be enabled on the remote view")
	}
}

// TestNoLoopOnRepeatedWill exercises the Q-Method's defining property:
// repeated identical offers from the peer never provoke a repeated
// reply, so two endpoints can never trap each other in a negotiation
// loop.
func TestNoLoopOnRepeatedWill(t *testing.T) {
	e := NewEngine(nil, nil)
	first := e.Receive(telnet.WILL, telnet.OptNAWS)
	if len(first) == 0 {
		t.Fatalf("expected a reply to the first WILL")
	}
	second := e.Receive(telnet.WILL, telnet.OptNAWS)
	if len(second) != 0 {
		t.Fatalf("repeated WILL while already YES must not produce any reply, got %+v", second)
	}
}

func TestNoLoopDuringInFlightRequest(t *testing.T) {
	e := NewEngine(nil, nil)
	// We ask to enable NAWS locally: WANTYES_EMPTY, sends WILL.
	out := e.RequestLocal(telnet.OptNAWS, true)
	if len(out) != 1 || out[0].Wire == nil || out[0].Wire.Verb != telnet.WILL {
		t.Fatalf("expected a single WILL reply, got %+v", out)
	}
	// Asking again while already in flight must be a no-op (WANTYES_EMPTY + Request+).
	again := e.RequestLocal(telnet.OptNAWS, true)
	if len(again) != 0 {
		t.Fatalf("duplicate in-flight request must not re-send, got %+v", again)
	}
	// Peer confirms: DO -> local view Receive+ -> YES.
	confirm := e.Receive(telnet.DO, telnet.OptNAWS)
	if len(confirm) != 1 || confirm[0].Event == nil || !confirm[0].Event.Enabled {
		t.Fatalf("expected OptionChanged(enabled), got %+v", confirm)
	}
	if e.pair(telnet.OptNAWS).local.state != fsmYES {
		t.Fatalf("expected local view YES, got %s", e.pair(telnet.OptNAWS).local.state)
	}
}

func TestOppositeRequestDuringTeardownEndsWantYesEmpty(t *testing.T) {
	e := NewEngine(nil, nil)
	p := e.pair(telnet.OptMSSP)
	p.local.supported = true
	p.local.state = fsmWantNoOpposite

	out := e.Receive(telnet.DONT, telnet.OptMSSP) // local Receive- from WANTNO_OPPOSITE -> WANTYES_EMPTY, send WILL
	if len(out) != 1 || out[0].Wire == nil || out[0].Wire.Verb != telnet.WILL {
		t.Fatalf("expected WILL reply leaving WANTNO_OPPOSITE, got %+v", out)
	}
	if p.local.state != fsmWantYesEmpty {
		t.Fatalf("expected WANTYES_EMPTY, got %s", p.local.state)
	}
}

func TestMCCP2BootstrapEmitsSubnegAndOutboundActivate(t *testing.T) {
	handlers := map[byte]Handler{telnet.OptMCCP2: MCCP2Handler{}}
	e := NewEngine(handlers, nil)

	e.RequestLocal(telnet.OptMCCP2, true)
	out := e.Receive(telnet.DO, telnet.OptMCCP2)

	var sawSubNeg, sawActivate bool
	for _, f := range out {
		if f.Wire != nil && f.Wire.Kind == telnet.KindSubNeg && f.Wire.Option == telnet.OptMCCP2 {
			sawSubNeg = true
		}
		if f.Compress != nil && f.Compress.Dir == telnet.Outbound && f.Compress.Option == telnet.OptMCCP2 {
			sawActivate = true
		}
	}
	if !sawSubNeg || !sawActivate {
		t.Fatalf("expected subneg + outbound activate, got %+v", out)
	}
}

func TestMCCP3ActivatesOnlyOnSubNegReceipt(t *testing.T) {
	handlers := map[byte]Handler{telnet.OptMCCP3: MCCP3Handler{}}
	e := NewEngine(handlers, nil)

	// Peer offers WILL MCCP3; we DO it (remote view reaches YES).
	bootstrap := e.Receive(telnet.WILL, telnet.OptMCCP3)
	for _, f := range bootstrap {
		if f.Compress != nil {
			t.Fatalf("MCCP3 must not activate at bootstrap time, got %+v", bootstrap)
		}
	}

	out := e.ReceiveSubNegotiation(telnet.OptMCCP3, nil)
	if len(out) != 1 || out[0].Compress == nil || out[0].Compress.Dir != telnet.Inbound {
		t.Fatalf("expected inbound activate on empty subneg receipt, got %+v", out)
	}
}

func TestNAWSHandlerUpdatesStatus(t *testing.T) {
	handlers := map[byte]Handler{telnet.OptNAWS: NAWSHandler{}}
	e := NewEngine(handlers, nil)
	e.Receive(telnet.WILL, telnet.OptNAWS)

	out := e.ReceiveSubNegotiation(telnet.OptNAWS, []byte{0x00, 0x50, 0x00, 0x18})
	if len(out) != 1 || out[0].Event == nil || out[0].Event.Kind != EventWindowSize {
		t.Fatalf("expected WindowSize event, got %+v", out)
	}
	if out[0].Event.Width != 80 || out[0].Event.Height != 24 {
		t.Fatalf("expected 80x24, got %dx%d", out[0].Event.Width, out[0].Event.Height)
	}
	if e.Status().Width != 80 || e.Status().Height != 24 {
		t.Fatalf("status cache not updated: %+v", e.Status())
	}
}

func TestCharsetHandlerAcceptsKnownName(t *testing.T) {
	handlers := map[byte]Handler{telnet.OptCharset: CharsetHandler{}}
	e := NewEngine(handlers, nil)
	e.Receive(telnet.WILL, telnet.OptCharset)

	payload := append([]byte{telnet.CharsetRequest, ';'}, []byte("BOGUS-1;UTF-8")...)
	out := e.ReceiveSubNegotiation(telnet.OptCharset, payload)
	if len(out) != 1 || out[0].Wire == nil {
		t.Fatalf("expected a wire reply, got %+v", out)
	}
	if out[0].Wire.Payload[0] != telnet.CharsetAccepted {
		t.Fatalf("expected ACCEPTED, got %+v", out[0].Wire.Payload)
	}
	if string(out[0].Wire.Payload[1:]) != "UTF-8" {
		t.Fatalf("expected UTF-8 accepted, got %q", out[0].Wire.Payload[1:])
	}
}

func TestCharsetHandlerRejectsEmptyRequest(t *testing.T) {
	handlers := map[byte]Handler{telnet.OptCharset: CharsetHandler{}}
	e := NewEngine(handlers, nil)
	e.Receive(telnet.WILL, telnet.OptCharset)

	out := e.ReceiveSubNegotiation(telnet.OptCharset, []byte{telnet.CharsetRequest})
	if len(out) != 1 || out[0].Wire == nil || out[0].Wire.Payload[0] != telnet.CharsetRejected {
		t.Fatalf("expected REJECTED for empty request, got %+v", out)
	}
}

func TestGMCPPassthroughSplitsPackageFromData(t *testing.T) {
	handlers := map[byte]Handler{telnet.OptGMCP: GMCPHandler{}}
	e := NewEngine(handlers, nil)
	e.Receive(telnet.WILL, telnet.OptGMCP)

	out := e.ReceiveSubNegotiation(telnet.OptGMCP, []byte("Core.Hello {}"))
	if len(out) != 1 || out[0].Event == nil || out[0].Event.Kind != EventGmcp {
		t.Fatalf("expected Gmcp event, got %+v", out)
	}
	if out[0].Event.Package != "Core.Hello" || string(out[0].Event.Bytes) != "{}" {
		t.Fatalf("unexpected split: package=%q data=%q", out[0].Event.Package, out[0].Event.Bytes)
	}
}
