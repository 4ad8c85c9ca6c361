package conn

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/drake/telnetd/event"
	"github.com/drake/telnetd/option"
	"github.com/drake/telnetd/telnet"
)

// readAll drains b for up to d, returning whatever accumulated. Used
// to observe what a Conn wrote onto its half of a net.Pipe without
// the test itself blocking forever on a peer that wrote less than
// expected.
func readAll(t *testing.T, r net.Conn, d time.Duration) []byte {
	t.Helper()
	r.SetReadDeadline(time.Now().Add(d))
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			return out
		}
	}
}

func waitEvent(t *testing.T, h *Handle, kind event.Kind, d time.Duration) event.Event {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %v", kind)
		default:
		}
		ev, err := h.NextEvent()
		if err != nil {
			t.Fatalf("NextEvent: %v", err)
		}
		if ev.Kind == kind {
			return ev
		}
	}
}

func TestSendDeliversDataAcrossPipe(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	h := New(server, Config{Negotiations: []NegotiationRequest{}})
	defer h.Close()

	go func() {
		if err := h.Send("hello", true); err != nil {
			t.Errorf("Send: %v", err)
		}
	}()

	got := readAll(t, client, 500*time.Millisecond)
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("client observed %q, want %q", got, "hello")
	}
}

// TestSendSucceedsWhileReaderStalled is the concurrency harness for
// the spec's "Handle.Send succeeds and flushes while the reader is
// stalled" property: the peer never reads anything, so the reader
// goroutine's net.Pipe() write-to-client direction is irrelevant, but
// a held client-side read still must not prevent Send from returning
// promptly, since the write queue is unbounded and decoupled from the
// read half entirely.
func TestSendSucceedsWhileReaderStalled(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	h := New(server, Config{Negotiations: []NegotiationRequest{}})
	defer h.Close()

	done := make(chan error, 1)
	go func() {
		done <- h.Send("data while peer is silent", false)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Send did not return promptly")
	}

	// Now drain the client side so the writer worker (blocked writing
	// into the unbuffered net.Pipe) can make progress and the test can
	// exit cleanly, and check the queued bytes did reach the wire.
	got := readAll(t, client, 200*time.Millisecond)
	if !bytes.Equal(got, []byte("data while peer is silent")) {
		t.Fatalf("client observed %q, want %q", got, "data while peer is silent")
	}
}

func TestDataEventDeliveredToHost(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	h := New(server, Config{Negotiations: []NegotiationRequest{}})
	defer h.Close()

	go client.Write(telnet.Encode(nil, telnet.Data([]byte("hi there"))))

	ev := waitEvent(t, h, event.Data, time.Second)
	if !bytes.Equal(ev.Bytes, []byte("hi there")) {
		t.Fatalf("got Data event %q, want %q", ev.Bytes, "hi there")
	}
}

func TestNegotiationReplyRoundTrips(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	h := New(server, Config{Negotiations: []NegotiationRequest{}})
	defer h.Close()

	go client.Write(telnet.Encode(nil, telnet.Negotiation(telnet.WILL, telnet.OptNAWS)))

	got := readAll(t, client, 500*time.Millisecond)
	want := telnet.Encode(nil, telnet.Negotiation(telnet.DO, telnet.OptNAWS))
	if !bytes.Equal(got, want) {
		t.Fatalf("server replied %v, want %v", got, want)
	}

	if !h.IsOptionEnabled(telnet.OptNAWS, option.Remote) {
		t.Fatal("expected NAWS enabled on remote view after WILL/DO exchange")
	}
}

func TestUnauthorizedMCCP2TailIsResynchronized(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	h := New(server, Config{Negotiations: []NegotiationRequest{}})
	defer h.Close()

	// A client that sends an (empty) MCCP2 sub-negotiation is not
	// something this core's DefaultSupportedRemote authorizes (MCCP2 is
	// local-only), so the bytes that follow must be treated as plain
	// data rather than fed into a zlib inflator.
	var wire []byte
	wire = append(wire, telnet.Encode(nil, telnet.SubNeg(telnet.OptMCCP2, nil))...)
	wire = append(wire, telnet.Encode(nil, telnet.Data([]byte("plain after all")))...)
	go client.Write(wire)

	ev := waitEvent(t, h, event.Data, time.Second)
	if !bytes.Equal(ev.Bytes, []byte("plain after all")) {
		t.Fatalf("got %q, want %q", ev.Bytes, "plain after all")
	}
}

func TestMCCP2ActivationCompressesSubsequentWrites(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	h := New(server, Config{Negotiations: []NegotiationRequest{
		{Option: telnet.OptMCCP2, Side: option.Local, Enable: true},
	}})
	defer h.Close()

	go client.Write(telnet.Encode(nil, telnet.Negotiation(telnet.DO, telnet.OptMCCP2)))

	// The reply is IAC WILL MCCP2 followed by the activating IAC SB
	// MCCP2 IAC SE sub-negotiation, both still in the clear.
	want := telnet.Encode(nil, telnet.Negotiation(telnet.WILL, telnet.OptMCCP2))
	want = telnet.Encode(want, telnet.SubNeg(telnet.OptMCCP2, nil))

	got := readAll(t, client, 500*time.Millisecond)
	if len(got) < len(want) || !bytes.Equal(got[:len(want)], want) {
		t.Fatalf("got prefix %v, want %v", got, want)
	}

	if err := h.Send("deflated payload", true); err != nil {
		t.Fatalf("Send: %v", err)
	}
	more := readAll(t, client, 500*time.Millisecond)
	if len(more) == 0 {
		t.Fatal("expected compressed bytes after activation, got none")
	}
	if bytes.Contains(more, []byte("deflated payload")) {
		t.Fatal("payload appeared on the wire uncompressed after MCCP2 activation")
	}
}

// TestActiveMCCP3StreamErrorSignalsDontAndSurvivesOneFailure exercises
// the gap between activation-time inflate failures and a failure on an
// already-active compressor: once MCCP3 has activated, bytes that
// don't parse as a continuing deflate stream must be treated the same
// way as an activation failure (a DONT MCCP3 reply, not an immediate
// disconnect on the first occurrence), per spec §4.3/§7.
func TestActiveMCCP3StreamErrorSignalsDontAndSurvivesOneFailure(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	h := New(server, Config{Negotiations: []NegotiationRequest{
		{Option: telnet.OptMCCP3, Side: option.Remote, Enable: true},
	}})
	defer h.Close()

	// Drain the server's initial DO MCCP3 offer.
	readAll(t, client, 200*time.Millisecond)

	// Activate MCCP3 with a bare, valid zlib header, then follow it
	// with bytes that are plain telnet wire data, not a continuation of
	// a deflate stream. The header alone is enough for
	// telnet.NewInflator to succeed; the plain bytes fail to inflate on
	// the very next Read against the now-active *telnet.Compressor.
	var wire []byte
	wire = append(wire, telnet.Encode(nil, telnet.Negotiation(telnet.WILL, telnet.OptMCCP3))...)
	wire = append(wire, telnet.Encode(nil, telnet.SubNeg(telnet.OptMCCP3, nil))...)
	wire = append(wire, 0x78, 0x9c)
	wire = append(wire, telnet.Encode(nil, telnet.Data([]byte("not a deflate stream")))...)
	go client.Write(wire)

	got := readAll(t, client, 500*time.Millisecond)
	want := telnet.Encode(nil, telnet.Negotiation(telnet.DONT, telnet.OptMCCP3))
	if !bytes.Contains(got, want) {
		t.Fatalf("server never sent DONT MCCP3 after the stream error, got %v", got)
	}

	select {
	case ev := <-h.c.hostEvents:
		if ev.Kind == event.Disconnected {
			t.Fatal("connection disconnected on the first decompress failure, want it to survive one")
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLineModeSplitsOnTerminatorsAndBuffersPartialLines(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	h := New(server, Config{Negotiations: []NegotiationRequest{}, LineMode: true})
	defer h.Close()

	go client.Write(telnet.Encode(nil, telnet.Data([]byte("first\r\nsecond\nthird\rpart"))))

	wantLines := []struct {
		text   string
		ending event.Ending
	}{
		{"first", event.CRLF},
		{"second", event.LF},
		{"third", event.CR},
	}
	for _, want := range wantLines {
		data := waitEvent(t, h, event.Data, time.Second)
		if !bytes.Equal(data.Bytes, []byte(want.text)) {
			t.Fatalf("got line %q, want %q", data.Bytes, want.text)
		}
		ending := waitEvent(t, h, event.LineEnding, time.Second)
		if ending.Ending != want.ending {
			t.Fatalf("got ending %v for %q, want %v", ending.Ending, want.text, want.ending)
		}
	}

	// "part" has no terminator yet; it must stay buffered rather than
	// being delivered as its own Data event.
	select {
	case ev := <-h.c.hostEvents:
		t.Fatalf("unexpected event for unterminated tail: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}

	go client.Write(telnet.Encode(nil, telnet.Data([]byte("\n"))))
	data := waitEvent(t, h, event.Data, time.Second)
	if !bytes.Equal(data.Bytes, []byte("part")) {
		t.Fatalf("got %q, want buffered tail %q once terminated", data.Bytes, "part")
	}
}

func TestCloseUnblocksNextEvent(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	h := New(server, Config{Negotiations: []NegotiationRequest{}})
	h.Close()

	deadline := time.After(time.Second)
	for {
		ev, err := h.NextEvent()
		if err == ErrChannelClosed {
			return
		}
		if err != nil {
			t.Fatalf("NextEvent: %v", err)
		}
		if ev.Kind == event.Disconnected {
			continue
		}
		select {
		case <-deadline:
			t.Fatal("NextEvent never returned ErrChannelClosed")
		default:
		}
	}
}
