package telnet

import (
	"bytes"
	"compress/zlib"
	"io"
	"testing"
)

func TestCompressorRoundTrip(t *testing.T) {
	var wire bytes.Buffer
	deflator := NewDeflator(&wire)

	msg1 := []byte("You are standing in an open field.\r\n")
	if _, err := deflator.Write(msg1); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := deflator.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	msg2 := []byte("A faint wind blows from the north.\r\n")
	if _, err := deflator.Write(msg2); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := deflator.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(wire.Bytes()))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}

	want := append(append([]byte(nil), msg1...), msg2...)
	if !bytes.Equal(got, want) {
		t.Fatalf("want %q got %q", want, got)
	}
}

func TestInflatorConsumesTailThenSocket(t *testing.T) {
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	payload := []byte("the deflated room description")
	if _, err := zw.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	full := compressed.Bytes()
	// Simulate the framer having already buffered the first few bytes
	// of the compressed stream (the "tail" after IAC SE) with the rest
	// still unread on the socket.
	split := 3
	if split > len(full) {
		split = len(full)
	}
	tail := full[:split]
	rest := bytes.NewReader(full[split:])

	inflator, err := NewInflator(tail, rest)
	if err != nil {
		t.Fatalf("NewInflator: %v", err)
	}
	got, err := io.ReadAll(inflator)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("want %q got %q", payload, got)
	}
}
