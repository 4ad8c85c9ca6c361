package telnet

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// Direction is which side of a connection a Compressor governs: the
// inbound (read) half or the outbound (write) half. MCCP2 and MCCP3
// each activate exactly one direction (see option.Engine), never both
// from the same sub-negotiation.
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

// Compressor holds the zlib (RFC 1950) state for one direction of one
// connection. It is created lazily on activation and is not reusable
// after Close; a fresh Compressor is created for each activation.
//
// Go's standard library is used deliberately rather than a third-party
// zlib binding: MCCP mandates the RFC 1950 wire format itself, not a
// choice of implementation, and compress/zlib is the reference
// implementation for that format in Go.
type Compressor struct {
	dir Direction
	zr  io.ReadCloser
	zw  *zlib.Writer
}

// NewInflator activates inbound decompression. tail holds any bytes
// that were already read from the transport but belong to the
// compressed stream (the framer's "bytes remaining after the
// activating sub-negotiation's closing IAC SE"); src is the transport
// to keep reading from once tail is exhausted. Combining them with
// io.MultiReader lets the zlib reader see one continuous compressed
// stream without a manual re-buffering loop.
func NewInflator(tail []byte, src io.Reader) (*Compressor, error) {
	var r io.Reader = src
	if len(tail) > 0 {
		r = io.MultiReader(bytes.NewReader(tail), src)
	}
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("telnet: mccp inflate init: %w", err)
	}
	return &Compressor{dir: Inbound, zr: zr}, nil
}

// NewDeflator activates outbound compression. The caller must have
// already written the activating sub-negotiation (IAC SB option IAC
// SE) to dst before any bytes pass through this Compressor: everything
// written afterward is deflated transparently.
func NewDeflator(dst io.Writer) *Compressor {
	return &Compressor{dir: Outbound, zw: zlib.NewWriter(dst)}
}

// Read inflates compressed bytes. It is only valid on an inbound
// Compressor.
func (c *Compressor) Read(p []byte) (int, error) {
	if c.zr == nil {
		return 0, fmt.Errorf("telnet: Read on non-inbound compressor")
	}
	return c.zr.Read(p)
}

// Write deflates p without forcing a flush; bytes may be buffered
// inside the zlib writer until Flush or Close.
func (c *Compressor) Write(p []byte) (int, error) {
	if c.zw == nil {
		return 0, fmt.Errorf("telnet: Write on non-outbound compressor")
	}
	return c.zw.Write(p)
}

// Flush performs a Z_SYNC_FLUSH-equivalent: compress/zlib's Writer
// embeds a flate.Writer, and flate.Writer.Flush is documented by the
// standard library specifically for network protocols that need a
// remote reader to be able to reconstruct a packet immediately, which
// is exactly the "writer must flush at the end of each encode call
// that requested force_flush" requirement here.
func (c *Compressor) Flush() error {
	if c.zw == nil {
		return fmt.Errorf("telnet: Flush on non-outbound compressor")
	}
	return c.zw.Flush()
}

// Close finalizes the stream (Z_FINISH). For an outbound Compressor
// this flushes any remaining deflated bytes to the underlying writer.
// For an inbound Compressor it releases the zlib reader; any bytes it
// had already buffered ahead of the application's Read calls are
// dropped, which is why compression teardown should be treated as the
// connection's remaining lifetime entering a defined, if no longer
// compressed-stream-recoverable, state rather than a mid-stream
// renegotiation (see DESIGN.md).
func (c *Compressor) Close() error {
	if c.zw != nil {
		return c.zw.Close()
	}
	if c.zr != nil {
		return c.zr.Close()
	}
	return nil
}
