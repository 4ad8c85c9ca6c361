package conn

import "errors"

// Sentinel errors for the connection runtime's error taxonomy (spec §7).
// All are safe to compare with errors.Is even after being wrapped with
// additional context via fmt.Errorf("...: %w", err).
var (
	// ErrTransportEOF means the peer closed the connection cleanly.
	ErrTransportEOF = errors.New("conn: transport closed")
	// ErrTransportError means the underlying socket failed.
	ErrTransportError = errors.New("conn: transport error")
	// ErrDecompressError means a compressed stream failed to inflate,
	// whether at MCCP3 activation or on a later read. Recoverable: the
	// core signals the peer and disables compression, closing only
	// after a second consecutive failure.
	ErrDecompressError = errors.New("conn: decompress error")
	// ErrSendError is returned by Handle.Send when item is not one of
	// the types it accepts; nothing is queued.
	ErrSendError = errors.New("conn: send error")
	// ErrChannelClosed is returned by Handle methods after the
	// connection's workers have exited.
	ErrChannelClosed = errors.New("conn: channel closed")
)
