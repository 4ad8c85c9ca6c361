package option

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// MTTSCapabilities is the decoded bitfield from a client's third TTYPE
// cycle response ("MTTS <n>"), per the MTTS extension to RFC 1091.
type MTTSCapabilities struct {
	ANSI        bool
	VT100       bool
	UTF8        bool
	Color256    bool
	MouseTrack  bool
	OSCColorPal bool
	ScreenReady bool
	Proxy       bool
	TrueColor   bool
}

// mttsBits mirrors the published MTTS bit assignments.
const (
	mttsANSI = 1 << iota
	mttsVT100
	mttsUTF8
	mttsColor256
	mttsMouseTrack
	mttsOSCColorPal
	mttsScreenReady
	mttsProxy
	mttsTrueColor
)

func decodeMTTS(n int) MTTSCapabilities {
	return MTTSCapabilities{
		ANSI:        n&mttsANSI != 0,
		VT100:       n&mttsVT100 != 0,
		UTF8:        n&mttsUTF8 != 0,
		Color256:    n&mttsColor256 != 0,
		MouseTrack:  n&mttsMouseTrack != 0,
		OSCColorPal: n&mttsOSCColorPal != 0,
		ScreenReady: n&mttsScreenReady != 0,
		Proxy:       n&mttsProxy != 0,
		TrueColor:   n&mttsTrueColor != 0,
	}
}

// Status is the negotiation-derived view of a connection: values
// learned through sub-negotiation rather than tracked by the Q-Method
// state machine itself. It is safe to read from the host goroutine
// concurrently with the engine's own goroutine only through the
// snapshot accessors package conn exposes; Status itself has no
// internal locking.
type Status struct {
	Width, Height int
	TerminalTypes []string // every TTYPE cycle response seen except "MTTS <n>" ones, in order, repeats included
	MTTS          MTTSCapabilities
	Charset       string
	Environ       map[string]string

	mttsCache *lru.Cache[int, MTTSCapabilities]
}

func newStatus() *Status {
	// TTYPE cycling only ever produces a handful of distinct MTTS
	// bitmasks per client; 32 entries is far more than any single
	// connection will need but cheap to retain across its lifetime.
	cache, _ := lru.New[int, MTTSCapabilities](32)
	return &Status{
		Environ:   make(map[string]string),
		mttsCache: cache,
	}
}

func (s *Status) classifyMTTS(n int) MTTSCapabilities {
	if c, ok := s.mttsCache.Get(n); ok {
		return c
	}
	c := decodeMTTS(n)
	s.mttsCache.Add(n, c)
	return c
}
