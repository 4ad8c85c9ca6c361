package conn

import (
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of one connection's activity,
// suitable for pushing into a metrics.Sink or polling for a debug
// display. Mirrors the teacher's own network.Stats probe, generalized
// from a single hardcoded client into a per-connection value.
type Stats struct {
	BytesRead     uint64
	BytesWritten  uint64
	FramesRead    uint64
	FramesWritten uint64
	LastActivity  time.Time
	HostQueueLen  int
	HostQueueCap  int
	WriteQueueLen int
}

type statCounters struct {
	bytesRead     atomic.Uint64
	bytesWritten  atomic.Uint64
	framesRead    atomic.Uint64
	framesWritten atomic.Uint64
	lastActivity  atomic.Int64 // Unix nano
}

func (c *statCounters) touch() { c.lastActivity.Store(time.Now().UnixNano()) }

func (c *statCounters) snapshot(hostQueueLen, hostQueueCap, writeQueueLen int) Stats {
	var last time.Time
	if n := c.lastActivity.Load(); n != 0 {
		last = time.Unix(0, n)
	}
	return Stats{
		BytesRead:     c.bytesRead.Load(),
		BytesWritten:  c.bytesWritten.Load(),
		FramesRead:    c.framesRead.Load(),
		FramesWritten: c.framesWritten.Load(),
		LastActivity:  last,
		HostQueueLen:  hostQueueLen,
		HostQueueCap:  hostQueueCap,
		WriteQueueLen: writeQueueLen,
	}
}
