package conn

import (
	"sync/atomic"

	"github.com/drake/telnetd/option"
)

// writeItem is one unit of outbound work: a frame to encode and write,
// plus whether the caller demanded an immediate flush regardless of
// the connection's FlushStrategy.
type writeItem struct {
	bytes      []byte
	forceFlush bool

	// activateOutbound, when set, tells the writer to switch its
	// destination to deflate-through-MCCP2 immediately after writing
	// bytes (see Conn.enqueueEngineFrames).
	activateOutbound *option.CompressSignal
}

// unboundedQueue decouples Handle.Send (which must never block the
// caller on a slow peer) from the writer worker's pace. Unlike a
// buffered channel, its capacity grows with demand instead of
// rejecting or blocking producers, matching the spec's "unbounded
// write-request channel" requirement. The standard pump-goroutine
// idiom: buffer client sends into an internal slice and redeliver them
// one at a time through out.
//
// done is shared with the owning Conn rather than owned by the queue
// itself: closing it unblocks both push (so a racing Send never sends
// on a channel the pump has stopped reading) and the pump's own
// select, without ever closing a channel a concurrent goroutine might
// still be sending on.
type unboundedQueue struct {
	in   chan writeItem
	out  chan writeItem
	done <-chan struct{}

	pending atomic.Int64
}

func newUnboundedQueue(done <-chan struct{}) *unboundedQueue {
	q := &unboundedQueue{
		in:   make(chan writeItem),
		out:  make(chan writeItem),
		done: done,
	}
	go q.pump()
	return q
}

func (q *unboundedQueue) pump() {
	var pending []writeItem
	for {
		if len(pending) == 0 {
			select {
			case item := <-q.in:
				pending = append(pending, item)
			case <-q.done:
				return
			}
			continue
		}

		select {
		case item := <-q.in:
			pending = append(pending, item)
		case q.out <- pending[0]:
			pending = pending[1:]
			q.pending.Add(-1)
		case <-q.done:
			return
		}
	}
}

// push enqueues item, or silently drops it if the connection has
// already closed.
func (q *unboundedQueue) push(item writeItem) {
	select {
	case q.in <- item:
		q.pending.Add(1)
	case <-q.done:
	}
}

// len reports the number of items currently buffered in the queue,
// for Stats.WriteQueueLen.
func (q *unboundedQueue) len() int {
	return int(q.pending.Load())
}
