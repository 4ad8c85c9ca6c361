package main

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drake/telnetd/conn"
	"github.com/drake/telnetd/metrics"
)

// row is one connection's row in the admin console table.
type row struct {
	id       uuid.UUID
	remote   string
	accepted time.Time
	stats    conn.Stats
}

// registry tracks every live Handle so the admin console can poll
// their Stats on a tick, and records a connection's final snapshot
// (via metrics.Sink) once it closes.
type registry struct {
	mu      sync.Mutex
	handles map[uuid.UUID]*conn.Handle
	remote  map[uuid.UUID]string
	since   map[uuid.UUID]time.Time
	closed  []metrics.Snapshot // most recent closed-connection snapshots, newest last
}

func newRegistry() *registry {
	return &registry{
		handles: make(map[uuid.UUID]*conn.Handle),
		remote:  make(map[uuid.UUID]string),
		since:   make(map[uuid.UUID]time.Time),
	}
}

func (r *registry) add(h *conn.Handle, remoteAddr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h.ID()] = h
	r.remote[h.ID()] = remoteAddr
	r.since[h.ID()] = time.Now()
}

func (r *registry) rows() []row {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := make([]row, 0, len(r.handles))
	for id, h := range r.handles {
		rows = append(rows, row{
			id:       id,
			remote:   r.remote[id],
			accepted: r.since[id],
			stats:    h.Stats(),
		})
	}
	return rows
}

// Observe implements metrics.Sink. It is called once per connection,
// at shutdown, and is the registry's signal to stop tracking that
// connection as live.
func (r *registry) Observe(snap metrics.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := snap.Conn.(uuid.UUID); ok {
		delete(r.handles, id)
		delete(r.remote, id)
		delete(r.since, id)
	}
	r.closed = append(r.closed, snap)
	if len(r.closed) > 50 {
		r.closed = r.closed[len(r.closed)-50:]
	}
}

func (r *registry) closedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.closed)
}
