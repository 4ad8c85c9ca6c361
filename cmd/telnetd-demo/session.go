package main

import (
	"strconv"
	"time"

	"github.com/drake/telnetd/conn"
	"github.com/drake/telnetd/event"
	"github.com/drake/telnetd/internal/timer"
)

// echoLoop is the demo's entire "game": it echoes whatever data a
// connection sends, reports its negotiated window size once NAWS
// settles, and exits once the connection's event stream ends. Real
// servers hang their own protocol on top of Handle the same way.
//
// idle timeouts are explicitly not the core's concern (spec §5): this
// loop is the "higher-level connection manager" that owns one, using
// timer.Scheduler's Debounce to close the Handle once it has gone
// idle long enough.
func echoLoop(h *conn.Handle, idle time.Duration) {
	jobs := make(chan func(), 1)
	go func() {
		for job := range jobs {
			job()
		}
	}()

	sched := timer.New(jobs)
	watchdog := sched.Debounce(idle, func() { h.Close() })
	defer func() {
		watchdog.Stop()
		close(jobs)
	}()
	watchdog.Reset()

	for {
		ev, err := h.NextEvent()
		if err != nil {
			return
		}
		watchdog.Reset()
		switch ev.Kind {
		case event.Data:
			h.Send(ev.Bytes, false)
		case event.WindowSize:
			h.Send([]byte(fmtWindowSize(ev.Width, ev.Height)), true)
		case event.Disconnected:
			return
		}
	}
}

func fmtWindowSize(w, hgt int) string {
	return "[window size: " + strconv.Itoa(w) + "x" + strconv.Itoa(hgt) + "]\r\n"
}
