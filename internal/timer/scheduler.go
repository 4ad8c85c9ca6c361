// Package timer translates delayed work into channel events, for
// callers (like a connection's idle-timeout watchdog) that want a
// single goroutine to own when callbacks actually run.
package timer

import "time"

// Scheduler manages delayed tasks by translating time into channel events.
// The receiver is responsible for executing the callback safely.
type Scheduler struct {
	out chan<- func()
}

// New creates a Scheduler that sends callbacks to the given channel.
func New(out chan<- func()) *Scheduler {
	return &Scheduler{out: out}
}

// Schedule asks to run 'job' after duration 'd'. Returns a cancel function.
func (s *Scheduler) Schedule(d time.Duration, job func()) (cancel func()) {
	t := time.AfterFunc(d, func() {
		s.out <- job
	})
	return func() { t.Stop() }
}

// Debounce returns a Debounced that runs job once the caller has gone
// d without calling Reset again, the pattern a connection's
// idle-timeout watchdog needs.
func (s *Scheduler) Debounce(d time.Duration, job func()) *Debounced {
	return &Debounced{sched: s, d: d, job: job}
}

// Debounced restarts a single pending callback every time Reset is
// called, so only the most recent deadline ever fires.
type Debounced struct {
	sched  *Scheduler
	d      time.Duration
	job    func()
	cancel func()
}

// Reset cancels whatever callback is pending and schedules a fresh one
// d out. A zero duration leaves nothing scheduled, disabling the
// watchdog.
func (db *Debounced) Reset() {
	if db.cancel != nil {
		db.cancel()
		db.cancel = nil
	}
	if db.d > 0 {
		db.cancel = db.sched.Schedule(db.d, db.job)
	}
}

// Stop cancels any pending callback without scheduling a new one.
func (db *Debounced) Stop() {
	if db.cancel != nil {
		db.cancel()
		db.cancel = nil
	}
}
