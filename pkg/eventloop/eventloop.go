// Package eventloop implements the single-dispatcher-goroutine event
// loop shared by the coordinator and worker processes.
//
// Every piece of mutable process state (queues, peer tables, counters)
// is owned by exactly one goroutine: the dispatcher running inside
// Loop.Run. I/O goroutines -- a transport's receive loop, a timer
// ticker, an accepted TCP connection's reader -- never touch that state
// directly; they call Post to hand a closure to the dispatcher, which
// runs it to completion before picking up the next one. This gives the
// same "no core data structure touched by more than one thread"
// guarantee a single-threaded poll loop would, without blocking any of
// the I/O goroutines on a lock.
package eventloop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Loop is a cooperative dispatcher: actions posted to it run strictly
// one at a time, in the order they were posted, on the loop's own
// goroutine.
type Loop struct {
	eventCh chan func()
	doneCh  chan struct{}

	terminated atomic.Bool

	timersWG sync.WaitGroup
	stopCh   chan struct{} // closed once, stops all timer goroutines
}

// New creates a Loop with the given posting buffer size. A small buffer
// (even 0, meaning unbuffered) is fine for control messages; a
// busy worker posting per-ray events should size this to absorb a burst
// without forcing I/O goroutines to block on Post.
func New(bufferSize int) *Loop {
	return &Loop{
		eventCh: make(chan func(), bufferSize),
		doneCh:  make(chan struct{}),
		stopCh:  make(chan struct{}),
	}
}

// Post hands fn to the dispatcher. Post never blocks the caller longer
// than it takes to enqueue: if the loop has already terminated, fn is
// dropped rather than leaking the caller goroutine forever.
func (l *Loop) Post(fn func()) {
	select {
	case l.eventCh <- fn:
	case <-l.doneCh:
	}
}

// Run executes posted actions on the calling goroutine until ctx is
// canceled or Terminate is called. Run returns once the current action,
// if any, finishes -- termination never interrupts a handler mid-run.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.doneCh)
	for {
		select {
		case fn := <-l.eventCh:
			fn()
			if l.terminated.Load() {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Terminate requests that Run stop after the action currently being
// dispatched (if any) completes. Safe to call from within a posted
// action or from any other goroutine.
func (l *Loop) Terminate() {
	l.terminated.Store(true)
	// Ensure Run wakes up even if no further actions are posted. The
	// wake-up is posted from its own goroutine so that a call from inside
	// a posted action never blocks on the loop's own full channel.
	go l.Post(func() {})
}

// AddTimer starts a background goroutine that posts fn to the loop
// every interval, representing one of the process's periodic
// responsibilities (peer upkeep, stats publication, diagnostics,
// output merge, status printing). The returned stop function halts the
// ticker; it does not wait for an in-flight posted fn to finish.
func (l *Loop) AddTimer(interval time.Duration, fn func()) (stop func()) {
	stopped := make(chan struct{})
	l.timersWG.Add(1)
	go func() {
		defer l.timersWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Post(fn)
			case <-stopped:
				return
			case <-l.stopCh:
				return
			case <-l.doneCh:
				return
			}
		}
	}()
	return func() { close(stopped) }
}

// Close stops every timer goroutine started via AddTimer. Call it after
// Run has returned.
func (l *Loop) Close() {
	close(l.stopCh)
	l.timersWG.Wait()
}
