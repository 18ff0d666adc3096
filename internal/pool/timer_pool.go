// Package pool recycles timers used for short bounded waits (close timeouts,
// handshake and drain waits) so that polling callers do not allocate a timer
// per wait.
package pool

import (
	"sync"
	"time"
)

var timerPool = sync.Pool{
	New: func() any {
		t := time.NewTimer(time.Hour)
		t.Stop()

		return t
	},
}

// GetTimer returns a stopped-then-armed timer that fires after d.
//
// Return the timer with PutTimer once the wait is over.
func GetTimer(d time.Duration) *time.Timer {
	t, _ := timerPool.Get().(*time.Timer)
	// since Go 1.23 Reset on a stopped timer never delivers a stale value
	t.Reset(d)

	return t
}

// PutTimer stops t and returns it to the pool.
//
// t must not be used after it is returned.
func PutTimer(t *time.Timer) {
	t.Stop()
	timerPool.Put(t)
}

// Wait blocks until d elapses or done is closed. It reports whether done was
// closed first.
func Wait(done <-chan struct{}, d time.Duration) bool {
	t := GetTimer(d)
	defer PutTimer(t)

	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}
