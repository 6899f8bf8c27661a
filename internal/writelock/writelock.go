// Package writelock provides the process-wide write suspension flag used
// during maintenance windows. The ingest loop checks it before every write
// batch; the scheduler sets it around vacuum and backup runs.
package writelock

import (
	"sync/atomic"
	"time"
)

// Lock is a lock-free write suspension flag. The zero value is unlocked.
type Lock struct {
	held  atomic.Bool
	since atomic.Int64
}

// Set suspends writes. Setting an already-set lock refreshes nothing.
func (l *Lock) Set() {
	if l.held.CompareAndSwap(false, true) {
		l.since.Store(time.Now().UnixNano())
	}
}

// Clear resumes writes.
func (l *Lock) Clear() {
	l.held.Store(false)
}

// Held reports whether writes are currently suspended.
func (l *Lock) Held() bool {
	return l.held.Load()
}

// Duration returns how long the lock has been held, or zero when it is not.
func (l *Lock) Duration() time.Duration {
	if !l.held.Load() {
		return 0
	}
	return time.Since(time.Unix(0, l.since.Load()))
}
