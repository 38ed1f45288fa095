package dedup

import (
	"sync"
	"time"
)

// Key identifies one already-notified alert: same station, same pollutant,
// same detection timestamp.
type Key struct {
	Station    string
	Parameter  string
	SensorDate string
}

// Window is a bounded already-notified set with eviction by age. The same
// idempotence principle the store applies to writes, applied to outbound
// notifications: a key still inside the retention window is not re-sent.
type Window struct {
	retention time.Duration
	now       func() time.Time

	mu   sync.Mutex
	seen map[Key]time.Time
}

// NewWindow creates a window that suppresses repeat keys for retention.
func NewWindow(retention time.Duration) *Window {
	return &Window{
		retention: retention,
		now:       time.Now,
		seen:      make(map[Key]time.Time),
	}
}

// SetClock overrides the clock (for tests).
func (w *Window) SetClock(now func() time.Time) {
	w.now = now
}

// ShouldNotify reports whether the key has not been notified within the
// retention window, marking it as notified when it has not. Expired
// entries are evicted on every call, bounding the map by the alert rate
// over one retention period.
func (w *Window) ShouldNotify(k Key) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.retention)
	for key, sentAt := range w.seen {
		if sentAt.Before(cutoff) {
			delete(w.seen, key)
		}
	}

	if _, ok := w.seen[k]; ok {
		return false
	}
	w.seen[k] = now
	return true
}

// Len returns the number of live entries.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

// Reset drops all entries.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen = make(map[Key]time.Time)
}
