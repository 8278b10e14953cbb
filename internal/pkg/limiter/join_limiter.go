package limiter

import (
	"sync"
	"time"
)

const (
	// JoinWindow is the trailing window over which join attempts are counted.
	JoinWindow = 60 * time.Second

	// MaxJoinAttempts is the number of join attempts allowed inside the
	// window. The attempt that exceeds it is still recorded, so flooding past
	// the limit keeps a user rejected for close to the full window.
	MaxJoinAttempts = 3
)

// JoinLimiter is a sliding-window limiter for room-join attempts, keyed by
// user ID. Windows live only as long as the owning connection: Forget is
// called on disconnect, so a fresh connection starts with a clean slate.
type JoinLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	window  time.Duration
	max     int

	// now is replaceable in tests.
	now func() time.Time
}

// NewJoinLimiter creates a JoinLimiter counting at most max attempts inside
// the given trailing window.
func NewJoinLimiter(window time.Duration, max int) *JoinLimiter {
	return &JoinLimiter{
		windows: make(map[string][]time.Time),
		window:  window,
		max:     max,
		now:     time.Now,
	}
}

// Allow prunes the user's window, records the current attempt, and reports
// whether the attempt is admitted. A rejected attempt is never rolled back
// from the window.
func (l *JoinLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.windows[userID][:0]
	for _, ts := range l.windows[userID] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	kept = append(kept, now)
	l.windows[userID] = kept

	return len(kept) <= l.max
}

// Forget discards the user's attempt window. Called on disconnect; rate
// limiting is connection-scoped, not identity-scoped across reconnects.
func (l *JoinLimiter) Forget(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, userID)
}
