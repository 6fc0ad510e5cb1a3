package notify

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// DefaultWindow is the minimum spacing between two shown notifications.
const DefaultWindow = 10 * time.Second

// Throttle suppresses notifications fired within a fixed window of the last
// shown one. It is shared by every component that raises toasts.
type Throttle struct {
	mu     sync.Mutex
	clk    clock.Clock
	window time.Duration
	last   time.Time
}

// NewThrottle creates a throttle with the given window. A nil clock uses wall time.
func NewThrottle(window time.Duration, clk clock.Clock) *Throttle {
	if clk == nil {
		clk = clock.New()
	}
	return &Throttle{clk: clk, window: window}
}

// Allow reports whether a notification may be shown now and, if so, records it.
// Suppressed notifications do not extend the window.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clk.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.window {
		return false
	}
	t.last = now
	return true
}
