package viewport

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates one rendering frame at 60fps.
const DefaultFrameInterval = 16 * time.Millisecond

// FrameThrottle coalesces scroll-driven work to at most one invocation per
// frame. Calls arriving while a frame is pending replace the pending
// function; stale work is never queued.
type FrameThrottle struct {
	interval time.Duration

	mu      sync.Mutex
	pending func()
	armed   bool
	stopped bool
}

// NewFrameThrottle creates a throttle with the given frame interval.
// Non-positive intervals fall back to DefaultFrameInterval.
func NewFrameThrottle(interval time.Duration) *FrameThrottle {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameThrottle{interval: interval}
}

// Schedule queues fn for the next frame tick. Only the latest scheduled
// function within a frame runs.
func (t *FrameThrottle) Schedule(fn func()) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.pending = fn
	if t.armed {
		t.mu.Unlock()
		return
	}
	t.armed = true
	t.mu.Unlock()

	time.AfterFunc(t.interval, t.fire)
}

func (t *FrameThrottle) fire() {
	t.mu.Lock()
	fn := t.pending
	t.pending = nil
	t.armed = false
	stopped := t.stopped
	t.mu.Unlock()

	if fn != nil && !stopped {
		fn()
	}
}

// Stop discards pending work and ignores further scheduling.
func (t *FrameThrottle) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.pending = nil
	t.mu.Unlock()
}
