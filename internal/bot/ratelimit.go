package bot

import (
	"context"
	"sync"
	"time"
)

const rateLimiterSweepInterval = 5 * time.Minute

// RateLimiter bounds how many commands a user may issue inside a sliding
// window. A denied attempt still occupies a slot in the window: hammering a
// rate-limited bot extends the lockout rather than draining it.
type RateLimiter interface {
	Allow(ctx context.Context, userID int64) bool
	Close()
}

type memoryRateLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[int64][]time.Time
	stopCh  chan struct{}
	once    sync.Once
}

// NewMemoryRateLimiter keeps per-user command timestamps in process memory.
func NewMemoryRateLimiter(limit int, window time.Duration) RateLimiter {
	rl := newMemoryRateLimiter(limit, window, time.Now)
	go rl.sweepLoop()
	return rl
}

func newMemoryRateLimiter(limit int, window time.Duration, clock func() time.Time) *memoryRateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memoryRateLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[int64][]time.Time),
		stopCh:  make(chan struct{}),
	}
}

func (rl *memoryRateLimiter) Allow(_ context.Context, userID int64) bool {
	now := rl.clock()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	window := rl.windows[userID]
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	rl.windows[userID] = kept
	return len(kept) <= rl.limit
}

func (rl *memoryRateLimiter) sweepLoop() {
	ticker := time.NewTicker(rateLimiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep(rl.clock())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *memoryRateLimiter) sweep(now time.Time) {
	cutoff := now.Add(-rl.window)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for userID, window := range rl.windows {
		if len(window) == 0 || !window[len(window)-1].After(cutoff) {
			delete(rl.windows, userID)
		}
	}
}

func (rl *memoryRateLimiter) Close() {
	rl.once.Do(func() {
		close(rl.stopCh)
	})
}
