package session

import (
	"context"
	"sync"
	"time"
)

const defaultTick = time.Second

// Countdown is the authoritative time left in a session. Remaining time is
// always derived from the deadline so a late or skipped tick never drifts.
type Countdown struct {
	deadline time.Time
	now      func() time.Time
	tick     time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	expired sync.Once
}

func NewCountdown(startedAt time.Time, duration time.Duration, now func() time.Time) *Countdown {
	if now == nil {
		now = time.Now
	}
	return &Countdown{
		deadline: startedAt.Add(duration),
		now:      now,
		tick:     defaultTick,
	}
}

func (c *Countdown) Deadline() time.Time {
	return c.deadline
}

// Remaining is the time until the deadline, never negative.
func (c *Countdown) Remaining() time.Duration {
	left := c.deadline.Sub(c.now())
	if left < 0 {
		return 0
	}
	return left
}

// RemainingSeconds rounds up so that a session shows 0 only once it has expired.
func (c *Countdown) RemainingSeconds() int {
	left := c.Remaining()
	secs := int(left / time.Second)
	if left%time.Second != 0 {
		secs++
	}
	return secs
}

// Start ticks until the deadline passes, then calls onExpire once and stops.
// Calling Start on a running countdown does nothing.
func (c *Countdown) Start(onExpire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, c.done, onExpire)
}

func (c *Countdown) run(ctx context.Context, done chan struct{}, onExpire func()) {
	defer close(done)

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.Remaining() > 0 {
				continue
			}
			c.expired.Do(onExpire)
			return
		}
	}
}

// Stop cancels the tick loop without waiting for it, so it is safe to call
// from inside onExpire.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// stopped is closed once the tick loop has exited. It is nil before Start.
func (c *Countdown) stopped() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}
