package testfixtures

import (
	"sort"
	"sync"
	"time"
)

// Clock is a manual time source. Timers created through AfterFunc fire only
// when Advance or Set moves the clock past their deadline, which lets tests
// drive notification expiry without sleeping.
type Clock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*manualTimer
}

// NewClock starts at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc returns Now, or time.Now for a nil clock.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Current is Now; it reads better in assertions.
func (c *Clock) Current() time.Time {
	return c.Now()
}

// Set jumps to t and fires every timer that is due.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	due := c.dueLocked()
	c.mu.Unlock()
	for _, timer := range due {
		timer.fn()
	}
}

// Advance moves the clock forward by d and fires due timers in deadline
// order. It returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	due := c.dueLocked()
	c.mu.Unlock()
	for _, timer := range due {
		timer.fn()
	}
	return now
}

// AfterFunc schedules fn to run once the clock reaches now+d. Its signature
// matches the timer factory taken by timeline.WithToastClock.
func (c *Clock) AfterFunc(d time.Duration, fn func()) interface{ Stop() bool } {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &manualTimer{clock: c, deadline: c.now.Add(d), fn: fn}
	c.pending = append(c.pending, timer)
	return timer
}

// Pending reports how many timers have neither fired nor been stopped.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Clock) dueLocked() []*manualTimer {
	var due, rest []*manualTimer
	for _, timer := range c.pending {
		if timer.deadline.After(c.now) {
			rest = append(rest, timer)
		} else {
			due = append(due, timer)
		}
	}
	c.pending = rest
	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	return due
}

type manualTimer struct {
	clock    *Clock
	deadline time.Time
	fn       func()
}

func (t *manualTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, pending := range c.pending {
		if pending == t {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}
