package clock

import (
	"sync"
	"time"
)

// Timer is a one-shot timer armed through a Clock.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// timer from firing.
	Stop() bool
}

// Clock supplies wall-clock reads and one-shot timers. The rollout manager
// never touches the time package directly so that tests can drive scheduling
// deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Fake is a manually driven Clock for tests. Timers do not fire on their
// own; call Fire or Advance.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	armed  int // total AfterFunc calls, never decremented
}

type fakeTimer struct {
	clk      *Fake
	deadline time.Time
	delay    time.Duration
	f        func()
	stopped  bool
	fired    bool
}

// NewFake creates a Fake clock starting at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// SetNow moves the clock without firing timers.
func (c *Fake) SetNow(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clk: c, deadline: c.now.Add(d), delay: d, f: f}
	c.timers = append(c.timers, t)
	c.armed++
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Armed returns how many timers are currently pending (not fired, not
// stopped).
func (c *Fake) Armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

// ArmedTotal returns how many timers were ever armed.
func (c *Fake) ArmedTotal() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// LastDelay returns the delay requested by the most recent AfterFunc call.
func (c *Fake) LastDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return 0
	}
	return c.timers[len(c.timers)-1].delay
}

// Fire runs the earliest pending timer synchronously and reports whether one
// was pending. The clock is moved forward to the timer's deadline; it is
// left as is when the deadline is already past.
func (c *Fake) Fire() bool {
	c.mu.Lock()
	var next *fakeTimer
	for _, t := range c.timers {
		if t.fired || t.stopped {
			continue
		}
		if next == nil || t.deadline.Before(next.deadline) {
			next = t
		}
	}
	if next == nil {
		c.mu.Unlock()
		return false
	}
	next.fired = true
	if next.deadline.After(c.now) {
		c.now = next.deadline
	}
	f := next.f
	c.mu.Unlock()

	f()
	return true
}

// Advance moves the clock forward and fires every timer whose deadline has
// passed, in deadline order.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.deadline.After(target) {
				continue
			}
			if next == nil || t.deadline.Before(next.deadline) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.deadline
		f := next.f
		c.mu.Unlock()
		f()
	}
}
