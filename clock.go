package signalcycle

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending callback that can be cancelled
type Timer interface {
	// Stop cancels the callback. It returns false if the callback already ran or was stopped.
	Stop() bool
}

// Clock schedules delayed callbacks
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock schedules on wall-clock time
type RealClock struct{}

// Now returns the current time
func (RealClock) Now() time.Time {
	return time.Now()
}

// AfterFunc runs f in its own goroutine after d
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// FakeClock is a virtual clock. Callbacks only run inside Advance, on the caller's goroutine.
type FakeClock struct {
	mutex   sync.Mutex
	now     time.Time
	seq     int
	pending []*fakeTimer
}

type fakeTimer struct {
	clock   *FakeClock
	when    time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

// NewFakeClock creates a virtual clock starting at start
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the virtual time
func (c *FakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

// AfterFunc registers f to run once the virtual time reaches now+d
func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if d < 0 {
		d = 0
	}
	c.seq++
	t := &fakeTimer{
		clock: c,
		when:  c.now.Add(d),
		seq:   c.seq,
		f:     f,
	}
	c.pending = append(c.pending, t)
	return t
}

// Advance moves virtual time forward by d, running every callback that comes due
// in deadline order. Callbacks may schedule further callbacks; those run too if
// they fall inside the window.
func (c *FakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	target := c.now.Add(d)
	c.mutex.Unlock()

	for {
		c.mutex.Lock()
		next := c.nextDue(target)
		if next == nil {
			c.now = target
			c.mutex.Unlock()
			return
		}
		c.now = next.when
		next.fired = true
		c.remove(next)
		c.mutex.Unlock()

		next.f()
	}
}

// Pending returns the number of callbacks waiting to run
func (c *FakeClock) Pending() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.pending)
}

// NextDeadline returns how far away the earliest pending callback is
func (c *FakeClock) NextDeadline() (time.Duration, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if len(c.pending) == 0 {
		return 0, false
	}
	c.sortPending()
	return c.pending[0].when.Sub(c.now), true
}

func (c *FakeClock) nextDue(target time.Time) *fakeTimer {
	if len(c.pending) == 0 {
		return nil
	}
	c.sortPending()
	if c.pending[0].when.After(target) {
		return nil
	}
	return c.pending[0]
}

func (c *FakeClock) sortPending() {
	sort.SliceStable(c.pending, func(i, j int) bool {
		if c.pending[i].when.Equal(c.pending[j].when) {
			return c.pending[i].seq < c.pending[j].seq
		}
		return c.pending[i].when.Before(c.pending[j].when)
	})
}

func (c *FakeClock) remove(t *fakeTimer) {
	for i, p := range c.pending {
		if p == t {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// Stop cancels the timer
func (t *fakeTimer) Stop() bool {
	t.clock.mutex.Lock()
	defer t.clock.mutex.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.clock.remove(t)
	return true
}
