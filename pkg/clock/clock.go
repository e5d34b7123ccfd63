// Package clock abstracts time so debounced work can be driven by a virtual
// clock in tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock is the subset of the time package used by schedulers.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f once d has elapsed. The returned Timer can cancel it.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending callback.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the
	// callback already fired or the timer was already stopped.
	Stop() bool
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Virtual is a manually advanced Clock. Callbacks run synchronously on the
// goroutine that calls Advance, in deadline order.
type Virtual struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*virtualTimer
}

// NewVirtual creates a virtual clock starting at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

// Now returns the current virtual time.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// AfterFunc registers f to run when the virtual time reaches now+d.
func (v *Virtual) AfterFunc(d time.Duration, f func()) Timer {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	t := &virtualTimer{clock: v, deadline: v.now.Add(d), seq: v.seq, fn: f}
	v.timers = append(v.timers, t)
	return t
}

// Advance moves time forward by d, firing every timer that comes due.
// Timers registered by a callback fire in the same call if they fall due.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()

	for {
		v.mu.Lock()
		next := v.nextDueLocked(target)
		if next == nil {
			v.now = target
			v.mu.Unlock()
			return
		}
		v.removeLocked(next)
		v.now = next.deadline
		v.mu.Unlock()

		next.fn()
	}
}

// Pending reports the number of timers that have not fired or been stopped.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.timers)
}

func (v *Virtual) nextDueLocked(target time.Time) *virtualTimer {
	if len(v.timers) == 0 {
		return nil
	}
	sort.Slice(v.timers, func(i, j int) bool {
		if !v.timers[i].deadline.Equal(v.timers[j].deadline) {
			return v.timers[i].deadline.Before(v.timers[j].deadline)
		}
		return v.timers[i].seq < v.timers[j].seq
	})
	if v.timers[0].deadline.After(target) {
		return nil
	}
	return v.timers[0]
}

func (v *Virtual) removeLocked(t *virtualTimer) bool {
	for i, candidate := range v.timers {
		if candidate == t {
			v.timers = append(v.timers[:i], v.timers[i+1:]...)
			return true
		}
	}
	return false
}

type virtualTimer struct {
	clock    *Virtual
	deadline time.Time
	seq      int
	fn       func()
}

func (t *virtualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.clock.removeLocked(t)
}
