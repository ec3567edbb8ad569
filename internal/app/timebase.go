package app

import (
	"sync"
	"time"
)

// Timebase abstracts wall-clock access and deadline/tick scheduling
// (§4.8). The executive posts Timebase.Now() into the cache's reserved
// `time` state at the start of every macro step and whenever a deadline
// or tick fires.
type Timebase struct {
	mu        sync.Mutex
	epoch     time.Time
	deadline  *time.Timer
	onFire    func()
	tick      *time.Timer
	tickEvery time.Duration
	onTick    func()
}

// NewTimebase starts a Timebase whose Now() is seconds since
// construction, matching `time`'s Real(0) seed in the cache (§4.4).
func NewTimebase() *Timebase {
	return &Timebase{epoch: time.Now()}
}

// Now returns the current time as seconds since the Timebase was
// constructed.
func (t *Timebase) Now() float64 {
	return time.Since(t.epoch).Seconds()
}

// SetDeadline arranges for onFire to be called once, approximately at
// absolute time (in the same units as Now()) deadline (§4.8).
func (t *Timebase) SetDeadline(deadline float64, onFire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.deadline != nil {
		t.deadline.Stop()
	}
	d := time.Duration((deadline - t.Now()) * float64(time.Second))
	if d < 0 {
		d = 0
	}
	t.onFire = onFire
	t.deadline = time.AfterFunc(d, func() {
		t.mu.Lock()
		f := t.onFire
		t.mu.Unlock()
		if f != nil {
			f()
		}
	})
}

// SetTickInterval installs a periodic tick: onTick is called every d
// until Stop or a subsequent SetTickInterval, for plans that poll a
// state on a fixed cadence rather than waiting for an exact deadline
// (§4.8). A non-positive d cancels the current tick.
func (t *Timebase) SetTickInterval(d time.Duration, onTick func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tick != nil {
		t.tick.Stop()
		t.tick = nil
	}
	if d <= 0 {
		t.onTick = nil
		return
	}
	t.tickEvery = d
	t.onTick = onTick
	t.tick = time.AfterFunc(d, t.fireTick)
}

func (t *Timebase) fireTick() {
	t.mu.Lock()
	f := t.onTick
	if t.tick != nil {
		t.tick.Reset(t.tickEvery)
	}
	t.mu.Unlock()
	if f != nil {
		f()
	}
}

// Stop cancels any pending deadline and tick, used during executive
// shutdown (§4.8).
func (t *Timebase) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.deadline != nil {
		t.deadline.Stop()
		t.deadline = nil
	}
	if t.tick != nil {
		t.tick.Stop()
		t.tick = nil
	}
	t.onTick = nil
}
