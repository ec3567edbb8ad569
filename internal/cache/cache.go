// Package cache implements the state cache and Lookup expressions of the
// executive (§4.4): a flat map from state name to last-known Value, with
// tolerance/threshold-gated change notification.
package cache

import (
	"math"
	"sync"

	"github.com/plexirun/plexir/internal/domain"
	"github.com/plexirun/plexir/internal/iface"
)

// StateKey identifies a single external state the cache tracks, composed
// of the state name plus its (possibly empty) argument values — two
// Lookups with different arguments to the same named state are distinct
// cache entries (§4.4).
type StateKey struct {
	Name string
	Args string // stable-encoded argument tuple, see EncodeArgs
}

// EncodeArgs renders a Value argument list into the stable string used as
// the second half of a StateKey.
func EncodeArgs(args []domain.Value) string {
	s := ""
	for i, a := range args {
		if i > 0 {
			s += ","
		}
		s += a.String()
	}
	return s
}

type entry struct {
	mu        sync.Mutex
	value     domain.Value
	stamp     uint64 // cache-wide update sequence number, monotonic per entry
	listeners []*subscription
}

type subscription struct {
	lookup    *Lookup
	low, high float64 // active threshold window; absent until armed around a known value
	hasWindow bool
	timeKind  bool // Date/Duration/time lookups get the quantization guard band
}

// StateCache is the single map of live external state the executive
// consults for every Lookup. `time` is always present, seeded to
// Real(0) at construction (§4.4, §4.8; resolves SPEC_FULL's C4 note).
type StateCache struct {
	mu      sync.RWMutex
	entries map[StateKey]*entry
	seq     uint64
	out     iface.Outbound // nil: no registration contract, thresholds applied locally only (tests)
}

// New constructs a StateCache with no Outbound registration contract:
// every LookupOnChange still thresholds locally, but subscribe_state /
// set_thresholds are never called. Suitable for unit tests that drive
// Update directly.
func New() *StateCache {
	return NewWithOutbound(nil)
}

// NewWithOutbound constructs a StateCache that honors §4.4's
// "Registration contract with external interface": out.SubscribeState
// is called when a state acquires its first LookupOnChange,
// out.UnsubscribeState when it loses its last. Threshold windows are
// tracked per subscription locally (subscription.arm); the
// set_thresholds direction is resolved in DESIGN.md's Open Questions.
func NewWithOutbound(out iface.Outbound) *StateCache {
	c := &StateCache{entries: make(map[StateKey]*entry), out: out}
	c.entries[StateKey{Name: "time"}] = &entry{value: domain.RealValue(0)}
	return c
}

func (c *StateCache) entryFor(key StateKey) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{value: domain.Unknown()}
		c.entries[key] = e
	}
	return e
}

// Get returns the last-known value for key without subscribing, used by
// LookupNow (§4.4: "reads the current cached value and does not
// subscribe to future changes").
func (c *StateCache) Get(key StateKey) domain.Value {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return domain.Unknown()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Update installs a new value for key, notifying subscribed Lookups whose
// threshold window the new value has left (§4.4). An adapter (or, in this
// module's scope, a test double standing in for one) is the only caller.
func (c *StateCache) Update(key StateKey, v domain.Value) {
	e := c.entryFor(key)
	c.mu.Lock()
	c.seq++
	stamp := c.seq
	c.mu.Unlock()

	e.mu.Lock()
	e.value = v
	e.stamp = stamp
	subs := make([]*subscription, len(e.listeners))
	copy(subs, e.listeners)
	e.mu.Unlock()

	for _, sub := range subs {
		if subNeedsNotify(sub, v) {
			sub.lookup.onCacheChange(sub, v)
		}
	}
}

func subNeedsNotify(sub *subscription, v domain.Value) bool {
	if !sub.hasWindow {
		return true
	}
	r, ok := v.AsReal()
	if !ok {
		return true // an unknown/non-numeric arrival always crosses the window
	}
	// Boundary crossings are inclusive: a value sitting exactly on the
	// edge of a window counts as having crossed it.
	if r >= sub.high || r <= sub.low {
		return true
	}
	// Date/Duration/time lookups additionally treat values within a
	// relative guard band of a threshold as having crossed it, so timer
	// quantization cannot strand a deadline just inside its own window
	// (§4.4's 1e-13 epsilon, scoped to the time-like kinds).
	if sub.timeKind {
		epsilon := math.Abs(r) * 1e-13
		if sub.high-r < epsilon || r-sub.low < epsilon {
			return true
		}
	}
	return false
}

// Timestamp reports the cache-wide update sequence number of key's last
// write, 0 if never written. Timestamps are strictly increasing across
// writes, so two reads of the same entry can be ordered without a clock
// (§4.4's "monotonically increasing sequence number").
func (c *StateCache) Timestamp(key StateKey) uint64 {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stamp
}

// Lookup is the base expression type for LookupNow and LookupOnChange
// (§4.4): both read through the cache by StateKey, but only
// LookupOnChange installs a threshold-gated subscription.
type Lookup struct {
	domain.Notifier
	cache     *StateCache
	key       StateKey
	onChange  bool
	tolerance float64 // 0 if unset; see subscription.arm
	cached    domain.Value
}

// NewLookupNow builds a Lookup that reads the cache once per activation
// and never re-notifies on its own (§4.4).
func NewLookupNow(c *StateCache, key StateKey) *Lookup {
	l := &Lookup{cache: c, key: key, cached: domain.Unknown()}
	l.OnActivate(func() { l.cached = c.Get(key) })
	l.OnDeactivate(func() { l.cached = domain.Unknown() })
	return l
}

// NewLookupOnChange builds a Lookup that subscribes to cache updates
// within a tolerance window (§4.4). A zero tolerance means "notify on any
// change", matching SPEC_FULL's resolution of Open Question 3 (unknown
// tolerance at activation defaults to zero).
func NewLookupOnChange(c *StateCache, key StateKey, tolerance float64) *Lookup {
	l := &Lookup{cache: c, key: key, onChange: true, tolerance: tolerance, cached: domain.Unknown()}
	l.OnActivate(func() {
		l.cached = c.Get(key)
		sub := &subscription{lookup: l}
		sub.arm(l.cached, l.tolerance, l.key.Name)
		e := c.entryFor(key)
		e.mu.Lock()
		wasEmpty := len(e.listeners) == 0
		e.listeners = append(e.listeners, sub)
		e.mu.Unlock()
		if c.out != nil && wasEmpty {
			_ = c.out.SubscribeState(key.Name, nil)
		}
	})
	l.OnDeactivate(func() {
		e := c.entryFor(key)
		e.mu.Lock()
		for i, s := range e.listeners {
			if s.lookup == l {
				e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
				break
			}
		}
		nowEmpty := len(e.listeners) == 0
		e.mu.Unlock()
		if c.out != nil && nowEmpty {
			_ = c.out.UnsubscribeState(key.Name, nil)
		}
		l.cached = domain.Unknown()
	})
	return l
}

// arm (re)establishes the threshold window around v0 (§4.4's tolerance
// math: low = v0 - |tol|, high = v0 + |tol|). An unknown v0 or a zero
// tolerance leaves the subscription windowless, notifying on every
// change until the next arming.
func (s *subscription) arm(v0 domain.Value, tolerance float64, name string) {
	s.timeKind = name == "time" ||
		v0.Kind() == domain.KindDate || v0.Kind() == domain.KindDuration
	r, ok := v0.AsReal()
	tol := math.Abs(tolerance)
	if !ok || tol == 0 {
		s.low, s.high, s.hasWindow = 0, 0, false
		return
	}
	s.low, s.high, s.hasWindow = r-tol, r+tol, true
}

func (l *Lookup) onCacheChange(sub *subscription, v domain.Value) {
	if !l.IsActive() {
		return
	}
	prev := l.cached
	l.cached = v
	// The window re-arms only when the entry's known-ness flips (§4.4:
	// "is known when v₀ was unknown, or vice-versa"): a lookup activated
	// before the adapter's first push gets its window the moment the
	// first known value arrives. Across ordinary threshold crossings the
	// window stays fixed around the value it was last armed to, so a
	// value that settles back just inside it from the far side is still
	// reported and a later, smaller excursion still fires.
	if prev.IsKnown() != v.IsKnown() {
		sub.arm(v, l.tolerance, l.key.Name)
	}
	l.PublishChange()
}

func (l *Lookup) ValueType() domain.Kind {
	v := l.cache.Get(l.key)
	if v.IsKnown() {
		return v.Kind()
	}
	return domain.KindUnknown
}

func (l *Lookup) IsConstant() bool { return false }
func (l *Lookup) NotifyChanged()   {}

func (l *Lookup) Value() domain.Value {
	if !l.IsActive() {
		return domain.Unknown()
	}
	return l.cached
}
