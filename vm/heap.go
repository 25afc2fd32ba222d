package vm

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrWindowReleased is returned when a pinned window is released twice.
var ErrWindowReleased = errors.New("vm: pinned window already released")

// ---------------------------------------------------------------------------
// Heap: one unit's semi-space pair
// ---------------------------------------------------------------------------

// GCStats summarises the collector's work on one heap.
type GCStats struct {
	Collections   int
	Skipped       int
	Grows         int
	WordsCopied   int
	LiveWords     int
	UsedWords     int
	CapacityWords int
	Finalized     int
	LastPause     time.Duration
}

// Heap is a bump-allocated semi-space heap. It is mutated only while the
// owning unit's allocation permit is held.
type Heap struct {
	mu       sync.Mutex
	owner    UnitID
	provider MemoryProvider
	from     *space
	to       *space // nil after a grow until the next collection
	maxWords int

	tracker Tracker
	roots   func(visit func(*Value))
	windows []*Window
	pinned  int
	pending object // object being allocated; its children are roots
	dirty   bool
	stats   GCStats
}

func newHeap(owner UnitID, p MemoryProvider, words, maxWords int) *Heap {
	if maxWords < words {
		maxWords = words
	}
	h := &Heap{
		owner:    owner,
		provider: p,
		from:     newSpace(p, words),
		maxWords: maxWords,
		roots:    func(func(*Value)) {},
	}
	h.stats.CapacityWords = words
	return h
}

// object resolves a reference to its heap or static object.
func (h *Heap) object(v Value) object {
	a := v.Addr()
	if isStatic(a) {
		if o := staticObject(a); o != nil {
			return o
		}
	} else if h.from.contains(a) {
		if o := h.from.at(a); o != nil {
			return o
		}
	}
	panic(fmt.Sprintf("vm: unit %d: dangling reference %v", h.owner, v))
}

// ensure makes room for n words, collecting and then growing if needed.
func (h *Heap) ensure(n int) {
	if h.from.free() >= n {
		return
	}
	if h.pinned > 0 {
		fault(h.owner, FaultOutOfMemory, "allocation of %d words exceeds the pinned window budget", n)
	}
	h.collect(h.from.capacity())
	if h.from.free() >= n {
		return
	}
	capacity := h.from.capacity()
	for capacity-h.from.used < n {
		capacity *= 2
	}
	if capacity > h.maxWords {
		fault(h.owner, FaultOutOfMemory, "%d live words plus %d requested exceed the %d word limit",
			h.from.used, n, h.maxWords)
	}
	h.collect(capacity)
	h.stats.Grows++
	log.Debugf("unit %d: heap grown to %d words", h.owner, capacity)
}

func (h *Heap) release() {
	h.pending = nil
	h.windows = nil
	h.pinned = 0
	h.stats.Finalized += h.tracker.releaseAll()
	h.from.reset()
	h.to = nil
}

// ---------------------------------------------------------------------------
// Permit: proof that the caller holds the allocation lock
// ---------------------------------------------------------------------------

// Permit is held while allocating into a unit's heap. Methods on Permit
// are the no-lock variants of the Unit make operations; use them when
// issuing several allocations in a row.
//
// Any allocation may collect. References kept only in Go variables across
// an allocation are stale afterwards: keep them in frame slots or
// registers, or pass them as arguments of the allocating call.
type Permit struct {
	u        *Unit
	released bool
}

// Acquire takes the unit's allocation permit.
func (u *Unit) Acquire() *Permit {
	u.heap.mu.Lock()
	return &Permit{u: u}
}

// Release returns the permit. Releasing twice panics.
func (p *Permit) Release() {
	if p.released {
		panic("vm: permit released twice")
	}
	p.released = true
	p.u.heap.pending = nil
	p.u.heap.mu.Unlock()
}

// Unit returns the unit the permit belongs to.
func (p *Permit) Unit() *Unit {
	return p.u
}

func (p *Permit) alloc(o object) Value {
	h := p.u.heap
	n := o.words()
	if h.from.free() < n {
		h.pending = o
		h.ensure(n)
		h.pending = nil
	}
	a := h.from.bump(n)
	h.from.put(a, o)
	h.dirty = true
	return refTo(a)
}

// ---------------------------------------------------------------------------
// Window: pinned allocation window
// ---------------------------------------------------------------------------

// Window guarantees that no collection runs on its unit until Release,
// so references and views taken inside it stay valid. Allocations through
// the window draw on the budget reserved by Pin.
type Window struct {
	*Permit
	keep []Value
}

// Pin reserves a budget of bytes and opens a window. The caller must call
// Release exactly once, typically with defer.
//
// A budget that cannot be met is fatal; the permit is returned before the
// fault propagates.
func (u *Unit) Pin(bytes int) *Window {
	p := u.Acquire()
	h := u.heap
	func() {
		defer func() {
			if r := recover(); r != nil {
				p.Release()
				panic(r)
			}
		}()
		h.ensure(bytesToWords(bytes))
	}()
	h.pinned++
	w := &Window{Permit: p}
	h.windows = append(h.windows, w)
	return w
}

// Keep registers v as a root for as long as the window is open and
// returns it.
func (w *Window) Keep(v Value) Value {
	w.keep = append(w.keep, v)
	return v
}

// Release closes the window and returns its permit.
func (w *Window) Release() error {
	if w.released {
		return ErrWindowReleased
	}
	h := w.u.heap
	for i, other := range h.windows {
		if other == w {
			h.windows = append(h.windows[:i], h.windows[i+1:]...)
			break
		}
	}
	h.pinned--
	w.keep = nil
	w.Permit.Release()
	return nil
}
