package vm

import (
	"container/list"
	"sync"
)

// ---------------------------------------------------------------------------
// Foreign memory tracker
// ---------------------------------------------------------------------------

// Finalizer releases a foreign block. It runs on the goroutine that
// performs the sweep and must not allocate in the owning unit.
type Finalizer func(Pointer)

// ForeignEntry is a natively allocated block tracked by one unit.
//
// A fresh entry is reachable only through its tracker list. It must be
// embedded in a value with Permit.NewManaged before control returns to
// managed code, otherwise the first sweep finalizes it.
type ForeignEntry struct {
	size      int
	ptr       Pointer
	finalizer Finalizer
	owned     bool // allocated by the tracker, so it can be duplicated

	marked bool
	once   sync.Once
	elem   *list.Element
}

// Size returns the block size in bytes.
func (e *ForeignEntry) Size() int {
	return e.size
}

// Pointer returns the start of the block.
func (e *ForeignEntry) Pointer() Pointer {
	return e.ptr
}

// finalize runs the finalizer at most once.
func (e *ForeignEntry) finalize() {
	e.once.Do(func() {
		if e.finalizer != nil {
			e.finalizer(e.ptr)
		}
	})
}

// duplicate returns an unlinked copy of an owned entry with its own block.
func (e *ForeignEntry) duplicate() (*ForeignEntry, error) {
	if !e.owned {
		return nil, ErrUncopyable
	}
	mem := make([]byte, e.size)
	copy(mem, e.ptr.Bytes(e.size))
	return &ForeignEntry{size: e.size, ptr: PointerTo(mem), finalizer: e.finalizer, owned: true}, nil
}

// Tracker is the list of foreign entries owned by one unit. It is only
// touched while the unit's allocation permit is held.
type Tracker struct {
	entries list.List
}

func (t *Tracker) link(e *ForeignEntry) *ForeignEntry {
	e.elem = t.entries.PushBack(e)
	return e
}

// Alloc allocates a fresh block of size bytes.
func (t *Tracker) Alloc(size int, fin Finalizer) *ForeignEntry {
	return t.link(&ForeignEntry{
		size:      size,
		ptr:       PointerTo(make([]byte, size)),
		finalizer: fin,
		owned:     true,
	})
}

// Wrap takes over cleanup of a caller-supplied block.
func (t *Tracker) Wrap(p Pointer, size int, fin Finalizer) *ForeignEntry {
	return t.link(&ForeignEntry{size: size, ptr: p, finalizer: fin})
}

// Len returns the number of live entries.
func (t *Tracker) Len() int {
	return t.entries.Len()
}

func (t *Tracker) unmark() {
	for el := t.entries.Front(); el != nil; el = el.Next() {
		el.Value.(*ForeignEntry).marked = false
	}
}

// sweep finalizes and unlinks every entry not marked since unmark.
func (t *Tracker) sweep() int {
	n := 0
	for el := t.entries.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*ForeignEntry)
		if !e.marked {
			t.entries.Remove(el)
			e.elem = nil
			e.finalize()
			n++
		}
		el = next
	}
	return n
}

// releaseAll finalizes every entry. Used when the owner goes away.
func (t *Tracker) releaseAll() int {
	n := 0
	for el := t.entries.Front(); el != nil; el = t.entries.Front() {
		e := t.entries.Remove(el).(*ForeignEntry)
		e.elem = nil
		e.finalize()
		n++
	}
	return n
}
