package vm

import "time"

// ---------------------------------------------------------------------------
// Copying collector
// ---------------------------------------------------------------------------

// collect copies everything reachable from the roots into a to-space of
// the given capacity, swaps the spaces and sweeps the foreign tracker.
// It runs with the permit held, on behalf of the owning unit only.
func (h *Heap) collect(capacity int) {
	start := time.Now()
	from := h.from
	to := h.to
	if to == nil || to.capacity() != capacity {
		to = newSpace(h.provider, capacity)
	}

	h.tracker.unmark()
	forward := func(slot *Value) {
		v := *slot
		if !v.IsRef() {
			return
		}
		a := v.Addr()
		if !from.contains(a) {
			// static, or already in to-space
			return
		}
		o := from.at(a)
		if fw, ok := o.(*forwardObject); ok {
			*slot = refTo(fw.to)
			return
		}
		na := to.bump(o.words())
		to.put(na, o)
		from.put(a, &forwardObject{to: na})
		if m, ok := o.(*managedObject); ok {
			m.e.marked = true
		}
		*slot = refTo(na)
	}

	h.roots(forward)
	for _, w := range h.windows {
		for i := range w.keep {
			forward(&w.keep[i])
		}
	}
	if h.pending != nil {
		h.pending.children(forward)
		if m, ok := h.pending.(*managedObject); ok {
			m.e.marked = true
		}
	}
	for scan := to.base; scan < to.end(); {
		o := to.at(scan)
		o.children(forward)
		scan += Addr(o.words())
	}

	if from.capacity() == to.capacity() {
		from.reset()
		h.to = from
	} else {
		h.to = nil
	}
	h.from = to
	finalized := h.tracker.sweep()
	h.dirty = false

	pause := time.Since(start)
	h.stats.Collections++
	h.stats.WordsCopied += to.used
	h.stats.LiveWords = to.used
	h.stats.CapacityWords = to.capacity()
	h.stats.Finalized += finalized
	h.stats.LastPause = pause
	log.Debugf("unit %d: collected, %d live of %d words, %d finalized, %s",
		h.owner, to.used, to.capacity(), finalized, pause)
}

// Collect forces a collection of the unit's heap. When nothing has been
// allocated, written or popped since the previous collection the heap is
// already compact and the call changes nothing.
//
// Collect must not be called while the same goroutine holds a permit or
// an open window.
func (u *Unit) Collect() GCStats {
	p := u.Acquire()
	defer p.Release()
	h := u.heap
	if !h.dirty && !u.stack.dirty {
		h.stats.Skipped++
		return h.stats
	}
	h.collect(h.from.capacity())
	u.stack.dirty = false
	return h.stats
}

// GCStats returns the heap statistics.
func (u *Unit) GCStats() GCStats {
	p := u.Acquire()
	defer p.Release()
	s := u.heap.stats
	s.UsedWords = u.heap.from.used
	return s
}
