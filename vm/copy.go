package vm

import (
	"errors"
	"fmt"
)

// ErrUncopyable is returned when a value graph holds a foreign block whose
// memory the tracker does not own, so it cannot be duplicated for another
// unit.
var ErrUncopyable = errors.New("vm: value holds a wrapped foreign block and cannot be copied")

// ---------------------------------------------------------------------------
// Deep copy between heaps
// ---------------------------------------------------------------------------

// measure returns the words needed to copy everything reachable from v,
// excluding immediates and the static region.
func measure(resolve func(Value) object, v Value) int {
	words := 0
	seen := map[Addr]bool{}
	work := []Value{v}
	for len(work) > 0 {
		v := work[len(work)-1]
		work = work[:len(work)-1]
		if !v.IsRef() || isStatic(v.Addr()) || seen[v.Addr()] {
			continue
		}
		seen[v.Addr()] = true
		o := resolve(v)
		words += o.words()
		o.children(func(slot *Value) { work = append(work, *slot) })
	}
	return words
}

// copier produces a structurally equal graph whose objects all live at
// fresh addresses. Sharing and cycles are preserved. place must not
// collect, so callers reserve measure() words first.
type copier struct {
	resolve func(Value) object
	place   func(object) Value
	entry   func(*ForeignEntry) (*ForeignEntry, error)

	seen map[Addr]Value
	work []object
}

func (c *copier) value(v Value) (Value, error) {
	if !v.IsRef() || isStatic(v.Addr()) {
		return v, nil
	}
	if nv, ok := c.seen[v.Addr()]; ok {
		return nv, nil
	}
	o := c.resolve(v).clone()
	if m, ok := o.(*managedObject); ok {
		e, err := c.entry(m.e)
		if err != nil {
			return Null, err
		}
		m.e = e
	}
	nv := c.place(o)
	c.seen[v.Addr()] = nv
	c.work = append(c.work, o)
	return nv, nil
}

func (c *copier) run(root Value) (Value, error) {
	c.seen = map[Addr]Value{}
	nv, err := c.value(root)
	for err == nil && len(c.work) > 0 {
		o := c.work[len(c.work)-1]
		c.work = c.work[:len(c.work)-1]
		o.children(func(slot *Value) {
			if err == nil {
				*slot, err = c.value(*slot)
			}
		})
	}
	return nv, err
}

// place bump-allocates o into from-space. The caller has ensured room.
func (h *Heap) place(o object) Value {
	a := h.from.bump(o.words())
	h.from.put(a, o)
	h.dirty = true
	return refTo(a)
}

// ---------------------------------------------------------------------------
// region: a payload in transit
// ---------------------------------------------------------------------------

// region owns the deep copy of one message payload. Its addresses come
// from the destination's memory provider and are disjoint from every heap.
type region struct {
	sp      *space
	root    Value
	foreign []*ForeignEntry
}

func (r *region) object(v Value) object {
	a := v.Addr()
	if isStatic(a) {
		return staticObject(a)
	}
	return r.sp.at(a)
}

// release finalizes foreign blocks that were never adopted.
func (r *region) release() {
	for _, e := range r.foreign {
		e.finalize()
	}
	r.foreign = nil
	r.sp = nil
}

// export deep-copies v out of u's heap into a new region.
func (u *Unit) export(p MemoryProvider, v Value) (*region, error) {
	resolve := u.heap.object
	r := &region{sp: newSpace(p, measure(resolve, v))}
	c := copier{
		resolve: resolve,
		place: func(o object) Value {
			a := r.sp.bump(o.words())
			r.sp.put(a, o)
			return refTo(a)
		},
		entry: func(e *ForeignEntry) (*ForeignEntry, error) {
			d, err := e.duplicate()
			if err == nil {
				r.foreign = append(r.foreign, d)
			}
			return d, err
		},
	}
	root, err := c.run(v)
	if err != nil {
		r.release()
		return nil, err
	}
	r.root = root
	return r, nil
}

// adopt copies a region into u's heap, taking over its foreign entries.
// It runs on u's goroutine with the permit held.
func (p *Permit) adopt(r *region) Value {
	h := p.u.heap
	h.ensure(r.sp.used)
	c := copier{
		resolve: r.object,
		place:   h.place,
		entry: func(e *ForeignEntry) (*ForeignEntry, error) {
			return h.tracker.link(e), nil
		},
	}
	v, err := c.run(r.root)
	if err != nil {
		panic(fmt.Sprintf("vm: unit %d: adopting a message: %v", p.u.id, err))
	}
	r.foreign = nil
	r.sp = nil
	return v
}

// CopyFrom deep-copies v, a value of src, into u's heap. Both units must
// be quiescent for the duration: src is read without its permit.
func (p *Permit) CopyFrom(src *Unit, v Value) (Value, error) {
	h := p.u.heap
	resolve := src.heap.object
	h.ensure(measure(resolve, v))
	c := copier{
		resolve: resolve,
		place:   h.place,
		entry: func(e *ForeignEntry) (*ForeignEntry, error) {
			d, err := e.duplicate()
			if err != nil {
				return nil, err
			}
			return h.tracker.link(d), nil
		},
	}
	return c.run(v)
}
