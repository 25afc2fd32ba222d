package vm

// ---------------------------------------------------------------------------
// Value stack and frames
// ---------------------------------------------------------------------------

// Stack is a unit's fixed region of value slots. Slots [0, top) are
// collector roots. The current frame spans [base, top).
type Stack struct {
	owner   UnitID
	slots   []Value
	base    int
	top     int
	ceiling int
	dirty   bool
}

// Frame is the return linkage saved by Enter.
type Frame struct {
	base int
	top  int
}

func newStack(owner UnitID, ceiling int) *Stack {
	return &Stack{owner: owner, slots: make([]Value, ceiling), ceiling: ceiling}
}

func (s *Stack) check(n int) {
	if n < 0 || s.top+n > s.ceiling {
		fault(s.owner, FaultStackOverflow, "%d slots requested with %d of %d in use", n, s.top, s.ceiling)
	}
}

// Base returns the current frame's first slot index.
func (s *Stack) Base() int { return s.base }

// Top returns the index of the first free slot.
func (s *Stack) Top() int { return s.top }

// Ceiling returns the hard slot limit.
func (s *Stack) Ceiling() int { return s.ceiling }

// Headroom returns how many slots can still be reserved.
func (s *Stack) Headroom() int { return s.ceiling - s.top }

// Enter starts a frame of k zeroed slots above top. Overflow faults before
// anything is written.
func (s *Stack) Enter(k int) Frame {
	s.check(k)
	f := Frame{base: s.base, top: s.top}
	clear(s.slots[s.top : s.top+k])
	s.base = s.top
	s.top += k
	s.dirty = true
	return f
}

// Leave discards the current frame and restores the caller's.
func (s *Stack) Leave(f Frame) {
	clear(s.slots[f.top:s.top])
	s.base = f.base
	s.top = f.top
	s.dirty = true
}

// Loc returns slot i of the current frame.
func (s *Stack) Loc(i int) Value {
	return s.slots[s.base+i]
}

// SetLoc writes slot i of the current frame.
func (s *Stack) SetLoc(i int, v Value) {
	s.slots[s.base+i] = v
	s.dirty = true
}

// Reserve checks that n more slots fit above top without claiming them.
// Use it before staging values with SetTopLoc.
func (s *Stack) Reserve(n int) {
	s.check(n)
}

// AddTop claims n reserved slots for the current frame.
func (s *Stack) AddTop(n int) {
	s.check(n)
	s.top += n
	s.dirty = true
}

// TopLoc returns staged slot i above top.
func (s *Stack) TopLoc(i int) Value {
	return s.slots[s.top+i]
}

// SetTopLoc stages v in slot i above top. The slot must have been
// reserved.
func (s *Stack) SetTopLoc(i int, v Value) {
	s.slots[s.top+i] = v
}

// Slide block-copies n staged slots from top down to base, the argument
// shuffle before a tail call.
func (s *Stack) Slide(n int) {
	copy(s.slots[s.base:s.base+n], s.slots[s.top:s.top+n])
	s.dirty = true
}

// CopySlots block-copies n slots of the current frame from src to dst,
// preserving order. The ranges may overlap.
func (s *Stack) CopySlots(dst, src, n int) {
	copy(s.slots[s.base+dst:s.base+dst+n], s.slots[s.base+src:s.base+src+n])
	s.dirty = true
}

// resize makes the current frame exactly k slots, zeroing new slots.
func (s *Stack) resize(k int) {
	if k < 0 || s.base+k > s.ceiling {
		fault(s.owner, FaultStackOverflow, "frame of %d slots at base %d exceeds ceiling %d", k, s.base, s.ceiling)
	}
	if s.base+k > s.top {
		clear(s.slots[s.top : s.base+k])
	} else {
		clear(s.slots[s.base+k : s.top])
	}
	s.top = s.base + k
	s.dirty = true
}

// Project copies the arguments of constructor con into the current frame
// starting at slot loc.
func (u *Unit) Project(con Value, loc int) {
	c := u.con(con)
	s := u.stack
	if s.base+loc+len(c.args) > s.top {
		u.Crash("projecting %d arguments at slot %d of a %d slot frame", len(c.args), loc, s.top-s.base)
	}
	copy(s.slots[s.base+loc:], c.args)
	s.dirty = true
}
