package vm

// Func is a compiled function. It reads its arguments from the current
// frame, leaves its result in the result register, and either returns or
// ends with a TailCall.
type Func func(u *Unit)

// Call runs fn in a new frame of size slots whose first slots hold args.
// Tail calls made by fn and its successors run in the same frame, so a
// chain of tail calls needs constant Go stack and value-stack space.
func (u *Unit) Call(fn Func, size int, args ...Value) {
	if size < len(args) {
		size = len(args)
	}
	s := u.stack
	f := s.Enter(size)
	copy(s.slots[s.base:], args)
	u.trampoline(fn)
	s.Leave(f)
}

func (u *Unit) trampoline(fn Func) {
	for fn != nil {
		fn(u)
		fn, u.next = u.next, nil
	}
}

// TailCall replaces the current frame with a frame of size slots holding
// args and schedules fn to run in it once the caller returns. It must be
// the last thing the calling Func does.
func (u *Unit) TailCall(fn Func, size int, args ...Value) {
	if size < len(args) {
		size = len(args)
	}
	s := u.stack
	s.resize(size)
	copy(s.slots[s.base:], args)
	clear(s.slots[s.base+len(args) : s.base+size])
	u.next = fn
}

// TailCallStaged is TailCall for arguments already staged above top with
// SetTopLoc: they are slid down to base without assembling a slice.
func (u *Unit) TailCallStaged(fn Func, size, argc int) {
	size = max(size, argc)
	s := u.stack
	if s.base+size > s.ceiling {
		fault(u.id, FaultStackOverflow, "frame of %d slots at base %d exceeds ceiling %d", size, s.base, s.ceiling)
	}
	s.Slide(argc)
	clear(s.slots[s.base+argc : max(s.top, s.base+size)])
	s.top = s.base + size
	u.next = fn
}

// ---------------------------------------------------------------------------
// Registers
// ---------------------------------------------------------------------------

// Result returns the result register.
func (u *Unit) Result() Value { return u.result }

// Return sets the result register.
func (u *Unit) Return(v Value) {
	u.result = v
	u.heap.dirty = true
}

// Scratch returns the scratch register.
func (u *Unit) Scratch() Value { return u.scratch }

// SetScratch sets the scratch register.
func (u *Unit) SetScratch(v Value) {
	u.scratch = v
	u.heap.dirty = true
}

// ---------------------------------------------------------------------------
// Dispatch: defunctionalised closures
// ---------------------------------------------------------------------------

// Closures are constructors whose tag selects a function and whose
// arguments are the values captured so far.
type closureEntry struct {
	fn    Func
	arity int
	size  int
}

// Dispatch maps closure tags to functions. Build it before spawning units;
// it is read-only afterwards.
type Dispatch struct {
	entries map[int]closureEntry
}

// NewDispatch returns an empty table.
func NewDispatch() *Dispatch {
	return &Dispatch{entries: make(map[int]closureEntry)}
}

// Register binds tag to fn taking arity arguments in a frame of size slots.
func (d *Dispatch) Register(tag int, fn Func, arity, size int) {
	d.entries[tag] = closureEntry{fn: fn, arity: arity, size: max(size, arity)}
}

// Apply applies closure to arg in tail position. An unsaturated closure
// yields a new closure with arg captured; a saturated one tail-calls its
// function with the captures followed by arg.
func (d *Dispatch) Apply(u *Unit, closure, arg Value) {
	tag := u.Tag(closure)
	e, ok := d.entries[tag]
	if !ok {
		u.Crash("apply: no function for closure tag %d", tag)
	}
	captured := u.con(closure).args
	args := make([]Value, 0, len(captured)+1)
	args = append(append(args, captured...), arg)
	if len(args) < e.arity {
		u.Return(u.NewCon(tag, args...))
		return
	}
	if len(args) > e.arity {
		u.Crash("apply: closure tag %d takes %d arguments, got %d", tag, e.arity, len(args))
	}
	u.TailCall(e.fn, e.size, args...)
}
