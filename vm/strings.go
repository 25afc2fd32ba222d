package vm

// ---------------------------------------------------------------------------
// Strings and string slices
// ---------------------------------------------------------------------------

// View is a materialised string: a pointer into the owning buffer and a
// length. It is valid until the next collection of the unit, or for the
// lifetime of an open Window.
type View struct {
	Ptr Pointer
	Len int
}

// Bytes returns the viewed bytes, aliasing the string buffer.
func (w View) Bytes() []byte {
	if w.Len == 0 {
		return nil
	}
	return w.Ptr.Bytes(w.Len)
}

func (w View) String() string {
	return string(w.Bytes())
}

func viewBytes(resolve func(Value) object, s *sliceObject) []byte {
	base := resolve(s.base).(*stringObject)
	return base.buf[s.off : s.off+s.n]
}

func stringBytes(resolve func(Value) object, o object) ([]byte, bool) {
	switch s := o.(type) {
	case *stringObject:
		return s.buf, true
	case *sliceObject:
		return viewBytes(resolve, s), true
	}
	return nil, false
}

// StringView resolves a string or string slice to a view of its bytes.
// Slices resolve through their base; nothing is copied.
func (u *Unit) StringView(v Value) View {
	switch s := u.ref(v).(type) {
	case *stringObject:
		return View{Ptr: PointerTo(s.buf), Len: len(s.buf)}
	case *sliceObject:
		base := u.heap.object(s.base).(*stringObject)
		return View{Ptr: PointerTo(base.buf).Add(s.off), Len: s.n}
	}
	u.Crash("expected a string, got %s", u.Kind(v))
	return View{}
}

// StringLen returns the byte length of a string or slice.
func (u *Unit) StringLen(v Value) int {
	return u.StringView(v).Len
}

// GoString copies a string or slice out as a Go string.
func (u *Unit) GoString(v Value) string {
	return u.StringView(v).String()
}

// Substring returns a slice of n bytes at off inside s without copying
// the buffer. Slicing a slice yields a slice of the original base.
func (p *Permit) Substring(s Value, off, n int) Value {
	u := p.u
	base := s
	switch o := u.heap.object(s).(type) {
	case *stringObject:
		if off < 0 || n < 0 || off+n > len(o.buf) {
			u.Crash("substring [%d:%d] of a %d byte string", off, off+n, len(o.buf))
		}
	case *sliceObject:
		if off < 0 || n < 0 || off+n > o.n {
			u.Crash("substring [%d:%d] of a %d byte slice", off, off+n, o.n)
		}
		base = o.base
		off += o.off
	default:
		u.Crash("expected a string, got %s", u.Kind(s))
	}
	return p.alloc(&sliceObject{base: base, off: off, n: n})
}

// StringTail drops the first n bytes of s.
func (p *Permit) StringTail(s Value, n int) Value {
	return p.Substring(s, n, p.u.StringLen(s)-n)
}

// Concat allocates a new string holding a followed by b.
func (p *Permit) Concat(a, b Value) Value {
	o := &stringObject{}
	// a and b are read after the allocation so a collection inside it
	// cannot leave them stale.
	pair := &conObject{args: []Value{a, b}}
	h := p.u.heap
	need := o.words() + bytesToWords(p.u.StringLen(a)+p.u.StringLen(b))
	if h.from.free() < need {
		h.pending = pair
		h.ensure(need)
		h.pending = nil
	}
	a, b = pair.args[0], pair.args[1]
	o.buf = append(append([]byte(nil), p.u.StringView(a).Bytes()...), p.u.StringView(b).Bytes()...)
	return p.alloc(o)
}

func (u *Unit) Substring(s Value, off, n int) Value {
	p := u.Acquire()
	defer p.Release()
	return p.Substring(s, off, n)
}

func (u *Unit) StringTail(s Value, n int) Value {
	p := u.Acquire()
	defer p.Release()
	return p.StringTail(s, n)
}

func (u *Unit) Concat(a, b Value) Value {
	p := u.Acquire()
	defer p.Release()
	return p.Concat(a, b)
}

// SliceOf returns the base string, offset and length of a string slice.
func (u *Unit) SliceOf(v Value) (base Value, off, n int) {
	s, ok := u.ref(v).(*sliceObject)
	if !ok {
		u.Crash("expected a string slice, got %s", u.Kind(v))
	}
	return s.base, s.off, s.n
}
