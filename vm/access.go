package vm

import (
	"math"
	"math/big"
)

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------
//
// Accessors never allocate. They run on the unit's own goroutine without
// taking the permit; heaps have a single writer.

// Kind returns what v is.
func (u *Unit) Kind(v Value) Kind {
	switch {
	case v.IsNull():
		return KindNull
	case v.IsInt():
		return KindInt
	}
	return u.heap.object(v).kind()
}

// Tag returns a constructor's tag, or NoTag for anything else including
// immediates and null.
func (u *Unit) Tag(v Value) int {
	if !v.IsRef() {
		return NoTag
	}
	if c, ok := u.heap.object(v).(*conObject); ok {
		return c.tag
	}
	return NoTag
}

// Arity returns a constructor's argument count, or NoTag for anything
// else.
func (u *Unit) Arity(v Value) int {
	if !v.IsRef() {
		return NoTag
	}
	if c, ok := u.heap.object(v).(*conObject); ok {
		return len(c.args)
	}
	return NoTag
}

// ref resolves v for a typed accessor. Immediates and null have no heap
// object; they resolve to nil so the caller crashes with the right kind.
func (u *Unit) ref(v Value) object {
	if !v.IsRef() {
		return nil
	}
	return u.heap.object(v)
}

func (u *Unit) con(v Value) *conObject {
	c, ok := u.ref(v).(*conObject)
	if !ok {
		u.Crash("expected a constructor, got %s", u.Kind(v))
	}
	return c
}

// Arg returns argument i of a constructor.
func (u *Unit) Arg(v Value, i int) Value {
	return u.con(v).args[i]
}

// SetArg fills argument i of a constructor made with AllocCon.
func (u *Unit) SetArg(v Value, i int, arg Value) {
	u.con(v).args[i] = arg
	u.heap.dirty = true
}

func (u *Unit) array(v Value) *arrayObject {
	a, ok := u.ref(v).(*arrayObject)
	if !ok {
		u.Crash("expected an array, got %s", u.Kind(v))
	}
	return a
}

// ArrayLen returns the length of an array.
func (u *Unit) ArrayLen(v Value) int {
	return len(u.array(v).slots)
}

// ArrayGet returns slot i of an array.
func (u *Unit) ArrayGet(v Value, i int) Value {
	return u.array(v).slots[i]
}

// ArraySet writes slot i of an array.
func (u *Unit) ArraySet(v Value, i int, x Value) {
	u.array(v).slots[i] = x
	u.heap.dirty = true
}

// FloatOf returns the payload of a float value.
func (u *Unit) FloatOf(v Value) float64 {
	f, ok := u.ref(v).(*floatObject)
	if !ok {
		u.Crash("expected a float, got %s", u.Kind(v))
	}
	return f.f
}

// IntegerOf returns an immediate or big integer as a big.Int. The result
// is a copy.
func (u *Unit) IntegerOf(v Value) *big.Int {
	if v.IsInt() {
		return big.NewInt(v.Int())
	}
	b, ok := u.ref(v).(*bigObject)
	if !ok {
		u.Crash("expected an integer, got %s", u.Kind(v))
	}
	return new(big.Int).Set(b.n)
}

// BitsOf returns the payload of a fixed-width integer.
func (u *Unit) BitsOf(v Value) uint64 {
	b, ok := u.ref(v).(*bitsObject)
	if !ok {
		u.Crash("expected a fixed-width integer, got %s", u.Kind(v))
	}
	return b.bits
}

// PointerOf returns the native pointer held by a ptr or managed value.
func (u *Unit) PointerOf(v Value) Pointer {
	switch o := u.ref(v).(type) {
	case *pointerObject:
		return o.p
	case *managedObject:
		return o.e.ptr
	}
	u.Crash("expected a pointer, got %s", u.Kind(v))
	return Pointer{}
}

// EntryOf returns the foreign entry behind a managed value.
func (u *Unit) EntryOf(v Value) *ForeignEntry {
	m, ok := u.ref(v).(*managedObject)
	if !ok {
		u.Crash("expected a managed reference, got %s", u.Kind(v))
	}
	return m.e
}

// BlobOf returns the bytes of a blob, aliasing the heap copy.
func (u *Unit) BlobOf(v Value) []byte {
	b, ok := u.ref(v).(*blobObject)
	if !ok {
		u.Crash("expected a blob, got %s", u.Kind(v))
	}
	return b.data
}

// ForeignOf returns the Go object behind a foreign-heap reference.
func (u *Unit) ForeignOf(v Value) any {
	f, ok := u.ref(v).(*foreignObject)
	if !ok {
		u.Crash("expected a foreign reference, got %s", u.Kind(v))
	}
	return f.v
}

func (u *Unit) cell(v Value) *refObject {
	r, ok := u.ref(v).(*refObject)
	if !ok {
		u.Crash("expected a reference, got %s", u.Kind(v))
	}
	return r
}

// ReadRef returns the current contents of a reference.
func (u *Unit) ReadRef(r Value) Value {
	return u.cell(r).v
}

// WriteRef replaces the contents of a reference.
func (u *Unit) WriteRef(r Value, v Value) {
	u.cell(r).v = v
	u.heap.dirty = true
}

// Equal reports structural equality: same kinds, tags, arities and
// payloads. Addresses are not compared. Floats compare by bits.
func (u *Unit) Equal(a, b Value) bool {
	return equalValues(u.heap.object, a, u.heap.object, b, map[[2]Value]bool{})
}

// EqualAcross compares a value of u with a value of another unit.
func (u *Unit) EqualAcross(a Value, other *Unit, b Value) bool {
	return equalValues(u.heap.object, a, other.heap.object, b, map[[2]Value]bool{})
}

func equalValues(ra func(Value) object, a Value, rb func(Value) object, b Value, seen map[[2]Value]bool) bool {
	if !a.IsRef() || !b.IsRef() {
		return a == b
	}
	if seen[[2]Value{a, b}] {
		return true
	}
	seen[[2]Value{a, b}] = true
	oa, ob := ra(a), rb(b)
	if sa, ok := stringBytes(ra, oa); ok {
		sb, ok := stringBytes(rb, ob)
		return ok && string(sa) == string(sb)
	}
	if oa.kind() != ob.kind() {
		return false
	}
	switch x := oa.(type) {
	case *conObject:
		y := ob.(*conObject)
		if x.tag != y.tag || len(x.args) != len(y.args) {
			return false
		}
		for i := range x.args {
			if !equalValues(ra, x.args[i], rb, y.args[i], seen) {
				return false
			}
		}
		return true
	case *arrayObject:
		y := ob.(*arrayObject)
		if len(x.slots) != len(y.slots) {
			return false
		}
		for i := range x.slots {
			if !equalValues(ra, x.slots[i], rb, y.slots[i], seen) {
				return false
			}
		}
		return true
	case *bigObject:
		return x.n.Cmp(ob.(*bigObject).n) == 0
	case *floatObject:
		return math.Float64bits(x.f) == math.Float64bits(ob.(*floatObject).f)
	case *bitsObject:
		return x.bits == ob.(*bitsObject).bits
	case *blobObject:
		return string(x.data) == string(ob.(*blobObject).data)
	case *managedObject:
		y := ob.(*managedObject)
		return x.e.size == y.e.size && string(x.e.ptr.Bytes(x.e.size)) == string(y.e.ptr.Bytes(y.e.size))
	case *pointerObject:
		y := ob.(*pointerObject)
		return x.p.off == y.p.off && len(x.p.mem) == len(y.p.mem) &&
			(len(x.p.mem) == 0 || &x.p.mem[0] == &y.p.mem[0])
	case *foreignObject:
		return x.v == ob.(*foreignObject).v
	case *refObject:
		return equalValues(ra, x.v, rb, ob.(*refObject).v, seen)
	case *unitObject:
		return true
	}
	return false
}
