package vm

import "math/big"

// ---------------------------------------------------------------------------
// Make operations (no-lock variants on Permit)
// ---------------------------------------------------------------------------

// AllocCon reserves a constructor with arity Null arguments, to be filled
// with SetArg before the reference escapes. Zero-arity constructors with a
// small tag come from the shared static table.
func (p *Permit) AllocCon(tag, arity int) Value {
	if arity == 0 && tag >= 0 && tag <= MaxNullaryTag {
		return Nullary(tag)
	}
	return p.alloc(&conObject{tag: tag, args: make([]Value, arity)})
}

// NewCon builds a constructor from args. The arguments are kept up to date
// if the allocation collects.
func (p *Permit) NewCon(tag int, args ...Value) Value {
	if len(args) == 0 && tag >= 0 && tag <= MaxNullaryTag {
		return Nullary(tag)
	}
	return p.alloc(&conObject{tag: tag, args: append([]Value(nil), args...)})
}

// NewArray allocates an array of n Null slots.
func (p *Permit) NewArray(n int) Value {
	return p.alloc(&arrayObject{slots: make([]Value, n)})
}

// NewInteger returns an immediate integer when n fits and a big integer
// otherwise.
func (p *Permit) NewInteger(n int64) Value {
	if IntFits(n) {
		return FromInt(n)
	}
	return p.NewBig(big.NewInt(n))
}

// NewBig stores n by reference. The caller must not mutate n afterwards.
func (p *Permit) NewBig(n *big.Int) Value {
	return p.alloc(&bigObject{n: n})
}

func (p *Permit) NewFloat(f float64) Value {
	return p.alloc(&floatObject{f: f})
}

// NewString copies s into a fresh string value.
func (p *Permit) NewString(s string) Value {
	return p.alloc(&stringObject{buf: []byte(s)})
}

// NewStringBytes copies b into a fresh string value.
func (p *Permit) NewStringBytes(b []byte) Value {
	return p.alloc(&stringObject{buf: append([]byte(nil), b...)})
}

func (p *Permit) NewBits8(b uint8) Value {
	return p.alloc(&bitsObject{k: KindBits8, bits: uint64(b)})
}

func (p *Permit) NewBits16(b uint16) Value {
	return p.alloc(&bitsObject{k: KindBits16, bits: uint64(b)})
}

func (p *Permit) NewBits32(b uint32) Value {
	return p.alloc(&bitsObject{k: KindBits32, bits: uint64(b)})
}

func (p *Permit) NewBits64(b uint64) Value {
	return p.alloc(&bitsObject{k: KindBits64, bits: b})
}

// NewPointer wraps an untracked native pointer.
func (p *Permit) NewPointer(ptr Pointer) Value {
	return p.alloc(&pointerObject{p: ptr})
}

// NewManaged embeds a tracked foreign entry. The entry stays alive for as
// long as the returned value is reachable.
func (p *Permit) NewManaged(e *ForeignEntry) Value {
	return p.alloc(&managedObject{e: e})
}

// NewBlob copies data into an opaque heap blob.
func (p *Permit) NewBlob(data []byte) Value {
	return p.alloc(&blobObject{data: append([]byte(nil), data...)})
}

// NewForeign refers to a Go heap object.
func (p *Permit) NewForeign(v any) Value {
	return p.alloc(&foreignObject{v: v})
}

// NewRef allocates a mutable reference holding v.
func (p *Permit) NewRef(v Value) Value {
	return p.alloc(&refObject{v: v})
}

// ForeignAlloc allocates a tracked native block of size bytes.
func (p *Permit) ForeignAlloc(size int, fin Finalizer) *ForeignEntry {
	return p.u.heap.tracker.Alloc(size, fin)
}

// ForeignWrap hands cleanup of a caller-supplied block to the tracker.
func (p *Permit) ForeignWrap(ptr Pointer, size int, fin Finalizer) *ForeignEntry {
	return p.u.heap.tracker.Wrap(ptr, size, fin)
}

// ---------------------------------------------------------------------------
// Make operations (locking variants on Unit)
// ---------------------------------------------------------------------------

func (u *Unit) AllocCon(tag, arity int) Value {
	p := u.Acquire()
	defer p.Release()
	return p.AllocCon(tag, arity)
}

func (u *Unit) NewCon(tag int, args ...Value) Value {
	p := u.Acquire()
	defer p.Release()
	return p.NewCon(tag, args...)
}

func (u *Unit) NewArray(n int) Value {
	p := u.Acquire()
	defer p.Release()
	return p.NewArray(n)
}

func (u *Unit) NewInteger(n int64) Value {
	p := u.Acquire()
	defer p.Release()
	return p.NewInteger(n)
}

func (u *Unit) NewBig(n *big.Int) Value {
	p := u.Acquire()
	defer p.Release()
	return p.NewBig(n)
}

func (u *Unit) NewFloat(f float64) Value {
	p := u.Acquire()
	defer p.Release()
	return p.NewFloat(f)
}

func (u *Unit) NewString(s string) Value {
	p := u.Acquire()
	defer p.Release()
	return p.NewString(s)
}

func (u *Unit) NewBits8(b uint8) Value {
	p := u.Acquire()
	defer p.Release()
	return p.NewBits8(b)
}

func (u *Unit) NewBits16(b uint16) Value {
	p := u.Acquire()
	defer p.Release()
	return p.NewBits16(b)
}

func (u *Unit) NewBits32(b uint32) Value {
	p := u.Acquire()
	defer p.Release()
	return p.NewBits32(b)
}

func (u *Unit) NewBits64(b uint64) Value {
	p := u.Acquire()
	defer p.Release()
	return p.NewBits64(b)
}

func (u *Unit) NewPointer(ptr Pointer) Value {
	p := u.Acquire()
	defer p.Release()
	return p.NewPointer(ptr)
}

func (u *Unit) NewBlob(data []byte) Value {
	p := u.Acquire()
	defer p.Release()
	return p.NewBlob(data)
}

func (u *Unit) NewRef(v Value) Value {
	p := u.Acquire()
	defer p.Release()
	return p.NewRef(v)
}

func (u *Unit) NewForeign(v any) Value {
	p := u.Acquire()
	defer p.Release()
	return p.NewForeign(v)
}

// NewManagedBlock allocates a tracked block and embeds it in one step, so
// the entry is never left unreferenced.
func (u *Unit) NewManagedBlock(size int, fin Finalizer) Value {
	p := u.Acquire()
	defer p.Release()
	return p.NewManaged(p.ForeignAlloc(size, fin))
}

// WrapManaged hands ptr to the tracker and embeds it in one step.
func (u *Unit) WrapManaged(ptr Pointer, size int, fin Finalizer) Value {
	p := u.Acquire()
	defer p.Release()
	return p.NewManaged(p.ForeignWrap(ptr, size, fin))
}
