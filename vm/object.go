package vm

import "math/big"

// WordSize is the number of bytes in one heap word.
const WordSize = 8

// object is a heap-resident value. Every variant occupies words() words
// starting at its address; the header word is the address itself.
type object interface {
	kind() Kind
	words() int
	// children calls fn for each reference slot held by the object so the
	// collector and the copier can rewrite it in place.
	children(fn func(*Value))
	// clone returns a deep copy of the payload, leaving child references
	// pointing at the original graph.
	clone() object
}

func bytesToWords(n int) int {
	return (n + WordSize - 1) / WordSize
}

func noChildren(func(*Value)) {}

type conObject struct {
	tag  int
	args []Value
}

func (o *conObject) kind() Kind { return KindCon }
func (o *conObject) words() int { return 1 + len(o.args) }
func (o *conObject) clone() object {
	return &conObject{tag: o.tag, args: append([]Value(nil), o.args...)}
}
func (o *conObject) children(fn func(*Value)) {
	for i := range o.args {
		fn(&o.args[i])
	}
}

type arrayObject struct {
	slots []Value
}

func (o *arrayObject) kind() Kind { return KindArray }
func (o *arrayObject) words() int { return 1 + len(o.slots) }
func (o *arrayObject) clone() object {
	return &arrayObject{slots: append([]Value(nil), o.slots...)}
}
func (o *arrayObject) children(fn func(*Value)) {
	for i := range o.slots {
		fn(&o.slots[i])
	}
}

// bigObject holds an arbitrary-precision integer by reference. The payload
// is treated as immutable once stored.
type bigObject struct {
	n *big.Int
}

func (o *bigObject) kind() Kind { return KindBig }
func (o *bigObject) words() int { return 1 + max(1, len(o.n.Bits())) }
func (o *bigObject) children(fn func(*Value)) { noChildren(fn) }
func (o *bigObject) clone() object { return &bigObject{n: new(big.Int).Set(o.n)} }

type floatObject struct {
	f float64
}

func (o *floatObject) kind() Kind { return KindFloat }
func (o *floatObject) words() int { return 2 }
func (o *floatObject) children(fn func(*Value)) { noChildren(fn) }
func (o *floatObject) clone() object { return &floatObject{f: o.f} }

// stringObject owns its character buffer; the length is the buffer length.
type stringObject struct {
	buf []byte
}

func (o *stringObject) kind() Kind { return KindString }
func (o *stringObject) words() int { return 2 + bytesToWords(len(o.buf)) }
func (o *stringObject) children(fn func(*Value)) { noChildren(fn) }
func (o *stringObject) clone() object {
	return &stringObject{buf: append([]byte(nil), o.buf...)}
}

// sliceObject is a view of n bytes at off inside base, which is always a
// stringObject. Holding base as a Value keeps it reachable.
type sliceObject struct {
	base Value
	off  int
	n    int
}

func (o *sliceObject) kind() Kind { return KindSlice }
func (o *sliceObject) words() int { return 3 }
func (o *sliceObject) children(fn func(*Value)) { fn(&o.base) }
func (o *sliceObject) clone() object { c := *o; return &c }

// bitsObject holds a fixed-width integer; k is one of the KindBits kinds.
type bitsObject struct {
	k    Kind
	bits uint64
}

func (o *bitsObject) kind() Kind { return o.k }
func (o *bitsObject) words() int { return 2 }
func (o *bitsObject) children(fn func(*Value)) { noChildren(fn) }
func (o *bitsObject) clone() object { c := *o; return &c }

type pointerObject struct {
	p Pointer
}

func (o *pointerObject) kind() Kind { return KindPtr }
func (o *pointerObject) words() int { return 2 }
func (o *pointerObject) children(fn func(*Value)) { noChildren(fn) }
func (o *pointerObject) clone() object { c := *o; return &c }

type managedObject struct {
	e *ForeignEntry
}

func (o *managedObject) kind() Kind { return KindManaged }
func (o *managedObject) words() int { return 2 }
func (o *managedObject) children(fn func(*Value)) { noChildren(fn) }
func (o *managedObject) clone() object { c := *o; return &c }

// forwardObject replaces a relocated object in from-space for the duration
// of one collection.
type forwardObject struct {
	to Addr
}

func (o *forwardObject) kind() Kind { return KindForward }
func (o *forwardObject) words() int { return 1 }
func (o *forwardObject) children(fn func(*Value)) { noChildren(fn) }
func (o *forwardObject) clone() object { c := *o; return &c }

type blobObject struct {
	data []byte
}

func (o *blobObject) kind() Kind { return KindBlob }
func (o *blobObject) words() int { return 2 + bytesToWords(len(o.data)) }
func (o *blobObject) children(fn func(*Value)) { noChildren(fn) }
func (o *blobObject) clone() object {
	return &blobObject{data: append([]byte(nil), o.data...)}
}

// foreignObject refers to an object living on the Go heap.
type foreignObject struct {
	v any
}

func (o *foreignObject) kind() Kind { return KindForeign }
func (o *foreignObject) words() int { return 2 }
func (o *foreignObject) children(fn func(*Value)) { noChildren(fn) }
func (o *foreignObject) clone() object { c := *o; return &c }

// refObject is a mutable cell holding one value.
type refObject struct {
	v Value
}

func (o *refObject) kind() Kind { return KindRef }
func (o *refObject) words() int { return 2 }
func (o *refObject) children(fn func(*Value)) { fn(&o.v) }
func (o *refObject) clone() object { c := *o; return &c }

// unitObject is the single inhabitant of the unit type. It lives only in the
// static region.
type unitObject struct{}

func (o *unitObject) kind() Kind { return KindUnit }
func (o *unitObject) words() int { return 1 }
func (o *unitObject) children(fn func(*Value)) { noChildren(fn) }
func (o *unitObject) clone() object { return o }
