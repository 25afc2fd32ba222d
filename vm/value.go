package vm

import "fmt"

// Value is a single runtime word.
//
// Encoding scheme:
//   - Immediate integer: low bit set, 63-bit signed payload in the upper bits
//   - Null: the zero word
//   - Reference: low bit clear, word address shifted left by one
//
// Addresses are word offsets handed out by a MemoryProvider, so a reference
// never sets the discriminant bit.
type Value uint64

// Addr is a word address inside the runtime's address space.
type Addr uint64

// Null is the empty reference. Fresh array slots and frame slots hold Null.
const Null Value = 0

// NoTag is returned by Tag and Arity for values that are not constructors.
const NoTag = -1

// Immediate integer range (63-bit signed).
const (
	MaxInt int64 = (1 << 62) - 1
	MinInt int64 = -(1 << 62)
)

// Kind discriminates what a value is.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindCon
	KindArray
	KindBig
	KindFloat
	KindString
	KindSlice
	KindBits8
	KindBits16
	KindBits32
	KindBits64
	KindUnit
	KindPtr
	KindManaged
	KindForward
	KindBlob
	KindForeign
	KindRef
)

var kindNames = [...]string{
	KindNull:    "null",
	KindInt:     "int",
	KindCon:     "con",
	KindArray:   "array",
	KindBig:     "bigint",
	KindFloat:   "float",
	KindString:  "string",
	KindSlice:   "strslice",
	KindBits8:   "bits8",
	KindBits16:  "bits16",
	KindBits32:  "bits32",
	KindBits64:  "bits64",
	KindUnit:    "unit",
	KindPtr:     "ptr",
	KindManaged: "managed",
	KindForward: "forward",
	KindBlob:    "blob",
	KindForeign: "foreign",
	KindRef:     "ref",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ---------------------------------------------------------------------------
// Immediate integers
// ---------------------------------------------------------------------------

// FromInt creates an immediate integer. Values outside [MinInt, MaxInt]
// wrap; use IntFits to decide between an immediate and a big integer.
func FromInt(n int64) Value {
	return Value(uint64(n)<<1 | 1)
}

// IntFits reports whether n can be held as an immediate integer.
func IntFits(n int64) bool {
	return n >= MinInt && n <= MaxInt
}

// IsInt returns true if v is an immediate integer.
func (v Value) IsInt() bool {
	return v&1 == 1
}

// Int returns the payload of an immediate integer. The result is
// meaningless for other values; check IsInt first.
func (v Value) Int() int64 {
	return int64(v) >> 1
}

// ---------------------------------------------------------------------------
// References
// ---------------------------------------------------------------------------

// IsNull returns true if v is the null reference.
func (v Value) IsNull() bool {
	return v == Null
}

// IsRef returns true if v refers to an object, either in a heap or in the
// static region.
func (v Value) IsRef() bool {
	return v != Null && v&1 == 0
}

// Addr returns the word address of a reference.
func (v Value) Addr() Addr {
	return Addr(v >> 1)
}

func refTo(a Addr) Value {
	return Value(a << 1)
}

func (v Value) String() string {
	switch {
	case v.IsNull():
		return "null"
	case v.IsInt():
		return fmt.Sprintf("%d", v.Int())
	default:
		return fmt.Sprintf("@%#x", uint64(v.Addr()))
	}
}
