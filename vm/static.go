package vm

import "sync"

// ---------------------------------------------------------------------------
// Static region: values shared by every unit
// ---------------------------------------------------------------------------

// The static region occupies addresses below heapFloor. It holds the unit
// value and one pre-built nullary constructor per small tag. Nothing in it
// is ever mutated after the table is built, so units share it freely and
// neither the collector nor Send copies it.
const (
	unitAddr    Addr = 1
	nullaryBase Addr = 2

	// MaxNullaryTag is the largest tag with a shared nullary constructor.
	MaxNullaryTag = 255

	heapFloor Addr = 1024
)

// UnitValue is the unit value.
const UnitValue = Value(unitAddr << 1)

var (
	staticOnce  sync.Once
	staticCells []object
)

func staticTable() []object {
	staticOnce.Do(func() {
		cells := make([]object, heapFloor)
		cells[unitAddr] = &unitObject{}
		for tag := 0; tag <= MaxNullaryTag; tag++ {
			cells[nullaryBase+Addr(tag)] = &conObject{tag: tag}
		}
		staticCells = cells
	})
	return staticCells
}

func isStatic(a Addr) bool {
	return a < heapFloor
}

func staticObject(a Addr) object {
	return staticTable()[a]
}

// Nullary returns the shared zero-argument constructor for tag, which must
// be in [0, MaxNullaryTag].
func Nullary(tag int) Value {
	if tag < 0 || tag > MaxNullaryTag {
		panic("vm: nullary tag out of range")
	}
	staticTable()
	return refTo(nullaryBase + Addr(tag))
}
