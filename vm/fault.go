package vm

import (
	"fmt"
	"os"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Fatal faults
// ---------------------------------------------------------------------------

// FaultKind identifies an unrecoverable runtime condition.
type FaultKind int

const (
	FaultStackOverflow FaultKind = iota
	FaultOutOfMemory
	FaultPrimitive
)

func (k FaultKind) String() string {
	switch k {
	case FaultStackOverflow:
		return "stack overflow"
	case FaultOutOfMemory:
		return "out of memory"
	case FaultPrimitive:
		return "primitive failure"
	}
	return fmt.Sprintf("FaultKind(%d)", int(k))
}

// Fault describes a fatal condition raised inside a unit.
type Fault struct {
	Kind    FaultKind
	Unit    UnitID
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("unit %d: %s: %s", f.Unit, f.Kind, f.Message)
}

// FatalHandler is invoked with every fault before the faulting goroutine
// unwinds. The default handler exits the process with status 2.
type FatalHandler func(*Fault)

var fatalHandler atomic.Pointer[FatalHandler]

func init() {
	h := FatalHandler(func(*Fault) { os.Exit(2) })
	fatalHandler.Store(&h)
}

// SetFatalHandler installs h and returns a function restoring the previous
// handler. A handler that returns does not resume the faulting operation:
// the fault is re-raised as a panic carrying the *Fault, which Spawn
// recovers and reports through Runtime.Wait.
func SetFatalHandler(h FatalHandler) (restore func()) {
	prev := fatalHandler.Swap(&h)
	return func() { fatalHandler.Store(prev) }
}

func raise(f *Fault) {
	log.Criticalf("%s", f.Error())
	(*fatalHandler.Load())(f)
	panic(f)
}

func fault(u UnitID, kind FaultKind, format string, args ...any) {
	raise(&Fault{Kind: kind, Unit: u, Message: fmt.Sprintf(format, args...)})
}

// Crash is the explicit primitive-failure path used by compiled code, for
// example on division by zero or an incomplete pattern match.
func (u *Unit) Crash(format string, args ...any) {
	fault(u.id, FaultPrimitive, format, args...)
}
