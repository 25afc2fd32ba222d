package vm

import (
	"sync"
	"testing"
)

// newTestUnit returns a caller-driven unit that is terminated when the test
// ends.
func newTestUnit(t *testing.T, opts Options) (*Runtime, *Unit) {
	t.Helper()
	rt := New(opts)
	u := rt.NewUnit(Options{})
	t.Cleanup(func() {
		u.Terminate()
		rt.Shutdown()
	})
	return rt, u
}

// faultLog records faults reported to the fatal handler.
type faultLog struct {
	mu     sync.Mutex
	faults []*Fault
}

func (l *faultLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.faults)
}

// catchFaults installs a fatal handler that records faults instead of
// exiting, restoring the previous handler when the test ends.
func catchFaults(t *testing.T) *faultLog {
	t.Helper()
	l := &faultLog{}
	restore := SetFatalHandler(func(f *Fault) {
		l.mu.Lock()
		l.faults = append(l.faults, f)
		l.mu.Unlock()
	})
	t.Cleanup(restore)
	return l
}

// expectFault runs fn and returns the fault it raised, failing the test if
// it returned normally.
func expectFault(t *testing.T, fn func()) (f *Fault) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a fault, got none")
		}
		var ok bool
		if f, ok = r.(*Fault); !ok {
			panic(r)
		}
	}()
	fn()
	return nil
}
