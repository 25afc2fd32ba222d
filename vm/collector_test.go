package vm

import (
	"errors"
	"testing"
	"time"
)

// buildList conses n integers onto the list in slot 0 of the current frame.
func buildList(u *Unit, n int) {
	s := u.Stack()
	for i := 0; i < n; i++ {
		s.SetLoc(0, u.NewCon(1, FromInt(int64(i)), s.Loc(0)))
	}
}

// checkList verifies that the list in slot 0 holds n-1 down to 0.
func checkList(t *testing.T, u *Unit, n int) {
	t.Helper()
	v := u.Stack().Loc(0)
	for want := n - 1; want >= 0; want-- {
		if u.Tag(v) != 1 || u.Arity(v) != 2 {
			t.Fatalf("element %d: tag %d arity %d", want, u.Tag(v), u.Arity(v))
		}
		if got := u.Arg(v, 0).Int(); got != int64(want) {
			t.Fatalf("element %d holds %d", want, got)
		}
		v = u.Arg(v, 1)
	}
	if !v.IsNull() {
		t.Fatalf("list not terminated: %v", v)
	}
}

func TestAutomaticCollection(t *testing.T) {
	_, u := newTestUnit(t, Options{HeapWords: 10000, MaxHeapWords: 10000})
	s := u.Stack()
	f := s.Enter(1)
	defer s.Leave(f)

	buildList(u, 500)
	// Each garbage pair is 3 words, so this overruns the heap many times.
	for i := 0; i < 20000; i++ {
		u.NewCon(2, FromInt(int64(i)), Null)
	}

	stats := u.GCStats()
	if stats.Collections == 0 {
		t.Fatal("no collection ran")
	}
	if stats.Grows != 0 {
		t.Errorf("heap grew %d times with live data under capacity", stats.Grows)
	}
	checkList(t, u, 500)
}

func TestOutOfMemoryIsFatal(t *testing.T) {
	faults := catchFaults(t)
	_, u := newTestUnit(t, Options{HeapWords: 10000, MaxHeapWords: 10000})
	s := u.Stack()
	f := s.Enter(1)
	defer s.Leave(f)

	got := expectFault(t, func() { buildList(u, 10000) })
	if got.Kind != FaultOutOfMemory {
		t.Errorf("fault kind = %s, want out of memory", got.Kind)
	}
	if got.Unit != u.ID() {
		t.Errorf("fault unit = %d, want %d", got.Unit, u.ID())
	}
	if faults.Len() != 1 {
		t.Errorf("handler saw %d faults, want 1", faults.Len())
	}
}

func TestCollectionPreservesStructure(t *testing.T) {
	_, u := newTestUnit(t, Options{HeapWords: 4096})
	s := u.Stack()
	f := s.Enter(3)
	defer s.Leave(f)

	s.SetLoc(1, u.NewString("shared"))
	s.SetLoc(0, u.NewFloat(2.5))
	s.SetLoc(0, u.NewCon(7, s.Loc(1), s.Loc(1), s.Loc(0)))
	s.SetLoc(2, u.NewArray(2))
	u.ArraySet(s.Loc(2), 0, s.Loc(2)) // cycle
	u.ArraySet(s.Loc(2), 1, s.Loc(0))
	before := s.Loc(0)

	u.Collect()

	v := s.Loc(0)
	if v == before {
		t.Error("constructor was not moved")
	}
	if u.Tag(v) != 7 || u.Arity(v) != 3 {
		t.Fatalf("tag %d arity %d after collection", u.Tag(v), u.Arity(v))
	}
	if u.Arg(v, 0) != u.Arg(v, 1) {
		t.Error("sharing lost")
	}
	if got := u.GoString(u.Arg(v, 0)); got != "shared" {
		t.Errorf("string = %q", got)
	}
	if got := u.FloatOf(u.Arg(v, 2)); got != 2.5 {
		t.Errorf("float = %v", got)
	}
	arr := s.Loc(2)
	if u.ArrayGet(arr, 0) != arr {
		t.Error("cycle lost")
	}
	if u.ArrayGet(arr, 1) != v {
		t.Error("array no longer refers to the constructor")
	}
}

func TestCollectionIdempotent(t *testing.T) {
	_, u := newTestUnit(t, Options{HeapWords: 4096})
	s := u.Stack()
	f := s.Enter(1)
	defer s.Leave(f)
	buildList(u, 100)

	first := u.Collect()
	addr := s.Loc(0)
	second := u.Collect()

	if s.Loc(0) != addr {
		t.Errorf("second collection moved the root: %v -> %v", addr, s.Loc(0))
	}
	if second.Collections != first.Collections {
		t.Errorf("second collection copied again: %d -> %d", first.Collections, second.Collections)
	}
	if second.Skipped != first.Skipped+1 {
		t.Errorf("Skipped = %d, want %d", second.Skipped, first.Skipped+1)
	}
	if second.LiveWords != first.LiveWords {
		t.Errorf("LiveWords changed: %d -> %d", first.LiveWords, second.LiveWords)
	}
	checkList(t, u, 100)
}

func TestCollectionFreesGarbage(t *testing.T) {
	_, u := newTestUnit(t, Options{HeapWords: 4096})
	for i := 0; i < 100; i++ {
		u.NewString("garbage")
	}
	stats := u.Collect()
	if stats.LiveWords != 0 {
		t.Errorf("LiveWords = %d, want 0", stats.LiveWords)
	}
}

func TestHeapGrowsWhenLiveDataExceedsCapacity(t *testing.T) {
	_, u := newTestUnit(t, Options{HeapWords: 1024, MaxHeapWords: 1 << 20})
	s := u.Stack()
	f := s.Enter(1)
	defer s.Leave(f)

	buildList(u, 5000)

	stats := u.GCStats()
	if stats.Grows == 0 {
		t.Fatal("heap never grew")
	}
	if stats.CapacityWords < 15000 {
		t.Errorf("capacity %d cannot hold 15000 live words", stats.CapacityWords)
	}
	checkList(t, u, 5000)
}

func TestPinnedWindow(t *testing.T) {
	_, u := newTestUnit(t, Options{HeapWords: 64})
	s := u.Stack()
	f := s.Enter(1)
	defer s.Leave(f)

	// Fill most of the heap so the window has to make room.
	for i := 0; i < 20; i++ {
		u.NewFloat(1)
	}

	w := u.Pin(40 * WordSize)
	str := w.Keep(w.NewString("pinned"))
	view := u.StringView(str)
	for i := 0; i < 10; i++ {
		w.NewFloat(float64(i))
	}
	if got := view.String(); got != "pinned" {
		t.Errorf("view = %q", got)
	}
	s.SetLoc(0, str)
	if err := w.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := w.Release(); !errors.Is(err, ErrWindowReleased) {
		t.Errorf("second Release = %v, want ErrWindowReleased", err)
	}
	if got := u.GoString(s.Loc(0)); got != "pinned" {
		t.Errorf("string after window = %q", got)
	}
}

func TestPinnedWindowBudgetExceeded(t *testing.T) {
	catchFaults(t)
	_, u := newTestUnit(t, Options{HeapWords: 64, MaxHeapWords: 64})

	w := u.Pin(8 * WordSize)
	got := expectFault(t, func() {
		for i := 0; i < 100; i++ {
			w.NewFloat(1)
		}
	})
	if err := w.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got.Kind != FaultOutOfMemory {
		t.Errorf("fault kind = %s, want out of memory", got.Kind)
	}
}

func TestPinFailureReleasesPermit(t *testing.T) {
	catchFaults(t)
	_, u := newTestUnit(t, Options{HeapWords: 64, MaxHeapWords: 64})

	f := expectFault(t, func() { u.Pin(64 * 1024) })
	if f.Kind != FaultOutOfMemory {
		t.Errorf("fault kind = %s, want out of memory", f.Kind)
	}

	done := make(chan Value, 1)
	go func() { done <- u.NewFloat(1) }()
	select {
	case v := <-done:
		if u.FloatOf(v) != 1 {
			t.Errorf("float = %v", u.FloatOf(v))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("allocation blocked after a failed Pin")
	}
}
