package vm

import (
	"testing"
)

// ---------------------------------------------------------------------------
// Stack overflow protection
// ---------------------------------------------------------------------------

// TestEnterOverflowFaultsBeforeWriting reserves frames until the ceiling
// is hit and checks that the overflowing reservation changed nothing.
func TestEnterOverflowFaultsBeforeWriting(t *testing.T) {
	catchFaults(t)
	_, u := newTestUnit(t, Options{StackCeiling: 100})
	s := u.Stack()

	for i := 0; i < 9; i++ {
		s.Enter(10)
		s.SetLoc(9, FromInt(int64(i)))
		if s.Top() > s.Ceiling() {
			t.Fatalf("top %d above ceiling %d", s.Top(), s.Ceiling())
		}
	}
	base, top := s.Base(), s.Top()
	sentinel := FromInt(99)
	s.slots[top] = sentinel

	got := expectFault(t, func() { s.Enter(11) })
	if got.Kind != FaultStackOverflow {
		t.Errorf("fault kind = %s, want stack overflow", got.Kind)
	}
	if s.Base() != base || s.Top() != top {
		t.Errorf("frame changed by failed Enter: base %d top %d", s.Base(), s.Top())
	}
	if s.slots[top] != sentinel {
		t.Error("failed Enter wrote above top")
	}
	if s.Loc(9).Int() != 8 {
		t.Errorf("current frame clobbered: %v", s.Loc(9))
	}
}

// TestNonTailRecursionOverflows runs a recursion that keeps its frame
// alive across the call.
func TestNonTailRecursionOverflows(t *testing.T) {
	catchFaults(t)
	_, u := newTestUnit(t, Options{StackCeiling: 256})

	var depth int
	var sum Func
	sum = func(u *Unit) {
		depth++
		n := u.Stack().Loc(0).Int()
		if n == 0 {
			u.Return(FromInt(0))
			return
		}
		u.Call(sum, 2, FromInt(n-1))
		u.Return(FromInt(n + u.Result().Int()))
	}

	got := expectFault(t, func() { u.Call(sum, 2, FromInt(1000)) })
	if got.Kind != FaultStackOverflow {
		t.Errorf("fault kind = %s, want stack overflow", got.Kind)
	}
	if depth != 128 {
		t.Errorf("overflowed at depth %d, want 128", depth)
	}
}

func TestShallowRecursionFits(t *testing.T) {
	_, u := newTestUnit(t, Options{StackCeiling: 256})

	var sum Func
	sum = func(u *Unit) {
		n := u.Stack().Loc(0).Int()
		if n == 0 {
			u.Return(FromInt(0))
			return
		}
		u.Call(sum, 2, FromInt(n-1))
		u.Return(FromInt(n + u.Result().Int()))
	}
	u.Call(sum, 2, FromInt(100))
	if got := u.Result().Int(); got != 5050 {
		t.Errorf("sum = %d, want 5050", got)
	}
	if u.Stack().Top() != 0 {
		t.Errorf("top = %d after return, want 0", u.Stack().Top())
	}
}

func TestReserveAndAddTop(t *testing.T) {
	catchFaults(t)
	_, u := newTestUnit(t, Options{StackCeiling: 8})
	s := u.Stack()
	f := s.Enter(4)
	defer s.Leave(f)

	s.Reserve(4)
	s.SetTopLoc(0, FromInt(1))
	if s.TopLoc(0).Int() != 1 {
		t.Error("staged value lost")
	}
	s.AddTop(2)
	if s.Headroom() != 2 {
		t.Errorf("Headroom = %d, want 2", s.Headroom())
	}
	expectFault(t, func() { s.Reserve(3) })
	if s.Top() != 6 {
		t.Errorf("Top = %d after failed Reserve, want 6", s.Top())
	}
}

func TestCopySlotsOverlapping(t *testing.T) {
	_, u := newTestUnit(t, Options{})
	s := u.Stack()
	f := s.Enter(5)
	defer s.Leave(f)
	for i := 0; i < 4; i++ {
		s.SetLoc(i, FromInt(int64(i)))
	}
	s.CopySlots(1, 0, 4)
	want := []int64{0, 0, 1, 2, 3}
	for i, w := range want {
		if got := s.Loc(i).Int(); got != w {
			t.Errorf("slot %d = %d, want %d", i, got, w)
		}
	}
}

func TestProject(t *testing.T) {
	catchFaults(t)
	_, u := newTestUnit(t, Options{})
	s := u.Stack()
	f := s.Enter(3)
	defer s.Leave(f)

	s.SetLoc(0, u.NewCon(4, FromInt(10), FromInt(20)))
	u.Project(s.Loc(0), 1)
	if s.Loc(1).Int() != 10 || s.Loc(2).Int() != 20 {
		t.Errorf("projected %v %v", s.Loc(1), s.Loc(2))
	}
	expectFault(t, func() { u.Project(s.Loc(0), 2) })
}
