package vm

import "testing"

// ---------------------------------------------------------------------------
// Tail calls
// ---------------------------------------------------------------------------

// factorial: n acc -> if n = 0 then acc else factorial (n-1) (acc*n),
// with the recursive call in tail position.
func tailFactorial(u *Unit) {
	s := u.Stack()
	n, acc := s.Loc(0).Int(), s.Loc(1).Int()
	if n == 0 {
		u.Return(FromInt(acc))
		return
	}
	u.TailCall(tailFactorial, 2, FromInt(n-1), FromInt(acc*n))
}

func TestTailCallFactorial(t *testing.T) {
	_, u := newTestUnit(t, Options{StackCeiling: 16})
	u.Call(tailFactorial, 2, FromInt(10), FromInt(1))
	if got := u.Result().Int(); got != 3628800 {
		t.Errorf("10! = %d", got)
	}
}

// TestDeepTailRecursion runs far more iterations than the stack has slots.
func TestDeepTailRecursion(t *testing.T) {
	_, u := newTestUnit(t, Options{StackCeiling: 16})

	var countdown Func
	countdown = func(u *Unit) {
		n := u.Stack().Loc(0).Int()
		if n == 0 {
			u.Return(UnitValue)
			return
		}
		u.TailCall(countdown, 1, FromInt(n-1))
	}
	u.Call(countdown, 1, FromInt(1_000_000))
	if u.Result() != UnitValue {
		t.Errorf("result = %v", u.Result())
	}
	if u.Stack().Top() != 0 {
		t.Errorf("top = %d after return", u.Stack().Top())
	}
}

// TestMutualTailRecursion alternates between two functions with
// different frame sizes.
func TestMutualTailRecursion(t *testing.T) {
	_, u := newTestUnit(t, Options{StackCeiling: 32})

	var isEven, isOdd Func
	isEven = func(u *Unit) {
		n := u.Stack().Loc(0).Int()
		if n == 0 {
			u.Return(Nullary(1))
			return
		}
		u.TailCall(isOdd, 4, FromInt(n-1))
	}
	isOdd = func(u *Unit) {
		n := u.Stack().Loc(0).Int()
		if n == 0 {
			u.Return(Nullary(0))
			return
		}
		u.TailCall(isEven, 1, FromInt(n-1))
	}
	u.Call(isEven, 1, FromInt(100_001))
	if got := u.Tag(u.Result()); got != 0 {
		t.Errorf("isEven(100001) tag = %d, want 0", got)
	}
}

func TestTailCallStaged(t *testing.T) {
	_, u := newTestUnit(t, Options{StackCeiling: 16})

	// swapSub: a b -> if a = 0 then b else swapSub (b) (a-1), staging the
	// arguments above top so they never go through a Go slice.
	var swapSub Func
	swapSub = func(u *Unit) {
		s := u.Stack()
		a, b := s.Loc(0), s.Loc(1)
		if a.Int() == 0 {
			u.Return(b)
			return
		}
		s.Reserve(2)
		s.SetTopLoc(0, b)
		s.SetTopLoc(1, FromInt(a.Int()-1))
		u.TailCallStaged(swapSub, 3, 2)
	}
	u.Call(swapSub, 3, FromInt(5), FromInt(7))
	// (5,7) (7,4) (4,6) (6,3) (3,5) (5,2) (2,4) (4,1) (1,3) (3,0) (0,2)
	if got := u.Result().Int(); got != 2 {
		t.Errorf("result = %d, want 2", got)
	}
}

func TestTailCallKeepsHeapValuesRooted(t *testing.T) {
	_, u := newTestUnit(t, Options{HeapWords: 256, StackCeiling: 16})

	// build: n acc -> if n = 0 then acc else build (n-1) (Cons n acc)
	var build Func
	build = func(u *Unit) {
		s := u.Stack()
		n := s.Loc(0).Int()
		if n == 0 {
			u.Return(s.Loc(1))
			return
		}
		s.SetLoc(1, u.NewCon(1, FromInt(n), s.Loc(1)))
		u.TailCall(build, 2, FromInt(n-1), s.Loc(1))
	}
	u.Call(build, 2, FromInt(1000), Null)

	s := u.Stack()
	f := s.Enter(1)
	defer s.Leave(f)
	s.SetLoc(0, u.Result())
	v := s.Loc(0)
	for want := int64(1); want <= 1000; want++ {
		if got := u.Arg(v, 0).Int(); got != want {
			t.Fatalf("element %d = %d", want, got)
		}
		v = u.Arg(v, 1)
	}
	if u.GCStats().Grows == 0 {
		t.Error("expected the heap to grow while building the list")
	}
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

const (
	tagAdd = 300
	tagMul = 301
)

func newArithDispatch() *Dispatch {
	d := NewDispatch()
	d.Register(tagAdd, func(u *Unit) {
		s := u.Stack()
		u.Return(FromInt(s.Loc(0).Int() + s.Loc(1).Int()))
	}, 2, 2)
	d.Register(tagMul, func(u *Unit) {
		s := u.Stack()
		u.Return(FromInt(s.Loc(0).Int() * s.Loc(1).Int() * s.Loc(2).Int()))
	}, 3, 3)
	return d
}

func TestDispatchPartialApplication(t *testing.T) {
	_, u := newTestUnit(t, Options{})
	d := newArithDispatch()
	s := u.Stack()
	f := s.Enter(1)
	defer s.Leave(f)

	apply := func(closure, arg Value) Value {
		u.Call(func(u *Unit) { d.Apply(u, closure, arg) }, 0)
		return u.Result()
	}

	s.SetLoc(0, u.AllocCon(tagAdd, 0))
	s.SetLoc(0, apply(s.Loc(0), FromInt(40)))
	if u.Tag(s.Loc(0)) != tagAdd || u.Arity(s.Loc(0)) != 1 {
		t.Fatalf("partial application: tag %d arity %d", u.Tag(s.Loc(0)), u.Arity(s.Loc(0)))
	}
	if got := apply(s.Loc(0), FromInt(2)); got.Int() != 42 {
		t.Errorf("add 40 2 = %v", got)
	}

	s.SetLoc(0, u.NewCon(tagMul, FromInt(2), FromInt(3)))
	if got := apply(s.Loc(0), FromInt(7)); got.Int() != 42 {
		t.Errorf("mul 2 3 7 = %v", got)
	}
}

func TestDispatchUnknownTagCrashes(t *testing.T) {
	catchFaults(t)
	_, u := newTestUnit(t, Options{})
	d := newArithDispatch()
	got := expectFault(t, func() {
		u.Call(func(u *Unit) { d.Apply(u, Nullary(9), FromInt(1)) }, 0)
	})
	if got.Kind != FaultPrimitive {
		t.Errorf("fault kind = %s, want primitive failure", got.Kind)
	}
}
