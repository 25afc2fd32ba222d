package vm

import (
	"math"
	"strings"
	"testing"
)

func TestIntRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 42, -42, 1 << 40, -(1 << 40), MaxInt, MinInt}
	for _, n := range cases {
		v := FromInt(n)
		if !v.IsInt() {
			t.Errorf("FromInt(%d).IsInt() = false", n)
		}
		if v.IsRef() || v.IsNull() {
			t.Errorf("FromInt(%d) classified as a reference", n)
		}
		if got := v.Int(); got != n {
			t.Errorf("FromInt(%d).Int() = %d", n, got)
		}
	}
}

func TestIntFits(t *testing.T) {
	if !IntFits(MaxInt) || !IntFits(MinInt) {
		t.Error("bounds should fit")
	}
	if IntFits(MaxInt+1) || IntFits(MinInt-1) {
		t.Error("values past the bounds should not fit")
	}
	if IntFits(math.MaxInt64) {
		t.Error("MaxInt64 should not fit")
	}
}

func TestNullAndRefs(t *testing.T) {
	if !Null.IsNull() || Null.IsInt() || Null.IsRef() {
		t.Errorf("Null misclassified: null=%v int=%v ref=%v", Null.IsNull(), Null.IsInt(), Null.IsRef())
	}
	if !UnitValue.IsRef() || UnitValue.IsInt() {
		t.Error("UnitValue should be a reference")
	}
	if Nullary(3) == Nullary(4) {
		t.Error("nullary constructors of different tags share an address")
	}
	if Nullary(3) != Nullary(3) {
		t.Error("nullary constructor not canonical")
	}
}

func TestTagAndArityOfNonConstructors(t *testing.T) {
	_, u := newTestUnit(t, Options{})

	for _, v := range []Value{Null, FromInt(7), UnitValue} {
		if got := u.Tag(v); got != NoTag {
			t.Errorf("Tag(%v) = %d, want NoTag", v, got)
		}
		if got := u.Arity(v); got != NoTag {
			t.Errorf("Arity(%v) = %d, want NoTag", v, got)
		}
	}
	if got := u.Tag(u.NewFloat(1.5)); got != NoTag {
		t.Errorf("Tag(float) = %d, want NoTag", got)
	}
}

func TestKinds(t *testing.T) {
	_, u := newTestUnit(t, Options{})

	cases := []struct {
		name string
		make func() Value
		want Kind
	}{
		{"null", func() Value { return Null }, KindNull},
		{"int", func() Value { return FromInt(1) }, KindInt},
		{"unit", func() Value { return UnitValue }, KindUnit},
		{"nullary", func() Value { return Nullary(0) }, KindCon},
		{"con", func() Value { return u.NewCon(1, FromInt(1)) }, KindCon},
		{"array", func() Value { return u.NewArray(3) }, KindArray},
		{"float", func() Value { return u.NewFloat(2.5) }, KindFloat},
		{"big", func() Value { return u.NewInteger(math.MaxInt64) }, KindBig},
		{"string", func() Value { return u.NewString("x") }, KindString},
		{"bits8", func() Value { return u.NewBits8(1) }, KindBits8},
		{"bits64", func() Value { return u.NewBits64(1) }, KindBits64},
		{"blob", func() Value { return u.NewBlob([]byte{1}) }, KindBlob},
		{"foreign", func() Value { return u.NewForeign(struct{}{}) }, KindForeign},
		{"ref", func() Value { return u.NewRef(Null) }, KindRef},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := u.Kind(tc.make()); got != tc.want {
				t.Errorf("Kind = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNewIntegerPicksRepresentation(t *testing.T) {
	_, u := newTestUnit(t, Options{})

	if v := u.NewInteger(12); !v.IsInt() {
		t.Error("small integer should be immediate")
	}
	v := u.NewInteger(math.MinInt64)
	if u.Kind(v) != KindBig {
		t.Fatalf("Kind = %s, want big", u.Kind(v))
	}
	if got := u.IntegerOf(v).Int64(); got != math.MinInt64 {
		t.Errorf("IntegerOf = %d", got)
	}
	if got := u.IntegerOf(FromInt(-5)).Int64(); got != -5 {
		t.Errorf("IntegerOf(immediate) = %d", got)
	}
}

func TestAccessorsRejectImmediates(t *testing.T) {
	catchFaults(t)
	_, u := newTestUnit(t, Options{})

	accessors := []struct {
		name string
		fn   func(Value)
	}{
		{"FloatOf", func(v Value) { u.FloatOf(v) }},
		{"BitsOf", func(v Value) { u.BitsOf(v) }},
		{"PointerOf", func(v Value) { u.PointerOf(v) }},
		{"EntryOf", func(v Value) { u.EntryOf(v) }},
		{"BlobOf", func(v Value) { u.BlobOf(v) }},
		{"ForeignOf", func(v Value) { u.ForeignOf(v) }},
		{"StringView", func(v Value) { u.StringView(v) }},
		{"ReadRef", func(v Value) { u.ReadRef(v) }},
	}
	for _, a := range accessors {
		t.Run(a.name, func(t *testing.T) {
			f := expectFault(t, func() { a.fn(FromInt(3)) })
			if f.Kind != FaultPrimitive || !strings.Contains(f.Message, "got int") {
				t.Errorf("fault = %+v, want a primitive failure naming int", f)
			}
			f = expectFault(t, func() { a.fn(Null) })
			if !strings.Contains(f.Message, "got null") {
				t.Errorf("fault = %+v, want a failure naming null", f)
			}
		})
	}
}

func TestRefs(t *testing.T) {
	_, u := newTestUnit(t, Options{HeapWords: 64})

	s := u.Stack()
	f := s.Enter(2)
	defer s.Leave(f)
	s.SetLoc(0, u.NewRef(FromInt(1)))
	if u.Kind(s.Loc(0)) != KindRef {
		t.Fatalf("kind = %s", u.Kind(s.Loc(0)))
	}
	if got := u.ReadRef(s.Loc(0)); got.Int() != 1 {
		t.Errorf("ReadRef = %v", got)
	}

	s.SetLoc(1, u.NewString("written"))
	u.WriteRef(s.Loc(0), s.Loc(1))
	s.SetLoc(1, Null)
	for i := 0; i < 200; i++ {
		u.NewFloat(float64(i))
	}
	if u.GCStats().Collections == 0 {
		t.Fatal("expected a collection")
	}
	if got := u.GoString(u.ReadRef(s.Loc(0))); got != "written" {
		t.Errorf("ref contents after collection = %q", got)
	}
}
