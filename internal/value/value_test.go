package value

import (
	"math"
	"testing"
)

func TestEqualNaN(t *testing.T) {
	nan := NumberValue(math.NaN())
	if Equal(nan, nan) {
		t.Fatal("NaN must not equal itself")
	}
}

func TestEqualStringsByContent(t *testing.T) {
	a := ObjValue(NewStringRaw("hi"))
	b := ObjValue(NewStringRaw("hi"))
	if a.AsObject() == b.AsObject() {
		t.Fatal("test setup: expected distinct string objects")
	}
	if !Equal(a, b) {
		t.Fatal("strings must compare equal by content")
	}
}

func TestEqualObjectsByIdentity(t *testing.T) {
	m1 := ObjValue(NewMapRaw())
	m2 := ObjValue(NewMapRaw())
	if Equal(m1, m2) {
		t.Fatal("distinct maps must not be equal")
	}
	if !Equal(m1, m1) {
		t.Fatal("a map must equal itself")
	}
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{NullValue, false},
		{BoolValue(false), false},
		{BoolValue(true), true},
		{NumberValue(0), true},
		{ObjValue(NewStringRaw("")), true},
	}
	for _, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestMapStableIndicesUntilRehash(t *testing.T) {
	m := NewMapRaw()
	keyA := NewStringRaw("a")
	idxA, rehashed := m.Set(keyA, NumberValue(1))
	if rehashed {
		t.Fatal("first insert should not rehash")
	}
	// Deleting a different key must not move keyA's slot before rehash.
	keyB := NewStringRaw("b")
	m.Set(keyB, NumberValue(2))
	m.Delete(keyB)
	got, ok := m.GetByIndex(idxA, keyA)
	if !ok || got.AsNumber() != 1 {
		t.Fatalf("expected keyA still at idx %d after deleting keyB", idxA)
	}
}

func TestMapRehashInvalidatesIndex(t *testing.T) {
	m := NewMapRaw()
	keys := make([]*String, 0, 20)
	for i := 0; i < 20; i++ {
		k := NewStringRaw(string(rune('a' + i)))
		keys = append(keys, k)
		m.Set(k, NumberValue(float64(i)))
	}
	// Delete most entries then insert enough to force a rehash; indices
	// recorded before the rehash for surviving keys may no longer match,
	// and that's the self-healing contract inline caches rely on.
	for i := 0; i < 15; i++ {
		m.Delete(keys[i])
	}
	_, rehashed := m.Set(NewStringRaw("trigger"), NumberValue(99))
	if !rehashed {
		t.Fatal("expected a rehash once tombstones dominate live entries")
	}
}

func TestEnvironmentConstReassignBlocked(t *testing.T) {
	root := NewEnvironment(nil)
	root.Declare("x", NumberValue(1), true)
	if root.Assign("x", NumberValue(2)) {
		t.Fatal("assigning to a const binding must fail")
	}
	if !root.IsConst("x") {
		t.Fatal("x should be reported const")
	}
}

func TestEnvironmentChainLookup(t *testing.T) {
	root := NewEnvironment(nil)
	root.Declare("g", NumberValue(1), false)
	child := NewEnvironment(root)
	v, ok := child.Lookup("g")
	if !ok || v.AsNumber() != 1 {
		t.Fatal("child environment should see parent bindings")
	}
}
