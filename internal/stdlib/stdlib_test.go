package stdlib_test

import (
	"testing"

	"erkao/internal/stdlib"
	"erkao/internal/value"
	"erkao/internal/vm"
)

// native looks up a registered global by name and fails the test if it
// isn't a *value.Native (every stdlib binding must be one).
func native(t *testing.T, v *vm.VM, name string) *value.Native {
	t.Helper()
	bound, ok := v.Globals().Lookup(name)
	if !ok {
		t.Fatalf("%s not registered", name)
	}
	n, ok := bound.AsObject().(*value.Native)
	if !ok {
		t.Fatalf("%s is not a native function", name)
	}
	return n
}

func TestMathNatives(t *testing.T) {
	machine := vm.New(nil)
	stdlib.Register(machine)

	cases := []struct {
		name string
		args []value.Value
		want float64
	}{
		{"pow", []value.Value{value.NumberValue(2), value.NumberValue(10)}, 1024},
		{"sqrt", []value.Value{value.NumberValue(81)}, 9},
		{"cbrt", []value.Value{value.NumberValue(27)}, 3},
		{"abs", []value.Value{value.NumberValue(-5)}, 5},
		{"floor", []value.Value{value.NumberValue(3.7)}, 3},
		{"ceil", []value.Value{value.NumberValue(3.2)}, 4},
		{"round", []value.Value{value.NumberValue(3.5)}, 4},
		{"min", []value.Value{value.NumberValue(3), value.NumberValue(7)}, 3},
		{"max", []value.Value{value.NumberValue(3), value.NumberValue(7)}, 7},
	}

	for _, c := range cases {
		n := native(t, machine, c.name)
		got, err := n.Fn(c.args)
		if err != nil {
			t.Fatalf("%s: unexpected error: %s", c.name, err.WireFormat())
		}
		if !got.IsNumber() || got.AsNumber() != c.want {
			t.Fatalf("%s: got %v, want %v", c.name, got.AsNumber(), c.want)
		}
	}
}

func TestSqrtOfNegativeErrors(t *testing.T) {
	machine := vm.New(nil)
	stdlib.Register(machine)

	n := native(t, machine, "sqrt")
	_, err := n.Fn([]value.Value{value.NumberValue(-4)})
	if err == nil {
		t.Fatal("expected an error for sqrt of a negative number")
	}
}

func TestTimeNatives(t *testing.T) {
	machine := vm.New(nil)
	stdlib.Register(machine)

	now := native(t, machine, "now")
	got, err := now.Fn(nil)
	if err != nil {
		t.Fatalf("now: unexpected error: %s", err.WireFormat())
	}
	if !got.IsNumber() || got.AsNumber() <= 0 {
		t.Fatalf("now: got %v, want a positive number of seconds", got.AsNumber())
	}

	millis := native(t, machine, "millis")
	gotMillis, err := millis.Fn(nil)
	if err != nil {
		t.Fatalf("millis: unexpected error: %s", err.WireFormat())
	}
	if !gotMillis.IsNumber() || gotMillis.AsNumber() <= got.AsNumber() {
		t.Fatalf("millis: got %v, want a number noticeably larger than now()'s seconds", gotMillis.AsNumber())
	}
}

func TestPrettyAllocatesTrackedString(t *testing.T) {
	machine := vm.New(nil)
	stdlib.Register(machine)

	pretty := native(t, machine, "pretty")
	got, err := pretty.Fn([]value.Value{value.NumberValue(42)})
	if err != nil {
		t.Fatalf("pretty: unexpected error: %s", err.WireFormat())
	}
	str, ok := got.AsObject().(*value.String)
	if !ok {
		t.Fatalf("pretty: expected a *value.String result, got %T", got.AsObject())
	}
	if str.Chars != "42" {
		t.Fatalf("pretty: got %q, want %q", str.Chars, "42")
	}
}
