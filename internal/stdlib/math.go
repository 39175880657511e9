package stdlib

import (
	"math"

	"erkao/internal/diag"
	"erkao/internal/value"
	"erkao/internal/vm"
)

// numArg narrows args[i] to a number, erroring with the native's own
// name (natives have no source position of their own — spec.md's
// native calling convention gives them none — so the diagnostic is
// anchored at the call site by internal/vm's errAt once it propagates
// up, the same way a Go panic's stack trace names the failing frame).
func numArg(name string, args []value.Value, i int) (float64, *diag.Error) {
	if i >= len(args) || !args[i].IsNumber() {
		return 0, diag.New(diag.TypeError, "<native>", 0, 0, "%s expects a number argument", name)
	}
	return args[i].AsNumber(), nil
}

func unaryMath(name string, fn func(float64) float64) value.NativeFn {
	return func(args []value.Value) (value.Value, *diag.Error) {
		x, err := numArg(name, args, 0)
		if err != nil {
			return value.Value{}, err
		}
		return value.NumberValue(fn(x)), nil
	}
}

func binaryMath(name string, fn func(a, b float64) float64) value.NativeFn {
	return func(args []value.Value) (value.Value, *diag.Error) {
		a, err := numArg(name, args, 0)
		if err != nil {
			return value.Value{}, err
		}
		b, err := numArg(name, args, 1)
		if err != nil {
			return value.Value{}, err
		}
		return value.NumberValue(fn(a, b)), nil
	}
}

// registerMath mirrors Dev-Dami-DYMS-Lang/libraries/fmaths.go's RegisterFMaths
// (pow/sqrt/cbrt/abs/floor/ceil/round/min/max), flattened into globals
// instead of a nested math-namespace map since spec.md's module system
// (import/export) is the mechanism for namespacing, not a builtin object.
func registerMath(v *vm.VM) {
	g := v.Globals()
	decl := func(name string, arity int, fn value.NativeFn) {
		g.Declare(name, value.ObjValue(value.NewNative(name, arity, fn)), true)
	}

	decl("pow", 2, binaryMath("pow", math.Pow))
	decl("sqrt", 1, func(args []value.Value) (value.Value, *diag.Error) {
		x, err := numArg("sqrt", args, 0)
		if err != nil {
			return value.Value{}, err
		}
		if x < 0 {
			return value.Value{}, diag.New(diag.TypeError, "<native>", 0, 0, "sqrt of negative number")
		}
		return value.NumberValue(math.Sqrt(x)), nil
	})
	decl("cbrt", 1, unaryMath("cbrt", math.Cbrt))
	decl("abs", 1, unaryMath("abs", math.Abs))
	decl("floor", 1, unaryMath("floor", math.Floor))
	decl("ceil", 1, unaryMath("ceil", math.Ceil))
	decl("round", 1, unaryMath("round", math.Round))
	decl("min", 2, binaryMath("min", math.Min))
	decl("max", 2, binaryMath("max", math.Max))
}
