package stdlib

import (
	"fmt"

	"erkao/internal/diag"
	"erkao/internal/value"
	"erkao/internal/vm"
)

// registerIO mirrors Dev-Dami-DYMS-Lang/runtime/interpreter.go's
// init-time println/pretty globals (the teacher declares these directly
// against GlobalEnv rather than through a libraries/ package, since they
// need no state of their own beyond fmt.Println).
func registerIO(v *vm.VM) {
	g := v.Globals()
	decl := func(name string, arity int, fn value.NativeFn) {
		g.Declare(name, value.ObjValue(value.NewNative(name, arity, fn)), true)
	}

	decl("print", -1, func(args []value.Value) (value.Value, *diag.Error) {
		for i, a := range args {
			if i > 0 {
				fmt.Print(" ")
			}
			fmt.Print(a.String())
		}
		return value.NullValue, nil
	})
	decl("println", -1, func(args []value.Value) (value.Value, *diag.Error) {
		for i, a := range args {
			if i > 0 {
				fmt.Print(" ")
			}
			fmt.Print(a.String())
		}
		fmt.Println()
		return value.NullValue, nil
	})
	decl("pretty", 1, func(args []value.Value) (value.Value, *diag.Error) {
		if len(args) < 1 {
			return value.Value{}, diag.New(diag.ArityError, "<native>", 0, 0, "pretty expects 1 argument")
		}
		return value.ObjValue(v.NewString(args[0].String())), nil
	})
}
