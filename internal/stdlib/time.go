package stdlib

import (
	"time"

	"erkao/internal/diag"
	"erkao/internal/value"
	"erkao/internal/vm"
)

// registerTime mirrors Dev-Dami-DYMS-Lang/libraries/time.go's
// now/millis/sleep trio.
func registerTime(v *vm.VM) {
	g := v.Globals()
	decl := func(name string, arity int, fn value.NativeFn) {
		g.Declare(name, value.ObjValue(value.NewNative(name, arity, fn)), true)
	}

	decl("now", 0, func(args []value.Value) (value.Value, *diag.Error) {
		return value.NumberValue(float64(time.Now().UnixNano()) / 1e9), nil
	})
	decl("millis", 0, func(args []value.Value) (value.Value, *diag.Error) {
		return value.NumberValue(float64(time.Now().UnixNano()) / 1e6), nil
	})
	decl("sleep", 1, func(args []value.Value) (value.Value, *diag.Error) {
		sec, err := numArg("sleep", args, 0)
		if err != nil {
			return value.Value{}, err
		}
		time.Sleep(time.Duration(sec * float64(time.Second)))
		return value.NullValue, nil
	})
}
