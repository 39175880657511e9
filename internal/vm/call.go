package vm

import (
	"strconv"

	"erkao/internal/bytecode"
	"erkao/internal/diag"
	"erkao/internal/value"
)

// currentFrame returns the in-flight call frame, or nil before the first
// one is pushed. Callers must re-fetch after any operation that may grow
// v.frames (a fresh call), since append can reallocate the backing array.
func (v *VM) currentFrame() *CallFrame {
	if len(v.frames) == 0 {
		return nil
	}
	return &v.frames[len(v.frames)-1]
}

func (v *VM) currentPath() string {
	if f := v.currentFrame(); f != nil && f.fn != nil && f.fn.Program != nil {
		return f.fn.Program.Path
	}
	return "<script>"
}

// errAt builds a diagnostic positioned at the current frame's in-flight
// instruction (the token table entry for the opcode byte at f.ip).
func (v *VM) errAt(kind diag.Kind, format string, args ...interface{}) *diag.Error {
	f := v.currentFrame()
	if f == nil || f.fn == nil || f.ip < 0 || f.ip >= len(f.fn.Chunk.Tokens) {
		return diag.New(kind, v.currentPath(), 0, 0, format, args...)
	}
	tok := f.fn.Chunk.Tokens[f.ip]
	return diag.New(kind, v.currentPath(), tok.Line, tok.Column, format, args...)
}

// performCall is the single entry point for every calling convention spec
// §4.3 describes: plain functions, natives, classes-as-constructors,
// bound methods, and enum constructors. base is the stack slot that held
// the callee (CALL) or the receiver (INVOKE) and is where RETURN (or this
// function's own immediate-result path) leaves the produced value; argc
// arguments occupy base+1 .. base+argc. receiver/haveReceiver carry the
// `this` binding across the BoundMethod/init-method recursive calls this
// function makes into itself.
func (v *VM) performCall(base, argc int, calleeVal value.Value, receiver value.Value, haveReceiver bool) *diag.Error {
	if !calleeVal.IsObj() {
		return v.errAt(diag.TypeError, "%s is not callable", calleeVal.TypeName())
	}

	switch callee := calleeVal.AsObject().(type) {
	case *bytecode.Function:
		return v.callFunction(base, argc, callee, receiver, haveReceiver)

	case *value.Native:
		return v.callNative(base, argc, callee)

	case *value.BoundMethod:
		return v.performCall(base, argc, value.ObjValue(callee.Method), callee.Receiver, true)

	case *value.Class:
		return v.callClass(base, argc, callee)

	case *value.EnumConstructor:
		return v.callEnumConstructor(base, argc, callee)

	default:
		return v.errAt(diag.TypeError, "%s is not callable", calleeVal.TypeName())
	}
}

func arityRange(min, max int) string {
	if max < 0 {
		return "at least " + strconv.Itoa(min)
	}
	if min == max {
		return strconv.Itoa(min)
	}
	return strconv.Itoa(min) + ".." + strconv.Itoa(max)
}

// checkArity returns an ArityError positioned at the current call site
// when argc falls outside [min, max] (max < 0 meaning unbounded).
func (v *VM) checkArity(kind, name string, min, max, argc int) *diag.Error {
	if argc < min || (max >= 0 && argc > max) {
		return diag.New(diag.ArityError, v.currentPath(), v.callSiteLine(), v.callSiteColumn(),
			"%s %s expects %s argument(s), got %d", kind, name, arityRange(min, max), argc)
	}
	return nil
}

func (v *VM) callFunction(base, argc int, fn *bytecode.Function, receiver value.Value, haveReceiver bool) *diag.Error {
	min, max := fn.Arity()
	if err := v.checkArity("function", fn.Name(), min, max, argc); err != nil {
		return err
	}
	if v.Config.MaxFrames > 0 && len(v.frames) >= v.Config.MaxFrames {
		return v.errAt(diag.BudgetError, "call frame overflow")
	}

	env := v.newEnvironment(fn.Env)
	for i, name := range fn.Params {
		var arg value.Value
		if i < argc {
			arg = v.stack[base+1+i]
		} else {
			arg = value.NullValue
		}
		env.Declare(name, arg, false)
	}

	if !haveReceiver {
		receiver = value.NullValue
	}

	fn.Program.EnterRun()
	v.frames = append(v.frames, CallFrame{
		fn:           fn,
		ip:           0,
		base:         base,
		env:          env,
		prevProgram:  v.currentProgram,
		receiver:     receiver,
		declaredArgc: argc,
	})
	v.currentProgram = fn.Program
	return nil
}

func (v *VM) callNative(base, argc int, n *value.Native) *diag.Error {
	min, max := n.Arity()
	if err := v.checkArity("native", n.Name(), min, max, argc); err != nil {
		return err
	}
	args := append([]value.Value(nil), v.stack[base+1:base+1+argc]...)
	result, err := n.Fn(args)
	if err != nil {
		return err
	}
	v.stackTop = base
	v.push(result)
	return nil
}

func (v *VM) callClass(base, argc int, class *value.Class) *diag.Error {
	instance := v.newInstance(class)
	init, hasInit := class.FindMethod(value.InitMethodName)
	if !hasInit {
		if argc != 0 {
			return v.errAt(diag.ArityError, "class %s takes no arguments (no init method)", class.Name)
		}
		v.stackTop = base
		v.push(value.ObjValue(instance))
		return nil
	}
	return v.performCall(base, argc, value.ObjValue(init), value.ObjValue(instance), true)
}

func (v *VM) callEnumConstructor(base, argc int, ctor *value.EnumConstructor) *diag.Error {
	min, max := ctor.Arity()
	if err := v.checkArity("enum variant", ctor.Name(), min, max, argc); err != nil {
		return err
	}
	args := append([]value.Value(nil), v.stack[base+1:base+1+argc]...)
	variant := ctor.BuildVariant(args, v.intern, v.newStringRaw, v.newArray, v.newMap)
	v.stackTop = base
	v.push(value.ObjValue(variant))
	return nil
}

// callSiteLine/callSiteColumn read the CALL/INVOKE instruction's own
// token position (still current when an arity check fires, before any
// frame push), used to position ArityError at the call site rather than
// the callee's declaration.
func (v *VM) callSiteLine() int {
	f := v.currentFrame()
	if f == nil || f.ip < 0 || f.ip >= len(f.fn.Chunk.Tokens) {
		return 0
	}
	return f.fn.Chunk.Tokens[f.ip].Line
}

func (v *VM) callSiteColumn() int {
	f := v.currentFrame()
	if f == nil || f.ip < 0 || f.ip >= len(f.fn.Chunk.Tokens) {
		return 0
	}
	return f.fn.Chunk.Tokens[f.ip].Column
}
