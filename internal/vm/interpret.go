package vm

import (
	"erkao/internal/bytecode"
	"erkao/internal/compiler"
	"erkao/internal/diag"
	"erkao/internal/lexer"
	"erkao/internal/value"
)

// Interpret runs a freshly compiled root Function to completion (spec
// §4.3 "Dispatch loop"): interns its constant pool, pushes the initial
// call frame, and drives run() until the outermost frame returns or an
// unrecovered diagnostic propagates out.
func (v *VM) Interpret(root *bytecode.Function) (value.Value, *diag.Error) {
	v.internChunkConsts(root)

	if root.Program != nil {
		root.Program.Retain()
		root.Program.EnterRun()
	}
	v.currentProgram = root.Program

	env := v.newEnvironment(v.globals)
	v.frames = append(v.frames, CallFrame{
		fn:       root,
		ip:       0,
		base:     v.stackTop,
		env:      env,
		receiver: value.NullValue,
	})
	v.push(value.NullValue) // slot 0: mirrors a callee slot, never read

	result, err := v.run()

	if root.Program != nil {
		root.Program.Release()
	}
	return result, err
}

// RunSource compiles and interprets one source unit in a single step, a
// convenience entry point for an embedder (or a test) that has no
// existing compiled artifact to hand Interpret directly.
func RunSource(v *VM, source, path string) (value.Value, *diag.Error) {
	tokens := lexer.Tokenize(source)
	root, diags := compiler.Compile(tokens, path, source)
	for _, d := range diags {
		if !d.Kind.Recoverable() {
			return value.Value{}, d
		}
	}
	return v.Interpret(root)
}
