package vm

import (
	"os"

	"erkao/internal/bytecode"
	"erkao/internal/compiler"
	"erkao/internal/diag"
	"erkao/internal/lexer"
	"erkao/internal/value"
)

// loadModule reads, tokenizes, and compiles the file at resolvedPath
// into a fresh root Function — the same pipeline Interpret's caller
// runs for the entry script (spec §4.3 module loading step 3: "load and
// compile the source file").
func (v *VM) loadModule(resolvedPath string) (*bytecode.Function, *diag.Error) {
	src, readErr := os.ReadFile(resolvedPath)
	if readErr != nil {
		return nil, v.errAt(diag.ImportError, "cannot read module %q: %v", resolvedPath, readErr)
	}
	source := string(src)
	tokens := lexer.Tokenize(source)
	fn, diags := compiler.Compile(tokens, resolvedPath, source)
	for _, d := range diags {
		if !d.Kind.Recoverable() {
			return nil, v.errAt(diag.ImportError, "module %q failed to compile: %s", resolvedPath, d.WireFormat())
		}
	}
	v.internChunkConsts(fn)
	return fn, nil
}

// beginImport executes one IMPORT/IMPORT_MODULE instruction (spec §4.3
// "Module loading"): resolve importPath relative to the importing
// frame's own path, then consult the module cache. A cache hit binds or
// pushes synchronously; a cache miss pushes a fresh module call frame for
// the dispatch loop to run, completed later by finishModule when that
// frame's RETURN fires.
func (v *VM) beginImport(importPath string, hasAlias bool, alias string, pushInstance bool) *diag.Error {
	if v.resolver == nil {
		return v.errAt(diag.ImportError, "no module resolver configured")
	}
	resolved, ok := v.resolver.Resolve(v.currentPath(), importPath)
	if !ok {
		return v.errAt(diag.ImportError, "cannot resolve import %q", importPath)
	}

	if cached, ok := v.modules[resolved]; ok {
		if cached.IsNull() {
			return v.errAt(diag.ImportError, "import %q failed on a previous attempt", importPath)
		}
		v.completeImport(cached, hasAlias, alias, pushInstance)
		return nil
	}

	fn, loadErr := v.loadModule(resolved)
	if loadErr != nil {
		v.modules[resolved] = value.NullValue
		return loadErr
	}

	moduleEnv := v.newEnvironment(v.globals)
	instance := v.newInstance(nil) // Class == nil: a module record, spec §3
	v.modules[resolved] = value.ObjValue(instance)

	base := v.stackTop
	v.push(value.NullValue) // placeholder slot 0, mirrors a callee slot with no real callee

	fn.Program.EnterRun()
	v.frames = append(v.frames, CallFrame{
		fn:   fn,
		ip:   0,
		base: base,
		env:  moduleEnv,

		prevProgram: v.currentProgram,
		receiver:    value.NullValue,

		isModule:         true,
		moduleInstance:   instance,
		moduleKey:        resolved,
		moduleHasAlias:   hasAlias,
		moduleAlias:      alias,
		modulePushResult: pushInstance,
		modulePrivate:    make(map[string]bool),
	})
	v.currentProgram = fn.Program
	return nil
}

// completeImport performs the binding/pushing tail spec §4.3 describes
// for both a cache hit and a freshly finished module: IMPORT binds the
// instance under alias in the importing frame's env, IMPORT_MODULE
// pushes it directly for the following GET_PROPERTY/dot access.
func (v *VM) completeImport(moduleVal value.Value, hasAlias bool, alias string, pushInstance bool) {
	if pushInstance {
		v.push(moduleVal)
		return
	}
	if !hasAlias {
		return
	}
	f := v.currentFrame()
	if !f.env.Declare(alias, moduleVal, false) {
		f.env.Assign(alias, moduleVal)
	}
}

// finishModule runs at a module frame's RETURN (spec §4.3 module loading
// step 3's tail): on first completion, the instance's fields become the
// public subset of the module env — every binding except one named by a
// PRIVATE declaration (frame.modulePrivate). A plain EXPORT name is
// therefore a no-op at runtime; it exists so the compiler's export
// syntax has somewhere to go, not because anything needs excluding. The
// finished instance is reinserted into the module cache under its
// resolved path and then bound/pushed exactly as a cache hit would be.
func (v *VM) finishModule(frame *CallFrame) {
	inst := frame.moduleInstance
	if inst.Fields.Len() == 0 {
		for name, val := range frame.env.Bindings() {
			if frame.modulePrivate[name] {
				continue
			}
			inst.Fields.Set(v.intern(name), val)
		}
	}
	moduleVal := value.ObjValue(inst)
	v.modules[frame.moduleKey] = moduleVal
	v.completeImport(moduleVal, frame.moduleHasAlias, frame.moduleAlias, frame.modulePushResult)
}

// execExportFrom implements EXPORT_FROM (spec §4.1 "Modules"): pop the
// already-loaded module instance an immediately preceding IMPORT_MODULE
// pushed, then copy either every public field (count == 0, `export *
// from`) or the named src/as pairs (`export {a as b, ...} from`) into
// the current module's own env, so they flow through to its own
// finishModule pass as ordinary bindings.
func (v *VM) execExportFrom(f *CallFrame) *diag.Error {
	count := int(f.readU16())
	type pair struct{ src, as uint16 }
	pairs := make([]pair, count)
	for i := range pairs {
		pairs[i] = pair{f.readU16(), f.readU16()}
	}

	modVal := v.pop()
	inst, ok := modVal.AsObject().(*value.Instance)
	if !modVal.IsObj() || !ok {
		return v.errAt(diag.TypeError, "export-from target is not a module")
	}

	if count == 0 {
		for _, key := range inst.Fields.Keys() {
			if val, _, ok := inst.Fields.Get(key); ok {
				f.env.Declare(key.Chars, val, false)
			}
		}
		return nil
	}

	for _, p := range pairs {
		srcName := nameAt(f, p.src)
		asName := nameAt(f, p.as)
		val, _, ok := inst.Fields.Get(srcName)
		if !ok {
			return v.errAt(diag.NameError, "undefined export %q", srcName.Chars)
		}
		f.env.Declare(asName.Chars, val, false)
	}
	return nil
}
