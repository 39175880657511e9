package vm

import (
	"erkao/internal/bytecode"
	"erkao/internal/diag"
	"erkao/internal/value"
)

// readU8/readU16 decode an operand at the frame's current ip and advance
// past it, matching how package bytecode's EmitU8/EmitU16 encoded it.
func (f *CallFrame) readU8() byte {
	b := f.fn.Chunk.Code[f.ip]
	f.ip++
	return b
}

func (f *CallFrame) readU16() uint16 {
	n := f.fn.Chunk.ReadU16(f.ip)
	f.ip += 2
	return n
}

// nameAt fetches the *value.String a name-const operand refers to. Every
// identConst-produced constant is a String by construction, so this
// never sees another kind from legitimately compiled bytecode.
func nameAt(f *CallFrame, idx uint16) *value.String {
	s, _ := f.fn.Chunk.Consts[idx].AsObject().(*value.String)
	return s
}

// run drives the dispatch loop to completion: pops frames via doReturn
// until the outermost one returns, applying spec §4.3's per-instruction
// budget check and post-instruction safepoint/GC checks along the way,
// and converting any recoverable runtime diagnostic into a script-level
// throw when a try handler is pending.
func (v *VM) run() (value.Value, *diag.Error) {
	for {
		f := v.currentFrame()
		if f == nil {
			return value.NullValue, nil
		}

		if v.Config.InstrBudget > 0 && v.instrCount >= v.Config.InstrBudget {
			return value.Value{}, v.errAt(diag.BudgetError, "instruction budget exceeded")
		}
		v.instrCount++

		opStart := f.ip
		op := bytecode.OpCode(f.fn.Chunk.Code[f.ip])
		f.ip++

		var err *diag.Error
		var returned bool
		var returnVal value.Value

		switch op {
		case bytecode.CONSTANT:
			v.push(f.fn.Chunk.Consts[f.readU16()])
		case bytecode.NULL:
			v.push(value.NullValue)
		case bytecode.TRUE:
			v.push(value.BoolValue(true))
		case bytecode.FALSE:
			v.push(value.BoolValue(false))
		case bytecode.POP:
			v.pop()

		case bytecode.GET_VAR:
			name := nameAt(f, f.readU16())
			val, ok := f.env.Lookup(name.Chars)
			if !ok {
				err = v.errAt(diag.NameError, "undefined variable %q", name.Chars)
				break
			}
			v.push(val)
		case bytecode.SET_VAR:
			name := nameAt(f, f.readU16())
			val := v.peek()
			if f.env.IsConst(name.Chars) {
				err = v.errAt(diag.NameError, "cannot assign to const %q", name.Chars)
				break
			}
			if !f.env.Assign(name.Chars, val) {
				err = v.errAt(diag.NameError, "undefined variable %q", name.Chars)
			}
		case bytecode.DEFINE_VAR:
			name := nameAt(f, f.readU16())
			val := v.pop()
			if !f.env.Declare(name.Chars, val, false) {
				err = v.errAt(diag.NameError, "%q is already defined in this scope", name.Chars)
			}
		case bytecode.DEFINE_CONST:
			name := nameAt(f, f.readU16())
			val := v.pop()
			if !f.env.Declare(name.Chars, val, true) {
				err = v.errAt(diag.NameError, "%q is already defined in this scope", name.Chars)
			}
		case bytecode.GET_THIS:
			f.readU16()
			v.push(f.receiver)

		case bytecode.GET_PROPERTY:
			key := nameAt(f, f.readU16())
			receiver := v.pop()
			var val value.Value
			if val, err = v.getProperty(opStart, receiver, key); err == nil {
				v.push(val)
			}
		case bytecode.GET_PROPERTY_OPTIONAL:
			key := nameAt(f, f.readU16())
			receiver := v.pop()
			if receiver.IsNull() {
				v.push(value.NullValue)
				break
			}
			var val value.Value
			if val, err = v.getProperty(opStart, receiver, key); err == nil {
				v.push(val)
			}
		case bytecode.SET_PROPERTY:
			key := nameAt(f, f.readU16())
			val := v.pop()
			receiver := v.pop()
			if err = v.setProperty(opStart, receiver, key, val); err == nil {
				v.push(val)
			}

		case bytecode.GET_INDEX:
			idx := v.pop()
			container := v.pop()
			var val value.Value
			if val, err = v.getIndex(opStart, container, idx); err == nil {
				v.push(val)
			}
		case bytecode.GET_INDEX_OPTIONAL:
			idx := v.pop()
			container := v.pop()
			if container.IsNull() {
				v.push(value.NullValue)
				break
			}
			var val value.Value
			if val, err = v.getIndex(opStart, container, idx); err == nil {
				v.push(val)
			}
		case bytecode.SET_INDEX:
			val := v.pop()
			idx := v.pop()
			container := v.pop()
			if err = v.setIndex(opStart, container, idx, val); err == nil {
				v.push(val)
			}

		case bytecode.MATCH_ENUM:
			enumIdx := f.readU16()
			variantIdx := f.readU16()
			scrutinee := v.pop()
			v.push(value.BoolValue(v.matchEnum(scrutinee, nameAt(f, enumIdx).Chars, nameAt(f, variantIdx).Chars)))
		case bytecode.IS_ARRAY:
			val := v.pop()
			_, ok := val.AsObject().(*value.Array)
			v.push(value.BoolValue(val.IsObj() && ok))
		case bytecode.IS_MAP:
			val := v.pop()
			_, ok := val.AsObject().(*value.Map)
			v.push(value.BoolValue(val.IsObj() && ok))
		case bytecode.LEN:
			val := v.pop()
			var n int
			switch o := val.AsObject().(type) {
			case *value.Array:
				n = len(o.Elements)
			case *value.Map:
				n = o.Len()
			case *value.String:
				n = len(o.Chars)
			default:
				err = v.errAt(diag.TypeError, "%s has no length", val.TypeName())
			}
			if err == nil {
				v.push(value.NumberValue(float64(n)))
			}
		case bytecode.MAP_HAS:
			key := v.pop()
			mapVal := v.pop()
			m, ok := mapVal.AsObject().(*value.Map)
			if !mapVal.IsObj() || !ok {
				err = v.errAt(diag.TypeError, "%s is not a map", mapVal.TypeName())
				break
			}
			keyStr, ok2 := indexAsStringKey(key)
			if !ok2 {
				err = v.errAt(diag.TypeError, "map key must be a string")
				break
			}
			v.push(value.BoolValue(m.Has(keyStr)))

		case bytecode.EQUAL:
			b := v.pop()
			a := v.pop()
			v.push(value.BoolValue(value.Equal(a, b)))
		case bytecode.GREATER, bytecode.GREATER_EQUAL, bytecode.LESS, bytecode.LESS_EQUAL:
			b := v.pop()
			a := v.pop()
			var val value.Value
			if val, err = v.compareNumbers(op, a, b); err == nil {
				v.push(val)
			}
		case bytecode.ADD:
			b := v.pop()
			a := v.pop()
			var val value.Value
			if val, err = v.add(a, b); err == nil {
				v.push(val)
			}
		case bytecode.SUBTRACT, bytecode.MULTIPLY, bytecode.DIVIDE:
			b := v.pop()
			a := v.pop()
			var val value.Value
			if val, err = v.arith(op, a, b); err == nil {
				v.push(val)
			}
		case bytecode.NOT:
			a := v.pop()
			v.push(value.BoolValue(!a.Truthy()))
		case bytecode.NEGATE:
			a := v.pop()
			if !a.IsNumber() {
				err = v.errAt(diag.TypeError, "cannot negate %s", a.TypeName())
				break
			}
			v.push(value.NumberValue(-a.AsNumber()))
		case bytecode.STRINGIFY:
			a := v.pop()
			v.push(value.ObjValue(v.newStringRaw(a.String())))

		case bytecode.JUMP:
			target := f.readU16()
			f.ip = int(target)
		case bytecode.JUMP_IF_FALSE:
			target := f.readU16()
			if !v.peek().Truthy() {
				f.ip = int(target)
			}
		case bytecode.LOOP:
			offset := f.readU16()
			f.ip -= int(offset)
		case bytecode.TRY:
			target := f.readU16()
			v.tryFrames = append(v.tryFrames, tryFrame{
				frameIndex: len(v.frames) - 1,
				handlerIP:  int(target),
				savedTop:   v.stackTop,
				savedEnv:   f.env,
			})
		case bytecode.END_TRY:
			if len(v.tryFrames) > 0 {
				v.tryFrames = v.tryFrames[:len(v.tryFrames)-1]
			}
		case bytecode.THROW:
			val := v.pop()
			err = v.throwValue(val)
		case bytecode.TRY_UNWRAP:
			var early bool
			var rv value.Value
			if early, rv, err = v.execTryUnwrap(); err == nil && early {
				returnVal, returned = v.doReturn(rv)
			} else if err == nil {
				v.push(rv)
			}

		case bytecode.CALL:
			argc := int(f.readU8())
			base := v.stackTop - argc - 1
			err = v.performCall(base, argc, v.stack[base], value.Value{}, false)
		case bytecode.CALL_OPTIONAL:
			argc := int(f.readU8())
			base := v.stackTop - argc - 1
			if v.stack[base].IsNull() {
				v.stackTop = base
				v.push(value.NullValue)
			} else {
				err = v.performCall(base, argc, v.stack[base], value.Value{}, false)
			}
		case bytecode.INVOKE:
			nameIdx := f.readU16()
			argc := int(f.readU8())
			base := v.stackTop - argc - 1
			receiver := v.stack[base]
			key := nameAt(f, nameIdx)
			var callee value.Value
			if callee, err = v.resolveInvokeCallee(opStart, receiver, key); err == nil {
				err = v.performCall(base, argc, callee, receiver, true)
			}
		case bytecode.ARG_COUNT:
			v.push(value.NumberValue(float64(f.declaredArgc)))
		case bytecode.CLOSURE:
			idx := f.readU16()
			template, ok := f.fn.Chunk.Consts[idx].AsObject().(*bytecode.Function)
			if !ok {
				err = v.errAt(diag.InternalError, "CLOSURE constant is not a function template")
				break
			}
			v.push(value.ObjValue(v.closeFunction(template, f.env)))
		case bytecode.RETURN:
			retVal := v.pop()
			returnVal, returned = v.doReturn(retVal)

		case bytecode.BEGIN_SCOPE:
			f.env = v.newEnvironment(f.env)
		case bytecode.END_SCOPE:
			if parent := f.env.Parent(); parent != nil {
				f.env = parent
			}

		case bytecode.CLASS:
			nameIdx := f.readU16()
			methodCount := int(f.readU16())
			class := v.newClass(nameAt(f, nameIdx).Chars)
			for i := 0; i < methodCount; i++ {
				if fn, ok := v.pop().AsObject().(*bytecode.Function); ok {
					class.Methods[fn.Name()] = fn
				}
			}
			v.push(value.ObjValue(class))

		case bytecode.IMPORT:
			aliasIdx := f.readU16()
			hasAlias := f.readU8()
			pathVal := v.pop()
			pathStr, ok := pathVal.AsObject().(*value.String)
			if !pathVal.IsObj() || !ok {
				err = v.errAt(diag.ImportError, "import path must be a string")
				break
			}
			alias := ""
			if hasAlias != 0 {
				alias = nameAt(f, aliasIdx).Chars
			}
			err = v.beginImport(pathStr.Chars, hasAlias != 0, alias, false)
		case bytecode.IMPORT_MODULE:
			pathVal := v.pop()
			pathStr, ok := pathVal.AsObject().(*value.String)
			if !pathVal.IsObj() || !ok {
				err = v.errAt(diag.ImportError, "import path must be a string")
				break
			}
			err = v.beginImport(pathStr.Chars, false, "", true)
		case bytecode.EXPORT:
			f.readU16() // every module-env binding is public unless PRIVATE says otherwise
		case bytecode.PRIVATE:
			name := nameAt(f, f.readU16())
			if f.isModule {
				f.modulePrivate[name.Chars] = true
			}
		case bytecode.EXPORT_VALUE:
			name := nameAt(f, f.readU16())
			val := v.pop()
			if !f.env.Declare(name.Chars, val, false) {
				f.env.Assign(name.Chars, val)
			}
		case bytecode.EXPORT_FROM:
			err = v.execExportFrom(f)

		case bytecode.ARRAY:
			count := int(f.readU16())
			elems := make([]value.Value, count)
			for i := count - 1; i >= 0; i-- {
				elems[i] = v.pop()
			}
			v.push(value.ObjValue(v.newArray(elems)))
		case bytecode.ARRAY_APPEND:
			val := v.pop()
			arrVal := v.pop()
			arr, ok := arrVal.AsObject().(*value.Array)
			if !arrVal.IsObj() || !ok {
				err = v.errAt(diag.TypeError, "%s is not an array", arrVal.TypeName())
				break
			}
			arr.Append(val)
			v.gc.WriteBarrier(arr, val)
			v.push(arrVal)
		case bytecode.MAP:
			err = v.execMapLiteral(f)
		case bytecode.MAP_SET:
			val := v.pop()
			key := v.pop()
			mapVal := v.pop()
			m, ok := mapVal.AsObject().(*value.Map)
			if !mapVal.IsObj() || !ok {
				err = v.errAt(diag.TypeError, "%s is not a map", mapVal.TypeName())
				break
			}
			keyStr, ok2 := indexAsStringKey(key)
			if !ok2 {
				err = v.errAt(diag.TypeError, "map key must be a string")
				break
			}
			m.Set(keyStr, val)
			v.gc.WriteBarrier(m, val)
			v.push(mapVal)

		case bytecode.GC:
			// a cooperative safepoint marker; the collection decision
			// itself happens in the post-instruction check below.

		default:
			err = v.errAt(diag.InternalError, "unhandled opcode %s", op)
		}

		if err != nil {
			if !v.handleRuntimeError(err) {
				return value.Value{}, err
			}
			continue
		}
		if returned {
			return returnVal, nil
		}

		if spErr := v.doSafepointChecks(); spErr != nil {
			if !v.handleRuntimeError(spErr) {
				return value.Value{}, spErr
			}
		}
	}
}

// execMapLiteral implements MAP: pairCount key/value pairs were pushed
// in source order (key0, val0, key1, val1, ...), so the pop order is
// reversed back into a slice before inserting, keeping the map's
// insertion order equal to the literal's written order.
func (v *VM) execMapLiteral(f *CallFrame) *diag.Error {
	count := int(f.readU16())
	type kv struct{ key, val value.Value }
	pairs := make([]kv, count)
	for i := count - 1; i >= 0; i-- {
		val := v.pop()
		key := v.pop()
		pairs[i] = kv{key, val}
	}
	m := v.newMap()
	for _, p := range pairs {
		keyStr, ok := indexAsStringKey(p.key)
		if !ok {
			return v.errAt(diag.TypeError, "map key must be a string")
		}
		m.Set(keyStr, p.val)
	}
	v.push(value.ObjValue(m))
	return nil
}

func (v *VM) compareNumbers(op bytecode.OpCode, a, b value.Value) (value.Value, *diag.Error) {
	if !a.IsNumber() || !b.IsNumber() {
		return value.Value{}, v.errAt(diag.TypeError, "cannot compare %s and %s", a.TypeName(), b.TypeName())
	}
	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case bytecode.GREATER:
		return value.BoolValue(x > y), nil
	case bytecode.GREATER_EQUAL:
		return value.BoolValue(x >= y), nil
	case bytecode.LESS:
		return value.BoolValue(x < y), nil
	default: // LESS_EQUAL
		return value.BoolValue(x <= y), nil
	}
}

// add implements ADD: numeric addition, or string concatenation when
// both operands are strings (spec §4.3 "ADD on two strings
// concatenates"). Any other pairing is a TypeError.
func (v *VM) add(a, b value.Value) (value.Value, *diag.Error) {
	if a.IsNumber() && b.IsNumber() {
		return value.NumberValue(a.AsNumber() + b.AsNumber()), nil
	}
	if a.IsObj() && b.IsObj() {
		if as, ok := a.AsObject().(*value.String); ok {
			if bs, ok := b.AsObject().(*value.String); ok {
				return value.ObjValue(v.newStringRaw(as.Chars + bs.Chars)), nil
			}
		}
	}
	return value.Value{}, v.errAt(diag.TypeError, "cannot add %s and %s", a.TypeName(), b.TypeName())
}

func (v *VM) arith(op bytecode.OpCode, a, b value.Value) (value.Value, *diag.Error) {
	if !a.IsNumber() || !b.IsNumber() {
		return value.Value{}, v.errAt(diag.TypeError, "cannot apply %s to %s and %s", op, a.TypeName(), b.TypeName())
	}
	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case bytecode.SUBTRACT:
		return value.NumberValue(x - y), nil
	case bytecode.MULTIPLY:
		return value.NumberValue(x * y), nil
	default: // DIVIDE
		return value.NumberValue(x / y), nil
	}
}
