package vm

import (
	"strconv"

	"erkao/internal/diag"
	"erkao/internal/value"
)

// doReturn implements RETURN's frame-popping side once retVal is already
// known (shared with TRY_UNWRAP's early-return path, spec §4.3 "Unwrap
// operator": "an Err/None short-circuits as if `return` had been
// executed with that value"). Reports (retVal, true) when the popped
// frame was the outermost one — Interpret's signal to stop the dispatch
// loop.
func (v *VM) doReturn(retVal value.Value) (value.Value, bool) {
	frame := v.frames[len(v.frames)-1]
	v.frames = v.frames[:len(v.frames)-1]

	if frame.fn != nil && frame.fn.Program != nil {
		frame.fn.Program.ExitRun()
	}
	v.currentProgram = frame.prevProgram
	v.stackTop = frame.base

	if len(v.frames) == 0 {
		return retVal, true
	}

	if frame.isModule {
		v.finishModule(&frame)
	} else {
		v.push(retVal)
	}
	return value.Value{}, false
}

// execTryUnwrap implements TRY_UNWRAP (spec §4.3 "Unwrap operator"): a
// Result.Ok/Option.Some unwraps to its single carried value and
// execution continues; a Result.Err/Option.None causes an early return
// of the variant itself from the current frame; any other shape is a
// runtime TypeError.
func (v *VM) execTryUnwrap() (early bool, retVal value.Value, err *diag.Error) {
	top := v.pop()
	if !top.IsObj() {
		return false, value.Value{}, v.errAt(diag.TypeError, "? requires a Result or Option value")
	}
	m, ok := top.AsObject().(*value.Map)
	if !ok {
		return false, value.Value{}, v.errAt(diag.TypeError, "? requires a Result or Option value")
	}
	enumVal, hasEnum := enumField(m, value.EnumFieldTag)
	tagVal, hasTag := enumField(m, value.VariantFieldTag)
	if !hasEnum || !hasTag {
		return false, value.Value{}, v.errAt(diag.TypeError, "? requires a Result or Option value")
	}
	enumName, tag := stringChars(enumVal), stringChars(tagVal)

	switch {
	case (enumName == "Result" && tag == "Ok") || (enumName == "Option" && tag == "Some"):
		valuesVal, _ := enumField(m, value.VariantFieldVals)
		arr, ok := valuesVal.AsObject().(*value.Array)
		if !ok {
			return false, value.Value{}, v.errAt(diag.InternalError, "malformed variant value")
		}
		first, _ := arr.Get(0)
		return false, first, nil
	case (enumName == "Result" && tag == "Err") || (enumName == "Option" && tag == "None"):
		return true, top, nil
	default:
		return false, value.Value{}, v.errAt(diag.TypeError, "? requires a Result or Option value")
	}
}

// wrapScriptError wraps a thrown script value into the catchable error
// shape (spec §4.3 "Exception model"), unless val is already wrapped
// (re-throwing a caught error).
func (v *VM) wrapScriptError(val value.Value) value.Value {
	if m, ok := val.AsObject().(*value.Map); val.IsObj() && ok {
		if tagged, ok := enumField(m, "_error"); ok && tagged.Truthy() {
			return val
		}
	}
	return v.buildErrorValue(val.String(), val)
}

// wrapDiagError wraps an internal runtime diagnostic (TypeError,
// NameError, ...) into the same catchable shape, so script-level
// try/catch can observe it (spec §7: most Kinds are "Yes (via enclosing
// try)").
func (v *VM) wrapDiagError(e *diag.Error) value.Value {
	msg := value.ObjValue(v.newStringRaw(e.Message))
	return v.buildErrorValue(e.Message, msg)
}

func (v *VM) buildErrorValue(message string, payload value.Value) value.Value {
	wrapped := v.newMap()
	wrapped.Set(v.intern("_error"), value.BoolValue(true))
	wrapped.Set(v.intern("message"), value.ObjValue(v.newStringRaw(message)))
	wrapped.Set(v.intern("value"), payload)
	wrapped.Set(v.intern("trace"), value.ObjValue(v.newArray(v.captureTrace())))
	return value.ObjValue(wrapped)
}

// captureTrace walks the live frame stack innermost-first, used to
// populate a thrown error's `trace` field.
func (v *VM) captureTrace() []value.Value {
	trace := make([]value.Value, 0, len(v.frames))
	for i := len(v.frames) - 1; i >= 0; i-- {
		fr := &v.frames[i]
		name := "<script>"
		line := 0
		if fr.fn != nil {
			name = fr.fn.Name()
			if fr.ip >= 0 && fr.ip < len(fr.fn.Chunk.Tokens) {
				line = fr.fn.Chunk.Tokens[fr.ip].Line
			}
		}
		entry := name + ":" + strconv.Itoa(line)
		trace = append(trace, value.ObjValue(v.newStringRaw(entry)))
	}
	return trace
}

// throwValue implements THROW (spec §4.3 "Exception model"): wrap val,
// then repeatedly unwind to the nearest pending try-frame. Returns a
// final diag.Error only when no handler catches it.
func (v *VM) throwValue(val value.Value) *diag.Error {
	wrapped := v.wrapScriptError(val)
	if v.deliverToHandler(wrapped) {
		return nil
	}
	return v.uncaughtError(wrapped)
}

// deliverToHandler unwinds to the nearest try-frame that still belongs
// to a live call frame, discarding every frame pushed since it (releasing
// each one's Program the same way a RETURN would), and resumes execution
// at the handler with its saved env/stackTop restored and the wrapped
// error pushed for the catch binding to consume. Returns false if no
// live handler remains (the caller should treat the throw as uncaught).
//
// A `return` executed from inside a try body pops its frame (doReturn)
// without ever reaching END_TRY, leaving that try-frame's entry stale:
// its frameIndex now names a frame that no longer exists. spec §4.3's
// unwind "repeatedly pops try-frames until one is found whose
// frameIndex is <= the current frame count" specifically to skip these;
// a single unconditional pop would instead resume at a dead handler's
// IP/env from whatever chunk happened to occupy that try-frame slot.
func (v *VM) deliverToHandler(wrapped value.Value) bool {
	var t tryFrame
	found := false
	for len(v.tryFrames) > 0 {
		t = v.tryFrames[len(v.tryFrames)-1]
		v.tryFrames = v.tryFrames[:len(v.tryFrames)-1]
		if t.frameIndex < len(v.frames) {
			found = true
			break
		}
	}
	if !found {
		return false
	}

	for len(v.frames)-1 > t.frameIndex {
		fr := v.frames[len(v.frames)-1]
		v.frames = v.frames[:len(v.frames)-1]
		if fr.fn != nil && fr.fn.Program != nil {
			fr.fn.Program.ExitRun()
		}
	}

	f := v.currentFrame()
	f.ip = t.handlerIP
	f.env = t.savedEnv
	v.stackTop = t.savedTop
	v.push(wrapped)
	return true
}

// handleRuntimeError converts a recoverable internal diagnostic into a
// script-catchable throw when a handler exists, returning whether it was
// handled. Non-recoverable kinds (BudgetError, InternalError) and
// throws with no live handler both report false, meaning the caller
// should propagate e as the run's final error.
func (v *VM) handleRuntimeError(e *diag.Error) bool {
	if !e.Kind.Recoverable() {
		return false
	}
	return v.deliverToHandler(v.wrapDiagError(e))
}

func (v *VM) uncaughtError(wrapped value.Value) *diag.Error {
	msg := "uncaught throw"
	if m, ok := wrapped.AsObject().(*value.Map); ok {
		if mv, ok := enumField(m, "message"); ok {
			msg = "uncaught throw: " + mv.String()
		}
	}
	return v.errAt(diag.ThrowError, "%s", msg)
}
