package vm

import (
	"erkao/internal/diag"
	"erkao/internal/gc"
	"erkao/internal/value"
)

// currentRoots assembles the live root set for a collection (spec §4.4
// step 1: "globals env, current env, args, modules"). gc.Roots only has
// room for one "current" environment, so every other frame's env (a
// function closes over its *definition* site, not its caller's, so an
// outer frame's env is not reachable by walking from the innermost one),
// every live receiver and module instance, every pending try-handler's
// saved env, and the entire in-flight value stack are folded into Args —
// anything reachable from there is kept alive regardless of whether it
// is also reachable through Current.
func (v *VM) currentRoots() gc.Roots {
	extra := append([]value.Value(nil), v.stack[:v.stackTop]...)
	for i := range v.frames {
		fr := &v.frames[i]
		if fr.env != nil {
			extra = append(extra, value.ObjValue(fr.env))
		}
		extra = append(extra, fr.receiver)
		if fr.moduleInstance != nil {
			extra = append(extra, value.ObjValue(fr.moduleInstance))
		}
	}
	for _, t := range v.tryFrames {
		if t.savedEnv != nil {
			extra = append(extra, value.ObjValue(t.savedEnv))
		}
	}

	var mods []value.Value
	for _, m := range v.modules {
		if !m.IsNull() {
			mods = append(mods, m)
		}
	}

	var cur *value.Environment
	if f := v.currentFrame(); f != nil {
		cur = f.env
	}

	return gc.Roots{
		Globals: v.globals,
		Current: cur,
		Args:    extra,
		Modules: mods,
	}
}

// doSafepointChecks runs the budget and collection logic spec §4.3 says
// happens "after each instruction": a full collection takes priority
// over a minor one when both thresholds are crossed, a forced full
// collection that still leaves the heap over its cap fails the run, and
// a parked incremental sweep is advanced by one batch regardless.
func (v *VM) doSafepointChecks() *diag.Error {
	if v.stackOverflowed() {
		return v.errAt(diag.BudgetError, "stack overflow")
	}

	if v.gc.ShouldFull() {
		v.gc.FullCollect(v.currentRoots())
		if v.Config.HeapByteCap > 0 && v.gc.HeapBytes() > v.Config.HeapByteCap {
			return v.errAt(diag.BudgetError, "heap budget exceeded")
		}
	} else if v.gc.ShouldMinor() {
		v.gc.MinorCollect(v.currentRoots())
	}

	if v.gc.SweepInProgress() {
		v.gc.AdvanceIncrementalSweep()
	}
	return nil
}
