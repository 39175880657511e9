// Package stdlib declares the small set of native globals exercised by
// internal/vm's calling convention (spec §4.3 "Natives"). It is grounded
// on Dev-Dami-DYMS-Lang/libraries/fmaths.go and libraries/time.go
// (one Register* function per concern, called from main once at
// startup) and runtime/interpreter.go's init-time println/pretty
// globals — trimmed to what a native-call test or a script actually
// needs, since a full standard library is out of spec.md's scope.
package stdlib

import "erkao/internal/vm"

// Register installs every builtin this package knows about into v's
// global environment. Call once, before the first Interpret/RunSource.
func Register(v *vm.VM) {
	registerMath(v)
	registerTime(v)
	registerIO(v)
}
