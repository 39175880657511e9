package value

// Callable is satisfied by any heap object the VM's calling convention
// (spec §4.3) can invoke: script Functions (defined in package bytecode,
// which embeds a *Chunk and therefore cannot live in this package without
// an import cycle) and Natives (defined here). Keeping this as an
// interface boundary lets Class/Instance/BoundMethod reference "a
// callable" without this package depending on package bytecode.
type Callable interface {
	Object
	// Arity returns (minArity, arity): minArity is the smallest argc the
	// calling convention accepts (accounting for default parameters,
	// spec §4.2); arity is -1 for a variadic native, otherwise the
	// declared/maximum parameter count.
	Arity() (min int, max int)
	Name() string
}
