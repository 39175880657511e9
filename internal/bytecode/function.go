package bytecode

import "erkao/internal/value"

// Function is a compiled script function: the Callable the compiler
// emits a CLOSURE instruction for and the VM pushes a call frame for.
// Lives in package bytecode rather than package value because it holds
// a *Chunk, and value.Callable is the interface boundary that lets
// Class/Instance/BoundMethod/EnumConstructor reference callables
// without value importing bytecode (spec §3, §5).
type Function struct {
	header value.Header

	FuncName      string
	Params        []string // ordered parameter names
	ParamCount    int      // declared parameter count
	MinArity      int      // ParamCount minus trailing defaulted parameters
	IsInitializer bool
	Chunk         *Chunk
	Env           *value.Environment // captured closure environment
	Program       *value.Program     // owning compilation unit
}

func NewFunction(name string, params []string, minArity int) *Function {
	f := &Function{
		FuncName:   name,
		Params:     params,
		ParamCount: len(params),
		MinArity:   minArity,
		Chunk:      NewChunk(),
	}
	f.header.Kind = value.OFunction
	return f
}

func (f *Function) Header() *value.Header { return &f.header }

func (f *Function) String() string {
	if f.FuncName == "" {
		return "<script>"
	}
	return "<fn " + f.FuncName + ">"
}

func (f *Function) Children(out []value.Value) []value.Value {
	for _, c := range f.Chunk.Consts {
		if c.IsObj() {
			out = append(out, c)
		}
	}
	if f.Env != nil {
		out = append(out, value.ObjValue(f.Env))
	}
	return out
}

// Arity and Name satisfy value.Callable. Natives (print, math helpers)
// live in package value itself (value.Native) since they hold no *Chunk
// and so need no import-cycle workaround.
func (f *Function) Arity() (min, max int) { return f.MinArity, f.ParamCount }
func (f *Function) Name() string          { return f.FuncName }

// Close produces the runtime closure of this function template over
// env: a shallow copy sharing the same Chunk (and therefore the same
// compiled code and inline-cache table) but capturing env as the scope
// CALL builds each new frame's environment from (spec §4.2 CLOSURE
// opcode). The template itself is never mutated, so one `fun` or method
// declaration can be closed over many times (recursion, repeated
// iterations of an enclosing loop) without closures clobbering one
// another's captured scope.
func (f *Function) Close(env *value.Environment) *Function {
	closed := *f
	closed.Env = env
	return &closed
}
