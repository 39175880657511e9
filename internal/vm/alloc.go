package vm

import (
	"erkao/internal/bytecode"
	"erkao/internal/value"
)

// Every heap allocation the VM performs at runtime goes through one of
// these helpers so it is registered with the collector in the same
// breath it is constructed (spec §4.4 "Allocation: new objects are
// placed on the young-generation list").

func (v *VM) newEnvironment(parent *value.Environment) *value.Environment {
	e := value.NewEnvironment(parent)
	v.gc.RegisterEnv(e)
	return e
}

func (v *VM) newStringRaw(s string) *value.String {
	str := value.NewStringRaw(s)
	v.gc.Register(str)
	return str
}

func (v *VM) newArray(elements []value.Value) *value.Array {
	a := value.NewArrayRaw(elements)
	v.gc.Register(a)
	return a
}

func (v *VM) newMap() *value.Map {
	m := value.NewMapRaw()
	v.gc.Register(m)
	return m
}

func (v *VM) newInstance(class *value.Class) *value.Instance {
	i := value.NewInstance(class, v.newMap)
	v.gc.Register(i)
	return i
}

func (v *VM) newBoundMethod(receiver value.Value, method value.Callable) *value.BoundMethod {
	b := value.NewBoundMethod(receiver, method)
	v.gc.Register(b)
	return b
}

func (v *VM) newClass(name string) *value.Class {
	c := value.NewClass(name)
	v.gc.Register(c)
	return c
}

func (v *VM) closeFunction(template *bytecode.Function, env *value.Environment) *bytecode.Function {
	f := template.Close(env)
	v.gc.Register(f)
	return f
}

// intern returns the canonical *String for s, constructing one on
// first sight. This is "the VM's string table" spec §4.4 refers to: it
// lets BuildVariant's synthetic field names, and any property name the
// compiler happened to emit as distinct per-chunk constants, converge
// on one shared pointer, so the inline cache's pointer-identity key
// check (spec §4.3 "Property access and inline caches") actually hits
// instead of always falling back to the hash lookup.
func (v *VM) intern(s string) *value.String {
	if cached, ok := v.interned[s]; ok {
		return cached
	}
	str := v.newStringRaw(s)
	v.interned[s] = str
	return str
}

// internChunkConsts canonicalizes every string (and nested function)
// constant in chunk through v.intern, recursively. Run once per
// top-level compiled Function before its first execution (Interpret,
// and module loading) so that every instruction referencing the same
// literal name — across every function and method in the unit — ends
// up pointing at the same *String object.
func (v *VM) internChunkConsts(fn *bytecode.Function) {
	if fn == nil {
		return
	}
	for i, c := range fn.Chunk.Consts {
		switch obj := c.AsObject().(type) {
		case *value.String:
			fn.Chunk.Consts[i] = value.ObjValue(v.intern(obj.Chars))
		case *bytecode.Function:
			v.internChunkConsts(obj)
		}
	}
}
