package value

// Class is a name plus a map of method name to function (spec §3).
// Methods are stored as Callable so this package need not depend on
// package bytecode (which defines the concrete script Function type).
type Class struct {
	header  Header
	Name    string
	Methods map[string]Callable
}

func NewClass(name string) *Class {
	c := &Class{Name: name, Methods: make(map[string]Callable)}
	c.header.Kind = OClass
	c.header.Size = headerOverhead
	return c
}

func (c *Class) Header() *Header { return &c.header }
func (c *Class) String() string  { return "<class " + c.Name + ">" }

func (c *Class) Children(out []Value) []Value {
	for _, m := range c.Methods {
		out = append(out, ObjValue(m))
	}
	return out
}

// FindMethod looks up a method by name, per spec §4.3 init-method
// discovery and §4.3 bound-method property reads.
func (c *Class) FindMethod(name string) (Callable, bool) {
	m, ok := c.Methods[name]
	return m, ok
}

// InitMethodName is the constructor method name, spec §4.3: "if an init
// method exists, it is invoked on the instance".
const InitMethodName = "init"

// Instance is a class pointer plus a map of field name to value (spec
// §3). A module instance (spec §4.3 module loading, GLOSSARY "Module
// instance") is represented as an Instance with Class == nil — a
// "class-less-style object whose fields are a module's exported
// bindings", per the glossary's own wording.
type Instance struct {
	header Header
	Class  *Class
	Fields *Map
}

func NewInstance(class *Class, newMap func() *Map) *Instance {
	i := &Instance{Class: class, Fields: newMap()}
	i.header.Kind = OInstance
	i.header.Size = headerOverhead
	return i
}

func (i *Instance) Header() *Header { return &i.header }

func (i *Instance) String() string {
	if i.Class == nil {
		return "<module>"
	}
	return "<instance " + i.Class.Name + ">"
}

func (i *Instance) Children(out []Value) []Value {
	if i.Class != nil {
		out = append(out, ObjValue(i.Class))
	}
	out = append(out, ObjValue(i.Fields))
	return out
}

// IsModule reports whether this instance represents a module record
// rather than a class instance.
func (i *Instance) IsModule() bool { return i.Class == nil }

// BoundMethod is a receiver value plus a method function, produced when a
// method is read as a property (spec §3).
type BoundMethod struct {
	header   Header
	Receiver Value
	Method   Callable
}

func NewBoundMethod(receiver Value, method Callable) *BoundMethod {
	b := &BoundMethod{Receiver: receiver, Method: method}
	b.header.Kind = OBoundMethod
	b.header.Size = headerOverhead
	return b
}

func (b *BoundMethod) Header() *Header { return &b.header }
func (b *BoundMethod) String() string  { return "<bound " + b.Method.Name() + ">" }

func (b *BoundMethod) Children(out []Value) []Value {
	out = append(out, b.Receiver)
	out = append(out, ObjValue(b.Method))
	return out
}

func (b *BoundMethod) Arity() (min int, max int) { return b.Method.Arity() }
func (b *BoundMethod) Name() string              { return b.Method.Name() }
