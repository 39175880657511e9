package value

// EnumConstructor represents one enum variant constructor: enum name,
// variant name, declared arity. Calling it produces a map-shaped variant
// value {_enum: E, _tag: V, _values: [...]} (spec §3).
type EnumConstructor struct {
	header    Header
	EnumName  string
	Variant   string
	Arity_    int
}

func NewEnumConstructor(enumName, variant string, arity int) *EnumConstructor {
	e := &EnumConstructor{EnumName: enumName, Variant: variant, Arity_: arity}
	e.header.Kind = OEnumCtor
	e.header.Size = headerOverhead
	return e
}

func (e *EnumConstructor) Header() *Header              { return &e.header }
func (e *EnumConstructor) String() string                { return e.EnumName + "." + e.Variant }
func (e *EnumConstructor) Children(out []Value) []Value { return out }
func (e *EnumConstructor) Name() string                  { return e.EnumName + "." + e.Variant }
func (e *EnumConstructor) Arity() (min int, max int)     { return e.Arity_, e.Arity_ }

// Field name constants for the variant-value shape, spec §3.
const (
	EnumFieldTag     = "_enum"
	VariantFieldTag  = "_tag"
	VariantFieldVals = "_values"
)

// BuildVariant constructs the map-shaped variant value for a call to this
// constructor with the given argument values. intern must return the
// canonical interned *String for the given literal text (spec §3:
// "same string literal text ⇒ same string object"); newString, newArray,
// and newMap must register every object they construct with the VM's
// collector, so a variant is indistinguishable from any other heap value
// once built.
func (e *EnumConstructor) BuildVariant(args []Value, intern func(string) *String, newString func(string) *String, newArray func([]Value) *Array, newMap func() *Map) *Map {
	m := newMap()
	m.Set(intern(EnumFieldTag), ObjValue(newString(e.EnumName)))
	m.Set(intern(VariantFieldTag), ObjValue(newString(e.Variant)))
	values := newArray(append([]Value(nil), args...))
	m.Set(intern(VariantFieldVals), ObjValue(values))
	return m
}
