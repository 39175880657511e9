package value

// ObjKind tags the concrete heap object kind, analogous to the teacher's
// ValueType string tag (runtime/value.go) but covering the full kind set
// of spec §3.
type ObjKind uint8

const (
	OString ObjKind = iota
	OArray
	OMap
	OFunction
	ONative
	OEnumCtor
	OClass
	OInstance
	OBoundMethod
	OEnvironment
	OProgram
)

func (k ObjKind) String() string {
	switch k {
	case OString:
		return "String"
	case OArray:
		return "Array"
	case OMap:
		return "Map"
	case OFunction:
		return "Function"
	case ONative:
		return "Native"
	case OEnumCtor:
		return "EnumConstructor"
	case OClass:
		return "Class"
	case OInstance:
		return "Instance"
	case OBoundMethod:
		return "BoundMethod"
	case OEnvironment:
		return "Environment"
	case OProgram:
		return "Program"
	default:
		return "?"
	}
}

// Generation partitions the heap by object age (spec §3/§4.4).
type Generation uint8

const (
	Young Generation = iota
	Old
)

// PromotionAge is GC_PROMOTION_AGE from spec §4.4: the age at which a
// surviving young object is promoted to the old generation.
const PromotionAge = 8

// Header is the per-object metadata every heap object carries (spec §3):
// type tag, generation tag, saturating age counter, mark bit, intrusive
// free-list next-pointer, and byte size.
type Header struct {
	Kind    ObjKind
	Gen     Generation
	Age     uint8
	Marked  bool
	Next    Object // intrusive per-generation free-list link
	Size    int
	// Remembered marks this object as a write-barrier root for the next
	// minor GC cycle (spec §4.4 "Write barrier").
	Remembered bool
}

// Object is any heap-allocated value. Dynamic dispatch over object kind
// (marking, freeing, printing, equality) is implemented as total
// functions over this interface, per spec §9's "model values as a sum
// with discriminated kinds" guidance.
type Object interface {
	Header() *Header
	String() string
	// Children appends this object's directly-referenced Values to out,
	// for GC marking. Leaf kinds (String) return out unchanged.
	Children(out []Value) []Value
}
