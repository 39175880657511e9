// Package value implements the data model of spec §3: the tagged Value
// union, heap object headers, and every object kind. It generalizes
// Dev-Dami-DYMS-Lang/runtime/value.go's all-interface RuntimeVal hierarchy
// (which heap-allocates even a boolean) into an unboxed struct for the
// non-heap variants, keeping the teacher's interface-dispatch idiom only
// for the heap object kinds, where dynamic dispatch is actually needed.
package value

import (
	"fmt"
	"math"
)

// Kind tags a Value's variant: null, bool, number, or obj.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	Obj
)

// Value is the tagged union described in spec §3.
type Value struct {
	kind Kind
	num  float64 // Number payload, and 0/1 for Bool
	obj  Object  // Obj payload
}

// NullValue is the singleton null value.
var NullValue = Value{kind: Null}

// BoolValue constructs a boolean Value.
func BoolValue(b bool) Value {
	if b {
		return Value{kind: Bool, num: 1}
	}
	return Value{kind: Bool, num: 0}
}

// NumberValue constructs a numeric Value.
func NumberValue(n float64) Value {
	return Value{kind: Number, num: n}
}

// ObjValue wraps a heap Object as a Value.
func ObjValue(o Object) Value {
	return Value{kind: Obj, obj: o}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == Null }
func (v Value) IsBool() bool { return v.kind == Bool }
func (v Value) IsNumber() bool { return v.kind == Number }
func (v Value) IsObj() bool { return v.kind == Obj }

// AsBool returns the boolean payload; only meaningful when IsBool().
func (v Value) AsBool() bool { return v.num != 0 }

// AsNumber returns the numeric payload; only meaningful when IsNumber().
func (v Value) AsNumber() float64 { return v.num }

// AsObject returns the heap object payload; only meaningful when IsObj().
func (v Value) AsObject() Object { return v.obj }

// Truthy implements the language's truthiness rule: null and false(bool)
// are falsy, everything else (including 0 and "") is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case Null:
		return false
	case Bool:
		return v.num != 0
	default:
		return true
	}
}

// Equal implements spec §3's equality rule: null=null; booleans by
// identity; numbers by numeric equality (NaN != NaN); object references
// compared by string content for strings, pointer identity otherwise.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case Bool:
		return a.num == b.num
	case Number:
		return a.num == b.num // NaN != NaN falls out of IEEE-754 comparison
	case Obj:
		as, aok := a.obj.(*String)
		bs, bok := b.obj.(*String)
		if aok && bok {
			return as.Chars == bs.Chars
		}
		return a.obj == b.obj
	default:
		return false
	}
}

// TypeName returns the script-visible type name of v, used in TypeError
// messages.
func (v Value) TypeName() string {
	switch v.kind {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case Obj:
		return v.obj.Header().Kind.String()
	default:
		return "unknown"
	}
}

// String renders v for script-level inspection (println, pretty, error
// messages) — the successor to the teacher's RuntimeVal.String() and
// Pretty() (runtime/outputingpritier.go), unified into one formatter here
// since both served the same "make a value human-readable" purpose.
func (v Value) String() string {
	switch v.kind {
	case Null:
		return "null"
	case Bool:
		if v.num != 0 {
			return "true"
		}
		return "false"
	case Number:
		if math.IsNaN(v.num) {
			return "NaN"
		}
		if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1e15 {
			return fmt.Sprintf("%d", int64(v.num))
		}
		return fmt.Sprintf("%g", v.num)
	case Obj:
		return v.obj.String()
	default:
		return "?"
	}
}
