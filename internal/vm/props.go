package vm

import (
	"erkao/internal/bytecode"
	"erkao/internal/diag"
	"erkao/internal/value"
)

// cacheAt returns the inline-cache slot the compiler allocated for the
// instruction whose opcode byte sits at ip in the current frame's chunk,
// or nil for an instruction kind that carries none.
func (v *VM) cacheAt(ip int) *bytecode.InlineCache {
	f := v.currentFrame()
	if f == nil {
		return nil
	}
	return f.fn.Chunk.Caches[ip]
}

// getProperty resolves a `.name` read against an Instance (fields, then
// inherited methods bound to a BoundMethod) or a plain Map (used for enum
// variants and map literals accessed dot-style), probing/filling the
// instruction's inline cache along the way (spec §4.3 "Property access
// and inline caches").
func (v *VM) getProperty(ip int, receiverVal value.Value, key *value.String) (value.Value, *diag.Error) {
	if !receiverVal.IsObj() {
		return value.Value{}, v.errAt(diag.TypeError, "%s has no properties", receiverVal.TypeName())
	}
	cache := v.cacheAt(ip)

	switch recv := receiverVal.AsObject().(type) {
	case *value.Instance:
		if cache != nil {
			if val, ok := cache.FieldHit(recv.Fields, key); ok {
				return val, nil
			}
		}
		if val, idx, ok := recv.Fields.Get(key); ok {
			if cache != nil {
				cache.FillField(bytecode.ShapeField, recv.Fields, key, idx)
			}
			return val, nil
		}
		if recv.Class != nil {
			if method, ok := v.findMethodCached(cache, recv.Class, key); ok {
				return value.ObjValue(v.newBoundMethod(receiverVal, method)), nil
			}
		}
		return value.Value{}, v.errAt(diag.NameError, "undefined property %q", key.Chars)

	case *value.Map:
		if cache != nil {
			if val, ok := cache.FieldHit(recv, key); ok {
				return val, nil
			}
		}
		if val, idx, ok := recv.Get(key); ok {
			if cache != nil {
				cache.FillField(bytecode.ShapeMap, recv, key, idx)
			}
			return val, nil
		}
		return value.Value{}, v.errAt(diag.NameError, "undefined property %q", key.Chars)

	default:
		return value.Value{}, v.errAt(diag.TypeError, "%s has no properties", receiverVal.TypeName())
	}
}

func (v *VM) findMethodCached(cache *bytecode.InlineCache, class *value.Class, key *value.String) (value.Callable, bool) {
	if cache != nil {
		if m, ok := cache.MethodHit(class, key); ok {
			return m, true
		}
	}
	m, ok := class.FindMethod(key.Chars)
	if ok && cache != nil {
		cache.FillMethod(class, key, m)
	}
	return m, ok
}

// setProperty resolves a `.name =` write, maintaining the write barrier
// and inline cache the same way getProperty does for reads.
func (v *VM) setProperty(ip int, receiverVal value.Value, key *value.String, val value.Value) *diag.Error {
	if !receiverVal.IsObj() {
		return v.errAt(diag.TypeError, "cannot set property on %s", receiverVal.TypeName())
	}
	cache := v.cacheAt(ip)

	switch recv := receiverVal.AsObject().(type) {
	case *value.Instance:
		idx, _ := recv.Fields.Set(key, val)
		v.gc.WriteBarrier(recv.Fields, val)
		if cache != nil {
			cache.FillField(bytecode.ShapeField, recv.Fields, key, idx)
		}
		return nil
	case *value.Map:
		idx, _ := recv.Set(key, val)
		v.gc.WriteBarrier(recv, val)
		if cache != nil {
			cache.FillField(bytecode.ShapeMap, recv, key, idx)
		}
		return nil
	default:
		return v.errAt(diag.TypeError, "cannot set property on %s", receiverVal.TypeName())
	}
}

// indexAsStringKey narrows a value to the *value.String a map index must
// be (spec §3: map keys are strings).
func indexAsStringKey(v value.Value) (*value.String, bool) {
	if !v.IsObj() {
		return nil, false
	}
	s, ok := v.AsObject().(*value.String)
	return s, ok
}

// getIndex resolves `container[index]` for an Array (numeric,
// bounds-checked) or a Map (string-keyed, inline-cached like a property
// read).
func (v *VM) getIndex(ip int, container, indexVal value.Value) (value.Value, *diag.Error) {
	if !container.IsObj() {
		return value.Value{}, v.errAt(diag.TypeError, "%s is not indexable", container.TypeName())
	}

	switch c := container.AsObject().(type) {
	case *value.Array:
		if !indexVal.IsNumber() {
			return value.Value{}, v.errAt(diag.TypeError, "array index must be a number")
		}
		i := int(indexVal.AsNumber())
		val, ok := c.Get(i)
		if !ok {
			return value.Value{}, v.errAt(diag.BoundsError, "array index %d out of range (len %d)", i, len(c.Elements))
		}
		return val, nil

	case *value.Map:
		key, ok := indexAsStringKey(indexVal)
		if !ok {
			return value.Value{}, v.errAt(diag.TypeError, "map key must be a string")
		}
		cache := v.cacheAt(ip)
		if cache != nil {
			if val, ok := cache.FieldHit(c, key); ok {
				return val, nil
			}
		}
		val, idx, ok := c.Get(key)
		if !ok {
			return value.Value{}, v.errAt(diag.NameError, "undefined map key %q", key.Chars)
		}
		if cache != nil {
			cache.FillField(bytecode.ShapeMap, c, key, idx)
		}
		return val, nil

	default:
		return value.Value{}, v.errAt(diag.TypeError, "%s is not indexable", container.TypeName())
	}
}

// setIndex resolves `container[index] = value` for an Array or a Map,
// maintaining the write barrier and (for maps) the inline cache.
func (v *VM) setIndex(ip int, container, indexVal, val value.Value) *diag.Error {
	if !container.IsObj() {
		return v.errAt(diag.TypeError, "%s is not indexable", container.TypeName())
	}

	switch c := container.AsObject().(type) {
	case *value.Array:
		if !indexVal.IsNumber() {
			return v.errAt(diag.TypeError, "array index must be a number")
		}
		i := int(indexVal.AsNumber())
		if !c.Set(i, val) {
			return v.errAt(diag.BoundsError, "array index %d out of range (len %d)", i, len(c.Elements))
		}
		v.gc.WriteBarrier(c, val)
		return nil

	case *value.Map:
		key, ok := indexAsStringKey(indexVal)
		if !ok {
			return v.errAt(diag.TypeError, "map key must be a string")
		}
		idx, _ := c.Set(key, val)
		v.gc.WriteBarrier(c, val)
		if cache := v.cacheAt(ip); cache != nil {
			cache.FillField(bytecode.ShapeMap, c, key, idx)
		}
		return nil

	default:
		return v.errAt(diag.TypeError, "%s is not indexable", container.TypeName())
	}
}

// resolveInvokeCallee resolves INVOKE's implicit property read against
// its receiver: a class instance's bound method, or a value stored under
// that key in a plain map (how `Name.Variant(...)` reaches an
// EnumConstructor, and how a function stored as a map/field entry is
// invoked method-style).
func (v *VM) resolveInvokeCallee(ip int, receiverVal value.Value, key *value.String) (value.Value, *diag.Error) {
	if !receiverVal.IsObj() {
		return value.Value{}, v.errAt(diag.TypeError, "%s has no method %q", receiverVal.TypeName(), key.Chars)
	}

	switch recv := receiverVal.AsObject().(type) {
	case *value.Instance:
		if recv.Class != nil {
			if m, ok := v.findMethodCached(v.cacheAt(ip), recv.Class, key); ok {
				return value.ObjValue(m), nil
			}
		}
		if val, _, ok := recv.Fields.Get(key); ok {
			return val, nil
		}
		return value.Value{}, v.errAt(diag.NameError, "undefined method %q", key.Chars)

	case *value.Map:
		if val, _, ok := recv.Get(key); ok {
			return val, nil
		}
		return value.Value{}, v.errAt(diag.NameError, "undefined method %q", key.Chars)

	default:
		return value.Value{}, v.errAt(diag.TypeError, "%s has no method %q", receiverVal.TypeName(), key.Chars)
	}
}

// enumField reads a variant value's synthetic field by content (spec §3
// EnumConstructor shape). Used by MATCH_ENUM and TRY_UNWRAP, neither of
// which has an interned key handy at this level.
func enumField(m *value.Map, name string) (value.Value, bool) {
	val, _, ok := m.Get(value.NewStringRaw(name))
	return val, ok
}

func stringChars(val value.Value) string {
	if !val.IsObj() {
		return ""
	}
	s, ok := val.AsObject().(*value.String)
	if !ok {
		return ""
	}
	return s.Chars
}

// matchEnum implements MATCH_ENUM: true iff scrutinee is a variant value
// whose _enum/_tag fields equal enumName/variantName (spec §4.2 `match`
// lowering).
func (v *VM) matchEnum(scrutinee value.Value, enumName, variantName string) bool {
	if !scrutinee.IsObj() {
		return false
	}
	m, ok := scrutinee.AsObject().(*value.Map)
	if !ok {
		return false
	}
	gotEnum, hasEnum := enumField(m, value.EnumFieldTag)
	gotTag, hasTag := enumField(m, value.VariantFieldTag)
	if !hasEnum || !hasTag {
		return false
	}
	return stringChars(gotEnum) == enumName && stringChars(gotTag) == variantName
}
