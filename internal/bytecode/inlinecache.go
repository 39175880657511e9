package bytecode

import "erkao/internal/value"

// Shape tags which kind of site an InlineCache slot was last filled for
// (spec §4.3 "Property access and inline caches").
type Shape int

const (
	ShapeEmpty Shape = iota
	ShapeField
	ShapeMethod
	ShapeMap
)

// InlineCache is one per-instruction cache slot. GET_PROPERTY,
// GET_PROPERTY_OPTIONAL, SET_PROPERTY, INVOKE, and map-keyed
// GET_INDEX/SET_INDEX probe their cache before falling back to a hash
// lookup. A hit requires both the cached container pointer to match and
// the entry at the cached index to still hold the cached key (checked by
// pointer identity, since keys are interned strings) — a map rehash
// naturally invalidates stale indices, which is the self-healing
// mechanism spec §9 describes instead of proactively clearing caches.
type InlineCache struct {
	Shape Shape

	// ShapeField / ShapeMap
	Container *value.Map
	Key       *value.String
	Index     int

	// ShapeMethod
	Class  *value.Class
	Method value.Callable
}

// FieldHit validates a ShapeField/ShapeMap cache against the observed
// container and key, returning the cached value on success.
func (c *InlineCache) FieldHit(container *value.Map, key *value.String) (value.Value, bool) {
	if (c.Shape != ShapeField && c.Shape != ShapeMap) || c.Container != container || c.Key != key {
		return value.Value{}, false
	}
	return c.Container.GetByIndex(c.Index, key)
}

// FillField seeds the cache after a miss.
func (c *InlineCache) FillField(shape Shape, container *value.Map, key *value.String, idx int) {
	c.Shape = shape
	c.Container = container
	c.Key = key
	c.Index = idx
	c.Class = nil
	c.Method = nil
}

// MethodHit validates a ShapeMethod cache.
func (c *InlineCache) MethodHit(class *value.Class, key *value.String) (value.Callable, bool) {
	if c.Shape != ShapeMethod || c.Class != class || c.Key != key {
		return nil, false
	}
	return c.Method, true
}

// FillMethod seeds the cache after a method-lookup miss.
func (c *InlineCache) FillMethod(class *value.Class, key *value.String, fn value.Callable) {
	c.Shape = ShapeMethod
	c.Class = class
	c.Key = key
	c.Method = fn
	c.Container = nil
	c.Index = 0
}
