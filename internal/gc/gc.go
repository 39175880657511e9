// Package gc implements the incremental generational mark-sweep
// collector of spec §4.4: young/old generation free lists, tri-colour
// gray-queue marking, minor and full collection cycles, promotion at
// GC_PROMOTION_AGE, a write barrier maintaining a remembered-set of
// old objects referencing young ones, and an incremental old-generation
// sweep advanced a bounded batch per safepoint.
//
// Grounded on Dev-Dami-DYMS-Lang/runtime/memory.go's allocation
// bookkeeping (byte counters driving a grow-factor threshold),
// generalized from its single untyped list into the young/old split
// spec.md requires.
package gc

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"erkao/internal/value"
)

const (
	// DefaultMinYoungHeap is the floor gcYoungNext never drops below
	// (spec §4.4 step 4).
	DefaultMinYoungHeap = 64 * 1024
	// DefaultGrowFactor scales the next young-collection threshold off
	// the live bytes that survived the last minor cycle.
	DefaultGrowFactor = 2.0
	// DefaultFullHeapTarget is the initial gcNext threshold for
	// triggering a full collection.
	DefaultFullHeapTarget = 1 << 20
	// SweepBatchSize bounds how many old-generation objects (or
	// environments) the incremental sweep advances per safepoint check.
	SweepBatchSize = 64
)

// Roots supplies the GC with the live root set at the moment of a
// collection: the global environment, the current frame's environment,
// any in-flight argument values, and live module instances. Grounded
// on spec §4.4 step 1's root enumeration ("globals env, current env,
// args, modules").
type Roots struct {
	Globals *value.Environment
	Current *value.Environment
	Args    []value.Value
	Modules []value.Value
}

func (r Roots) collect(out []value.Value) []value.Value {
	if r.Globals != nil {
		out = append(out, value.ObjValue(r.Globals))
	}
	if r.Current != nil && r.Current != r.Globals {
		out = append(out, value.ObjValue(r.Current))
	}
	out = append(out, r.Args...)
	out = append(out, r.Modules...)
	return out
}

// sweepPhase names which incremental old-generation sweep state the
// collector is parked in between safepoints.
type sweepPhase int

const (
	sweepIdle sweepPhase = iota
	sweepOld
)

// Collector owns the young and old generation object lists, the
// remembered-set of old objects pointing at young ones, and the
// incremental old-sweep cursor.
type Collector struct {
	young []value.Object
	old   []value.Object

	// envs tracks live Environment objects separately because they are
	// heap objects too (spec §3 "Environments are themselves heap
	// objects") but are not reachable purely via Children() graphs
	// rooted only at values — the VM registers each one explicitly.
	envs []*value.Environment

	remembered map[value.Object]bool

	youngBytes int
	youngNext  int
	oldBytes   int
	fullNext   int

	gray []value.Object

	// oldVisited guards against infinite recursion when a minor cycle's
	// root scan walks through old-generation objects purely to discover
	// young children (spec §4.4 step 1: "old-generation objects treated
	// as roots for the minor cycle" — they are scanned but never marked
	// or swept by a minor cycle, so Header.Marked can't double as the
	// visited flag here).
	oldVisited map[value.Object]bool

	phase       sweepPhase
	sweepCur    int // index into sweepList already processed
	sweepList   []value.Object
	sweepKept   []value.Object // survivors accumulated across incremental batches

	MinYoungHeap   int
	GrowFactor     float64
	FullHeapTarget int

	// Stats mirrors counters a caller (VM, tests) may want to observe.
	Stats Stats
}

// Stats accumulates lifetime collection counters, useful for tests and
// for an embedder reading them through vm.VM.GC().
type Stats struct {
	MinorCycles    int
	FullCycles     int
	ObjectsFreed   int
	ObjectsPromoted int
}

func New() *Collector {
	return &Collector{
		remembered:     make(map[value.Object]bool),
		oldVisited:     make(map[value.Object]bool),
		youngNext:      DefaultMinYoungHeap,
		fullNext:       DefaultFullHeapTarget,
		MinYoungHeap:   DefaultMinYoungHeap,
		GrowFactor:     DefaultGrowFactor,
		FullHeapTarget: DefaultFullHeapTarget,
	}
}

// Register places a freshly allocated object on the young list with
// age 0, per spec §4.4 "Allocation". Every allocator in package value
// (NewStringRaw, NewArrayRaw, ...) is wrapped by a corresponding VM
// helper in internal/vm/alloc.go (newStringRaw, newArray, ...) that
// calls this.
func (c *Collector) Register(o value.Object) {
	h := o.Header()
	h.Gen = value.Young
	h.Age = 0
	h.Marked = false
	h.Remembered = false
	c.young = append(c.young, o)
	c.youngBytes += h.Size
}

// RegisterEnv tracks a newly created Environment as a GC-managed root
// candidate (spec §3: "Environments are themselves heap objects"). Its
// bytes are folded into the ordinary young-generation tally by Register
// (an Environment is swept, aged, and promoted exactly like any other
// heap object) rather than into a second counter of its own.
func (c *Collector) RegisterEnv(e *value.Environment) {
	c.Register(e)
	c.envs = append(c.envs, e)
}

// ShouldMinor reports whether accumulated young-generation bytes have
// crossed the pending-minor-collection threshold (spec §4.4
// "Allocation").
func (c *Collector) ShouldMinor() bool { return c.youngBytes >= c.youngNext }

// ShouldFull reports whether total heap bytes have crossed gcNext.
func (c *Collector) ShouldFull() bool {
	return c.youngBytes+c.oldBytes >= c.fullNext
}

// WriteBarrier must be invoked by every store of a reference into a
// heap object (map/array/instance field sets) per spec §4.4 "Write
// barrier": if owner is an old-generation object and value may
// transitively reference a young object, owner is added to the
// remembered-set so the next minor cycle treats it as a root.
func (c *Collector) WriteBarrier(owner value.Object, stored value.Value) {
	if owner == nil || owner.Header().Gen != value.Old {
		return
	}
	if !stored.IsObj() {
		return
	}
	storedObj := stored.AsObject()
	if storedObj.Header().Gen == value.Young {
		owner.Header().Remembered = true
		c.remembered[owner] = true
	}
}

// InvalidateOnRehash is the write barrier's "other responsibility"
// (spec §4.4): a map rehash shifts entry indices, so any inline cache
// keyed on the old index self-heals on its next probe by pointer
// mismatch. No explicit action is needed here beyond documenting the
// contract — callers (package bytecode's InlineCache) already validate
// (container, key) identity before trusting Index. This function exists
// as the named hook the VM calls after Map.Rehash so the barrier's full
// contract has one call site.
func (c *Collector) InvalidateOnRehash(value.Object) {}

// MinorCollect runs a minor GC cycle: seed from roots and the
// remembered-set, mark reachable young objects, sweep the young list
// promoting survivors at PromotionAge (spec §4.4 steps 1-4 under
// "Minor cycle").
func (c *Collector) MinorCollect(roots Roots) {
	c.gray = c.gray[:0]
	for k := range c.oldVisited {
		delete(c.oldVisited, k)
	}
	seeds := roots.collect(nil)
	for _, v := range seeds {
		c.markValue(v, true)
	}
	for owner := range c.remembered {
		c.markChildrenYoungOnly(owner)
	}
	c.drainGray(true)

	c.sweepYoung()
	c.youngNext = int(float64(c.youngBytes) * c.GrowFactor)
	if c.youngNext < c.MinYoungHeap {
		c.youngNext = c.MinYoungHeap
	}
	c.Stats.MinorCycles++
}

// FullCollect runs a full GC cycle: mark everything reachable from
// global roots (spec §4.4 "Full cycle" step 1), sweep young as in a
// minor cycle, then park an incremental old-generation sweep cursor
// rather than sweeping old objects synchronously.
func (c *Collector) FullCollect(roots Roots) {
	c.gray = c.gray[:0]
	for _, v := range roots.collect(nil) {
		c.markValue(v, false)
	}
	c.drainGray(false)
	c.sweepYoung()

	// Snapshot the old list for incremental sweeping and clear c.old so
	// that any object promoted by a minor cycle running mid-sweep is
	// appended fresh (already known live, exempt from this cycle's
	// sweep) rather than aliasing the snapshot's backing array.
	c.phase = sweepOld
	c.sweepList = c.old
	c.sweepKept = c.sweepKept[:0]
	c.sweepCur = 0
	c.old = nil
	c.Stats.FullCycles++
}

// AdvanceIncrementalSweep advances the parked old-generation sweep by
// at most SweepBatchSize entries, per spec §4.4 "incremental old
// sweep". Returns true once the sweep has finished (phase returns to
// idle). Safe to call when idle (no-op, returns true).
func (c *Collector) AdvanceIncrementalSweep() bool {
	if c.phase != sweepOld {
		return true
	}
	end := c.sweepCur + SweepBatchSize
	if end > len(c.sweepList) {
		end = len(c.sweepList)
	}
	for i := c.sweepCur; i < end; i++ {
		o := c.sweepList[i]
		h := o.Header()
		if h.Marked {
			h.Marked = false
			c.sweepKept = append(c.sweepKept, o)
		} else {
			c.Stats.ObjectsFreed++
			delete(c.remembered, o)
		}
	}
	c.sweepCur = end

	if c.sweepCur >= len(c.sweepList) {
		// Survivors of the swept snapshot plus anything promoted into
		// c.old while the sweep was in progress.
		c.old = append(c.sweepKept, c.old...)
		c.recomputeOldBytes()
		c.phase = sweepIdle
		c.sweepList = nil
		c.sweepKept = nil
		c.fullNext = int(float64(c.oldBytes+c.youngBytes) * c.GrowFactor)
		if c.fullNext < c.FullHeapTarget {
			c.fullNext = c.FullHeapTarget
		}
		return true
	}
	return false
}

// SweepInProgress reports whether an incremental old sweep is parked,
// during which new allocations must not trigger another full GC (spec
// §4.4 "During this window new allocations do not trigger another full
// GC").
func (c *Collector) SweepInProgress() bool { return c.phase == sweepOld }

// HeapBytes reports the collector's current total tracked byte count
// (young + old, environments included since they're registered into
// the same young/old lists as any other heap object), used by the VM's
// post-full-collection budget check (spec §4.3 "if total heap bytes
// still exceed the cap after a forced full collection, fail with
// ErrHeapExceeded").
func (c *Collector) HeapBytes() int { return c.youngBytes + c.oldBytes }

// sweepYoung partitions the young list into survivors (kept, aged, and
// possibly promoted to old) and dead objects (freed), per spec §4.4
// step 3 under "Minor cycle" — shared by both minor and full cycles,
// which sweep the young generation identically.
func (c *Collector) sweepYoung() {
	marked := lo.Filter(c.young, func(o value.Object, _ int) bool { return o.Header().Marked })
	dead := lo.Reject(c.young, func(o value.Object, _ int) bool { return o.Header().Marked })

	for _, o := range dead {
		c.Stats.ObjectsFreed++
		delete(c.remembered, o)
	}

	survivors := marked[:0:0]
	for _, o := range marked {
		h := o.Header()
		h.Age = saturatingInc(h.Age)
		h.Marked = false
		if h.Age >= value.PromotionAge {
			h.Gen = value.Old
			h.Age = 0
			c.old = append(c.old, o)
			c.oldBytes += h.Size
			c.Stats.ObjectsPromoted++
		} else {
			survivors = append(survivors, o)
		}
	}
	c.young = survivors
	c.recomputeYoungBytes()
}

func (c *Collector) markValue(v value.Value, youngOnly bool) {
	if !v.IsObj() {
		return
	}
	c.markObject(v.AsObject(), youngOnly)
}

func (c *Collector) markObject(o value.Object, youngOnly bool) {
	h := o.Header()
	if youngOnly && h.Gen == value.Old {
		// Old objects are opaque to a minor sweep but still act as
		// roots: walk through to find young descendants without
		// marking or enqueuing the old object itself.
		if c.oldVisited[o] {
			return
		}
		c.oldVisited[o] = true
		c.markChildrenYoungOnly(o)
		return
	}
	if h.Marked {
		return
	}
	h.Marked = true
	c.gray = append(c.gray, o)
}

func (c *Collector) markChildrenYoungOnly(o value.Object) {
	for _, child := range o.Children(nil) {
		c.markValue(child, true)
	}
}

func (c *Collector) drainGray(youngOnly bool) {
	for len(c.gray) > 0 {
		o := c.gray[len(c.gray)-1]
		c.gray = c.gray[:len(c.gray)-1]
		children := o.Children(nil)
		for _, child := range children {
			c.markValue(child, youngOnly)
		}
	}
}

func (c *Collector) recomputeYoungBytes() {
	total := 0
	for _, o := range c.young {
		total += o.Header().Size
	}
	c.youngBytes = total
}

func (c *Collector) recomputeOldBytes() {
	total := 0
	for _, o := range c.old {
		total += o.Header().Size
	}
	c.oldBytes = total
}

func saturatingInc(age uint8) uint8 {
	if age == 255 {
		return age
	}
	return age + 1
}

// ErrHeapExceeded is returned by the VM's safepoint check (spec §4.3
// "Safepoints and budgets") when a forced full collection still leaves
// the heap over budget.
var ErrHeapExceeded = errors.New("heap budget exceeded after full collection")
