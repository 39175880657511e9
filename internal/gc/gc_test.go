package gc

import (
	"testing"

	"erkao/internal/value"
)

func newString(c *Collector, s string) *value.String {
	o := value.NewStringRaw(s)
	c.Register(o)
	return o
}

func newArray(c *Collector, elems ...value.Value) *value.Array {
	o := value.NewArrayRaw(elems)
	c.Register(o)
	return o
}

func TestMinorCollectFreesUnreachable(t *testing.T) {
	c := New()
	root := newArray(c)
	rootVal := value.ObjValue(root)
	_ = newString(c, "garbage")

	c.MinorCollect(Roots{Args: []value.Value{rootVal}})

	if c.Stats.ObjectsFreed == 0 {
		t.Fatal("expected the unreferenced string to be freed")
	}
	if len(c.young) != 1 {
		t.Fatalf("expected only the rooted array to survive, got %d young objects", len(c.young))
	}
}

func TestMinorCollectKeepsReachableGraph(t *testing.T) {
	c := New()
	s := newString(c, "kept")
	arr := newArray(c, value.ObjValue(s))

	c.MinorCollect(Roots{Args: []value.Value{value.ObjValue(arr)}})

	if c.Stats.ObjectsFreed != 0 {
		t.Fatalf("expected nothing freed, got %d", c.Stats.ObjectsFreed)
	}
	if len(c.young) != 2 {
		t.Fatalf("expected array and its string element to survive, got %d", len(c.young))
	}
}

func TestPromotionAtThreshold(t *testing.T) {
	c := New()
	arr := newArray(c)
	rootVal := value.ObjValue(arr)

	for i := 0; i < value.PromotionAge; i++ {
		c.MinorCollect(Roots{Args: []value.Value{rootVal}})
	}

	if arr.Header().Gen != value.Old {
		t.Fatalf("expected promotion after %d survived minor cycles, still gen=%v age=%d",
			value.PromotionAge, arr.Header().Gen, arr.Header().Age)
	}
	if c.Stats.ObjectsPromoted == 0 {
		t.Fatal("expected at least one promotion recorded")
	}
}

func TestWriteBarrierMarksOldAsRemembered(t *testing.T) {
	c := New()
	owner := newArray(c)
	owner.Header().Gen = value.Old

	young := newString(c, "fresh")
	c.WriteBarrier(owner, value.ObjValue(young))

	if !owner.Header().Remembered {
		t.Fatal("expected owner to be marked remembered after storing a young reference")
	}
}

func TestWriteBarrierIgnoresYoungOwner(t *testing.T) {
	c := New()
	owner := newArray(c) // still young
	young := newString(c, "fresh")
	c.WriteBarrier(owner, value.ObjValue(young))

	if owner.Header().Remembered {
		t.Fatal("a young owner should never need remembered-set membership")
	}
}

func TestIncrementalSweepFinishesAndFreesDead(t *testing.T) {
	c := New()
	// Force enough old objects to span more than one sweep batch.
	var rootsVal []value.Value
	for i := 0; i < SweepBatchSize+5; i++ {
		arr := value.NewArrayRaw(nil)
		arr.Header().Gen = value.Old
		c.old = append(c.old, arr)
		c.oldBytes += arr.Header().Size
		if i%2 == 0 {
			rootsVal = append(rootsVal, value.ObjValue(arr))
		}
	}

	c.FullCollect(Roots{Args: rootsVal})
	if !c.SweepInProgress() {
		t.Fatal("expected an incremental sweep to be parked after FullCollect")
	}

	done := false
	for i := 0; i < 10 && !done; i++ {
		done = c.AdvanceIncrementalSweep()
	}
	if !done {
		t.Fatal("expected the incremental sweep to finish within a few batches")
	}
	if c.SweepInProgress() {
		t.Fatal("sweep should be idle once finished")
	}
	if len(c.old) != len(rootsVal) {
		t.Fatalf("expected %d surviving old objects, got %d", len(rootsVal), len(c.old))
	}
}
