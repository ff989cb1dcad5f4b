package value

import "testing"

// P5: strings are interned, so two InternString calls on equal byte
// sequences return the identical *ObjString pointer.
func TestInternString_IdenticalContentIsIdenticalPointer(t *testing.T) {
	h := NewHeap()
	a := h.InternString("hello world")
	b := h.InternString("hello world")
	if a != b {
		t.Fatalf("InternString returned distinct pointers for equal content")
	}

	c := h.InternString("different")
	if a == c {
		t.Fatalf("InternString returned the same pointer for different content")
	}
}

func TestInternString_HashComputedOnce(t *testing.T) {
	h := NewHeap()
	a := h.InternString("abc")
	if a.Header.Hash == 0 {
		t.Fatalf("expected a nonzero hash for an interned string")
	}
	b := h.InternString("abc")
	if a.Header.Hash != b.Header.Hash {
		t.Fatalf("hash mismatch between two interns of the same content")
	}
}

func (h *Heap) walk(fn func(Object)) {
	for o := h.objects; o != nil; o = o.Hdr().Next {
		fn(o)
	}
}

// P6: after a collection, everything reachable from the roots survives
// with its mark bit cleared, and everything unreachable is swept from the
// intrusive object list.
func TestHeap_CollectSweepsUnreachableObjects(t *testing.T) {
	h := NewHeap()

	kept := h.NewSequence(nil)
	h.NewSequence(nil) // never rooted; must be swept

	h.Collect(func(h *Heap) {
		h.MarkObject(kept)
	})

	if kept.Header.Marked {
		t.Fatalf("mark bit must be cleared on survivors after sweep")
	}

	count := 0
	var sawKept bool
	h.walk(func(o Object) {
		count++
		if o == Object(kept) {
			sawKept = true
		}
	})
	if count != 1 {
		t.Fatalf("expected exactly 1 surviving object, got %d", count)
	}
	if !sawKept {
		t.Fatalf("reachable object was swept")
	}
}

func TestHeap_CollectFreesTrulyUnreachableObjects(t *testing.T) {
	h := NewHeap()
	h.NewSequence(nil) // never rooted

	h.Collect(func(h *Heap) {})

	count := 0
	h.walk(func(o Object) { count++ })
	if count != 0 {
		t.Fatalf("expected everything swept, got %d survivors", count)
	}
}

// String-intern weakening: an interned string not reachable from any root
// other than the intern table itself is dropped from the table after a
// collection.
func TestHeap_CollectWeakensUnreachableInternedStrings(t *testing.T) {
	h := NewHeap()
	h.InternString("ephemeral")
	if h.Strings["ephemeral"] == nil {
		t.Fatalf("setup: string did not intern")
	}

	h.Collect(func(h *Heap) {})

	if _, ok := h.Strings["ephemeral"]; ok {
		t.Fatalf("unreachable interned string survived weakening")
	}
}

func TestHeap_RetainedStringsSurviveWeakening(t *testing.T) {
	h := NewHeap()
	h.Retain("init")

	h.Collect(func(h *Heap) {})

	if _, ok := h.Strings["init"]; !ok {
		t.Fatalf("retained string was dropped by weakening")
	}
}

func TestHeap_MarkObjectIsIdempotent(t *testing.T) {
	h := NewHeap()
	seq := h.NewSequence(nil)
	h.MarkObject(seq)
	if !seq.Header.Marked {
		t.Fatalf("expected mark bit set")
	}
	// marking again must not push a duplicate gray entry; Collect must
	// still terminate.
	h.Collect(func(h *Heap) {
		h.MarkObject(seq)
	})
}

func TestHeap_CollectMarksTransitively(t *testing.T) {
	h := NewHeap()
	inner := h.NewSequence(nil)
	outer := h.NewSequence([]Value{Obj(inner)})

	h.Collect(func(h *Heap) {
		h.MarkObject(outer)
	})

	count := 0
	h.walk(func(Object) { count++ })
	if count != 2 {
		t.Fatalf("expected outer and inner (reached via Blacken) to survive, got %d objects", count)
	}
}
