package value

// Heap owns every allocated Object (the intrusive "all objects" sweep
// list), the interned-strings table, and the tracing mark-sweep collector.
// It also owns the two VM-wide name tables: Globals (a StringMap, marked
// as a GC root) and Infixes (an InfixTable of int precedences, which holds
// no objects).
//
// A single process may run more than one Heap; ownership is always
// explicit, passed to every compile/interpret/allocate entry point.
type Heap struct {
	Globals  *StringMap
	Infixes  *InfixTable
	Strings  map[string]*ObjString // intern table; weakened (not strong-rooted) at GC time
	Retained map[*ObjString]bool   // small strings the VM/compiler pin regardless of reachability (e.g. "init", "call")

	objects Object // head of the intrusive sweep list
	gray    []Object

	bytesAllocated int64
	nextGC         int64

	DebugStressGC bool // collect at every check of ShouldCollect ("debug-stress mode")
	DebugLogGC    bool // log every allocate/mark/free (ambient NAT_GC_LOG knob)
	Log           func(format string, args ...any)
}

const initialNextGC = 1 << 20 // 1 MiB startup threshold before the first collection
const gcGrowthFactor = 2

// NewHeap returns an initialized, empty Heap.
func NewHeap() *Heap {
	h := &Heap{
		Globals:  NewStringMap(),
		Infixes:  NewInfixTable(),
		Strings:  make(map[string]*ObjString),
		Retained: make(map[*ObjString]bool),
		nextGC:   initialNextGC,
	}
	return h
}

func (h *Heap) logf(format string, args ...any) {
	if h.Log != nil {
		h.Log(format, args...)
	}
}

// track registers a freshly allocated object on the sweep list and charges
// its estimated size against bytesAllocated.
func (h *Heap) track(o Object) {
	hdr := o.Hdr()
	hdr.Next = h.objects
	h.objects = o
	h.bytesAllocated += approxSize(o)
	h.logf("alloc %p %s", o, hdr.Kind)
}

func approxSize(o Object) int64 {
	switch v := o.(type) {
	case *ObjString:
		return int64(32 + len(v.Chars))
	case *ObjFunction:
		return int64(64 + len(v.Chunk.Code))
	case *ObjClosure:
		return int64(24 + 8*len(v.Upvalues))
	case *ObjUpvalue:
		return 32
	case *ObjNative:
		return 48
	case *ObjClass:
		return int64(48 + 48*len(v.Methods))
	case *ObjInstance:
		return int64(32 + 48*len(v.Fields))
	case *ObjBoundMethod:
		return 32
	case *ObjMap:
		return int64(32 + 24*len(v.entries))
	case *ObjSequence:
		return int64(24 + 16*len(v.Values))
	case *ObjOverload:
		return int64(24 + 8*len(v.Closures))
	default:
		return 32
	}
}

// InternString returns the canonical *ObjString for s, allocating and
// interning it on first use, so that two guest strings with equal content
// are pointer-equal. The hash is computed once, at intern time.
func (h *Heap) InternString(s string) *ObjString {
	if existing, ok := h.Strings[s]; ok {
		return existing
	}
	str := &ObjString{Chars: s}
	str.Header.Kind = ObjKindString
	str.Header.Hash = fnv1aHash(s)
	h.Strings[s] = str
	h.track(str)
	return str
}

// Retain pins a small interned string (e.g. "init", "call", "iter") so the
// string-intern weakening pass never drops it even if nothing else
// currently references it.
func (h *Heap) Retain(s string) *ObjString {
	str := h.InternString(s)
	h.Retained[str] = true
	return str
}

// NewFunction, NewClosure, etc. below track each freshly built object on the
// Heap so bytesAllocated and the sweep list stay accurate. Allocation
// discipline: any builder that has not yet rooted a
// partially-constructed object must push it onto the VM value stack before
// allocating its components; the Heap itself does not enforce this, the VM
// call sites do (see internal/vm).

func (h *Heap) NewFunction(name string) *ObjFunction {
	fn := NewFunction(name)
	h.track(fn)
	return fn
}

func (h *Heap) NewClosure(fn *ObjFunction) *ObjClosure {
	c := NewClosure(fn)
	h.track(c)
	return c
}

func (h *Heap) NewUpvalue(loc *Value) *ObjUpvalue {
	uv := NewUpvalue(loc)
	h.track(uv)
	return uv
}

func (h *Heap) NewNative(name string, arity int, variadic bool, fn NativeFunc) *ObjNative {
	n := NewNative(name, arity, variadic, fn)
	h.track(n)
	return n
}

func (h *Heap) NewClass(name string) *ObjClass {
	c := NewClass(name)
	h.track(c)
	return c
}

func (h *Heap) NewInstance(class *ObjClass) *ObjInstance {
	i := NewInstance(class)
	h.track(i)
	return i
}

func (h *Heap) NewBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	b := NewBoundMethod(receiver, method)
	h.track(b)
	return b
}

func (h *Heap) NewMap() *ObjMap {
	m := NewMap()
	h.track(m)
	return m
}

func (h *Heap) NewSequence(vals []Value) *ObjSequence {
	s := NewSequence(vals)
	h.track(s)
	return s
}

func (h *Heap) NewOverload(name string, closures []*ObjClosure) *ObjOverload {
	o := NewOverload(name, closures)
	h.track(o)
	return o
}

// ShouldCollect reports whether a collection is due: bytesAllocated has
// crossed nextGC, or debug-stress mode is on (then it always reports true).
// Allocation itself does not check it; the VM checks it when it calls a
// closure, so collections happen at calls, not at each allocation.
func (h *Heap) ShouldCollect() bool {
	return h.DebugStressGC || h.bytesAllocated > h.nextGC
}

// Mark marks v if it is an Object, pushing it onto the gray stack.
func (h *Heap) Mark(v Value) {
	if v.IsObject() {
		h.MarkObject(v.AsObject())
	}
}

// MarkObject marks o and pushes it onto the growable gray stack for
// tracing.
func (h *Heap) MarkObject(o Object) {
	if o == nil {
		return
	}
	hdr := o.Hdr()
	if hdr.Marked {
		return
	}
	hdr.Marked = true
	h.logf("mark %p", o)
	h.gray = append(h.gray, o)
}

// trace pops the gray stack, blackening each object until empty.
func (h *Heap) trace() {
	for len(h.gray) > 0 {
		o := h.gray[len(h.gray)-1]
		h.gray = h.gray[:len(h.gray)-1]
		o.Blacken(h)
	}
}

// Collect runs one full mark-sweep cycle. markExternalRoots marks every
// root not owned by the Heap itself (the VM value stack, call frames and
// open upvalues); the Heap marks its own roots (Globals and retained
// strings) here.
func (h *Heap) Collect(markExternalRoots func(*Heap)) {
	h.logf("-- gc begin")
	before := h.bytesAllocated

	markExternalRoots(h)
	h.Globals.Each(func(_ string, v Value) { h.Mark(v) })
	for s := range h.Retained {
		h.MarkObject(s)
	}
	h.trace()
	h.weakenStringTable()
	h.sweep()

	h.nextGC = h.bytesAllocated * gcGrowthFactor
	if h.nextGC < initialNextGC {
		h.nextGC = initialNextGC
	}
	h.logf("-- gc end, collected %d bytes (%d -> %d), next at %d", before-h.bytesAllocated, before, h.bytesAllocated, h.nextGC)
}

// weakenStringTable deletes any intern-table entry whose string object did
// not get marked, so the intern table never keeps a string alive on its
// own.
func (h *Heap) weakenStringTable() {
	for s, obj := range h.Strings {
		if !obj.Header.Marked {
			delete(h.Strings, s)
		}
	}
}

// sweep walks the intrusive object list, freeing (unlinking) unmarked
// objects and clearing the mark bit on survivors.
func (h *Heap) sweep() {
	var prev Object
	cur := h.objects
	for cur != nil {
		hdr := cur.Hdr()
		next := hdr.Next
		if hdr.Marked {
			hdr.Marked = false
			prev = cur
		} else {
			h.logf("free %p %s", cur, hdr.Kind)
			h.bytesAllocated -= approxSize(cur)
			if prev == nil {
				h.objects = next
			} else {
				prev.Hdr().Next = next
			}
		}
		cur = next
	}
}
