package value

// ObjUpvalue refers either to a live slot on the VM value stack (open) or
// to a Value it owns directly (closed). Open upvalues are threaded on an
// intrusive list, OpenNext, ordered by descending stack address, so
// captureUpvalue can find
// (or correctly insert) the single open Upvalue for a given slot.
type ObjUpvalue struct {
	Header
	Location *Value // points into the VM stack array while open; nil once closed
	Closed   Value
	OpenNext *ObjUpvalue
}

var _ Object = (*ObjUpvalue)(nil)

func NewUpvalue(loc *Value) *ObjUpvalue {
	uv := &ObjUpvalue{Location: loc}
	uv.Header.Kind = ObjKindUpvalue
	return uv
}

func (uv *ObjUpvalue) String() string { return "upvalue" }

func (uv *ObjUpvalue) Blacken(h *Heap) {
	if uv.Location != nil {
		h.Mark(*uv.Location)
	} else {
		h.Mark(uv.Closed)
	}
}

// Get returns the upvalue's current value, open or closed.
func (uv *ObjUpvalue) Get() Value {
	if uv.Location != nil {
		return *uv.Location
	}
	return uv.Closed
}

// Set writes the upvalue's current value, open or closed.
func (uv *ObjUpvalue) Set(v Value) {
	if uv.Location != nil {
		*uv.Location = v
		return
	}
	uv.Closed = v
}

// Close captures the current value into the Upvalue's own storage and
// detaches it from the stack.
func (uv *ObjUpvalue) Close() {
	uv.Closed = *uv.Location
	uv.Location = nil
}
