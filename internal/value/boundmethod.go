package value

// ObjBoundMethod pairs a receiver Value with the Closure to call on it
// (; produced by GET_PROPERTY when a method, rather than a field, is
// found).
type ObjBoundMethod struct {
	Header
	Receiver Value
	Method   *ObjClosure
}

var _ Object = (*ObjBoundMethod)(nil)

func NewBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	b := &ObjBoundMethod{Receiver: receiver, Method: method}
	b.Header.Kind = ObjKindBoundMethod
	return b
}

func (b *ObjBoundMethod) String() string { return b.Method.String() }

func (b *ObjBoundMethod) Blacken(h *Heap) {
	h.Mark(b.Receiver)
	h.MarkObject(b.Method)
}
