package value

// ObjInstance is an open field map attached to a class. The class
// back-reference outlives the instance because marking an Instance marks
// its Class.
type ObjInstance struct {
	Header
	Class  *ObjClass
	Fields map[string]Value
}

var _ Object = (*ObjInstance)(nil)

func NewInstance(class *ObjClass) *ObjInstance {
	i := &ObjInstance{Class: class, Fields: make(map[string]Value)}
	i.Header.Kind = ObjKindInstance
	return i
}

func (i *ObjInstance) String() string { return "<" + i.Class.Name + " instance>" }

func (i *ObjInstance) Blacken(h *Heap) {
	h.MarkObject(i.Class)
	for _, v := range i.Fields {
		h.Mark(v)
	}
}
