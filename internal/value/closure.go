package value

// ObjClosure pairs a compiled Function with the Upvalues it captured at
// creation time.
type ObjClosure struct {
	Header
	Fn       *ObjFunction
	Upvalues []*ObjUpvalue
}

var _ Object = (*ObjClosure)(nil)

func NewClosure(fn *ObjFunction) *ObjClosure {
	c := &ObjClosure{Fn: fn, Upvalues: make([]*ObjUpvalue, fn.UpvalueCount)}
	c.Header.Kind = ObjKindClosure
	return c
}

func (c *ObjClosure) String() string { return c.Fn.String() }

func (c *ObjClosure) Blacken(h *Heap) {
	h.MarkObject(c.Fn)
	for _, uv := range c.Upvalues {
		if uv != nil {
			h.MarkObject(uv)
		}
	}
}
