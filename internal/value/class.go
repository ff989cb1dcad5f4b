package value

// ObjClass is a guest-language class: a name, its own methods map, and an
// optional superclass. At INHERIT time all of the superclass's methods are
// copied into the subclass's own map: later changes to the superclass's
// methods do not retroactively affect subclasses already inherited from it.
type ObjClass struct {
	Header
	Name    string
	Methods map[string]*ObjClosure
	Super   *ObjClass // non-owning: GC reachability keeps it alive
}

var _ Object = (*ObjClass)(nil)

func NewClass(name string) *ObjClass {
	c := &ObjClass{Name: name, Methods: make(map[string]*ObjClosure)}
	c.Header.Kind = ObjKindClass
	return c
}

func (c *ObjClass) String() string { return "<class " + c.Name + ">" }

func (c *ObjClass) Blacken(h *Heap) {
	for _, m := range c.Methods {
		h.MarkObject(m)
	}
	if c.Super != nil {
		h.MarkObject(c.Super)
	}
}

// Inherit copies every method of super into c's own methods map at class
// declaration time; later changes to super's methods do not propagate.
func (c *ObjClass) Inherit(super *ObjClass) {
	c.Super = super
	for name, m := range super.Methods {
		c.Methods[name] = m
	}
}
