package value

// ObjOverload is the dispatch value produced by the OVERLOAD opcode for a
// `|`-separated multi-body function definition. At call time
// the VM tries each Closure in order and invokes the first one whose arity
// (counting a variadic final parameter) accepts the argument count; the
// argument values and any patterned parameters are not examined.
type ObjOverload struct {
	Header
	Name     string
	Closures []*ObjClosure
}

var _ Object = (*ObjOverload)(nil)

func NewOverload(name string, closures []*ObjClosure) *ObjOverload {
	o := &ObjOverload{Name: name, Closures: closures}
	o.Header.Kind = ObjKindOverload
	return o
}

func (o *ObjOverload) String() string { return "<overload " + o.Name + ">" }

func (o *ObjOverload) Blacken(h *Heap) {
	for _, c := range o.Closures {
		h.MarkObject(c)
	}
}
