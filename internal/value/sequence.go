package value

// ObjSequence is a growable Value array: the runtime
// representation of `[...]` literals, comprehension accumulators, and the
// collapsed trailing-argument tuple of a variadic call.
type ObjSequence struct {
	Header
	Values []Value
}

var _ Object = (*ObjSequence)(nil)

func NewSequence(vals []Value) *ObjSequence {
	s := &ObjSequence{Values: vals}
	s.Header.Kind = ObjKindSequence
	return s
}

func (s *ObjSequence) String() string {
	out := "["
	for i, v := range s.Values {
		if i > 0 {
			out += ", "
		}
		out += v.String()
	}
	return out + "]"
}

func (s *ObjSequence) Blacken(h *Heap) {
	for _, v := range s.Values {
		h.Mark(v)
	}
}

func (s *ObjSequence) Len() int { return len(s.Values) }

// Add appends v, implementing the well-known `add` method that natives and
// the variadic-collapsing and comprehension desugar depend on.
func (s *ObjSequence) Add(v Value) { s.Values = append(s.Values, v) }
