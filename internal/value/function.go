package value

// FuncKind distinguishes plain functions from methods and initializers,
// which receive implicit `this` binding and (for initializers) an implicit
// return of the instance ("Classes").
type FuncKind uint8

const (
	FuncPlain FuncKind = iota
	FuncMethod
	FuncInitializer
)

// UpvalueDesc describes one upvalue captured by a Function, recorded at
// compile time by the compiler's resolveUpvalue.
type UpvalueDesc struct {
	IsLocal bool
	Index   uint16
}

// ObjFunction is the compiled, static representation of a function
// (including the implicit top-level module function): its arity, upvalue
// layout, variadic/patterned flags, and owned Chunk.
type ObjFunction struct {
	Header
	Name         string
	Arity        int
	UpvalueDescs []UpvalueDesc
	UpvalueCount int
	Variadic     bool
	Patterned    bool
	Kind         FuncKind
	Chunk        *Chunk
}

var _ Object = (*ObjFunction)(nil)

func NewFunction(name string) *ObjFunction {
	fn := &ObjFunction{Name: name, Chunk: &Chunk{}}
	fn.Header.Kind = ObjKindFunction
	return fn
}

func (fn *ObjFunction) String() string {
	if fn.Name == "" {
		return "<script>"
	}
	return "<fn " + fn.Name + ">"
}

func (fn *ObjFunction) Blacken(h *Heap) {
	for _, v := range fn.Chunk.Constants {
		h.Mark(v)
	}
}
