package value

// NativeFunc is the signature every native (built-in) function implements.
// vm is passed as `any` to avoid an import cycle with internal/vm (natives
// are called back into by the VM, which would otherwise have to import
// itself); concrete native implementations in internal/natives type-assert
// it to their vmLike interface, which *vm.VM satisfies.
type NativeFunc func(th any, args []Value) (Value, error)

// ObjNative wraps a Go function as a callable guest value, the bridge
// between bootstrap natives and guest code calling them like any closure.
type ObjNative struct {
	Header
	Name     string
	Arity    int
	Variadic bool
	Fn       NativeFunc
}

var _ Object = (*ObjNative)(nil)

func NewNative(name string, arity int, variadic bool, fn NativeFunc) *ObjNative {
	n := &ObjNative{Name: name, Arity: arity, Variadic: variadic, Fn: fn}
	n.Header.Kind = ObjKindNative
	return n
}

func (n *ObjNative) String() string { return "<native fn " + n.Name + ">" }
func (n *ObjNative) Blacken(*Heap)  {}
