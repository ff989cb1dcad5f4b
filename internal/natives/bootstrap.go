package natives

import (
	"fmt"

	"github.com/mna/nenuphar/internal/value"
)

// installBootstrapTypes registers the handful of global constructors the
// compiler's desugaring emits bytecode that calls by name (
// sequence/map literals lower to `Sequence(...)`/`Map(...)` calls, `f . g`
// lowers to `compose(f, g)`, and `dom Name { ... }` lowers to a call to
// `Domain(...)`), plus the broader set of well-known collection/tuple/
// iterator types a complete implementation exposes to guest code.
func installBootstrapTypes(heap *value.Heap) {
	define(heap, "Sequence", 0, true, func(th any, args []value.Value) (value.Value, error) {
		vals := make([]value.Value, len(args))
		copy(vals, args)
		return value.Obj(heap.NewSequence(vals)), nil
	})

	define(heap, "Tuple", 0, true, func(th any, args []value.Value) (value.Value, error) {
		vals := make([]value.Value, len(args))
		copy(vals, args)
		return value.Obj(heap.NewSequence(vals)), nil
	})

	// Map(k1, v1, k2, v2, ...): the compiler's map-literal desugar pairs keys
	// and values and passes them flat, in source order.
	define(heap, "Map", 0, true, func(th any, args []value.Value) (value.Value, error) {
		if len(args)%2 != 0 {
			return value.Nil, fmt.Errorf("Map requires an even number of arguments")
		}
		m := heap.NewMap()
		for i := 0; i < len(args); i += 2 {
			m.Set(args[i], args[i+1])
		}
		return value.Obj(m), nil
	})

	// Set(e1, e2, ...): sugar for a Map whose values are all `true`;
	// exposed as its own constructor too since code may want to build one
	// without the literal syntax.
	define(heap, "Set", 0, true, func(th any, args []value.Value) (value.Value, error) {
		m := heap.NewMap()
		for _, a := range args {
			m.Set(a, value.True)
		}
		return value.Obj(m), nil
	})

	// Domain(name): the runtime counterpart of a `dom Name { ... }` block.
	// The block's members are ordinary bindings (a global u..z name goes
	// through SET_TYPE_GLOBAL, which stores a plain global); no dispatch by
	// receiver type takes place. Domain itself is just a named, printable
	// grouping marker bound to the block's name.
	domainClass := heap.NewClass("Domain")
	define(heap, "Domain", 1, false, func(th any, args []value.Value) (value.Value, error) {
		name := args[0].String()
		inst := heap.NewInstance(domainClass)
		inst.Fields["name"] = value.Obj(heap.InternString(name))
		return value.Obj(inst), nil
	})

	installObject(heap)
	installIterator(heap)
	installNodeRoot(heap)
	installPatternTypes(heap)
}

// installObject defines the root `Object` class every user class implicitly
// extends when no `extends` clause is written ("Without extends, the
// implicit superclass is the globally bound Object"). It carries no methods
// of its own; it exists purely as the root of the single-inheritance chain
// so every class's method lookup and `super` chain bottoms out somewhere.
func installObject(heap *value.Heap) {
	class := heap.NewClass("Object")
	heap.Globals.Set("Object", value.Obj(class))
}

// installIterator defines the Iterator class used by for-in's desugared
// iter/done/next protocol ("for-in loops") when guest code wants
// to build its own iterator rather than relying on a Sequence's or Map's
// built-in one (installed separately via Sequence#iter / Map#iter, see
// collections.go).
func installIterator(heap *value.Heap) {
	class := heap.NewClass("Iterator")
	heap.Globals.Set("Iterator", value.Obj(class))
}

// installNodeRoot defines the Node/Root bootstrap types used by tree-shaped
// guest data structures (the supplemented natives).
func installNodeRoot(heap *value.Heap) {
	node := heap.NewClass("Node")
	heap.Globals.Set("Node", value.Obj(node))
	root := heap.NewClass("Root")
	root.Inherit(node)
	heap.Globals.Set("Root", value.Obj(root))
}

// installPatternTypes defines the Signature/Pattern/PatternElement/Variable
// bootstrap classes that back patterned-function declarations (
// "Overloaded/patterned functions"). Only arity-based overload dispatch is
// wired into the VM at call time (see callOverload in internal/vm/call.go);
// these classes exist so guest code that names them (e.g. via `fields` or
// introspection) finds real values, but the VM does not yet construct or
// consult instances of them automatically. See DESIGN.md.
func installPatternTypes(heap *value.Heap) {
	for _, name := range []string{"Signature", "Pattern", "PatternElement", "Variable"} {
		class := heap.NewClass(name)
		heap.Globals.Set(name, value.Obj(class))
	}
}
